package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/lockvendor/pkg/cache"
)

const commit = "fedcba9876543210fedcba9876543210fedcba98"

func testClient(url string) *Client {
	c := NewClient(cache.NewNullCache(), "gitlab.com", "", time.Hour)
	c.baseURL = url
	return c
}

func TestTree_Paginates(t *testing.T) {
	// Two full pages plus a final partial page.
	total := perPage*2 + 3
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/projects/group%2Frepo/repository/tree") &&
			!strings.Contains(r.URL.EscapedPath(), "group%2Frepo") {
			http.NotFound(w, r)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		start := (page - 1) * perPage
		var entries []treeEntry
		for i := start; i < start+perPage && i < total; i++ {
			entries = append(entries, treeEntry{Path: fmt.Sprintf("crates/c%03d/Cargo.toml", i), Type: "blob"})
		}
		json.NewEncoder(w).Encode(entries)
	}))
	defer server.Close()

	paths, err := testClient(server.URL).Tree(context.Background(), "group/repo", commit, false)
	if err != nil {
		t.Fatalf("Tree() failed: %v", err)
	}
	if len(paths) != total {
		t.Errorf("Tree() returned %d paths, want %d", len(paths), total)
	}
}

func TestFile(t *testing.T) {
	manifest := "[package]\nname = \"widget\"\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.EscapedPath(), "/raw") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("ref") != commit {
			t.Errorf("ref = %q, want pinned commit", r.URL.Query().Get("ref"))
		}
		fmt.Fprint(w, manifest)
	}))
	defer server.Close()

	got, err := testClient(server.URL).File(context.Background(), "group/repo", commit, "widget/Cargo.toml", false)
	if err != nil {
		t.Fatalf("File() failed: %v", err)
	}
	if string(got) != manifest {
		t.Errorf("File() = %q, want %q", got, manifest)
	}
}
