package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lockvendor/pkg/integrations/crates"
	"github.com/matzehuels/lockvendor/pkg/integrations/github"
	"github.com/matzehuels/lockvendor/pkg/integrations/gitlab"
	"github.com/matzehuels/lockvendor/pkg/lockfile"
	"github.com/matzehuels/lockvendor/pkg/manifest"
	"github.com/matzehuels/lockvendor/pkg/resolve"
	"github.com/matzehuels/lockvendor/pkg/source"
)

// defaultCacheTTL is how long HTTP responses stay cached. Trees and files at
// a pinned commit never change, so a long TTL is safe.
const defaultCacheTTL = 7 * 24 * time.Hour

// generateOpts holds the command-line flags for the generate command.
type generateOpts struct {
	output    string // manifest output path
	vendorDir string // vendor directory the redirection config points at
	configOut string // optional path for the config as a separate artifact
	jobs      int    // concurrent remote lookups
	refresh   bool   // bypass HTTP cache
	verify    bool   // cross-check crates.io checksums against the registry
	token     string // API token override for metadata lookups
}

// newGenerateCmd creates the generate command.
//
// Default options:
//   - output: generated-sources.json in the current directory
//   - vendorDir: "vendor"
//   - jobs: resolve.DefaultJobs concurrent lookups
func newGenerateCmd() *cobra.Command {
	opts := generateOpts{
		output:    "generated-sources.json",
		vendorDir: "vendor",
		jobs:      resolve.DefaultJobs,
	}

	cmd := &cobra.Command{
		Use:   "generate <Cargo.lock>",
		Short: "Generate an offline source manifest from a Cargo.lock",
		Long: `Generate an offline source manifest from a Cargo.lock.

Every registry package becomes an archive entry with its download URL and
checksum; every git dependency becomes one checkout entry per pinned
(repository, commit) pair, with the subdirectory of each member package
resolved through the hosting provider's API. Local path dependencies are
excluded.

Set GITHUB_TOKEN or GITLAB_TOKEN to authenticate metadata lookups against
the respective hosts (unauthenticated requests are rate-limited).

Examples:
  lockvendor generate Cargo.lock
  lockvendor generate Cargo.lock -o sources.json --vendor-dir .cargo-vendor
  lockvendor generate Cargo.lock --config-out cargo-config.toml --jobs 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return generate(c.Context(), &opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "manifest output path")
	cmd.Flags().StringVar(&opts.vendorDir, "vendor-dir", opts.vendorDir, "vendor directory the source replacement points at")
	cmd.Flags().StringVar(&opts.configOut, "config-out", "", "also write the vendor config to this path")
	cmd.Flags().IntVar(&opts.jobs, "jobs", opts.jobs, "maximum concurrent metadata lookups")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cache")
	cmd.Flags().BoolVar(&opts.verify, "verify-checksums", false, "cross-check crates.io checksums against the registry")
	cmd.Flags().StringVar(&opts.token, "token", "", "API token for metadata lookups (overrides GITHUB_TOKEN/GITLAB_TOKEN)")

	return cmd
}

// generate runs the full pipeline: parse, classify, group, resolve, write.
// Any error aborts before the manifest file is touched.
func generate(ctx context.Context, opts *generateOpts, lockPath string) error {
	logger := loggerFromContext(ctx)

	logger.Infof("Parsing %s", lockPath)
	pkgs, err := lockfile.Load(lockPath)
	if err != nil {
		return err
	}

	var (
		sources []source.Source
		local   int
	)
	for _, pkg := range pkgs {
		s, err := source.Classify(pkg, source.Options{VendorDir: opts.vendorDir})
		if err != nil {
			return err
		}
		if s.Kind == source.KindLocal {
			local++
		}
		sources = append(sources, s)
	}

	groups, err := source.Group(sources)
	if err != nil {
		return err
	}
	printInfo("Classified %d packages", len(pkgs))
	printStats(len(groups.Registry), len(groups.Git), local)

	if len(groups.Git) > 0 || opts.verify {
		if err := resolveGroups(ctx, opts, groups); err != nil {
			return err
		}
	}

	m, err := manifest.Build(groups, opts.vendorDir)
	if err != nil {
		return err
	}

	if opts.configOut != "" {
		if err := manifest.WriteFileAtomic(opts.configOut, []byte(m.VendorConfig)); err != nil {
			return err
		}
	}
	if err := m.WriteFile(opts.output); err != nil {
		return err
	}

	printSuccess("Wrote manifest with %d sources", len(m.Sources))
	printFile(opts.output)
	if opts.configOut != "" {
		printFile(opts.configOut)
	}
	return nil
}

// resolveGroups runs the metadata resolver over the grouped sources.
func resolveGroups(ctx context.Context, opts *generateOpts, groups *source.Groups) error {
	logger := loggerFromContext(ctx)
	backend := newCacheBackend()
	defer backend.Close()

	githubToken := opts.token
	if githubToken == "" {
		githubToken = os.Getenv("GITHUB_TOKEN")
	}
	gitlabToken := opts.token
	if gitlabToken == "" {
		gitlabToken = os.Getenv("GITLAB_TOKEN")
	}
	if githubToken == "" && hasGitHubSource(groups) {
		printWarning("GITHUB_TOKEN not set; unauthenticated GitHub requests are heavily rate-limited")
	}

	resolver := resolve.New(func(host string) resolve.RepoHost {
		switch {
		case host == "github.com":
			return github.NewClient(backend, githubToken, defaultCacheTTL)
		case host == "gitlab.com" || strings.HasPrefix(host, "gitlab."):
			return gitlab.NewClient(backend, host, gitlabToken, defaultCacheTTL)
		default:
			return nil
		}
	}, crates.NewClient(backend, defaultCacheTTL))

	prog := newProgress(logger)
	spin := newSpinnerWithContext(ctx, "Resolving source metadata")
	spin.Start()
	err := resolver.Resolve(ctx, groups, resolve.Options{
		Jobs:            opts.jobs,
		Refresh:         opts.refresh,
		VerifyChecksums: opts.verify,
		Logger:          func(msg string, args ...any) { logger.Debugf(msg, args...) },
	})
	spin.Stop()
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Resolved %d git sources", len(groups.Git)))
	return nil
}

// hasGitHubSource reports whether any git group points at github.com.
func hasGitHubSource(groups *source.Groups) bool {
	for _, g := range groups.Git {
		if strings.Contains(g.RepoURL, "://github.com/") {
			return true
		}
	}
	return false
}
