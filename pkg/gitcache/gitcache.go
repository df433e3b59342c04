// Package gitcache implements RepoCache (spec.md §4.1): a bare-repository
// store keyed by recipe name, with domain-bucketed parallel sync, a one-shot
// proxy retry, symbolic-HEAD propagation, and GMR mirror-first support
// (SPEC_FULL.md §4.1). Grounded on original_source/src/git.rs
// (open_or_init_bare_repo, sync_repo, fetch_opts_init) and the
// domain-hash bucketing in original_source/src/pkgbuild.rs::sync_pkgbuilds,
// reimplemented against github.com/go-git/go-git/v5 instead of git2/libgit2
// — the closest in-pack analog for a Go PKGBUILD-style builder
// (_examples/other_examples/manifests/M0Rf30-yap) uses the same library for
// the same purpose.
package gitcache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-git/go-git/v5"
	gogitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"golang.org/x/sync/errgroup"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
)

// RecipeRefSpecs is the conservative, master-only refspec spec.md §4.1
// mandates for recipe repos (resolving the "two parallel recipe modules"
// open question in favor of the narrower policy — SPEC_FULL.md §5).
var RecipeRefSpecs = []gogitconfig.RefSpec{"+refs/heads/master:refs/heads/master"}

// MirrorRefSpecs is the full-fetch policy used for auxiliary git Sources
// (SourceCache), where the whole tree (not just master) may be referenced.
var MirrorRefSpecs = []gogitconfig.RefSpec{"+refs/*:refs/*"}

// Cache is a RepoCache instance bound to one run's proxy/gmr configuration.
type Cache struct {
	Proxy string
	Gmr   string
}

// New returns a Cache configured with the run's proxy and gmr settings.
func New(proxy, gmr string) *Cache {
	return &Cache{Proxy: proxy, Gmr: gmr}
}

// domain extracts the host component of a URL for bucket hashing.
func domain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return rawURL, nil
	}
	return u.Host, nil
}

// bucketHash is the stable 64-bit domain hash spec.md §4.1 bucket recipes by.
func bucketHash(domainStr string) uint64 {
	return xxhash.Sum64String(domainStr)
}

// SyncRecipes syncs every recipe's bare repo, bucketed by URL domain so that
// fetches against the same host never overlap in time (spec.md §8, property
// 4) while distinct hosts proceed in parallel.
func (c *Cache) SyncRecipes(ctx context.Context, recipes []*common.Recipe, recipeDir func(name string) string) error {
	buckets := make(map[uint64][]*common.Recipe)
	for _, r := range recipes {
		d, err := domain(r.URL)
		if err != nil {
			return common.Tag(common.ErrFetch, "%v", err)
		}
		h := bucketHash(d)
		buckets[h] = append(buckets[h], r)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, bucket := range buckets {
		bucket := bucket
		g.Go(func() error {
			for _, r := range bucket {
				r.RepoPath = recipeDir(r.Name)
				if err := c.syncOne(ctx, r.RepoPath, r.URL, RecipeRefSpecs); err != nil {
					return common.Tag(common.ErrFetch, "syncing %s: %v", r.Name, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// SyncOne opens-or-inits and fetches a single bare repo at path, trying the
// gmr mirror first (if configured) before the real URL, with silent
// fallback on mirror failure (SPEC_FULL.md §4.1). Exported for SourceCache's
// auxiliary git sources, which use MirrorRefSpecs instead of
// RecipeRefSpecs.
func (c *Cache) SyncOne(ctx context.Context, path, rawURL string, refspecs []gogitconfig.RefSpec) error {
	return c.syncOne(ctx, path, rawURL, refspecs)
}

func (c *Cache) syncOne(ctx context.Context, path, rawURL string, refspecs []gogitconfig.RefSpec) error {
	remoteURL := rawURL
	if c.Gmr != "" {
		mirrorURL := mirrorURLFor(c.Gmr, rawURL)
		if err := c.openAndFetch(ctx, path, mirrorURL, refspecs); err == nil {
			return nil
		}
		slog.Debug("gmr mirror failed, falling back to upstream", "url", rawURL, "mirror", mirrorURL)
	}
	return c.openAndFetch(ctx, path, remoteURL, refspecs)
}

func mirrorURLFor(gmr, rawURL string) string {
	trimmed := rawURL
	if idx := strings.Index(trimmed, "://"); idx >= 0 {
		trimmed = trimmed[idx+3:]
	}
	return strings.TrimSuffix(gmr, "/") + "/" + trimmed
}

func (c *Cache) openAndFetch(ctx context.Context, path, remoteURL string, refspecs []gogitconfig.RefSpec) error {
	repo, err := OpenOrInit(path, remoteURL)
	if err != nil {
		return err
	}
	// An existing repo keeps the origin URL it was created with; point it at
	// remoteURL so the mirror attempt and the upstream fallback really
	// fetch from different remotes.
	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	if rc, ok := cfg.Remotes["origin"]; ok && (len(rc.URLs) != 1 || rc.URLs[0] != remoteURL) {
		rc.URLs = []string{remoteURL}
		if err := repo.SetConfig(cfg); err != nil {
			return err
		}
	}
	if err := c.fetch(ctx, repo, refspecs); err != nil {
		return err
	}
	return propagateSymbolicHead(repo)
}

// OpenOrInit opens the bare repo at path, creating it (and an "origin"
// remote pointed at url) if absent. On remote-registration failure the
// half-created directory is removed so a retry starts clean (spec.md §4.1).
func OpenOrInit(path, remoteURL string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if err != git.ErrRepositoryNotExists {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	repo, err = git.PlainInit(path, true)
	if err != nil {
		return nil, fmt.Errorf("initializing %s: %w", path, err)
	}

	_, err = repo.CreateRemote(&gogitconfig.RemoteConfig{
		Name:  "origin",
		URLs:  []string{remoteURL},
		Fetch: []gogitconfig.RefSpec{"+refs/*:refs/*"},
	})
	if err != nil {
		os.RemoveAll(path)
		return nil, fmt.Errorf("registering origin for %s: %w", path, err)
	}
	return repo, nil
}

// fetch runs the fetch, retrying once through the configured proxy on
// failure (spec.md §4.1 / §7 FetchError).
func (c *Cache) fetch(ctx context.Context, repo *git.Repository, refspecs []gogitconfig.RefSpec) error {
	opts := &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   refspecs,
		Tags:       git.AllTags,
		Prune:      true,
		Force:      true,
	}

	err := repo.FetchContext(ctx, opts)
	if err == nil || err == git.NoErrAlreadyUpToDate {
		return nil
	}
	if c.Proxy == "" {
		return err
	}

	slog.Debug("fetch failed, retrying through proxy", "error", err, "proxy", c.Proxy)
	restore := setProxyEnv(c.Proxy)
	defer restore()

	err = repo.FetchContext(ctx, opts)
	if err == nil || err == git.NoErrAlreadyUpToDate {
		return nil
	}
	return fmt.Errorf("fetch failed (direct and via proxy): %w", err)
}

func setProxyEnv(proxy string) (restore func()) {
	prevHTTPS, hadHTTPS := os.LookupEnv("HTTPS_PROXY")
	prevHTTP, hadHTTP := os.LookupEnv("HTTP_PROXY")
	os.Setenv("HTTPS_PROXY", proxy)
	os.Setenv("HTTP_PROXY", proxy)
	return func() {
		if hadHTTPS {
			os.Setenv("HTTPS_PROXY", prevHTTPS)
		} else {
			os.Unsetenv("HTTPS_PROXY")
		}
		if hadHTTP {
			os.Setenv("HTTP_PROXY", prevHTTP)
		} else {
			os.Unsetenv("HTTP_PROXY")
		}
	}
}

// propagateSymbolicHead reads the remote's symbolic HEAD (advertised via
// the symref capability during the fetch negotiation) and points the local
// bare repo's HEAD at the same target (spec.md §4.1, last sentence).
func propagateSymbolicHead(repo *git.Repository) error {
	remote, err := repo.Remote("origin")
	if err != nil {
		return fmt.Errorf("resolving origin: %w", err)
	}
	refs, err := remote.List(&git.ListOptions{})
	if err != nil {
		return fmt.Errorf("listing remote refs: %w", err)
	}
	for _, ref := range refs {
		if ref.Name() == plumbing.HEAD && ref.Type() == plumbing.SymbolicReference {
			return repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, ref.Target()))
		}
	}
	// No symref capability advertised; default to master, the only ref
	// recipe repos are required to carry (spec.md §3).
	return repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("master")))
}

// Healthy checks the invariant spec.md §3 defines for a bare repository:
// it must own refs/heads/master and expose a PKGBUILD blob at that tip.
// Returns the tip commit hash on success.
func Healthy(path string) (commit string, err error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", common.Tag(common.ErrHealth, "opening %s: %v", path, err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("master"), true)
	if err != nil {
		return "", common.Tag(common.ErrHealth, "resolving master in %s: %v", path, err)
	}
	if _, err := PKGBUILDBlob(repo, ref.Hash()); err != nil {
		return "", common.Tag(common.ErrHealth, "reading PKGBUILD in %s: %v", path, err)
	}
	return ref.Hash().String(), nil
}

// PKGBUILDBlob returns the verbatim content of the PKGBUILD file at commit.
func PKGBUILDBlob(repo *git.Repository, hash plumbing.Hash) (string, error) {
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return "", err
	}
	tree, err := commit.Tree()
	if err != nil {
		return "", err
	}
	file, err := tree.File("PKGBUILD")
	if err != nil {
		return "", err
	}
	return file.Contents()
}
