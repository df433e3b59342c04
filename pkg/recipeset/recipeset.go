// Package recipeset implements RecipeSet (spec.md §4.2): loads the
// name→url manifest into Recipe values, drives RepoCache to sync them,
// validates health before and after sync, and dumps each tip's PKGBUILD
// blob to a scratch directory. Grounded on
// original_source/src/pkgbuild.rs's healthy_pkgbuild/healthy_pkgbuilds,
// dump_pkgbuilds, and get_pkgbuilds (holdpkg skip-or-force logic).
package recipeset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
	"github.com/SputnikRocket/arch-repo-builder/pkg/config"
	"github.com/SputnikRocket/arch-repo-builder/pkg/gitcache"
)

// Set owns every Recipe for the run.
type Set struct {
	Recipes []*common.Recipe
	layout  config.Layout
	cache   *gitcache.Cache
}

// Load builds one Recipe per manifest entry that passes the --pkgs
// restriction (spec.md §8, scenario 6), in manifest order is not
// guaranteed since map iteration order is not stable — within-stage
// ordering is unspecified per spec.md §5.
func Load(f *config.File, opts config.Options, cache *gitcache.Cache) *Set {
	s := &Set{layout: opts.Layout, cache: cache}
	for name, entry := range f.Pkgbuilds {
		if !opts.Wanted(name) {
			continue
		}
		s.Recipes = append(s.Recipes, &common.Recipe{
			Name:       name,
			URL:        entry.URL,
			RepoPath:   opts.Layout.RecipeCacheDir(name),
			ScratchDir: opts.Layout.ScratchDir(name),
		})
	}
	return s
}

// AllHealthy reports whether every recipe currently satisfies spec.md §3's
// "healthy bare repository" invariant, used for the holdpkg skip-or-force
// decision (spec.md §4.2).
func (s *Set) AllHealthy() bool {
	for _, r := range s.Recipes {
		if _, err := gitcache.Healthy(r.RepoPath); err != nil {
			return false
		}
	}
	return true
}

// Sync drives RepoCache to sync every recipe unless holdpkg is set and the
// cache is already healthy — and forces a sync regardless of holdpkg if any
// recipe is unhealthy (spec.md §4.2).
func (s *Set) Sync(ctx context.Context, opts config.Options) error {
	if opts.Holdpkg && s.AllHealthy() {
		slog.Info("holdpkg set and cache healthy, skipping recipe sync")
		return nil
	}
	if opts.Holdpkg {
		slog.Info("holdpkg set but cache unhealthy, forcing recipe sync")
	}
	return s.cache.SyncRecipes(ctx, s.Recipes, opts.Layout.RecipeCacheDir)
}

// CheckHealth validates every recipe's bare repo and assigns Commit from
// the tip. The first unhealthy recipe ends the check with an ErrHealth
// error (pre-sync callers don't call this at all — only
// post-sync does, per spec.md §4.2: "a second health check is performed;
// failure is fatal").
func (s *Set) CheckHealth() error {
	for _, r := range s.Recipes {
		commit, err := gitcache.Healthy(r.RepoPath)
		if err != nil {
			return common.Tag(common.ErrHealth, "recipe %s: %v (updating broke recipes)", r.Name, err)
		}
		r.Commit = commit
		slog.Info("PKGBUILD", "name", r.Name, "commit", r.Commit)
	}
	return nil
}

// Dump writes every recipe's PKGBUILD blob verbatim into dir/<name>,
// creating dir (a fresh per-run scratch directory) if needed.
func (s *Set) Dump(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating dump dir %s: %w", dir, err)
	}
	for _, r := range s.Recipes {
		repo, err := git.PlainOpen(r.RepoPath)
		if err != nil {
			return common.Tag(common.ErrHealth, "opening %s: %v", r.RepoPath, err)
		}
		hash := plumbing.NewHash(r.Commit)
		blob, err := gitcache.PKGBUILDBlob(repo, hash)
		if err != nil {
			return common.Tag(common.ErrHealth, "reading PKGBUILD for %s: %v", r.Name, err)
		}
		path := filepath.Join(dir, r.Name)
		if err := os.WriteFile(path, []byte(blob), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}
