// Package sourcecache implements SourceCache (spec.md §4.4): collects every
// Source declared across all recipes, deduplicates by (kind, identity,
// integrity), and caches each bucket in parallel — honoring holdgit,
// skipint, and proxy configuration. Grounded on
// original_source/src/pkgbuild.rs::get_all_sources and pi/pkg/pkgs/manager.go's
// errgroup.WithContext fan-out pattern.
package sourcecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
	"github.com/SputnikRocket/arch-repo-builder/pkg/config"
	"github.com/SputnikRocket/arch-repo-builder/pkg/display"
	"github.com/SputnikRocket/arch-repo-builder/pkg/downloader"
	"github.com/SputnikRocket/arch-repo-builder/pkg/gitcache"
)

// Cache caches netfile and auxiliary-git sources under the run's layout.
type Cache struct {
	layout     config.Layout
	downloader downloader.Downloader
	git        *gitcache.Cache
	disp       display.Display
}

// New builds a Cache wired for opts' proxy/gmr configuration.
func New(opts config.Options, disp display.Display) (*Cache, error) {
	dl, err := downloader.NewDownloaderWithProxy(opts.Proxy)
	if err != nil {
		return nil, common.Tag(common.ErrSource, "%v", err)
	}
	if disp == nil {
		disp = display.NewConsole()
	}
	return &Cache{
		layout:     opts.Layout,
		downloader: dl,
		git:        gitcache.New(opts.Proxy, opts.Gmr),
		disp:       disp,
	}, nil
}

// Identity hashes a source's identity string into its cache-entry basename.
func Identity(s common.Source) string {
	h := sha256.Sum256([]byte(s.Identity))
	return hex.EncodeToString(h[:])[:16]
}

// Collect returns every distinct Source (by s.Key()) across recipes, kept in
// first-seen order.
func Collect(recipes []*common.Recipe) []common.Source {
	seen := make(map[string]struct{})
	var out []common.Source
	for _, r := range recipes {
		for _, s := range r.Sources {
			if _, ok := seen[s.Key()]; ok {
				continue
			}
			seen[s.Key()] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// UsedIdentities returns the cache-entry basenames Janitor should treat as
// "used" for a given kind, across the currently loaded recipes.
func UsedIdentities(recipes []*common.Recipe, kind common.SourceKind) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, r := range recipes {
		for _, s := range r.Sources {
			if s.Kind != kind {
				continue
			}
			id := Identity(s)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// CacheAll caches every distinct source across recipes in parallel, one
// goroutine per bucket (netfile, git; local sources require no action).
func (c *Cache) CacheAll(ctx context.Context, recipes []*common.Recipe, opts config.Options) error {
	sources := Collect(recipes)

	var netfiles, gitSources []common.Source
	for _, s := range sources {
		switch s.Kind {
		case common.SourceNetfile:
			netfiles = append(netfiles, s)
		case common.SourceGit:
			gitSources = append(gitSources, s)
		case common.SourceLocal:
			slog.Debug("local source requires no caching", "identity", s.Identity)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.cacheNetfiles(ctx, netfiles, opts.Skipint) })
	g.Go(func() error { return c.cacheGitSources(ctx, gitSources, opts.Holdgit) })
	return g.Wait()
}

func (c *Cache) cacheNetfiles(ctx context.Context, sources []common.Source, skipint bool) error {
	root := c.layout.SourceCacheRoot("netfile")
	for _, s := range sources {
		s := s
		target := filepath.Join(root, Identity(s))
		err := ensureCached(target, func() error {
			return c.downloadNetfile(ctx, s, target)
		})
		if err != nil {
			return common.Tag(common.ErrSource, "caching netfile %s: %v", s.Identity, err)
		}
		if !skipint && s.Integrity != "" {
			if err := verifyIntegrity(target, s.Integrity); err != nil {
				os.Remove(target)
				return common.Tag(common.ErrSource, "integrity check failed for %s: %v", s.Identity, err)
			}
		}
	}
	return nil
}

func (c *Cache) downloadNetfile(ctx context.Context, s common.Source, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	tmp := target + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	task := c.disp.StartTask(s.Identity)
	defer task.Done()

	err = c.downloader.Download(ctx, s.Identity, f, task)
	closeErr := f.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}
	return os.Rename(tmp, target)
}

func verifyIntegrity(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("checksum mismatch: want %s got %s", want, got)
	}
	return nil
}

func (c *Cache) cacheGitSources(ctx context.Context, sources []common.Source, holdgit bool) error {
	root := c.layout.SourceCacheRoot("git")
	for _, s := range sources {
		path := filepath.Join(root, Identity(s))
		if holdgit {
			if _, err := os.Stat(path); err == nil {
				slog.Debug("holdgit set, skipping already-present git source", "identity", s.Identity)
				continue
			}
		}
		if err := c.git.SyncOne(ctx, path, s.Identity, gitcache.MirrorRefSpecs); err != nil {
			return common.Tag(common.ErrSource, "caching git source %s: %v", s.Identity, err)
		}
	}
	return nil
}
