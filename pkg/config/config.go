package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
)

// Load reads and parses the manifest at path. A bare filename (no directory
// separator) that doesn't exist relative to the current directory is
// retried under the XDG config home, the way pi/pkg/config.Init resolves
// its own base directories — this is additive convenience on top of
// spec.md §6, which otherwise treats the positional argument as a literal
// path.
func Load(path string) (*File, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, common.Tag(common.ErrConfig, "%v", err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, common.Tag(common.ErrConfig, "reading %s: %v", resolved, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, common.Tag(common.ErrConfig, "parsing %s: %v", resolved, err)
	}
	f.Defaults()

	if len(f.Pkgbuilds) == 0 {
		slog.Warn("manifest declares zero recipes", "path", resolved)
	}

	if _, err := ParseDephashStrategy(f.DephashStrategyRaw); err != nil {
		return nil, common.Tag(common.ErrConfig, "%v", err)
	}

	return &f, nil
}

func resolvePath(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if strings.ContainsRune(path, filepath.Separator) {
		return path, nil
	}
	xdgPath := filepath.Join(xdg.ConfigHome, "arch-repo-builder", path)
	if _, err := os.Stat(xdgPath); err == nil {
		return xdgPath, nil
	}
	return "", fmt.Errorf("config %q not found (also tried %s)", path, xdgPath)
}

// Layout resolves the fixed on-disk directory names spec.md §6 requires,
// all relative to Root (the run root, ordinarily the working directory).
type Layout struct {
	Root string
}

func NewLayout(root string) Layout {
	if root == "" {
		root = "."
	}
	return Layout{Root: root}
}

func (l Layout) RecipeCacheRoot() string        { return filepath.Join(l.Root, "sources", "PKGBUILD") }
func (l Layout) RecipeCacheDir(name string) string {
	return filepath.Join(l.RecipeCacheRoot(), name)
}
func (l Layout) SourceCacheRoot(kind string) string {
	return filepath.Join(l.Root, "sources", kind)
}
func (l Layout) ScratchRoot() string { return filepath.Join(l.Root, "build") }
func (l Layout) ScratchDir(name string) string {
	return filepath.Join(l.ScratchRoot(), name)
}
func (l Layout) PkgsRoot() string    { return filepath.Join(l.Root, "pkgs") }
func (l Layout) UpdatedDir() string  { return filepath.Join(l.PkgsRoot(), "updated") }
func (l Layout) LatestDir() string   { return filepath.Join(l.PkgsRoot(), "latest") }

// Options is the fully merged runtime configuration: manifest booleans
// OR-combined with CLI flags (spec.md §6: "each mirrors a config boolean and
// OR-combines with it"), plus the resolved valued overrides and the
// optional recipe-name filter list.
type Options struct {
	Holdpkg bool
	Holdgit bool
	Skipint bool
	Nobuild bool
	Noclean bool
	Nonet   bool

	Proxy string
	Gmr   string
	Sign  string

	Dephash DephashStrategy

	// Only is the optional recipe-name restriction list; empty means all.
	Only []string

	Layout Layout
}

// Merge builds the run Options from a decoded manifest and parsed CLI
// flags.
func Merge(f *File, cli CLI, root string) (Options, error) {
	dephash, err := ParseDephashStrategy(f.DephashStrategyRaw)
	if err != nil {
		return Options{}, common.Tag(common.ErrConfig, "%v", err)
	}

	opts := Options{
		Holdpkg: f.Holdpkg || cli.Holdpkg,
		Holdgit: f.Holdgit || cli.Holdgit,
		Skipint: f.Skipint || cli.Skipint,
		Nobuild: f.Nobuild || cli.Nobuild,
		Noclean: f.Noclean || cli.Noclean,
		Nonet:   f.Nonet || cli.Nonet,

		Proxy: firstNonEmpty(cli.Proxy, f.Proxy),
		Gmr:   firstNonEmpty(cli.Gmr, f.Gmr),
		Sign:  firstNonEmpty(cli.Sign, f.Sign),

		Dephash: dephash,
		Only:    cli.Pkgs,
		Layout:  NewLayout(root),
	}

	slog.Info("dephash_strategy", "value", opts.Dephash)
	return opts, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Wanted reports whether name passes the --pkgs restriction (spec.md §8,
// scenario 6): an empty filter list means every recipe is wanted.
func (o Options) Wanted(name string) bool {
	if len(o.Only) == 0 {
		return true
	}
	for _, n := range o.Only {
		if n == name {
			return true
		}
	}
	return false
}
