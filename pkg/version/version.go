// Package version implements VersionResolver (spec.md §4.5): a type-probe
// child process determines whether a recipe has a dynamic pkgver function;
// dynamic recipes have their sources extracted into scratch_dir/src/ and a
// second child runs pkgver there. Grounded on
// original_source/src/pkgbuild.rs::fill_all_pkgvers (type probe via
// `type -t pkgver`, extraction, pkgver run) using pkg/scheduler for the
// ≈20-wide concurrency cap §4.5 references.
package version

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
	"github.com/SputnikRocket/arch-repo-builder/pkg/config"
	"github.com/SputnikRocket/arch-repo-builder/pkg/scheduler"
	"github.com/SputnikRocket/arch-repo-builder/pkg/sourcetree"
)

// Cap is the reference concurrency cap spec.md §4.5 gives for resolvers.
const Cap = 20

// probeScript sources the recipe file ($1) and prints the shell type of the
// symbol pkgver, exactly matching spec.md §6's Version-type-probe contract.
const probeScript = `source "$1"; type -t pkgver 2>/dev/null; true`

// pkgverScript sources the recipe ($1) from within the extracted tree and
// runs pkgver, capturing its trimmed stdout as the version (spec.md §6,
// "Version runner").
const pkgverScript = `source "$1"; pkgver`

// Resolver resolves version_mode for a set of recipes.
type Resolver struct {
	layout config.Layout
}

// New returns a Resolver bound to the run's directory layout.
func New(layout config.Layout) *Resolver {
	return &Resolver{layout: layout}
}

// ResolveAll probes and, where needed, resolves every recipe's version
// under a scheduler.Pool capped at Cap concurrent workers.
func (r *Resolver) ResolveAll(ctx context.Context, recipes []*common.Recipe, dumpDir string) error {
	pool := scheduler.New(Cap, "version-resolve")
	for _, rec := range recipes {
		rec := rec
		if err := pool.Go(func() error {
			return r.resolveOne(ctx, rec, dumpDir)
		}); err != nil {
			return err
		}
	}
	return pool.Wait()
}

func (r *Resolver) resolveOne(ctx context.Context, rec *common.Recipe, dumpDir string) error {
	recipeFile := filepath.Join(dumpDir, rec.Name)

	dynamic, err := probeDynamic(ctx, recipeFile)
	if err != nil {
		return err
	}
	if !dynamic {
		rec.VersionMode = common.VersionMode{Kind: common.VersionStatic}
		return nil
	}

	if err := sourcetree.Extract(r.layout, rec); err != nil {
		return err
	}
	rec.NeedsExtract = true

	srcDir := filepath.Join(rec.ScratchDir, "src")
	ver, err := runPkgver(ctx, recipeFile, srcDir)
	if err != nil {
		return err
	}
	rec.VersionMode = common.VersionMode{Kind: common.VersionDynamic, Value: ver}
	return nil
}

// probeDynamic returns true iff the probe's stdout is exactly "function\n".
func probeDynamic(ctx context.Context, recipeFile string) (bool, error) {
	cmd := exec.CommandContext(ctx, "bash", "-c", probeScript, "Version probe", recipeFile)
	out, err := cmd.Output()
	if err != nil {
		return false, common.Tag(common.ErrSource, "probing pkgver type for %s: %v", recipeFile, err)
	}
	return string(out) == "function\n", nil
}

// runPkgver runs pkgver with cwd set to srcDir and returns its trimmed
// stdout.
func runPkgver(ctx context.Context, recipeFile, srcDir string) (string, error) {
	cmd := exec.CommandContext(ctx, "bash", "-c", pkgverScript, "Version runner", recipeFile)
	cmd.Dir = srcDir
	out, err := cmd.Output()
	if err != nil {
		return "", common.Tag(common.ErrSource, "running pkgver for %s: %v", recipeFile, err)
	}
	return strings.TrimSpace(string(out)), nil
}

