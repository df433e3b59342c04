// Package orchestrator runs the barrier-synchronized pipeline spec.md §5
// names: Sync → Health check → Dump → Deps → SourceCache → VersionResolve
// → PkgIdAssign → BuildDecide → Build → Publish → Clean. Grounded on
// original_source/src/build/mod.rs::work, the single top-level call
// sequence every other component in this module is wired from.
package orchestrator

import (
	"context"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/SputnikRocket/arch-repo-builder/pkg/builder"
	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
	"github.com/SputnikRocket/arch-repo-builder/pkg/config"
	"github.com/SputnikRocket/arch-repo-builder/pkg/depensure"
	"github.com/SputnikRocket/arch-repo-builder/pkg/display"
	"github.com/SputnikRocket/arch-repo-builder/pkg/gitcache"
	"github.com/SputnikRocket/arch-repo-builder/pkg/identity"
	"github.com/SputnikRocket/arch-repo-builder/pkg/janitor"
	"github.com/SputnikRocket/arch-repo-builder/pkg/pkgid"
	"github.com/SputnikRocket/arch-repo-builder/pkg/publish"
	"github.com/SputnikRocket/arch-repo-builder/pkg/recipeset"
	"github.com/SputnikRocket/arch-repo-builder/pkg/signer"
	"github.com/SputnikRocket/arch-repo-builder/pkg/sourcecache"
	"github.com/SputnikRocket/arch-repo-builder/pkg/version"
)

// Result summarizes one run for the CLI's final report.
type Result struct {
	RunID          string
	Total          int
	Built          []string
	AlreadyBuilt   int
	Failed         []string
	ReclaimedBytes int64
}

// Run executes the full pipeline once and returns its summary. selfExe is
// the running binary's own path, needed to re-exec into the nonet helper
// (pkg/sandbox); disp is nil-safe (defaults to a console display).
func Run(ctx context.Context, f *config.File, opts config.Options, selfExe string, disp display.Display) (Result, error) {
	runID := uuid.New().String()
	slog.Info("run starting", "run_id", runID)

	if disp == nil {
		disp = display.NewConsole()
	}

	ident, err := identity.Capture()
	if err != nil {
		return Result{}, err
	}

	gc := gitcache.New(opts.Proxy, opts.Gmr)
	set := recipeset.Load(f, opts, gc)
	res := Result{RunID: runID, Total: len(set.Recipes)}

	if len(set.Recipes) == 0 {
		slog.Warn("no recipes selected, nothing to do")
		if err := publish.ResetViews(opts.Layout); err != nil {
			return res, err
		}
		return res, nil
	}

	if err := syncWithConcurrentJanitor(ctx, set, opts); err != nil {
		return res, err
	}
	if err := set.CheckHealth(); err != nil {
		return res, err
	}

	dumpDir, err := os.MkdirTemp(opts.Layout.ScratchRoot(), "dump-")
	if err != nil {
		return res, common.Tag(common.ErrConfig, "creating dump dir: %v", err)
	}
	defer os.RemoveAll(dumpDir)

	if err := set.Dump(dumpDir); err != nil {
		return res, err
	}

	if err := ensureDeps(ctx, set, dumpDir, f.Basepkgs); err != nil {
		return res, err
	}

	if err := recipeset.PopulateSources(ctx, set, dumpDir); err != nil {
		return res, err
	}

	srcCache, err := sourcecache.New(opts, disp)
	if err != nil {
		return res, err
	}
	if err := srcCache.CacheAll(ctx, set.Recipes, opts); err != nil {
		return res, err
	}

	resolver := version.New(opts.Layout)
	if err := resolver.ResolveAll(ctx, set.Recipes, dumpDir); err != nil {
		return res, err
	}

	for _, r := range set.Recipes {
		pkgid.AssignRecipe(r, opts.Layout.PkgsRoot())
	}

	alreadyBuilt := countPrebuilt(set.Recipes)
	res.AlreadyBuilt = alreadyBuilt

	if err := publish.ResetViews(opts.Layout); err != nil {
		return res, err
	}

	if !opts.Nobuild {
		sign := signer.New(opts.Sign)
		b := builder.New(opts, ident, sign, disp, selfExe)
		published, err := b.BuildAll(ctx, set.Recipes)
		if err != nil {
			return res, err
		}
		for _, p := range published {
			res.Built = append(res.Built, p.Recipe.PkgID)
		}
	} else {
		slog.Info("nobuild set, skipping build stage")
	}

	res.Failed = failedRecipes(set.Recipes, res.Built, alreadyBuilt)

	if err := publish.RebuildLatest(opts.Layout, set.Recipes); err != nil {
		return res, err
	}

	if !opts.Noclean {
		res.ReclaimedBytes = cleanAll(opts.Layout, set.Recipes)
	}

	slog.Info("run complete", "run_id", runID, "built", len(res.Built), "already_built", res.AlreadyBuilt, "failed", len(res.Failed))
	return res, nil
}

// syncWithConcurrentJanitor runs RecipeSet.Sync while, independently,
// sweeping the recipe-repo cache of any bare repo no longer named by the
// manifest — spec.md §4.9: "recipe-cache janitor runs while sync proceeds".
func syncWithConcurrentJanitor(ctx context.Context, set *recipeset.Set, opts config.Options) error {
	done := make(chan struct{})
	if !opts.Noclean {
		go func() {
			defer close(done)
			used := janitor.UsedSet(recipeNames(set.Recipes))
			janitor.Clean(opts.Layout.RecipeCacheRoot(), used).Log()
		}()
	} else {
		close(done)
	}

	err := set.Sync(ctx, opts)
	<-done
	return err
}

// ensureDeps extracts and installs host build dependencies for every
// recipe (spec.md §4.3).
func ensureDeps(ctx context.Context, set *recipeset.Set, dumpDir string, basepkgs []string) error {
	atoms, err := depensure.ExtractAll(ctx, dumpDir, recipeNames(set.Recipes), basepkgs)
	if err != nil {
		return err
	}
	return depensure.Ensure(ctx, atoms)
}

// countPrebuilt counts recipes whose output_dir is already populated
// before Builder runs, for the run summary.
func countPrebuilt(recipes []*common.Recipe) int {
	n := 0
	for _, r := range recipes {
		entries, err := os.ReadDir(r.OutputDir)
		if err == nil && len(entries) > 0 {
			n++
		}
	}
	return n
}

// failedRecipes reports every recipe that ended the run with neither a
// pre-existing nor a freshly built output_dir.
func failedRecipes(recipes []*common.Recipe, built []string, alreadyBuilt int) []string {
	builtSet := make(map[string]struct{}, len(built))
	for _, id := range built {
		builtSet[id] = struct{}{}
	}
	var failed []string
	for _, r := range recipes {
		if _, ok := builtSet[r.PkgID]; ok {
			continue
		}
		if entries, err := os.ReadDir(r.OutputDir); err == nil && len(entries) > 0 {
			continue
		}
		failed = append(failed, r.Name)
	}
	return failed
}

// cleanAll sweeps the source caches and the output root against this
// run's used sets (spec.md §4.9), returning total bytes reclaimed.
func cleanAll(layout config.Layout, recipes []*common.Recipe) int64 {
	var reclaimed int64

	netUsed := janitor.UsedSet(sourcecache.UsedIdentities(recipes, common.SourceNetfile))
	r := janitor.Clean(layout.SourceCacheRoot("netfile"), netUsed)
	r.Log()
	reclaimed += r.Bytes

	gitUsed := janitor.UsedSet(sourcecache.UsedIdentities(recipes, common.SourceGit))
	r = janitor.Clean(layout.SourceCacheRoot("git"), gitUsed)
	r.Log()
	reclaimed += r.Bytes

	pkgIDs := make([]string, 0, len(recipes))
	for _, rec := range recipes {
		pkgIDs = append(pkgIDs, rec.PkgID)
	}
	outUsed := janitor.UsedSet(pkgIDs, "updated", "latest")
	r = janitor.Clean(layout.PkgsRoot(), outUsed)
	r.Log()
	reclaimed += r.Bytes

	return reclaimed
}

func recipeNames(recipes []*common.Recipe) []string {
	names := make([]string, len(recipes))
	for i, r := range recipes {
		names[i] = r.Name
	}
	return names
}

// HumanizeReclaimed formats the run's reclaimed-bytes total for the CLI's
// summary line, or "" if nothing was reclaimed.
func HumanizeReclaimed(r Result) string {
	if r.ReclaimedBytes == 0 {
		return ""
	}
	return humanize.Bytes(uint64(r.ReclaimedBytes))
}
