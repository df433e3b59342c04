// Package builder implements Builder (spec.md §4.7): for every recipe
// whose output directory isn't already populated, runs the build tool
// under the fan-out scheduler, retrying up to 3 times with a source
// re-extraction between failures, and publishes successful outputs via the
// temp-dir + rename protocol. Grounded on
// original_source/src/build/mod.rs::build_any_needed and
// pi/pkg/installer/stages.go's temp-dir-then-rename atomic-publish pattern.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
	"github.com/SputnikRocket/arch-repo-builder/pkg/config"
	"github.com/SputnikRocket/arch-repo-builder/pkg/display"
	"github.com/SputnikRocket/arch-repo-builder/pkg/identity"
	"github.com/SputnikRocket/arch-repo-builder/pkg/sandbox"
	"github.com/SputnikRocket/arch-repo-builder/pkg/scheduler"
	"github.com/SputnikRocket/arch-repo-builder/pkg/signer"
	"github.com/SputnikRocket/arch-repo-builder/pkg/sourcetree"
)

// Cap is the reference concurrency cap spec.md §4.7 gives for builds.
const Cap = 5

// MaxAttempts is the fixed retry budget spec.md §4.7 mandates.
const MaxAttempts = 3

// Tool is the build front-end Builder invokes; the spec treats it as an
// opaque child-process contract (§6), and this is the tool a PKGBUILD
// recipe is natively written for.
const Tool = "makepkg"

// buildArgs is the makepkg flag set: --noextract (don't extract again),
// --nodeps (don't resolve deps), --ignorearch (don't check architecture),
// --holdver (don't update VCS sources), plus --skipinteg (skip integrity
// checks) and --noconfirm (no interactive prompts).
var buildArgs = []string{"--noextract", "--nodeps", "--ignorearch", "--skipinteg", "--noconfirm", "--holdver"}

// Builder runs Builder over a recipe set.
type Builder struct {
	layout  config.Layout
	ident   identity.Identity
	signer  signer.Signer
	disp    display.Display
	selfExe string
	nonet   bool
}

// New returns a Builder bound to the run's layout, caller identity, signer
// (nil if unconfigured), and nonet isolation setting.
func New(opts config.Options, ident identity.Identity, sign signer.Signer, disp display.Display, selfExe string) *Builder {
	if disp == nil {
		disp = display.NewConsole()
	}
	return &Builder{
		layout:  opts.Layout,
		ident:   ident,
		signer:  sign,
		disp:    disp,
		selfExe: selfExe,
		nonet:   opts.Nonet,
	}
}

// Published describes one recipe this run successfully built and
// published, for Publisher's updated/ view and the run summary.
type Published struct {
	Recipe *common.Recipe
	Files  []string
}

// BuildAll decides, for each recipe, whether a build is necessary, runs
// necessary builds under a Cap-wide scheduler.Pool, and returns the set
// that published successfully this run. A recipe failing all attempts is
// logged and skipped (spec.md §7, BuildError: non-fatal); BuildAll itself
// only returns an error for failures outside any single recipe's build
// (e.g. scheduler join failure).
func (b *Builder) BuildAll(ctx context.Context, recipes []*common.Recipe) ([]Published, error) {
	pool := scheduler.New(Cap, "build")
	results := make(chan Published, len(recipes))

	for _, rec := range recipes {
		rec := rec
		if !b.needsBuild(rec) {
			continue
		}
		if err := pool.Go(func() error {
			pub, err := b.buildOne(ctx, rec)
			if err != nil {
				slog.Warn("build skipped after exhausting attempts", "name", rec.Name, "error", err)
				return nil
			}
			if pub != nil {
				results <- *pub
			}
			return nil
		}); err != nil {
			close(results)
			return nil, err
		}
	}
	if err := pool.Wait(); err != nil {
		close(results)
		return nil, err
	}
	close(results)

	var published []Published
	for p := range results {
		published = append(published, p)
	}
	return published, nil
}

// needsBuild applies the cache-hit short-circuit (spec.md §8, property 3):
// a non-empty output_dir means the recipe is already built. In that case,
// if VersionResolver had extracted it, the scratch dir is cleaned up
// asynchronously and NeedsExtract clears.
func (b *Builder) needsBuild(rec *common.Recipe) bool {
	entries, err := os.ReadDir(rec.OutputDir)
	if err == nil && len(entries) > 0 {
		if rec.NeedsExtract {
			go func(dir string) {
				if err := os.RemoveAll(dir); err != nil {
					slog.Warn("removing scratch dir for already-built recipe failed", "dir", dir, "error", err)
				}
			}(rec.ScratchDir)
			rec.NeedsExtract = false
		}
		slog.Debug("already built, skipping", "name", rec.Name, "output", rec.OutputDir)
		return false
	}
	return true
}

// buildOne runs up to MaxAttempts build attempts for rec, publishing and
// returning on the first success. If every attempt fails, it returns a
// BuildError so the caller logs the skip and continues (spec.md §7,
// "non-fatal: logged; recipe is skipped; other recipes continue").
func (b *Builder) buildOne(ctx context.Context, rec *common.Recipe) (*Published, error) {
	if !rec.NeedsExtract {
		if err := sourcetree.Extract(b.layout, rec); err != nil {
			return nil, err
		}
		rec.NeedsExtract = true
	}

	tempDir := rec.OutputDir + ".temp"

	task := b.disp.StartTask(rec.Name)
	defer task.Done()

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		task.SetStage("Build", fmt.Sprintf("attempt %d/%d", attempt, MaxAttempts))

		if err := os.RemoveAll(tempDir); err != nil {
			return nil, common.Tag(common.ErrBuild, "clearing %s: %v", tempDir, err)
		}
		if err := os.MkdirAll(tempDir, 0755); err != nil {
			return nil, common.Tag(common.ErrBuild, "creating %s: %v", tempDir, err)
		}

		start := time.Now()
		err := b.runAttempt(ctx, rec, tempDir)
		elapsed := time.Since(start)

		if err == nil {
			task.Progress(100, fmt.Sprintf("built in %s", elapsed.Round(time.Second)))
			return b.publish(rec, tempDir)
		}

		lastErr = err
		slog.Warn("build attempt failed", "name", rec.Name, "attempt", attempt, "error", err)

		os.RemoveAll(rec.OutputDir)
		os.RemoveAll(tempDir)

		if attempt < MaxAttempts {
			if err := sourcetree.Discard(rec); err != nil {
				slog.Warn("discarding scratch dir before retry failed", "name", rec.Name, "error", err)
			}
			if err := sourcetree.Extract(b.layout, rec); err != nil {
				return nil, common.Tag(common.ErrBuild, "re-extracting %s before retry: %v", rec.Name, err)
			}
		}
	}

	return nil, common.Tag(common.ErrBuild, "recipe %s failed after %d attempts: %v", rec.Name, MaxAttempts, lastErr)
}

// runAttempt invokes the build tool once, in (optionally) an isolated
// network namespace, with PKGDEST set to tempDir.
func (b *Builder) runAttempt(ctx context.Context, rec *common.Recipe, tempDir string) error {
	absTemp, err := filepath.Abs(tempDir)
	if err != nil {
		return err
	}
	env := append(b.ident.Env(os.Getenv("PATH")), "PKGDEST="+absTemp)

	var cmd *exec.Cmd
	if b.nonet {
		cmd = sandbox.NoNetCommand(ctx, b.selfExe, Tool, buildArgs, rec.ScratchDir, env, rec.PkgID, b.ident.UID, b.ident.GID)
	} else {
		cmd = sandbox.Command(ctx, Tool, buildArgs, rec.ScratchDir, env, rec.PkgID)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		slog.Debug("build log", "name", rec.Name, "size", humanize.Bytes(uint64(len(out))))
		return fmt.Errorf("%s %v: %w", Tool, buildArgs, err)
	}
	return nil
}

// publish performs the atomic rename (spec.md §8 property 1), links
// artifacts into updated/, signs them, and returns the Published record.
// publish is only ever called after runAttempt has returned nil for the
// current attempt, with tempDir freshly populated.
func (b *Builder) publish(rec *common.Recipe, tempDir string) (*Published, error) {
	if err := os.RemoveAll(rec.OutputDir); err != nil {
		return nil, common.Tag(common.ErrPublish, "clearing stale output %s: %v", rec.OutputDir, err)
	}
	if err := os.Rename(tempDir, rec.OutputDir); err != nil {
		return nil, common.Tag(common.ErrPublish, "publishing %s: %v", rec.PkgID, err)
	}

	entries, err := os.ReadDir(rec.OutputDir)
	if err != nil {
		return nil, common.Tag(common.ErrPublish, "reading published output %s: %v", rec.OutputDir, err)
	}

	updatedDir := b.layout.UpdatedDir()
	var files []string
	var artifactPaths []string
	for _, e := range entries {
		files = append(files, e.Name())
		artifactPaths = append(artifactPaths, filepath.Join(rec.OutputDir, e.Name()))
		if err := linkUpdated(updatedDir, rec.PkgID, e.Name()); err != nil {
			slog.Warn("linking updated/ entry failed", "name", rec.Name, "file", e.Name(), "error", err)
		}
	}

	signer.SignAll(context.Background(), b.signer, artifactPaths)

	go func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("removing scratch dir after publish failed", "dir", dir, "error", err)
		}
	}(rec.ScratchDir)
	rec.NeedsExtract = false

	return &Published{Recipe: rec, Files: files}, nil
}

// linkUpdated creates updatedDir/<file> -> ../<pkg_id>/<file>, tolerating a
// pre-existing entry silently (spec.md §4.7: "symlink creation collisions
// are tolerated silently").
func linkUpdated(updatedDir, pkgID, file string) error {
	if err := os.MkdirAll(updatedDir, 0755); err != nil {
		return err
	}
	target := filepath.Join("..", pkgID, file)
	link := filepath.Join(updatedDir, file)
	if err := os.Symlink(target, link); err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return nil
}
