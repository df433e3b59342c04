// Package publish implements Publisher (spec.md §4.8): after all builds
// complete, rebuilds the latest/ symlink view over every known-good
// pkg_id, and (earlier, before any build starts) wipes and recreates both
// updated/ and latest/ so stale views never persist across runs. Grounded
// on pi/pkg/pkgs/symlinks.go's DiscoverSymlinks/CreateSymlinks pattern,
// adapted from "symlink a package's bin/ entries into ~/.local/bin" to
// "symlink every artifact in an output dir into a flat view directory".
package publish

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
	"github.com/SputnikRocket/arch-repo-builder/pkg/config"
)

// ResetViews deletes and recreates updated/ and latest/ (spec.md §4.8:
// "deleted and recreated at the start of Publisher so stale views do not
// persist"). Builder then populates updated/ incrementally as each recipe
// succeeds; RebuildLatest populates latest/ once, at the end of the run.
func ResetViews(layout config.Layout) error {
	for _, dir := range []string{layout.UpdatedDir(), layout.LatestDir()} {
		if err := os.RemoveAll(dir); err != nil {
			return common.Tag(common.ErrPublish, "clearing %s: %v", dir, err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return common.Tag(common.ErrPublish, "creating %s: %v", dir, err)
		}
	}
	return nil
}

// RebuildLatest regenerates latest/ from scratch over every recipe that
// currently has a populated output_dir — whether built this run or
// already present from a previous one (spec.md §4.8: "for every recipe
// (whether built this run or already present)").
func RebuildLatest(layout config.Layout, recipes []*common.Recipe) error {
	latestDir := layout.LatestDir()
	for _, rec := range recipes {
		entries, err := os.ReadDir(rec.OutputDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return common.Tag(common.ErrPublish, "reading %s: %v", rec.OutputDir, err)
		}
		for _, e := range entries {
			if err := link(latestDir, rec.PkgID, e.Name()); err != nil {
				slog.Warn("linking latest/ entry failed", "name", rec.Name, "file", e.Name(), "error", err)
			}
		}
	}
	return nil
}

// link creates viewDir/<file> -> ../<pkg_id>/<file>, tolerating a
// pre-existing entry silently.
func link(viewDir, pkgID, file string) error {
	target := filepath.Join("..", pkgID, file)
	linkPath := filepath.Join(viewDir, file)
	if err := os.Symlink(target, linkPath); err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return nil
}
