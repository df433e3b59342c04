// Package pkgid implements PkgIdAssigner (spec.md §4.6): a pure, side-effect
// free function from (name, commit, version_mode) to a content-addressed
// package id and its output directory. Grounded on
// original_source/src/pkgbuild.rs::fill_all_pkgdirs, which constructs the
// same string and logs it as "PKGDIR: '<name>' -> '<path>'".
package pkgid

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
)

// Assign computes pkg_id and output_dir for one recipe. It performs no I/O;
// callers decide when to log or persist the result.
func Assign(outputRoot string, name, commit string, mode common.VersionMode) (pkgID string, outputDir string) {
	if mode.IsDynamic() {
		pkgID = fmt.Sprintf("%s-%s-%s", name, commit, mode.Value)
	} else {
		pkgID = fmt.Sprintf("%s-%s", name, commit)
	}
	outputDir = filepath.Join(outputRoot, pkgID)
	return pkgID, outputDir
}

// AssignRecipe mutates r.PkgID and r.OutputDir in place and logs the
// provenance line the original prints for every recipe.
func AssignRecipe(r *common.Recipe, outputRoot string) {
	pkgID, outputDir := Assign(outputRoot, r.Name, r.Commit, r.VersionMode)
	r.PkgID = pkgID
	r.OutputDir = outputDir
	slog.Info("PKGDIR", "name", r.Name, "path", outputDir)
}
