// Source declaration extraction: populates Recipe.Sources by sourcing the
// dumped recipe file and reading its source/sha256sums arrays, the same
// embedded-shell-extractor idiom depensure.Extract uses for dependency
// atoms (spec.md §3 lifecycle: "sources after recipe dump"; grounded on
// original_source/src/pkgbuild.rs::get_all_sources, whose own source-module
// parsing isn't present in the retrieval pack, so the PKGBUILD array
// convention itself — name::url, a git+ prefix marking a git source, a bare
// path marking a local one — is used directly).
package recipeset

import (
	"bufio"
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
)

// sourceScript sources the recipe file ($1) and prints one
// "<source-entry>\t<sha256sum-or-SKIP>" line per declared source.
const sourceScript = `
set -e
source "$1"
for i in "${!source[@]}"; do
	printf '%s\t%s\n' "${source[$i]}" "${sha256sums[$i]:-SKIP}"
done
`

// ExtractSources runs the embedded extractor against one dumped recipe
// file and classifies each declared entry into a netfile, git, or local
// Source (spec.md §3's Source variant).
func ExtractSources(ctx context.Context, recipeFile string) ([]common.Source, error) {
	cmd := exec.CommandContext(ctx, "bash", "-ec", sourceScript, "Source reader", recipeFile)
	out, err := cmd.Output()
	if err != nil {
		return nil, common.Tag(common.ErrSource, "extracting sources from %s: %v", recipeFile, err)
	}

	var sources []common.Source
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, sum, _ := strings.Cut(line, "\t")
		sources = append(sources, classify(entry, sum))
	}
	return sources, nil
}

// classify applies the PKGBUILD source-array convention: an optional
// "name::" rename prefix is stripped for identity purposes, a "git+"
// scheme marks a git source, any other "scheme://" marks a downloadable
// netfile, and anything else is a path already on disk.
func classify(entry, sum string) common.Source {
	if _, rest, ok := strings.Cut(entry, "::"); ok {
		entry = rest
	}

	integrity := ""
	if sum != "SKIP" && sum != "" {
		integrity = sum
	}

	switch {
	case strings.HasPrefix(entry, "git+"):
		return common.Source{Kind: common.SourceGit, Identity: strings.TrimPrefix(entry, "git+"), Integrity: integrity}
	case strings.Contains(entry, "://"):
		return common.Source{Kind: common.SourceNetfile, Identity: entry, Integrity: integrity}
	default:
		return common.Source{Kind: common.SourceLocal, Identity: entry}
	}
}

// PopulateSources runs ExtractSources for every recipe against its dumped
// file in dumpDir and assigns the result to Recipe.Sources.
func PopulateSources(ctx context.Context, s *Set, dumpDir string) error {
	for _, r := range s.Recipes {
		sources, err := ExtractSources(ctx, filepath.Join(dumpDir, r.Name))
		if err != nil {
			return err
		}
		r.Sources = sources
	}
	return nil
}
