// Package depensure implements DepEnsurer (spec.md §4.3): extracts each
// recipe's build/runtime dependency atoms via an embedded shell extractor,
// deduplicates them, asks the host package manager which are missing, and
// escalates via sudo to install any gap. Grounded on
// original_source/src/pkgbuild.rs's dependency-extraction shell-out
// pattern and original_source/src/build/mod.rs's child-process invocation
// style; the host package manager here is pacman, matching the rolling-
// release distribution spec.md §1 describes (pacman -T / -S are exactly
// the "which are missing" / "install" contract §4.3 calls for).
package depensure

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
)

// extractCap bounds how many extractor shells ExtractAll runs at once,
// sized for a child-process-per-recipe workload rather than network I/O.
const extractCap = 8

// extractorScript sources the recipe file ($1) and prints the union of its
// depends and makedepends arrays, one atom per line (spec.md §6, "Dependency
// extractor" child-process contract).
const extractorScript = `
set -e
source "$1"
for d in "${depends[@]}" "${makedepends[@]}"; do
	printf '%s\n' "$d"
done
`

// Extract runs the embedded extractor against one dumped recipe file and
// returns its declared dependency atoms.
func Extract(ctx context.Context, recipeFile string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "bash", "-ec", extractorScript, "Depends reader", recipeFile)
	cmd.Stdin = nil
	out, err := cmd.Output()
	if err != nil {
		return nil, common.Tag(common.ErrDep, "extracting deps from %s: %v", recipeFile, err)
	}

	var atoms []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			atoms = append(atoms, line)
		}
	}
	return atoms, nil
}

// ExtractAll runs Extract over every dumped recipe file in dumpDir (one
// file per recipe, named after the recipe), up to extractCap at a time,
// and returns the deduplicated, lexicographically sorted union, merged
// with basepkgs (spec.md §6, "basepkgs: list of package names always
// treated as installed").
func ExtractAll(ctx context.Context, dumpDir string, recipeNames []string, basepkgs []string) ([]string, error) {
	seen := make(map[string]struct{})
	var mu sync.Mutex
	for _, pkg := range basepkgs {
		seen[pkg] = struct{}{}
	}

	sem := semaphore.NewWeighted(extractCap)
	var wg sync.WaitGroup
	errs := make(chan error, len(recipeNames))

	for _, name := range recipeNames {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, common.Tag(common.ErrDep, "waiting for extractor slot: %v", err)
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			defer sem.Release(1)

			atoms, err := Extract(ctx, filepath.Join(dumpDir, name))
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			for _, a := range atoms {
				seen[a] = struct{}{}
			}
			mu.Unlock()
		}(name)
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return nil, err
	}

	union := make([]string, 0, len(seen))
	for a := range seen {
		union = append(union, a)
	}
	sort.Strings(union)
	return union, nil
}

// Ensure queries the host package manager for missing packages among deps
// and, if any are missing, installs them via sudo. Exit code 0 means all
// present; 127 means some are missing (listed on stdout); any other code is
// fatal (spec.md §4.3/§7 DepError).
func Ensure(ctx context.Context, deps []string) error {
	if len(deps) == 0 {
		return nil
	}

	missing, err := queryMissing(ctx, deps)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	return install(ctx, missing)
}

func queryMissing(ctx context.Context, deps []string) ([]string, error) {
	args := append([]string{"-T"}, deps...)
	cmd := exec.CommandContext(ctx, "pacman", args...)
	out, err := cmd.Output()

	var exitErr *exec.ExitError
	code := 0
	if err != nil {
		if ok := asExitError(err, &exitErr); ok {
			code = exitErr.ExitCode()
		} else {
			return nil, common.Tag(common.ErrDep, "running pacman -T: %v", err)
		}
	}

	switch code {
	case 0:
		return nil, nil
	case 127:
		var missing []string
		scanner := bufio.NewScanner(strings.NewReader(string(out)))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				missing = append(missing, line)
			}
		}
		return missing, nil
	default:
		return nil, common.Tag(common.ErrDep, "pacman -T exited %d", code)
	}
}

func install(ctx context.Context, missing []string) error {
	args := append([]string{"pacman", "-S", "--needed", "--noconfirm"}, missing...)
	cmd := exec.CommandContext(ctx, "sudo", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return common.Tag(common.ErrDep, "installing missing deps %v: %v", missing, err)
	}
	return nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
