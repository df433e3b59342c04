// Package janitor implements Janitor (spec.md §4.9): given a directory and
// a set of used basenames, removes every direct child not in that set.
// Grounded on pi/pkg/disk/manager.go's Clean/DirSize/FormatSize, generalized
// from "wipe a fixed list of directories" to "prune against a used-set",
// and extended to report reclaimed bytes the way that package's Info()
// command does.
package janitor

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
)

// Result summarizes one Clean invocation.
type Result struct {
	Dir     string
	Removed []string
	Bytes   int64
}

// Clean removes every direct child of dir whose basename is not in used.
// Missing dir is not an error (nothing to clean). Individual removal
// failures are logged and skipped and do not stop the sweep — per
// spec.md §7, JanitorError is "logged, never fatal".
func Clean(dir string, used map[string]struct{}) Result {
	res := Result{Dir: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("janitor: reading directory failed", "dir", dir, "error", err)
		}
		return res
	}

	for _, e := range entries {
		name := e.Name()
		if _, keep := used[name]; keep {
			continue
		}
		path := filepath.Join(dir, name)
		size, _ := dirSize(path)
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("janitor: removing orphan entry failed", "path", path, "error", err)
			continue
		}
		res.Removed = append(res.Removed, path)
		res.Bytes += size
	}
	return res
}

// UsedSet builds the map Clean expects from a plain name slice, optionally
// adding reserved names (used for the output root, which must always keep
// "updated" and "latest" regardless of pkg_id membership — spec.md §4.9).
func UsedSet(names []string, reserved ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names)+len(reserved))
	for _, n := range names {
		set[n] = struct{}{}
	}
	for _, n := range reserved {
		set[n] = struct{}{}
	}
	return set
}

// Log emits a human-readable summary of a Clean result, in the humanized
// byte-count style pi/pkg/disk/manager.go's Info command uses.
func (r Result) Log() {
	if len(r.Removed) == 0 {
		return
	}
	slog.Info("janitor swept orphan entries",
		"dir", r.Dir,
		"count", len(r.Removed),
		"reclaimed", humanize.Bytes(uint64(r.Bytes)),
	)
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// Err wraps a janitor-stage error with the ErrJanitor tag, for callers that
// need to distinguish it (even though it is never fatal).
func Err(format string, args ...any) error {
	return common.Tag(common.ErrJanitor, format, args...)
}
