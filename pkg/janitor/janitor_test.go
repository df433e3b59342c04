package janitor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCleanRemovesOrphansOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"keep", "drop", "updated", "latest"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}

	used := UsedSet([]string{"keep"}, "updated", "latest")
	res := Clean(dir, used)

	if len(res.Removed) != 1 {
		t.Fatalf("expected exactly 1 removal, got %v", res.Removed)
	}
	for _, name := range []string{"keep", "updated", "latest"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s should have survived: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "drop")); !os.IsNotExist(err) {
		t.Fatal("drop should have been removed")
	}
}

func TestCleanMissingDirIsNotAnError(t *testing.T) {
	res := Clean(filepath.Join(t.TempDir(), "nonexistent"), UsedSet(nil))
	if len(res.Removed) != 0 {
		t.Fatalf("expected no removals, got %v", res.Removed)
	}
}

func TestCleanReportsReclaimedBytes(t *testing.T) {
	dir := t.TempDir()
	orphan := filepath.Join(dir, "orphan")
	if err := os.Mkdir(orphan, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(orphan, "f"), []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}

	res := Clean(dir, UsedSet(nil))
	if res.Bytes != 10 {
		t.Fatalf("expected 10 bytes reclaimed, got %d", res.Bytes)
	}
}
