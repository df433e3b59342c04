package publish

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
	"github.com/SputnikRocket/arch-repo-builder/pkg/config"
)

func TestResetViewsRecreatesEmptyDirs(t *testing.T) {
	root := t.TempDir()
	layout := config.NewLayout(root)

	if err := os.MkdirAll(layout.UpdatedDir(), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(layout.UpdatedDir(), "stale"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ResetViews(layout); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(layout.UpdatedDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected updated/ to be empty after reset, got %v", entries)
	}
	if _, err := os.Stat(layout.LatestDir()); err != nil {
		t.Fatalf("expected latest/ to exist, got %v", err)
	}
}

func TestRebuildLatestLinksEveryPopulatedRecipe(t *testing.T) {
	root := t.TempDir()
	layout := config.NewLayout(root)
	if err := os.MkdirAll(layout.LatestDir(), 0755); err != nil {
		t.Fatal(err)
	}

	outputDir := filepath.Join(layout.PkgsRoot(), "foo-abc123")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, "foo.pkg.tar.zst"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	recipes := []*common.Recipe{
		{Name: "foo", PkgID: "foo-abc123", OutputDir: outputDir},
		{Name: "bar", PkgID: "bar-def456", OutputDir: filepath.Join(layout.PkgsRoot(), "bar-def456")},
	}

	if err := RebuildLatest(layout, recipes); err != nil {
		t.Fatal(err)
	}

	link := filepath.Join(layout.LatestDir(), "foo.pkg.tar.zst")
	if _, err := os.Lstat(link); err != nil {
		t.Fatalf("expected latest/ symlink for foo, got %v", err)
	}
}
