package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
)

func TestNeedsBuildFalseWhenOutputPopulated(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pkg.zst"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	rec := &common.Recipe{Name: "foo", OutputDir: dir}

	b := &Builder{}
	if b.needsBuild(rec) {
		t.Fatal("expected needsBuild to be false for a populated output dir")
	}
}

func TestNeedsBuildTrueWhenOutputMissing(t *testing.T) {
	rec := &common.Recipe{Name: "foo", OutputDir: filepath.Join(t.TempDir(), "missing")}

	b := &Builder{}
	if !b.needsBuild(rec) {
		t.Fatal("expected needsBuild to be true for a missing output dir")
	}
}

func TestNeedsBuildClearsExtractFlagOnCacheHit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pkg.zst"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	scratch := filepath.Join(t.TempDir(), "scratch")
	if err := os.MkdirAll(scratch, 0755); err != nil {
		t.Fatal(err)
	}
	rec := &common.Recipe{Name: "foo", OutputDir: dir, ScratchDir: scratch, NeedsExtract: true}

	b := &Builder{}
	if b.needsBuild(rec) {
		t.Fatal("expected needsBuild to be false")
	}
	if rec.NeedsExtract {
		t.Fatal("expected NeedsExtract to be cleared")
	}
}

func TestLinkUpdatedTolerateExisting(t *testing.T) {
	dir := t.TempDir()
	if err := linkUpdated(dir, "foo-abc123", "foo.pkg.tar.zst"); err != nil {
		t.Fatal(err)
	}
	if err := linkUpdated(dir, "foo-abc123", "foo.pkg.tar.zst"); err != nil {
		t.Fatalf("expected duplicate link to be tolerated, got %v", err)
	}
}
