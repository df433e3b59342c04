package version

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestProbeDynamicDetectsFunction(t *testing.T) {
	dir := t.TempDir()
	recipe := filepath.Join(dir, "foo")
	os.WriteFile(recipe, []byte("pkgver() { echo 1.2.3; }\n"), 0644)

	dynamic, err := probeDynamic(context.Background(), recipe)
	if err != nil {
		t.Fatalf("probeDynamic: %v", err)
	}
	if !dynamic {
		t.Fatal("expected recipe with a pkgver function to be detected as dynamic")
	}
}

func TestProbeDynamicDetectsStatic(t *testing.T) {
	dir := t.TempDir()
	recipe := filepath.Join(dir, "foo")
	os.WriteFile(recipe, []byte("pkgver=1.0.0\n"), 0644)

	dynamic, err := probeDynamic(context.Background(), recipe)
	if err != nil {
		t.Fatalf("probeDynamic: %v", err)
	}
	if dynamic {
		t.Fatal("expected a plain pkgver variable to be detected as static")
	}
}

func TestRunPkgverCapturesTrimmedOutput(t *testing.T) {
	dir := t.TempDir()
	srcDir := t.TempDir()
	recipe := filepath.Join(dir, "foo")
	os.WriteFile(recipe, []byte("pkgver() { echo ' 2.5.1 '; }\n"), 0644)

	ver, err := runPkgver(context.Background(), recipe, srcDir)
	if err != nil {
		t.Fatalf("runPkgver: %v", err)
	}
	if ver != "2.5.1" {
		t.Fatalf("got %q", ver)
	}
}
