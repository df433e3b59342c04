package depensure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractParsesDependsAndMakedepends(t *testing.T) {
	dir := t.TempDir()
	recipe := filepath.Join(dir, "foo")
	body := `
pkgname=foo
depends=('glibc' 'zlib')
makedepends=('cmake')
`
	if err := os.WriteFile(recipe, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	atoms, err := Extract(context.Background(), recipe)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := map[string]bool{"glibc": true, "zlib": true, "cmake": true}
	if len(atoms) != 3 {
		t.Fatalf("expected 3 atoms, got %v", atoms)
	}
	for _, a := range atoms {
		if !want[a] {
			t.Errorf("unexpected atom %q", a)
		}
	}
}

func TestExtractAllPropagatesExtractorFailure(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "good"), []byte("depends=('glibc')\nmakedepends=()\n"), 0644)
	// "bad" has no recipe file at all, so sourcing it fails.

	_, err := ExtractAll(context.Background(), dir, []string{"good", "bad"}, nil)
	if err == nil {
		t.Fatal("expected an error when one recipe's extractor fails")
	}
}

func TestExtractAllBoundsConcurrency(t *testing.T) {
	dir := t.TempDir()
	var names []string
	for i := 0; i < extractCap*3; i++ {
		name := fmt.Sprintf("recipe-%02d", i)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("depends=('glibc')\nmakedepends=()\n"), 0644); err != nil {
			t.Fatal(err)
		}
		names = append(names, name)
	}

	union, err := ExtractAll(context.Background(), dir, names, nil)
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if len(union) != 1 || union[0] != "glibc" {
		t.Fatalf("expected deduped [glibc], got %v", union)
	}
}

func TestExtractAllDedupesAndMergesBasepkgs(t *testing.T) {
	dir := t.TempDir()
	write := func(name, deps string) {
		os.WriteFile(filepath.Join(dir, name), []byte("depends=("+deps+")\nmakedepends=()\n"), 0644)
	}
	write("a", "'glibc'")
	write("b", "'glibc' 'zlib'")

	union, err := ExtractAll(context.Background(), dir, []string{"a", "b"}, []string{"base-devel"})
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}

	want := []string{"base-devel", "glibc", "zlib"}
	if len(union) != len(want) {
		t.Fatalf("got %v want %v", union, want)
	}
	for i := range want {
		if union[i] != want[i] {
			t.Fatalf("got %v want %v", union, want)
		}
	}
}
