package recipeset

import (
	"testing"

	"github.com/SputnikRocket/arch-repo-builder/pkg/config"
	"github.com/SputnikRocket/arch-repo-builder/pkg/gitcache"
)

func TestLoadFiltersByOnly(t *testing.T) {
	f := &config.File{Pkgbuilds: map[string]config.RecipeEntry{
		"a": {URL: "https://example.invalid/a.git"},
		"b": {URL: "https://example.invalid/b.git"},
	}}
	opts := config.Options{Only: []string{"a"}, Layout: config.NewLayout(t.TempDir())}

	s := Load(f, opts, gitcache.New("", ""))
	if len(s.Recipes) != 1 || s.Recipes[0].Name != "a" {
		t.Fatalf("expected only recipe a, got %+v", s.Recipes)
	}
}

func TestLoadAssignsDerivedPaths(t *testing.T) {
	root := t.TempDir()
	f := &config.File{Pkgbuilds: map[string]config.RecipeEntry{
		"foo": {URL: "https://example.invalid/foo.git"},
	}}
	opts := config.Options{Layout: config.NewLayout(root)}

	s := Load(f, opts, gitcache.New("", ""))
	r := s.Recipes[0]
	if r.RepoPath != opts.Layout.RecipeCacheDir("foo") {
		t.Fatalf("unexpected repo path: %q", r.RepoPath)
	}
	if r.ScratchDir != opts.Layout.ScratchDir("foo") {
		t.Fatalf("unexpected scratch dir: %q", r.ScratchDir)
	}
}

func TestAllHealthyFalseWhenCacheMissing(t *testing.T) {
	f := &config.File{Pkgbuilds: map[string]config.RecipeEntry{
		"foo": {URL: "https://example.invalid/foo.git"},
	}}
	opts := config.Options{Layout: config.NewLayout(t.TempDir())}
	s := Load(f, opts, gitcache.New("", ""))
	if s.AllHealthy() {
		t.Fatal("expected AllHealthy to be false with no repo on disk")
	}
}
