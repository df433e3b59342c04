package sourcetree

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
	"github.com/SputnikRocket/arch-repo-builder/pkg/config"
)

func commitRepo(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "PKGBUILD"), []byte("pkgname=foo\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("PKGBUILD"); err != nil {
		t.Fatal(err)
	}
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()}
	hash, err := wt.Commit("initial", &git.CommitOptions{Author: sig})
	if err != nil {
		t.Fatal(err)
	}
	return hash.String()
}

func TestCheckoutTreeWritesFiles(t *testing.T) {
	repoDir := t.TempDir()
	destDir := t.TempDir()
	commit := commitRepo(t, repoDir)

	if err := CheckoutTree(repoDir, commit, destDir); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "PKGBUILD"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "pkgname=foo\n" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestExtractMaterializesLocalSource(t *testing.T) {
	root := t.TempDir()
	layout := config.NewLayout(root)

	repoDir := filepath.Join(root, "repo")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatal(err)
	}
	commit := commitRepo(t, repoDir)

	localFile := filepath.Join(root, "patch.diff")
	if err := os.WriteFile(localFile, []byte("diff content"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := &common.Recipe{
		Name:       "foo",
		RepoPath:   repoDir,
		Commit:     commit,
		ScratchDir: filepath.Join(root, "scratch", "foo"),
		Sources:    []common.Source{{Kind: common.SourceLocal, Identity: localFile}},
	}

	if err := Extract(layout, rec); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(rec.ScratchDir, "PKGBUILD")); err != nil {
		t.Fatalf("expected commit tree checked out: %v", err)
	}
	if _, err := os.Stat(filepath.Join(rec.ScratchDir, "src", "patch.diff")); err != nil {
		t.Fatalf("expected local source materialized: %v", err)
	}
}

func TestDiscardRemovesScratchDir(t *testing.T) {
	root := t.TempDir()
	scratch := filepath.Join(root, "scratch")
	if err := os.MkdirAll(scratch, 0755); err != nil {
		t.Fatal(err)
	}
	rec := &common.Recipe{ScratchDir: scratch}

	if err := Discard(rec); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Fatal("expected scratch dir to be removed")
	}
}
