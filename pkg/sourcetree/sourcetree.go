// Package sourcetree materializes a recipe's commit tree and declared
// sources onto disk under scratch_dir/src/, the common precondition both
// VersionResolver (spec.md §4.5, to run pkgver) and Builder (spec.md §4.7,
// to invoke the build tool with --noextract) need satisfied before their
// respective child processes run. Factored out of the original
// version-resolver-only extraction routine so Builder doesn't duplicate it
// when a static recipe reaches the build stage never having been extracted
// by VersionResolver.
package sourcetree

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
	"github.com/SputnikRocket/arch-repo-builder/pkg/config"
)

// Extract materializes rec's commit tree into rec.ScratchDir and its
// declared sources into rec.ScratchDir/src, matching spec.md §4.5's
// "sources extracted into scratch_dir/src/" precondition.
func Extract(layout config.Layout, rec *common.Recipe) error {
	srcDir := filepath.Join(rec.ScratchDir, "src")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		return common.Tag(common.ErrSource, "creating %s: %v", srcDir, err)
	}

	if err := CheckoutTree(rec.RepoPath, rec.Commit, rec.ScratchDir); err != nil {
		return common.Tag(common.ErrSource, "checking out %s@%s: %v", rec.Name, rec.Commit, err)
	}

	for _, s := range rec.Sources {
		if err := materialize(layout, s, srcDir); err != nil {
			return common.Tag(common.ErrSource, "materializing source %s: %v", s.Identity, err)
		}
	}
	return nil
}

// Discard removes a recipe's scratch dir so a subsequent Extract starts
// clean, the "discard and rebuild scratch_dir" retry step spec.md §4.7
// requires between failed build attempts.
func Discard(rec *common.Recipe) error {
	return os.RemoveAll(rec.ScratchDir)
}

// CheckoutTree writes every file in commitHash's tree under destDir,
// preserving relative paths — a manual tree walk rather than a working-tree
// clone, since repoPath is a bare repository with no worktree to check out
// from.
func CheckoutTree(repoPath, commitHash, destDir string) error {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return err
	}
	commit, err := repo.CommitObject(plumbing.NewHash(commitHash))
	if err != nil {
		return err
	}
	tree, err := commit.Tree()
	if err != nil {
		return err
	}

	walker := tree.Files()
	defer walker.Close()
	for {
		f, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		dest := filepath.Join(destDir, f.Name)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		reader, err := f.Reader()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(f.Mode.Perm())|0600)
		if err != nil {
			reader.Close()
			return err
		}
		_, copyErr := io.Copy(out, reader)
		reader.Close()
		closeErr := out.Close()
		if copyErr != nil {
			return copyErr
		}
		if closeErr != nil {
			return closeErr
		}
	}
	return nil
}

// materialize copies or checks out a single cached source into srcDir,
// honoring its kind.
func materialize(layout config.Layout, s common.Source, srcDir string) error {
	switch s.Kind {
	case common.SourceLocal:
		return copyPath(s.Identity, filepath.Join(srcDir, filepath.Base(s.Identity)))
	case common.SourceNetfile:
		cached := filepath.Join(layout.SourceCacheRoot("netfile"), identityHash(s))
		return copyPath(cached, filepath.Join(srcDir, filepath.Base(s.Identity)))
	case common.SourceGit:
		cached := filepath.Join(layout.SourceCacheRoot("git"), identityHash(s))
		dest := filepath.Join(srcDir, filepath.Base(strings.TrimSuffix(s.Identity, ".git")))
		repo, err := git.PlainOpen(cached)
		if err != nil {
			return err
		}
		ref, err := repo.Head()
		if err != nil {
			return err
		}
		return CheckoutTree(cached, ref.Hash().String(), dest)
	default:
		return nil
	}
}

func copyPath(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// identityHash reproduces sourcecache.Identity's basename derivation; kept
// local so this package doesn't need sourcecache's downloader/config
// dependencies just to agree on a hash.
func identityHash(s common.Source) string {
	sum := sha256.Sum256([]byte(s.Identity))
	return hex.EncodeToString(sum[:])[:16]
}
