package pkgid

import (
	"path/filepath"
	"testing"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
)

func TestAssignStatic(t *testing.T) {
	id, dir := Assign("/pkgs", "foo", "abc123", common.VersionMode{Kind: common.VersionStatic})
	if id != "foo-abc123" {
		t.Fatalf("got pkg_id %q", id)
	}
	if dir != filepath.Join("/pkgs", "foo-abc123") {
		t.Fatalf("got output dir %q", dir)
	}
}

func TestAssignDynamic(t *testing.T) {
	mode := common.VersionMode{Kind: common.VersionDynamic, Value: "1.2.3"}
	id, _ := Assign("/pkgs", "foo", "abc123", mode)
	if id != "foo-abc123-1.2.3" {
		t.Fatalf("got pkg_id %q", id)
	}
}

func TestAssignIsDeterministic(t *testing.T) {
	mode := common.VersionMode{Kind: common.VersionDynamic, Value: "9"}
	id1, _ := Assign("/pkgs", "bar", "deadbeef", mode)
	id2, _ := Assign("/pkgs", "bar", "deadbeef", mode)
	if id1 != id2 {
		t.Fatalf("pkg_id not deterministic: %q vs %q", id1, id2)
	}
}
