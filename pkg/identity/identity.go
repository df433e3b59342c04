// Package identity captures the invoking user's real UID/GID once at
// startup so build children — which may run through a privileged namespace
// setup step for network isolation — can always be re-entered as that user.
// The orchestrator itself never runs persistently as root; see spec.md §9.
package identity

import (
	"fmt"
	"os"
	"os/user"
	"strconv"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
)

// Identity is the invoking user's real identity, captured once.
type Identity struct {
	UID      int
	GID      int
	Username string
	Home     string
}

// Capture reads the real (not effective) UID/GID and resolves the
// corresponding passwd entry. Run under sudo, os.Getuid returns 0; the
// caller's real identity is read from SUDO_UID/SUDO_GID when present so a
// `sudo arch-repo-builder` invocation still drops back to the real user for
// build children, matching spec.md §9 ("the orchestrator itself must not
// run persistently as root").
func Capture() (Identity, error) {
	uid := os.Getuid()
	gid := os.Getgid()

	if su := os.Getenv("SUDO_UID"); su != "" {
		if v, err := strconv.Atoi(su); err == nil {
			uid = v
		}
	}
	if sg := os.Getenv("SUDO_GID"); sg != "" {
		if v, err := strconv.Atoi(sg); err == nil {
			gid = v
		}
	}

	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return Identity{}, common.Tag(common.ErrIdentity, "lookup uid %d: %v", uid, err)
	}

	home := u.HomeDir
	if home == "" {
		return Identity{}, common.Tag(common.ErrIdentity, "no home directory for uid %d", uid)
	}

	return Identity{UID: uid, GID: gid, Username: u.Username, Home: home}, nil
}

// Env returns the HOME, PATH and USER environment entries build children
// run with (spec.md §6, "Environment variables consumed").
func (id Identity) Env(path string) []string {
	return []string{
		fmt.Sprintf("HOME=%s", id.Home),
		fmt.Sprintf("PATH=%s", path),
		fmt.Sprintf("USER=%s", id.Username),
	}
}
