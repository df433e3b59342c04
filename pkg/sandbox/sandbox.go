// Package sandbox builds the child-process environment Builder spawns the
// build tool under (spec.md §4.7), including the optional `nonet` network
// isolation (§4.7.3). The env-overlay and argv[0]-branding idioms are
// adapted from pi/pkg/bubblewrap/bubblewrap.go's Create/AddEnvFirst/SetCommand
// pattern; the nonet mechanism itself is not a bwrap invocation (this spec
// calls for a custom double-userns unshare dance, not a bubblewrap sandbox,
// so there's nothing for that dependency to wrap here).
package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// HelperArg is the hidden argv[1] marker main.go dispatches to
// RunNoNetHelper before any flag parsing, the way a re-exec'd "init" step
// works in namespace-heavy tooling: the outer process can't set up nested
// namespaces and bring up loopback from outside, so it re-executes itself
// inside the new namespace to finish the job before handing off to the
// real build tool.
const HelperArg = "__nonet_exec"

// Brand returns the argv[0] string Builder sets so `ps` listings show which
// pkg_id a given build child belongs to (spec.md §4.7.2: "Argv[0] is
// branded `[BUILDER/<pkg_id>] …`").
func Brand(pkgID, tool string) string {
	return fmt.Sprintf("[BUILDER/%s] %s", pkgID, tool)
}

// Command builds the (non-isolated) build-tool invocation: cwd=scratchDir,
// env as given, argv[0] branded.
func Command(ctx context.Context, tool string, args []string, scratchDir string, env []string, pkgID string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = scratchDir
	cmd.Env = env
	cmd.Args[0] = Brand(pkgID, tool)
	return cmd
}

// NoNetCommand builds the same invocation but re-execs selfExe with the
// hidden HelperArg marker first; main.go recognizes that marker and calls
// RunNoNetHelper instead of the normal CLI path. The outer Cmd owns the
// first user+network namespace (mapping the caller's UID/GID to root
// inside it, per spec.md §4.7.3); RunNoNetHelper does the rest once it's
// running inside that namespace.
func NoNetCommand(ctx context.Context, selfExe string, tool string, args []string, scratchDir string, env []string, pkgID string, uid, gid int) *exec.Cmd {
	helperArgs := append([]string{HelperArg, tool}, args...)
	cmd := exec.CommandContext(ctx, selfExe, helperArgs...)
	cmd.Dir = scratchDir
	cmd.Env = env
	cmd.Args[0] = Brand(pkgID, tool)

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWUSER | syscall.CLONE_NEWNET,
		UidMappings: []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: uid, Size: 1},
		},
		GidMappings: []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: gid, Size: 1},
		},
	}
	return cmd
}

// RunNoNetHelper is main.go's entry point when os.Args[1] == HelperArg. It
// is already running as the mapped-root user inside the outer user+network
// namespace NoNetCommand created. It brings up loopback, unshares a nested
// user namespace mapping root back to the original caller identity, then
// execve()s the real build tool so the build sees no external network, no
// elevated filesystem privileges, and runs as the original user — matching
// spec.md §4.7.3 exactly.
func RunNoNetHelper(args []string, callerUID, callerGID int) error {
	if len(args) < 1 {
		return fmt.Errorf("nonet helper: missing build tool argument")
	}
	tool, toolArgs := args[0], args[1:]

	if err := bringUpLoopback(); err != nil {
		return fmt.Errorf("nonet helper: loopback: %w", err)
	}

	if err := unshareNestedUserns(callerUID, callerGID); err != nil {
		return fmt.Errorf("nonet helper: nested userns: %w", err)
	}

	toolPath, err := exec.LookPath(tool)
	if err != nil {
		toolPath = tool
	}
	fullArgs := append([]string{os.Args[0]}, toolArgs...)
	return syscall.Exec(toolPath, fullArgs, os.Environ())
}

// bringUpLoopback brings the loopback interface up so the build tool's
// localhost-only traffic (if any) works despite the external network being
// unreachable. Shelling out to `ip` mirrors the original's own reliance on
// the host's iproute2 tool rather than a netlink library, since this
// process has no route to any package registry to fetch one even if it
// wanted to.
func bringUpLoopback() error {
	cmd := exec.Command("ip", "link", "set", "lo", "up")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// unshareNestedUserns creates a second, nested user namespace and maps its
// root (uid/gid 0, which this process currently holds from the outer
// mapping) back to the original caller's uid/gid, so the build tool that's
// about to be exec'd runs as that user rather than as namespace-root.
func unshareNestedUserns(callerUID, callerGID int) error {
	if err := syscall.Unshare(syscall.CLONE_NEWUSER); err != nil {
		return fmt.Errorf("unshare CLONE_NEWUSER: %w", err)
	}
	if err := os.WriteFile("/proc/self/setgroups", []byte("deny"), 0644); err != nil {
		return fmt.Errorf("disable setgroups: %w", err)
	}
	if err := os.WriteFile("/proc/self/uid_map", []byte(fmt.Sprintf("%d %d 1", callerUID, 0)), 0644); err != nil {
		return fmt.Errorf("write uid_map: %w", err)
	}
	if err := os.WriteFile("/proc/self/gid_map", []byte(fmt.Sprintf("%d %d 1", callerGID, 0)), 0644); err != nil {
		return fmt.Errorf("write gid_map: %w", err)
	}
	return nil
}
