// Package signer invokes an external GPG binary to sign produced artifacts
// (spec.md §6, "Signer interface"). The spec treats signing as an opaque
// external collaborator ("sign file with key-id"), so this shells out to a
// real `gpg` rather than linking a crypto library — the same treatment the
// spec gives the dependency extractor and version-probe child processes.
package signer

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Signer signs a single artifact path with a configured key id.
type Signer interface {
	Sign(ctx context.Context, path string) error
}

type gpgSigner struct {
	keyID string
}

// New returns a Signer that shells out to gpg --detach-sign with keyID, or
// nil if keyID is empty (no signing configured).
func New(keyID string) Signer {
	if keyID == "" {
		return nil
	}
	return &gpgSigner{keyID: keyID}
}

func (s *gpgSigner) Sign(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "gpg", "--batch", "--yes", "--detach-sign", "--local-user", s.keyID, path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("gpg sign %s: %w: %s", path, err, out)
	}
	return nil
}

// SignAll signs every path in paths, logging (not failing) on individual
// errors: spec.md §6 "any error is logged, not fatal".
func SignAll(ctx context.Context, s Signer, paths []string) {
	if s == nil {
		return
	}
	for _, p := range paths {
		if err := s.Sign(ctx, p); err != nil {
			slog.Warn("signing failed", "path", p, "error", err)
		}
	}
}
