package signer

import "testing"

func TestNewWithEmptyKeyReturnsNil(t *testing.T) {
	if New("") != nil {
		t.Fatal("expected nil signer for empty key id")
	}
}

func TestNewWithKeyReturnsSigner(t *testing.T) {
	s := New("ABCDEF")
	if s == nil {
		t.Fatal("expected non-nil signer")
	}
}

func TestSignAllToleratesNilSigner(t *testing.T) {
	// Must not panic when no key is configured.
	SignAll(nil, nil, []string{"/tmp/does-not-matter"})
}
