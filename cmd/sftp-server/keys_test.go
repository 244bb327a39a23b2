package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"golang.org/x/crypto/ssh"
)

func generateTestKey(t *testing.T) (ssh.PublicKey, string) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey() error = %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("ssh.NewPublicKey() error = %v", err)
	}
	return sshPub, string(ssh.MarshalAuthorizedKey(sshPub))
}

func TestIsKeyAllowedMatchesAuthorizedLine(t *testing.T) {
	key, line := generateTestKey(t)
	if !isKeyAllowed(key, []string{line}) {
		t.Fatal("isKeyAllowed() = false for a key present in the authorized list")
	}
}

func TestIsKeyAllowedRejectsUnlistedKey(t *testing.T) {
	key, _ := generateTestKey(t)
	_, otherLine := generateTestKey(t)
	if isKeyAllowed(key, []string{otherLine}) {
		t.Fatal("isKeyAllowed() = true for a key absent from the authorized list")
	}
}

func TestIsKeyAllowedIgnoresUnparseableLines(t *testing.T) {
	key, line := generateTestKey(t)
	if !isKeyAllowed(key, []string{"not a valid key line", line}) {
		t.Fatal("isKeyAllowed() should skip malformed lines and still match a valid one")
	}
}

func TestIsKeyAllowedEmptyListRejects(t *testing.T) {
	key, _ := generateTestKey(t)
	if isKeyAllowed(key, nil) {
		t.Fatal("isKeyAllowed() = true against an empty authorized list")
	}
}
