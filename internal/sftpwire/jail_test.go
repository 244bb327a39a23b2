package sftpwire

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestJail(t *testing.T) *jail {
	t.Helper()
	root := t.TempDir()
	j, err := newJail(root)
	if err != nil {
		t.Fatalf("newJail() error = %v", err)
	}
	return j
}

func TestJailResolvesEmptyDotSlashToRoot(t *testing.T) {
	j := newTestJail(t)
	for _, in := range []string{"", ".", "/"} {
		if got := j.toPhysical(in); got != j.root {
			t.Errorf("toPhysical(%q) = %q, want root %q", in, got, j.root)
		}
	}
}

func TestJailClampsTraversalToRoot(t *testing.T) {
	j := newTestJail(t)
	tests := []string{
		"../../etc/passwd",
		"/../../etc/passwd",
		"a/../../../b",
		"../../../../../../../../etc/shadow",
	}
	for _, in := range tests {
		got := j.toPhysical(in)
		if got != j.root {
			t.Errorf("toPhysical(%q) = %q, want clamp to root %q", in, got, j.root)
		}
	}
}

func TestJailResolvesOrdinaryPathUnderRoot(t *testing.T) {
	j := newTestJail(t)
	got := j.toPhysical("sub/dir/file.txt")
	want := filepath.Join(j.root, "sub", "dir", "file.txt")
	if got != want {
		t.Fatalf("toPhysical() = %q, want %q", got, want)
	}
}

func TestJailToVirtualInvertsToPhysical(t *testing.T) {
	j := newTestJail(t)
	if v := j.toVirtual(j.root); v != "/" {
		t.Fatalf("toVirtual(root) = %q, want %q", v, "/")
	}
	abs := filepath.Join(j.root, "a", "b.txt")
	if v := j.toVirtual(abs); v != "/a/b.txt" {
		t.Fatalf("toVirtual(%q) = %q, want %q", abs, v, "/a/b.txt")
	}
}

func TestJailRoundTrip(t *testing.T) {
	j := newTestJail(t)
	virtualIn := "/reports/2026/q1.csv"
	phys := j.toPhysical(virtualIn)
	if got := j.toVirtual(phys); got != virtualIn {
		t.Fatalf("round trip got %q, want %q", got, virtualIn)
	}
}

func TestNewJailCreatesAbsoluteCanonicalRoot(t *testing.T) {
	root := t.TempDir()
	j, err := newJail(root)
	if err != nil {
		t.Fatalf("newJail() error = %v", err)
	}
	if !filepath.IsAbs(j.root) {
		t.Fatalf("jail root %q is not absolute", j.root)
	}
	if _, err := os.Stat(j.root); err != nil {
		t.Fatalf("jail root %q does not exist: %v", j.root, err)
	}
}
