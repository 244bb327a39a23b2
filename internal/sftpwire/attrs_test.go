package sftpwire

import (
	"os"
	"testing"
	"time"
)

type fakeFileInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return 0 }
func (f fakeFileInfo) ModTime() time.Time { return f.modTime }
func (f fakeFileInfo) IsDir() bool        { return f.isDir }
func (f fakeFileInfo) Sys() any           { return nil }

func TestAttrsFromFileInfoDirectoryDefaults(t *testing.T) {
	fi := fakeFileInfo{name: "sub", isDir: true, size: 4096, modTime: time.Unix(1000, 0)}
	a := attrsFromFileInfo(fi)
	if a.Flags != attrSize|attrUIDGID|attrPermissions|attrACModTime {
		t.Fatalf("Flags = %#x, want 0x0F", a.Flags)
	}
	if a.Size != 0 {
		t.Fatalf("directory Size = %d, want 0", a.Size)
	}
	if a.Permissions != wireDirPerm {
		t.Fatalf("directory Permissions = %#o, want %#o", a.Permissions, wireDirPerm)
	}
}

func TestAttrsFromFileInfoFileDefaults(t *testing.T) {
	fi := fakeFileInfo{name: "f.txt", isDir: false, size: 123, modTime: time.Unix(2000, 0)}
	a := attrsFromFileInfo(fi)
	if a.Size != 123 {
		t.Fatalf("file Size = %d, want 123", a.Size)
	}
	if a.Permissions != wireFilePerm {
		t.Fatalf("file Permissions = %#o, want %#o", a.Permissions, wireFilePerm)
	}
	if a.ATime != 2000 || a.MTime != 2000 {
		t.Fatalf("ATime/MTime = %d/%d, want 2000/2000", a.ATime, a.MTime)
	}
}

func TestAttrsEncodeDecodeRoundTripGatedByFlags(t *testing.T) {
	in := Attrs{
		Flags:       attrSize | attrACModTime,
		Size:        555,
		UID:         999, // not gated by flags, must be dropped on the wire
		Permissions: 0o755,
		ATime:       10,
		MTime:       20,
	}
	b := newBuilder(32)
	in.encode(b)
	c := newCursor(b.buf)
	out, err := decodeAttrs(c)
	if err != nil {
		t.Fatalf("decodeAttrs() error = %v", err)
	}
	if out.Size != 555 {
		t.Fatalf("Size = %d, want 555", out.Size)
	}
	if out.ATime != 10 || out.MTime != 20 {
		t.Fatalf("ATime/MTime = %d/%d, want 10/20", out.ATime, out.MTime)
	}
	if out.UID != 0 {
		t.Fatalf("UID = %d, want 0 (uidgid bit was not set)", out.UID)
	}
}

func TestLongnameFormatsDirectoryAndFile(t *testing.T) {
	dir := fakeFileInfo{name: "reports", isDir: true, size: 4096, modTime: time.Unix(0, 0)}
	if got := longname(dir); got[0] != 'd' {
		t.Fatalf("longname(dir) = %q, want it to start with 'd'", got)
	}
	file := fakeFileInfo{name: "a.txt", isDir: false, size: 10, modTime: time.Unix(0, 0)}
	got := longname(file)
	if got[0] != '-' {
		t.Fatalf("longname(file) = %q, want it to start with '-'", got)
	}
	if got[len(got)-len(file.name):] != file.name {
		t.Fatalf("longname(file) = %q, want it to end with the filename %q", got, file.name)
	}
}
