package sftpwire

import (
	"os"
	"strconv"
)

// FileHandle is a handle bound to an open byte stream. Mutated only
// from within the single-writer dispatch loop that owns it, so it
// carries no lock of its own.
type FileHandle struct {
	id       uint32
	file     *os.File
	virtual  string
	canRead  bool
	canWrite bool
}

// DirHandle is a handle bound to a directory listing and a one-shot
// "already-yielded" flag.
type DirHandle struct {
	id      uint32
	virtual string
	path    string
	yielded bool
}

// handleTable allocates, looks up, and releases numeric handles for
// one subsystem instance, split across two disjoint domains (file vs.
// directory). Unlocked: one subsystem processes one packet at a time
// on a single goroutine.
type handleTable struct {
	next  uint32
	files map[uint32]*FileHandle
	dirs  map[uint32]*DirHandle
}

func newHandleTable() *handleTable {
	return &handleTable{
		next:  1,
		files: make(map[uint32]*FileHandle),
		dirs:  make(map[uint32]*DirHandle),
	}
}

func (t *handleTable) allocate() uint32 {
	id := t.next
	t.next++
	return id
}

func (t *handleTable) putFile(fh *FileHandle) string {
	t.files[fh.id] = fh
	return strconv.FormatUint(uint64(fh.id), 10)
}

func (t *handleTable) putDir(dh *DirHandle) string {
	t.dirs[dh.id] = dh
	return strconv.FormatUint(uint64(dh.id), 10)
}

// lookupFile resolves a decimal-ASCII handle string to a FileHandle. A
// lookup against a directory handle's id, or an unknown id, fails.
func (t *handleTable) lookupFile(handle string) (*FileHandle, bool) {
	id, err := parseHandle(handle)
	if err != nil {
		return nil, false
	}
	fh, ok := t.files[id]
	return fh, ok
}

func (t *handleTable) lookupDir(handle string) (*DirHandle, bool) {
	id, err := parseHandle(handle)
	if err != nil {
		return nil, false
	}
	dh, ok := t.dirs[id]
	return dh, ok
}

// release closes and forgets the handle, whichever domain it belongs
// to. The underlying close error is swallowed.
func (t *handleTable) release(handle string) bool {
	id, err := parseHandle(handle)
	if err != nil {
		return false
	}
	if fh, ok := t.files[id]; ok {
		_ = fh.file.Close()
		delete(t.files, id)
		return true
	}
	if _, ok := t.dirs[id]; ok {
		delete(t.dirs, id)
		return true
	}
	return false
}

// closeAll closes every open file handle and clears both domains. Used
// on subsystem teardown.
func (t *handleTable) closeAll() {
	for _, fh := range t.files {
		_ = fh.file.Close()
	}
	t.files = make(map[uint32]*FileHandle)
	t.dirs = make(map[uint32]*DirHandle)
}

func parseHandle(handle string) (uint32, error) {
	v, err := strconv.ParseUint(handle, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
