package sftpwire

import (
	"io"
	"os"
	"time"
)

func (s *Subsystem) handleOpen(id uint32, c *cursor) error {
	path, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	pflagsRaw, err := c.u32()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	if _, err := decodeAttrs(c); err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	flags := pflag(pflagsRaw)

	canRead := flags&pflagRead != 0
	canWrite := flags&(pflagWrite|pflagAppend|pflagCreate|pflagTruncate) != 0

	if canWrite && !s.cfg.User.CanUpload {
		s.recordError("OPEN", "Permission denied: Upload not allowed")
		return s.respondStatus(id, fxPermissionDenied, "Permission denied: Upload not allowed")
	}
	if canRead && !s.cfg.User.CanDownload {
		s.recordError("OPEN", "Permission denied: Download not allowed")
		return s.respondStatus(id, fxPermissionDenied, "Permission denied: Download not allowed")
	}

	abs := s.jail.toPhysical(path)

	osFlags := os.O_RDONLY
	switch {
	case canRead && canWrite:
		osFlags = os.O_RDWR
	case canWrite:
		osFlags = os.O_WRONLY
	}
	if flags&pflagCreate != 0 {
		osFlags |= os.O_CREATE
	}
	if flags&pflagTruncate != 0 {
		osFlags |= os.O_TRUNC
	}
	if flags&pflagAppend != 0 {
		osFlags |= os.O_APPEND
	}

	f, err := os.OpenFile(abs, osFlags, 0o644)
	if err != nil {
		code, msg := fsErrorStatus(err)
		s.recordError("OPEN", msg)
		return s.respondStatus(id, code, msg)
	}

	hid := s.handles.allocate()
	fh := &FileHandle{
		id:       hid,
		file:     f,
		virtual:  s.jail.toVirtual(abs),
		canRead:  canRead,
		canWrite: canWrite,
	}
	handle := s.handles.putFile(fh)
	return s.send(encodeHandle(id, handle))
}

func (s *Subsystem) handleClose(id uint32, c *cursor) error {
	handle, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	if !s.handles.release(handle) {
		return s.respondStatus(id, fxFailure, "Invalid handle")
	}
	return s.respondStatus(id, fxOK, "")
}

func (s *Subsystem) handleRead(id uint32, c *cursor) error {
	handle, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	offset, err := c.u64()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	length, err := c.u32()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}

	fh, ok := s.handles.lookupFile(handle)
	if !ok {
		return s.respondStatus(id, fxFailure, "Invalid handle")
	}

	buf := make([]byte, length)
	n, err := fh.file.ReadAt(buf, int64(offset))
	if n == 0 {
		if err != nil && err != io.EOF {
			code, msg := fsErrorStatus(err)
			s.recordError("READ", msg)
			return s.respondStatus(id, code, msg)
		}
		return s.respondStatus(id, fxEOF, "")
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.AddBytesOut(int64(n))
	}
	s.audit.FileRead(s.cfg.SessionID, s.cfg.Username, fh.virtual)
	return s.send(encodeData(id, buf[:n]))
}

func (s *Subsystem) handleWrite(id uint32, c *cursor) error {
	handle, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	offset, err := c.u64()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	data, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	payload := []byte(data)

	fh, ok := s.handles.lookupFile(handle)
	if !ok {
		return s.respondStatus(id, fxFailure, "Invalid handle")
	}

	if ceiling := s.cfg.effectiveUploadCeiling(); ceiling != 0 {
		info, err := fh.file.Stat()
		if err != nil {
			code, msg := fsErrorStatus(err)
			s.recordError("WRITE", msg)
			return s.respondStatus(id, code, msg)
		}
		target := offset + uint64(len(payload))
		if cur := uint64(info.Size()); cur > target {
			target = cur
		}
		if target > ceiling {
			const msg = "Upload size limit exceeded"
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.IncQuotaExceeded()
			}
			s.recordError("WRITE", msg)
			return s.respondStatus(id, fxFailure, msg)
		}
	}

	if _, err := fh.file.WriteAt(payload, int64(offset)); err != nil {
		code, msg := fsErrorStatus(err)
		s.recordError("WRITE", msg)
		return s.respondStatus(id, code, msg)
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.AddBytesIn(int64(len(payload)))
	}
	s.audit.FileWrite(s.cfg.SessionID, s.cfg.Username, fh.virtual)
	return s.respondStatus(id, fxOK, "")
}

// handleStat serves both STAT and LSTAT: this engine draws no
// distinction between the two (symlink transparency is acceptable).
func (s *Subsystem) handleStat(id uint32, c *cursor) error {
	path, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	abs := s.jail.toPhysical(path)
	info, err := os.Stat(abs)
	if err != nil {
		return s.respondStatus(id, fxNoSuchFile, "No such file")
	}
	return s.send(encodeAttrs(id, attrsFromFileInfo(info)))
}

func (s *Subsystem) handleFstat(id uint32, c *cursor) error {
	handle, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	fh, ok := s.handles.lookupFile(handle)
	if !ok {
		return s.respondStatus(id, fxFailure, "Invalid handle")
	}
	info, err := fh.file.Stat()
	if err != nil {
		code, msg := fsErrorStatus(err)
		return s.respondStatus(id, code, msg)
	}
	return s.send(encodeAttrs(id, attrsFromFileInfo(info)))
}

// handleSetstat applies SETSTAT against a virtual path.
func (s *Subsystem) handleSetstat(id uint32, c *cursor) error {
	path, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	attrs, err := decodeAttrs(c)
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	if !s.cfg.User.CanUpload {
		s.recordError("SETSTAT", "Permission denied")
		return s.respondStatus(id, fxPermissionDenied, "")
	}
	abs := s.jail.toPhysical(path)
	return s.applySetstat(id, "SETSTAT", abs, attrs)
}

func (s *Subsystem) handleFsetstat(id uint32, c *cursor) error {
	handle, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	attrs, err := decodeAttrs(c)
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	if !s.cfg.User.CanUpload {
		s.recordError("FSETSTAT", "Permission denied")
		return s.respondStatus(id, fxPermissionDenied, "")
	}
	fh, ok := s.handles.lookupFile(handle)
	if !ok {
		return s.respondStatus(id, fxFailure, "Invalid handle")
	}
	return s.applySetstat(id, "FSETSTAT", fh.file.Name(), attrs)
}

// applySetstat honors only the acmodtime bits, per the Open Question
// size/uid/gid/permission bits are parsed
// but silently ignored.
func (s *Subsystem) applySetstat(id uint32, opcode, abs string, attrs Attrs) error {
	if _, err := os.Stat(abs); err != nil {
		return s.respondStatus(id, fxNoSuchFile, "No such file")
	}
	if attrs.Flags&attrACModTime != 0 {
		atime := time.Unix(int64(attrs.ATime), 0)
		mtime := time.Unix(int64(attrs.MTime), 0)
		if err := os.Chtimes(abs, atime, mtime); err != nil {
			code, msg := fsErrorStatus(err)
			s.recordError(opcode, msg)
			return s.respondStatus(id, code, msg)
		}
	}
	return s.respondStatus(id, fxOK, "")
}

func (s *Subsystem) handleOpendir(id uint32, c *cursor) error {
	path, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	abs := s.jail.toPhysical(path)
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return s.respondStatus(id, fxNoSuchFile, "No such file")
	}

	hid := s.handles.allocate()
	dh := &DirHandle{id: hid, virtual: s.jail.toVirtual(abs), path: abs}
	handle := s.handles.putDir(dh)
	s.audit.DirList(s.cfg.SessionID, s.cfg.Username, dh.virtual)
	return s.send(encodeHandle(id, handle))
}

func (s *Subsystem) handleReaddir(id uint32, c *cursor) error {
	handle, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	dh, ok := s.handles.lookupDir(handle)
	if !ok {
		return s.respondStatus(id, fxFailure, "Invalid handle")
	}
	if dh.yielded {
		return s.respondStatus(id, fxEOF, "")
	}

	entries, err := os.ReadDir(dh.path)
	if err != nil {
		code, msg := fsErrorStatus(err)
		return s.respondStatus(id, code, msg)
	}

	names := make([]nameEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		names = append(names, nameEntry{
			filename: info.Name(),
			longname: longname(info),
			attrs:    attrsFromFileInfo(info),
		})
	}
	dh.yielded = true
	return s.send(encodeName(id, names))
}

func (s *Subsystem) handleRemove(id uint32, c *cursor) error {
	path, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	if !s.cfg.User.CanDelete {
		s.recordError("REMOVE", "Permission denied")
		return s.respondStatus(id, fxPermissionDenied, "")
	}
	abs := s.jail.toPhysical(path)
	if err := os.Remove(abs); err != nil {
		code, msg := fsErrorStatus(err)
		s.recordError("REMOVE", msg)
		return s.respondStatus(id, code, msg)
	}
	s.audit.FileDelete(s.cfg.SessionID, s.cfg.Username, s.jail.toVirtual(abs))
	return s.respondStatus(id, fxOK, "")
}

func (s *Subsystem) handleMkdir(id uint32, c *cursor) error {
	path, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	if _, err := decodeAttrs(c); err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	if !s.cfg.User.CanCreateDir {
		s.recordError("MKDIR", "Permission denied")
		return s.respondStatus(id, fxPermissionDenied, "")
	}
	abs := s.jail.toPhysical(path)
	if err := os.MkdirAll(abs, 0o750); err != nil {
		code, msg := fsErrorStatus(err)
		s.recordError("MKDIR", msg)
		return s.respondStatus(id, code, msg)
	}
	s.audit.DirCreate(s.cfg.SessionID, s.cfg.Username, s.jail.toVirtual(abs))
	return s.respondStatus(id, fxOK, "")
}

func (s *Subsystem) handleRmdir(id uint32, c *cursor) error {
	path, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	if !s.cfg.User.CanDelete {
		s.recordError("RMDIR", "Permission denied")
		return s.respondStatus(id, fxPermissionDenied, "")
	}
	abs := s.jail.toPhysical(path)
	if err := os.Remove(abs); err != nil {
		code, msg := fsErrorStatus(err)
		s.recordError("RMDIR", msg)
		return s.respondStatus(id, code, msg)
	}
	s.audit.DirDelete(s.cfg.SessionID, s.cfg.Username, s.jail.toVirtual(abs))
	return s.respondStatus(id, fxOK, "")
}

func (s *Subsystem) handleRealpath(id uint32, c *cursor) error {
	path, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	abs := s.jail.toPhysical(path)
	virtual := s.jail.toVirtual(abs)
	return s.send(encodeName(id, []nameEntry{{filename: virtual, longname: virtual, attrs: dummyAttrs()}}))
}

func (s *Subsystem) handleRename(id uint32, c *cursor) error {
	oldPath, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	newPath, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	if !s.cfg.User.CanUpload || !s.cfg.User.CanDelete {
		s.recordError("RENAME", "Permission denied")
		return s.respondStatus(id, fxPermissionDenied, "")
	}

	absOld := s.jail.toPhysical(oldPath)
	absNew := s.jail.toPhysical(newPath)
	if _, err := os.Lstat(absOld); err != nil {
		return s.respondStatus(id, fxNoSuchFile, "No such file")
	}
	if err := os.Rename(absOld, absNew); err != nil {
		code, msg := fsErrorStatus(err)
		s.recordError("RENAME", msg)
		return s.respondStatus(id, code, msg)
	}
	s.audit.Rename(s.cfg.SessionID, s.cfg.Username, s.jail.toVirtual(absOld), s.jail.toVirtual(absNew))
	return s.respondStatus(id, fxOK, "")
}

func (s *Subsystem) handleReadlink(id uint32, c *cursor) error {
	path, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	abs := s.jail.toPhysical(path)
	target, err := os.Readlink(abs)
	if err != nil {
		return s.respondStatus(id, fxNoSuchFile, "Not a symbolic link")
	}
	virtual := s.resolveLink(abs, target)
	return s.send(encodeName(id, []nameEntry{{filename: virtual, longname: virtual, attrs: dummyAttrs()}}))
}

func (s *Subsystem) handleSymlink(id uint32, c *cursor) error {
	linkPath, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	target, err := c.str()
	if err != nil {
		return s.respondStatus(id, fxBadMessage, "")
	}
	if !s.cfg.User.CanUpload {
		s.recordError("SYMLINK", "Permission denied")
		return s.respondStatus(id, fxPermissionDenied, "")
	}

	absLink := s.jail.toPhysical(linkPath)
	if err := os.Symlink(target, absLink); err != nil {
		if os.IsPermission(err) {
			const msg = "Symbolic links require administrator privileges"
			s.recordError("SYMLINK", msg)
			return s.respondStatus(id, fxPermissionDenied, msg)
		}
		code, msg := fsErrorStatus(err)
		s.recordError("SYMLINK", msg)
		return s.respondStatus(id, code, msg)
	}
	return s.respondStatus(id, fxOK, "")
}
