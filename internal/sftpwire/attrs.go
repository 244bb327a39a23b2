package sftpwire

import "os"

// Attrs is the self-describing, flag-gated file metadata tuple defined
// by draft-ietf-secsh-filexfer-02 section 5.
type Attrs struct {
	Flags       uint32
	Size        uint64
	UID, GID    uint32
	Permissions uint32
	ATime       uint32
	MTime       uint32
}

// decodeAttrs parses an ATTRS structure out of a request payload,
// honoring only the bits the flags word sets.
func decodeAttrs(c *cursor) (Attrs, error) {
	var a Attrs
	flags, err := c.u32()
	if err != nil {
		return a, err
	}
	a.Flags = flags

	if flags&attrSize != 0 {
		if a.Size, err = c.u64(); err != nil {
			return a, err
		}
	}
	if flags&attrUIDGID != 0 {
		if a.UID, err = c.u32(); err != nil {
			return a, err
		}
		if a.GID, err = c.u32(); err != nil {
			return a, err
		}
	}
	if flags&attrPermissions != 0 {
		if a.Permissions, err = c.u32(); err != nil {
			return a, err
		}
	}
	if flags&attrACModTime != 0 {
		if a.ATime, err = c.u32(); err != nil {
			return a, err
		}
		if a.MTime, err = c.u32(); err != nil {
			return a, err
		}
	}
	return a, nil
}

// encode appends this Attrs to b, gated by a.Flags exactly as decoded.
func (a Attrs) encode(b *builder) {
	b.u32(a.Flags)
	if a.Flags&attrSize != 0 {
		b.u64(a.Size)
	}
	if a.Flags&attrUIDGID != 0 {
		b.u32(a.UID)
		b.u32(a.GID)
	}
	if a.Flags&attrPermissions != 0 {
		b.u32(a.Permissions)
	}
	if a.Flags&attrACModTime != 0 {
		b.u32(a.ATime)
		b.u32(a.MTime)
	}
}

// dummyAttrs is the zero-times attrs block REALPATH and READLINK
// responses are permitted to carry.
func dummyAttrs() Attrs {
	return Attrs{Flags: 0}
}

// attrsFromFileInfo synthesizes the default ATTRS for a stat/listing
// response: flags 0x0F, real size for files (0 for directories), uid
// and gid 0, and the fixed permission words this engine
// mandates.
func attrsFromFileInfo(fi os.FileInfo) Attrs {
	perm := uint32(wireFilePerm)
	var size uint64
	if fi.IsDir() {
		perm = wireDirPerm
	} else {
		size = uint64(fi.Size())
	}
	mt := uint32(fi.ModTime().Unix())
	return Attrs{
		Flags:       attrSize | attrUIDGID | attrPermissions | attrACModTime,
		Size:        size,
		UID:         0,
		GID:         0,
		Permissions: perm,
		ATime:       mt,
		MTime:       mt,
	}
}
