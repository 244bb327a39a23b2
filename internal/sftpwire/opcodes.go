// Package sftpwire implements the wire-level SFTP version 3 protocol
// engine: packet framing, request dispatch, handle lifetime, path
// jailing and attribute encoding, as described in
// draft-ietf-secsh-filexfer-02.
package sftpwire

import "fmt"

// ProtocolVersion is the only SFTP version this engine speaks.
const ProtocolVersion = 3

// Request opcodes (draft-ietf-secsh-filexfer-02 section 3).
const (
	opInit     = 1
	opVersion  = 2
	opOpen     = 3
	opClose    = 4
	opRead     = 5
	opWrite    = 6
	opLstat    = 7
	opFstat    = 8
	opSetstat  = 9
	opFsetstat = 10
	opOpendir  = 11
	opReaddir  = 12
	opRemove   = 13
	opMkdir    = 14
	opRmdir    = 15
	opRealpath = 16
	opStat     = 17
	opRename   = 18
	opReadlink = 19
	opSymlink  = 20

	opStatus = 101
	opHandle = 102
	opData   = 103
	opName   = 104
	opAttrs  = 105
)

// opcodeName maps a request opcode to its protocol name, used in audit
// records and debug tracing.
func opcodeName(op byte) string {
	switch op {
	case opInit:
		return "INIT"
	case opOpen:
		return "OPEN"
	case opClose:
		return "CLOSE"
	case opRead:
		return "READ"
	case opWrite:
		return "WRITE"
	case opLstat:
		return "LSTAT"
	case opFstat:
		return "FSTAT"
	case opSetstat:
		return "SETSTAT"
	case opFsetstat:
		return "FSETSTAT"
	case opOpendir:
		return "OPENDIR"
	case opReaddir:
		return "READDIR"
	case opRemove:
		return "REMOVE"
	case opMkdir:
		return "MKDIR"
	case opRmdir:
		return "RMDIR"
	case opRealpath:
		return "REALPATH"
	case opStat:
		return "STAT"
	case opRename:
		return "RENAME"
	case opReadlink:
		return "READLINK"
	case opSymlink:
		return "SYMLINK"
	default:
		return fmt.Sprintf("OPCODE_%d", op)
	}
}

// Status codes (SSH_FX_*).
const (
	fxOK               = 0
	fxEOF              = 1
	fxNoSuchFile       = 2
	fxPermissionDenied = 3
	fxFailure          = 4
	fxBadMessage       = 5
	fxOpUnsupported    = 8
)

// pflag holds the OPEN request's pflags bitfield.
type pflag uint32

const (
	pflagRead     pflag = 0x01
	pflagWrite    pflag = 0x02
	pflagAppend   pflag = 0x08
	pflagCreate   pflag = 0x10
	pflagTruncate pflag = 0x20
)

// Attrs flag bits.
const (
	attrSize        = 0x01
	attrUIDGID      = 0x02
	attrPermissions = 0x04
	attrACModTime   = 0x08
)

// wireDirPerm and wireFilePerm are the raw permission words used for
// synthesized ATTRS on directories and regular files.
const (
	wireDirPerm  = 0x41FD
	wireFilePerm = 0x81A4
)
