package sftpwire

import (
	"io"
	"time"
)

// Channel is the narrow transport collaborator contract: an ordered,
// reliable byte stream the subsystem reads requests from and writes
// responses to, plus the ability to tear the channel down. Satisfied
// directly by golang.org/x/crypto/ssh's ssh.Channel, but the subsystem
// depends only on this interface so it stays testable over an
// in-memory pipe.
type Channel interface {
	io.Reader
	io.Writer
	io.Closer
}

// Permissions answers the capability questions a
// UserAccount exposes to the core. The core never sees credentials,
// only these five fields, resolved once at subsystem construction.
type Permissions struct {
	CanUpload            bool
	CanDownload          bool
	CanDelete            bool
	CanCreateDir         bool
	UploadCeilingPerUser uint64 // 0 = unlimited
}

// Metrics receives optional per-subsystem instrumentation. A Subsystem
// with a nil Metrics simply skips every call.
type Metrics interface {
	ObserveOp(opcode, status string, dur time.Duration)
	AddBytesIn(n int64)
	AddBytesOut(n int64)
	IncQuotaExceeded()
	IncIdleTeardown()
}

// Config configures one subsystem instance: the "Configurable options"
// table plus an optional Metrics hook.
type Config struct {
	RootDirectory      string
	EnableLogging      bool
	User               Permissions
	SessionID          string
	Username           string
	MaxUploadBytes     uint64 // 0 = unlimited
	IdleTimeoutSeconds int    // 0 = no timeout
	Metrics            Metrics
}

// effectiveUploadCeiling is the smallest nonzero of the per-subsystem
// and per-user byte caps; zero means unlimited
// invariant 4 and the GLOSSARY's "Upload ceiling" entry.
func (c Config) effectiveUploadCeiling() uint64 {
	sub := c.MaxUploadBytes
	user := c.User.UploadCeilingPerUser
	switch {
	case sub == 0:
		return user
	case user == 0:
		return sub
	case sub < user:
		return sub
	default:
		return user
	}
}
