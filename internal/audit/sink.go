// Package audit implements an asynchronous, bounded, ordered audit
// trail: one append-only queue per session process, drained by a
// single writer, dropping new events rather than blocking the
// subsystem's single-writer dispatch loop when full.
package audit

// Sink is the fire-and-forget audit collaborator contract. Every
// method is safe to call from the subsystem's dispatch loop without
// blocking on I/O.
type Sink interface {
	Connected(sessionID, username string)
	ConnectionFailed(sessionID, username, details string)
	Disconnected(sessionID, username string)
	AuthSuccess(sessionID, username string)
	AuthFailed(sessionID, username, details string)
	FileRead(sessionID, username, target string)
	FileWrite(sessionID, username, target string)
	FileDelete(sessionID, username, target string)
	DirCreate(sessionID, username, target string)
	DirDelete(sessionID, username, target string)
	DirList(sessionID, username, target string)
	Rename(sessionID, username, source, target string)
	Error(sessionID, username, opcode, details string)
}
