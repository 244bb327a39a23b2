package audit

import (
	"strings"
	"time"
)

// action is one of the fixed audit action tags.
type action string

const (
	actionConnected        action = "CONNECTED"
	actionConnectionFailed action = "CONNECTION_FAILED"
	actionDisconnected     action = "DISCONNECTED"
	actionAuthSuccess      action = "AUTH_SUCCESS"
	actionAuthFailed       action = "AUTH_FAILED"
	actionFileRead         action = "FILE_READ"
	actionFileWrite        action = "FILE_WRITE"
	actionFileDelete       action = "FILE_DELETE"
	actionDirCreate        action = "DIR_CREATE"
	actionDirDelete        action = "DIR_DELETE"
	actionDirList          action = "DIR_LIST"
	actionRename           action = "RENAME"
	actionError            action = "ERROR"
)

// record is one audit line, ordered by emission within a session.
type record struct {
	ts        time.Time
	sessionID string
	username  string
	action    action
	target    string
	details   string
}

// fallback renders "-" for an empty field.
func fallback(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// format renders the pipe-delimited on-disk line:
//
//	YYYY-MM-DD HH:MM:SS.mmm|<sessionId>|<username>|<ACTION>|<target|->|<details|->
func (r record) format() string {
	var b strings.Builder
	b.WriteString(r.ts.UTC().Format("2006-01-02 15:04:05.000"))
	b.WriteByte('|')
	b.WriteString(fallback(r.sessionID))
	b.WriteByte('|')
	b.WriteString(fallback(r.username))
	b.WriteByte('|')
	b.WriteString(string(r.action))
	b.WriteByte('|')
	b.WriteString(fallback(r.target))
	b.WriteByte('|')
	b.WriteString(fallback(r.details))
	return b.String()
}
