package audit

import (
	"log"
	"time"
)

// now is overridden in tests for deterministic timestamps.
var now = time.Now

// queueCapacity is the bounded audit queue depth: 1000 events per
// session process. Events enqueued past capacity are dropped rather
// than blocking the subsystem's single-writer dispatch loop.
const queueCapacity = 1000

// Queue is a Sink backed by a bounded channel drained by exactly one
// goroutine, preserving per-session emission order.
type Queue struct {
	events chan record
	done   chan struct{}
	writer func(line string)
}

// NewQueue starts the drain goroutine and returns a ready Sink. writer
// defaults to log.Println when nil.
func NewQueue(writer func(line string)) *Queue {
	if writer == nil {
		writer = func(line string) { log.Println(line) }
	}
	q := &Queue{
		events: make(chan record, queueCapacity),
		done:   make(chan struct{}),
		writer: writer,
	}
	go q.drain()
	return q
}

func (q *Queue) drain() {
	defer close(q.done)
	for r := range q.events {
		q.writer(r.format())
	}
}

// Close closes the event channel and waits for the drain goroutine to
// flush everything already enqueued. Calling a Sink method after Close
// panics (send on a closed channel).
func (q *Queue) Close() {
	close(q.events)
	<-q.done
}

// enqueue drops the event silently if the queue is at capacity,
// preserving the subsystem's serialization rather than blocking it.
func (q *Queue) enqueue(r record) {
	select {
	case q.events <- r:
	default:
	}
}

func (q *Queue) Connected(sessionID, username string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionConnected})
}

func (q *Queue) ConnectionFailed(sessionID, username, details string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionConnectionFailed, details: details})
}

func (q *Queue) Disconnected(sessionID, username string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionDisconnected})
}

func (q *Queue) AuthSuccess(sessionID, username string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionAuthSuccess})
}

func (q *Queue) AuthFailed(sessionID, username, details string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionAuthFailed, details: details})
}

func (q *Queue) FileRead(sessionID, username, target string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionFileRead, target: target})
}

func (q *Queue) FileWrite(sessionID, username, target string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionFileWrite, target: target})
}

func (q *Queue) FileDelete(sessionID, username, target string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionFileDelete, target: target})
}

func (q *Queue) DirCreate(sessionID, username, target string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionDirCreate, target: target})
}

func (q *Queue) DirDelete(sessionID, username, target string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionDirDelete, target: target})
}

func (q *Queue) DirList(sessionID, username, target string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionDirList, target: target})
}

func (q *Queue) Rename(sessionID, username, source, target string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionRename, target: source, details: target})
}

func (q *Queue) Error(sessionID, username, opcode, details string) {
	q.enqueue(record{ts: now(), sessionID: sessionID, username: username, action: actionError, target: opcode, details: details})
}

var _ Sink = (*Queue)(nil)
