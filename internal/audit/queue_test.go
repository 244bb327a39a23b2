package audit

import (
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRecordFormatUsesFallbackDash(t *testing.T) {
	r := record{
		ts:        time.Date(2026, 8, 3, 12, 30, 45, 123_000_000, time.UTC),
		sessionID: "sess1",
		username:  "alice",
		action:    actionFileWrite,
		target:    "",
		details:   "",
	}
	got := r.format()
	want := "2026-08-03 12:30:45.123|sess1|alice|FILE_WRITE|-|-"
	if got != want {
		t.Fatalf("format() = %q, want %q", got, want)
	}
}

func TestRecordFormatPopulatesTargetAndDetails(t *testing.T) {
	r := record{
		ts:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		sessionID: "sess2",
		username:  "bob",
		action:    actionRename,
		target:    "/a.txt",
		details:   "/b.txt",
	}
	got := r.format()
	if !strings.Contains(got, "|RENAME|/a.txt|/b.txt") {
		t.Fatalf("format() = %q, want it to contain target and details", got)
	}
}

func TestQueuePreservesEmissionOrder(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	q := NewQueue(func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	})

	for i := 0; i < 50; i++ {
		q.FileRead("sess", "user", "/f"+strconv.Itoa(i))
	}
	q.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 50 {
		t.Fatalf("drained %d events, want 50", len(lines))
	}
	for i, line := range lines {
		if want := "|FILE_READ|/f" + strconv.Itoa(i) + "|"; !strings.Contains(line, want) {
			t.Fatalf("line %d = %q, want it to contain %q", i, line, want)
		}
	}
}

func TestQueueDropsOnOverflowWithoutBlocking(t *testing.T) {
	// The writer blocks on the first event until release is closed, so
	// the channel fills to queueCapacity; further enqueues must drop
	// rather than block the calling goroutine.
	blocked := make(chan struct{})
	release := make(chan struct{})
	q := NewQueue(func(line string) {
		closeOnce(blocked)
		<-release
	})

	for i := 0; i < queueCapacity+10; i++ {
		done := make(chan struct{})
		go func() {
			q.FileRead("sess", "user", "/f")
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("enqueue %d blocked; overflow must drop, not block", i)
		}
	}

	close(release)
	q.Close()
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func TestSinkInterfaceSatisfiedByQueue(t *testing.T) {
	var _ Sink = (*Queue)(nil)
}
