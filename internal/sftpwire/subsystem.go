package sftpwire

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/sftpcore/server/internal/audit"
)

// errIdleTimeout is returned from Run when the configured idle window
// elapsed with no inbound byte.
var errIdleTimeout = errors.New("sftpwire: idle timeout")

// Subsystem is one instance of the SFTP protocol engine bound to one
// SSH channel, owning its own handle table and byte accumulator. All
// packet processing happens on the single goroutine that calls Run, so
// nothing inside a Subsystem needs its own lock — this is the
// single-writer discipline the rest of this package relies on.
type Subsystem struct {
	cfg     Config
	ch      Channel
	jail    *jail
	handles *handleTable
	audit   audit.Sink
	logger  *log.Logger

	accumulator  []byte
	lastActivity time.Time
}

// New constructs a Subsystem rooted at cfg.RootDirectory, creating the
// directory if it doesn't already exist.
func New(ch Channel, cfg Config, sink audit.Sink) (*Subsystem, error) {
	if err := os.MkdirAll(cfg.RootDirectory, 0o750); err != nil {
		return nil, err
	}
	j, err := newJail(cfg.RootDirectory)
	if err != nil {
		return nil, err
	}
	var logger *log.Logger
	if cfg.EnableLogging {
		logger = log.New(os.Stderr, "sftpwire["+cfg.SessionID+"] ", log.LstdFlags)
	}
	return &Subsystem{
		cfg:     cfg,
		ch:      ch,
		jail:    j,
		handles: newHandleTable(),
		audit:   sink,
		logger:  logger,
	}, nil
}

// Run drives the subsystem until the channel closes, the idle timeout
// elapses, or ctx is cancelled. Every termination path releases every
// open handle and emits a disconnection audit event.
func (s *Subsystem) Run(ctx context.Context) error {
	defer s.teardown()

	chunks := make(chan []byte)
	readErrs := make(chan error, 1)
	go s.readLoop(chunks, readErrs)

	var tick <-chan time.Time
	if s.cfg.IdleTimeoutSeconds > 0 {
		ticker := time.NewTicker(time.Duration(s.cfg.IdleTimeoutSeconds) * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}
	s.lastActivity = time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			s.lastActivity = time.Now()
			if err := s.ingest(chunk); err != nil {
				return err
			}

		case err := <-readErrs:
			return err

		case <-tick:
			if time.Since(s.lastActivity) >= time.Duration(s.cfg.IdleTimeoutSeconds)*time.Second {
				if s.cfg.Metrics != nil {
					s.cfg.Metrics.IncIdleTeardown()
				}
				return errIdleTimeout
			}
		}
	}
}

// readLoop is the single producer feeding Run's select loop; it never
// touches subsystem state directly, keeping all mutation on Run's
// goroutine.
func (s *Subsystem) readLoop(chunks chan<- []byte, errs chan<- error) {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.ch.Read(buf)
		if n > 0 {
			cp := make([]byte, n)
			copy(cp, buf[:n])
			chunks <- cp
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				close(chunks)
			} else {
				errs <- err
			}
			return
		}
	}
}

func (s *Subsystem) teardown() {
	s.handles.closeAll()
	_ = s.ch.Close()
	s.audit.Disconnected(s.cfg.SessionID, s.cfg.Username)
}

// ingest appends one inbound chunk to the accumulator and dispatches
// every complete packet it now contains. Partial packets stay buffered
// until more bytes arrive.
func (s *Subsystem) ingest(chunk []byte) error {
	s.accumulator = append(s.accumulator, chunk...)
	for {
		if len(s.accumulator) < 4 {
			return nil
		}
		l := binary.BigEndian.Uint32(s.accumulator[:4])
		if uint64(len(s.accumulator)) < 4+uint64(l) {
			return nil
		}
		pkt := s.accumulator[4 : 4+l]
		s.accumulator = s.accumulator[4+l:]
		if err := s.dispatch(pkt); err != nil {
			return err
		}
	}
}

// dispatch decodes one packet's opcode and request id, then routes it
// to the matching handler.
func (s *Subsystem) dispatch(pkt []byte) error {
	if len(pkt) == 0 {
		return nil
	}
	op := pkt[0]
	c := newCursor(pkt[1:])

	if op == opInit {
		return s.handleInit(c)
	}

	id, err := c.u32()
	if err != nil {
		// No parseable request id: nothing to correlate a response
		// with, so the packet is dropped.
		return nil
	}

	if s.logger != nil {
		s.logger.Printf("dispatch opcode=%d id=%d", op, id)
	}

	if s.cfg.Metrics == nil {
		return s.route(op, id, c)
	}
	start := time.Now()
	err = s.route(op, id, c)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.cfg.Metrics.ObserveOp(opcodeName(op), status, time.Since(start))
	return err
}

// route dispatches one parsed request to its opcode handler.
func (s *Subsystem) route(op byte, id uint32, c *cursor) error {
	switch op {
	case opOpen:
		return s.handleOpen(id, c)
	case opClose:
		return s.handleClose(id, c)
	case opRead:
		return s.handleRead(id, c)
	case opWrite:
		return s.handleWrite(id, c)
	case opLstat, opStat:
		return s.handleStat(id, c)
	case opFstat:
		return s.handleFstat(id, c)
	case opSetstat:
		return s.handleSetstat(id, c)
	case opFsetstat:
		return s.handleFsetstat(id, c)
	case opOpendir:
		return s.handleOpendir(id, c)
	case opReaddir:
		return s.handleReaddir(id, c)
	case opRemove:
		return s.handleRemove(id, c)
	case opMkdir:
		return s.handleMkdir(id, c)
	case opRmdir:
		return s.handleRmdir(id, c)
	case opRealpath:
		return s.handleRealpath(id, c)
	case opRename:
		return s.handleRename(id, c)
	case opReadlink:
		return s.handleReadlink(id, c)
	case opSymlink:
		return s.handleSymlink(id, c)
	default:
		return s.respondStatus(id, fxOpUnsupported, "")
	}
}

func (s *Subsystem) handleInit(c *cursor) error {
	_, _ = c.u32() // client-advertised version, ignored
	return s.send(encodeVersion())
}

func (s *Subsystem) send(b []byte) error {
	_, err := s.ch.Write(b)
	return err
}

func (s *Subsystem) respondStatus(id, code uint32, message string) error {
	return s.send(encodeStatus(id, code, message))
}

// fsErrorStatus maps a host filesystem error onto the SSH_FX_* status
// table.
func fsErrorStatus(err error) (uint32, string) {
	switch {
	case os.IsNotExist(err):
		return fxNoSuchFile, "No such file"
	case os.IsPermission(err):
		return fxPermissionDenied, "Permission denied"
	default:
		return fxFailure, err.Error()
	}
}

func (s *Subsystem) recordError(opcode, details string) {
	s.audit.Error(s.cfg.SessionID, s.cfg.Username, opcode, details)
}

// resolveLink renders a symlink target as a best-effort virtual path:
// absolute targets virtualize directly when they fall inside the
// jail, relative targets resolve against the link's directory first.
// Anything that doesn't land inside the jail is returned verbatim;
// exact portability of the resolved target is best-effort only.
func (s *Subsystem) resolveLink(linkAbs, target string) string {
	resolved := target
	if !filepath.IsAbs(target) {
		resolved = filepath.Join(filepath.Dir(linkAbs), target)
	}
	resolved = filepath.Clean(resolved)
	if s.jail.contains(resolved) {
		return s.jail.toVirtual(resolved)
	}
	return target
}
