package sftpwire

import (
	"encoding/binary"
	"fmt"
)

// errBadMessage reports a packet that ran out of bytes mid-decode.
// It maps to SSH_FX_BAD_MESSAGE wherever a response is still possible.
type errBadMessage struct {
	what string
}

func (e *errBadMessage) Error() string {
	return fmt.Sprintf("sftpwire: bad message: %s", e.what)
}

func badMessage(what string) error { return &errBadMessage{what: what} }

// cursor reads big-endian fixed-width and length-prefixed fields out of
// a byte slice, tracking its own offset.
type cursor struct {
	buf []byte
	off int
}

func newCursor(b []byte) *cursor { return &cursor{buf: b} }

func (c *cursor) remaining() int { return len(c.buf) - c.off }

func (c *cursor) byte() (byte, error) {
	if c.remaining() < 1 {
		return 0, badMessage("truncated byte")
	}
	b := c.buf[c.off]
	c.off++
	return b, nil
}

func (c *cursor) u32() (uint32, error) {
	if c.remaining() < 4 {
		return 0, badMessage("truncated uint32")
	}
	v := binary.BigEndian.Uint32(c.buf[c.off : c.off+4])
	c.off += 4
	return v, nil
}

func (c *cursor) u64() (uint64, error) {
	if c.remaining() < 8 {
		return 0, badMessage("truncated uint64")
	}
	v := binary.BigEndian.Uint64(c.buf[c.off : c.off+8])
	c.off += 8
	return v, nil
}

// str decodes a length-prefixed UTF-8 string: uint32 length || bytes.
func (c *cursor) str() (string, error) {
	n, err := c.u32()
	if err != nil {
		return "", badMessage("truncated string length")
	}
	if c.remaining() < int(n) {
		return "", badMessage("truncated string body")
	}
	s := string(c.buf[c.off : c.off+int(n)])
	c.off += int(n)
	return s, nil
}

// rest returns every byte not yet consumed.
func (c *cursor) rest() []byte {
	b := c.buf[c.off:]
	c.off = len(c.buf)
	return b
}

// builder appends big-endian fixed-width and length-prefixed fields to
// a growing byte buffer.
type builder struct {
	buf []byte
}

func newBuilder(sizeHint int) *builder {
	return &builder{buf: make([]byte, 0, sizeHint)}
}

func (b *builder) byte(v byte) *builder {
	b.buf = append(b.buf, v)
	return b
}

func (b *builder) u32(v uint32) *builder {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *builder) u64(v uint64) *builder {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

// str appends a length-prefixed string. An empty string encodes as a
// zero-length field.
func (b *builder) str(s string) *builder {
	b.u32(uint32(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

func (b *builder) bytesField(p []byte) *builder {
	b.u32(uint32(len(p)))
	b.buf = append(b.buf, p...)
	return b
}

// frame prefixes the accumulated payload with its 4-byte big-endian
// length, producing one complete on-wire packet.
func (b *builder) frame() []byte {
	out := make([]byte, 4+len(b.buf))
	binary.BigEndian.PutUint32(out, uint32(len(b.buf)))
	copy(out[4:], b.buf)
	return out
}
