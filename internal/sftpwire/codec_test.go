package sftpwire

import "testing"

func TestCursorU32RoundTrip(t *testing.T) {
	b := newBuilder(8).u32(0xDEADBEEF)
	c := newCursor(b.buf)
	got, err := c.u32()
	if err != nil {
		t.Fatalf("u32() error = %v", err)
	}
	if got != 0xDEADBEEF {
		t.Fatalf("u32() = %#x, want %#x", got, 0xDEADBEEF)
	}
}

func TestCursorU64RoundTrip(t *testing.T) {
	b := newBuilder(8).u64(1 << 40)
	c := newCursor(b.buf)
	got, err := c.u64()
	if err != nil {
		t.Fatalf("u64() error = %v", err)
	}
	if got != 1<<40 {
		t.Fatalf("u64() = %d, want %d", got, 1<<40)
	}
}

func TestCursorStringRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"ascii", "hello.txt"},
		{"utf8", "résumé.pdf"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newBuilder(16).str(tc.in)
			c := newCursor(b.buf)
			got, err := c.str()
			if err != nil {
				t.Fatalf("str() error = %v", err)
			}
			if got != tc.in {
				t.Fatalf("str() = %q, want %q", got, tc.in)
			}
			if c.off != len(b.buf) {
				t.Fatalf("consumed %d bytes, want %d", c.off, len(b.buf))
			}
		})
	}
}

func TestCursorTruncatedFieldsFailDeterministically(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		op   func(c *cursor) error
	}{
		{"u32 short", []byte{0x01, 0x02}, func(c *cursor) error { _, err := c.u32(); return err }},
		{"u64 short", []byte{0x01, 0x02, 0x03}, func(c *cursor) error { _, err := c.u64(); return err }},
		{"string length short", []byte{0x00}, func(c *cursor) error { _, err := c.str(); return err }},
		{"string body short", []byte{0x00, 0x00, 0x00, 0x05, 'h', 'i'}, func(c *cursor) error { _, err := c.str(); return err }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newCursor(tc.buf)
			if err := tc.op(c); err == nil {
				t.Fatal("expected a BadMessage error, got nil")
			}
		})
	}
}

func TestBuilderFrameLengthPrefix(t *testing.T) {
	b := newBuilder(4).byte(opVersion).u32(3)
	framed := b.frame()
	if len(framed) != 4+5 {
		t.Fatalf("frame() length = %d, want %d", len(framed), 9)
	}
	l := uint32(framed[0])<<24 | uint32(framed[1])<<16 | uint32(framed[2])<<8 | uint32(framed[3])
	if int(l) != len(framed)-4 {
		t.Fatalf("length prefix = %d, want %d", l, len(framed)-4)
	}
}

func TestEncodeStatusDefaultMessage(t *testing.T) {
	pkt := encodeStatus(7, fxEOF, "")
	c := newCursor(pkt[4:])
	op, _ := c.byte()
	if op != opStatus {
		t.Fatalf("opcode = %d, want %d", op, opStatus)
	}
	id, _ := c.u32()
	if id != 7 {
		t.Fatalf("id = %d, want 7", id)
	}
	code, _ := c.u32()
	if code != fxEOF {
		t.Fatalf("code = %d, want %d", code, fxEOF)
	}
	msg, _ := c.str()
	if msg != statusMessage(fxEOF) {
		t.Fatalf("message = %q, want %q", msg, statusMessage(fxEOF))
	}
}
