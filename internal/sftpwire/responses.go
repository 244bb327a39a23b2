package sftpwire

// statusMessages gives the default human-readable text for a status
// code when the caller doesn't supply a more specific message.
var statusMessages = map[uint32]string{
	fxOK:               "OK",
	fxEOF:              "EOF",
	fxNoSuchFile:       "No such file",
	fxPermissionDenied: "Permission denied",
	fxFailure:          "Failure",
	fxBadMessage:       "Bad message",
	fxOpUnsupported:    "Operation unsupported",
}

func statusMessage(code uint32) string {
	if m, ok := statusMessages[code]; ok {
		return m
	}
	return "Unknown error"
}

func encodeVersion() []byte {
	return newBuilder(9).byte(opVersion).u32(ProtocolVersion).frame()
}

func encodeStatus(id, code uint32, message string) []byte {
	if message == "" {
		message = statusMessage(code)
	}
	b := newBuilder(32 + len(message))
	b.byte(opStatus).u32(id).u32(code).str(message).str("")
	return b.frame()
}

func encodeHandle(id uint32, handle string) []byte {
	b := newBuilder(16 + len(handle))
	b.byte(opHandle).u32(id).str(handle)
	return b.frame()
}

func encodeData(id uint32, data []byte) []byte {
	b := newBuilder(16 + len(data))
	b.byte(opData).u32(id).bytesField(data)
	return b.frame()
}

type nameEntry struct {
	filename string
	longname string
	attrs    Attrs
}

func encodeName(id uint32, entries []nameEntry) []byte {
	size := 16
	for _, e := range entries {
		size += len(e.filename) + len(e.longname) + 32
	}
	b := newBuilder(size)
	b.byte(opName).u32(id).u32(uint32(len(entries)))
	for _, e := range entries {
		b.str(e.filename).str(e.longname)
		e.attrs.encode(b)
	}
	return b.frame()
}

func encodeAttrs(id uint32, a Attrs) []byte {
	b := newBuilder(32)
	b.byte(opAttrs).u32(id)
	a.encode(b)
	return b.frame()
}
