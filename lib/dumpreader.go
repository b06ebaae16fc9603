package svn

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// DumpReader is a wrapper and series of helpers around a byte slice and size
// that represents a portion of a dump file.
type DumpReader struct {
	buffer []byte
	length int
}

// NewDumpReader allocates a DumpReader object that describes the given byte slice.
func NewDumpReader(source []byte) *DumpReader {
	return &DumpReader{buffer: source, length: len(source)}
}

// Close releases the reference to the buffer.
func (r *DumpReader) Close() {
	r.buffer = nil
	r.length = 0
}

// Offset returns the offset of the first byte in the remaining buffer relative
// to the beginning of the original slice.
func (r *DumpReader) Offset() int {
	return r.length - len(r.buffer)
}

// Newline will attempt to consume a single newline character at the beginning
// of the buffer. Returns true if a newline was consumed, otherwise false.
func (r *DumpReader) Newline() bool {
	if len(r.buffer) > 0 && r.buffer[0] == '\n' {
		r.buffer = r.buffer[1:]
		return true
	}
	return false
}

// SkipNewlines consumes any run of blank lines and returns how many there were.
func (r *DumpReader) SkipNewlines() (n int) {
	for r.Newline() {
		n++
	}
	return n
}

// HasPrefix reports whether the remaining buffer starts with prefix.
func (r *DumpReader) HasPrefix(prefix string) bool {
	return bytes.HasPrefix(r.buffer, []byte(prefix))
}

// Line consumes and returns the next line without its newline. The second
// result is false at end of buffer.
func (r *DumpReader) Line() (line []byte, ok bool) {
	if len(r.buffer) == 0 {
		return nil, false
	}
	newline := bytes.IndexByte(r.buffer, '\n')
	if newline == -1 {
		line, r.buffer = r.buffer, r.buffer[len(r.buffer):]
	} else {
		line, r.buffer = r.buffer[:newline], r.buffer[newline+1:]
	}
	return line, true
}

// LineAfter checks if the first characters in the reader match prefix, if so, it will
// consume the entire line returning the portion after prefix, before the newline.
// If the prefix does not match, the reader is left unchanged and false is returned.
func (r *DumpReader) LineAfter(prefix string) (line string, ok bool) {
	if !r.HasPrefix(prefix) {
		return "", false
	}
	r.buffer = r.buffer[len(prefix):]
	rest, _ := r.Line()
	return string(rest), true
}

// IntAfter will check if the line begins with prefix + ": ", and if so, will consume
// the line and attempt to parse the remainder of the line as an integer. If the prefix
// does not match, the reader is left unchanged and ErrMissingField is returned.
func (r *DumpReader) IntAfter(prefix string) (int, error) {
	str, present := r.LineAfter(prefix + ": ")
	if !present {
		return 0, fmt.Errorf("%w: %s; got: %s", ErrMissingField, prefix, r.Peek(32))
	}
	return strconv.Atoi(str)
}

// Read attempts to consume the specified number of bytes from the reader and returns
// a slice representing them. If the reader does not have enough bytes, ErrUnexpectedEOF
// is returned.
func (r *DumpReader) Read(length int) (data []byte, err error) {
	if length < 0 || length > len(r.buffer) {
		return nil, io.ErrUnexpectedEOF
	}

	data, r.buffer = r.buffer[:length:length], r.buffer[length:]

	return data, nil
}

// ReadSized attempts to read a pascal-sized labelled value from the reader.
// This is where the first byte represents the type of field (K: key, V: Value,
// D: deletion), followed by an ascii representation of the length of the field,
// and a line feed, followed by length bytes of data and another line feed.
// E.g.
//
//	K 10<LF>
//	svn:ignore<LF>
func (r *DumpReader) ReadSized(prefix byte) (value []byte, err error) {
	// First line should be "{prefix} <digits>\n"
	sizeStr, ok := r.LineAfter(string(prefix) + " ")
	if !ok {
		return nil, fmt.Errorf("expected '%c' prefix; got: %s", prefix, r.Peek(48))
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid '%c' size: %w", prefix, err)
	}
	if value, err = r.Read(size); err != nil {
		return nil, err
	}
	if !r.Newline() {
		return nil, fmt.Errorf("%w: after sized %c data: %s", ErrMissingNewline, prefix, string(value))
	}

	return value, nil
}

// AtEOF returns true if there is no data left in the reader.
func (r *DumpReader) AtEOF() bool {
	return len(r.buffer) == 0
}

// Length returns the remaining byte count of the reader.
func (r *DumpReader) Length() int {
	return len(r.buffer)
}

// Peek returns a printable copy of up to length bytes at the front of the
// reader, without consuming them.
func (r *DumpReader) Peek(length int) string {
	if length >= len(r.buffer) {
		return string(r.buffer)
	}
	return string(r.buffer[:length]) + "..."
}
