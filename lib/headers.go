package svn

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Headers are a simple RFC-822 style collection of headers as a map for
// ease of access, keeping the original order.
type Headers struct {
	index []string          // Preserve the order of the keys.
	table map[string]string // Map keys to values.
}

// NewHeaders reads a block of "Key: value" lines up to and including the
// blank line that terminates it.
func NewHeaders(r *DumpReader) (*Headers, error) {
	h := &Headers{
		index: make([]string, 0, 8),
		table: make(map[string]string, 8),
	}

	for {
		line, ok := r.Line()
		if !ok {
			if len(h.index) == 0 {
				return h, nil
			}
			return nil, fmt.Errorf("%w: unterminated header block", ErrMissingNewline)
		}

		// Once we see a line with 0 length, we're at the end of the block.
		if len(line) == 0 {
			break
		}

		key, value, err := ReadHeader(line)
		if err != nil {
			return nil, err
		}
		if _, dup := h.table[key]; !dup {
			h.index = append(h.index, key)
		}
		h.table[key] = value
	}

	return h, nil
}

var headerSplit = []byte{':', ' '}

// ReadHeader splits an RFC-822 style header line into key and value.
func ReadHeader(line []byte) (key string, value string, err error) {
	colon := bytes.Index(line, headerSplit)
	if colon == -1 {
		lineText := strings.ReplaceAll(string(line), "\r", "\\r")
		return "", "", fmt.Errorf("%w: malformed header line: %s", ErrInvalidHeader, lineText)
	}

	key, value = string(line[:colon]), string(line[colon+len(headerSplit):])

	return key, value, nil
}

func (h *Headers) Has(key string) bool {
	_, ok := h.table[key]
	return ok
}

func (h *Headers) Int(key string) (int, error) {
	value, ok := h.table[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	ret, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %s", ErrInvalidHeader, key, err)
	}
	return ret, nil
}

// OptionalInt returns the integer value of key, or 0 if it is absent.
func (h *Headers) OptionalInt(key string) (int, error) {
	if !h.Has(key) {
		return 0, nil
	}
	return h.Int(key)
}

func (h *Headers) String(key string) (string, error) {
	value, ok := h.table[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return value, nil
}

// Get returns the value of key or "" if absent.
func (h *Headers) Get(key string) string {
	return h.table[key]
}

func (h *Headers) Keys() []string {
	return append([]string{}, h.index...)
}

func (h *Headers) Len() int {
	return len(h.index)
}
