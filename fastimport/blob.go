package fastimport

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode is the git file mode written in a modification directive.
type Mode uint32

const (
	ModeFile       Mode = 0o100644
	ModeExecutable Mode = 0o100755
	ModeSymlink    Mode = 0o120000
)

func (m Mode) String() string {
	return strconv.FormatUint(uint64(m), 8)
}

// QuotePath renders path for a D or M directive. Paths that git would
// misread, those starting with a quote or holding a line feed, are written
// C-style quoted; all others pass through unchanged.
func QuotePath(path string) string {
	if !strings.HasPrefix(path, `"`) && !strings.ContainsRune(path, '\n') {
		return path
	}
	var b strings.Builder
	b.Grow(len(path) + 4)
	b.WriteByte('"')
	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// FileChange is one pending path operation in a transaction.
type FileChange struct {
	Path   string
	Delete bool
	Mode   Mode // Unused for deletions.
	Mark   Mark // Blob holding the content; unused for deletions.
}

// blobWriter is the content sink returned by AddFile. It accepts exactly
// the number of bytes declared in the blob header.
type blobWriter struct {
	repo      *Repository
	path      string
	mark      Mark
	remaining int64
	closed    bool
}

func (b *blobWriter) Write(p []byte) (int, error) {
	if b.closed {
		return 0, fmt.Errorf("%w: blob %s for %s", ErrTransactionClosed, b.mark, b.path)
	}
	if int64(len(p)) > b.remaining {
		b.closed = true
		return 0, b.repo.poison(fmt.Errorf("%w: %s: %d bytes past the end",
			ErrContentOverflow, b.path, int64(len(p))-b.remaining))
	}
	if err := b.repo.write(p); err != nil {
		return 0, err
	}
	b.remaining -= int64(len(p))
	b.repo.stats.BlobBytes += int64(len(p))
	return len(p), nil
}

// Close completes the blob. It fails if fewer bytes were written than
// declared, which leaves the stream misaligned.
func (b *blobWriter) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.remaining != 0 {
		return b.repo.poison(fmt.Errorf("%w: %s: %d bytes missing", ErrShortWrite, b.path, b.remaining))
	}
	return nil
}
