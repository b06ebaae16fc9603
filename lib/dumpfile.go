package svn

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// DumpFile encapsulates the key attributes of an svn dump file.
type DumpFile struct {
	Path       string
	DumpHeader *DumpHeader
	Revisions  []*Revision

	Data mmap.MMap

	reader *DumpReader
}

// Close releases resources held by the dump. Note: This will invalidate
// any slices referencing the data since it releases the mmap.
func (df *DumpFile) Close() error {
	df.reader.Close()
	df.Revisions = nil
	if df.Data == nil {
		return nil
	}
	err := df.Data.Unmap()
	df.Data = nil
	return err
}

// GetHead returns the highest revision number represented by the dump, or
// -1 if no revisions were loaded.
func (df *DumpFile) GetHead() int {
	if len(df.Revisions) == 0 {
		return -1
	}
	return df.Revisions[len(df.Revisions)-1].Number
}

// checkValidSource tests that a mapped file looks like an actual, valid svn dump.
// Also checks that the user created the dump with "-F" by testing whether the
// first line has windows (CRLF) line endings. The OS adds these when svnadmin
// writes to the console and invalidates all of the headers by making the byte
// counts wrong (svnadmin is unaware these characters are being added).
func checkValidSource(source []byte) error {
	if !bytes.HasPrefix(source, []byte(VersionStringHeader+":")) {
		return errors.New("missing dump format header, not an svnadmin dump file?")
	}

	// Now check that there's a newline on this line, but don't look too far.
	limit := len(VersionStringHeader) * 2
	if limit > len(source) {
		limit = len(source)
	}
	lf := bytes.IndexByte(source[:limit], '\n')
	if lf < len(VersionStringHeader) {
		return errors.New("unrecognized dump file format, not an svnadmin dump file?")
	}

	// Great, just check there's no <cr> caused by outputting it to a CRLF console.
	if cr := bytes.IndexByte(source[:lf], '\r'); cr != -1 {
		return errors.New("windows line-ending translations detected, on windows use `svnadmin dump -F filename` rather than redirecting output")
	}

	return nil
}

// NewDumpFile creates a new DumpFile representation of a disk file,
// mapping it into memory and parsing the header.
func NewDumpFile(path string) (dump *DumpFile, err error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%s: empty file, not an svnadmin dump file?", path)
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}

	dump, err = NewDumpData(path, data)
	if err != nil {
		_ = data.Unmap()
		return nil, err
	}
	dump.Data = data
	return dump, nil
}

// NewDumpData parses the header of a dump already held in memory.
func NewDumpData(path string, data []byte) (dump *DumpFile, err error) {
	if err := checkValidSource(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dump = &DumpFile{Path: path}
	dump.reader = NewDumpReader(data)
	if dump.DumpHeader, err = NewDumpHeader(dump.reader); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Start the list big so it doesn't have to spend a lot of time growing.
	dump.Revisions = make([]*Revision, 0, 1024)

	return dump, nil
}

// NextRevision attempts to read the next revision from the dump file, or
// returns io.EOF if the end of file has been reached.
func (df *DumpFile) NextRevision() (*Revision, error) {
	rev, err := NewRevision(df.reader)
	if err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, fmt.Errorf("%s: offset %d: %w", df.Path, df.reader.Offset(), err)
	}

	if len(df.Revisions) > 0 && rev.Number <= df.GetHead() {
		return rev, fmt.Errorf("%s: %w: r%d after r%d", df.Path, ErrRevisionOrder, rev.Number, df.GetHead())
	}

	df.Revisions = append(df.Revisions, rev)

	return rev, nil
}

// LoadRevisions reads every remaining revision.
func (df *DumpFile) LoadRevisions() error {
	for {
		if _, err := df.NextRevision(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
