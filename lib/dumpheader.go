package svn

import (
	"fmt"

	"github.com/google/uuid"
)

// DumpHeader represents the premable of the dump, which denotes the dump format number
// and the UUID of the repository.
type DumpHeader struct {
	Format    int
	ReposUUID uuid.UUID
}

// NewDumpHeader attempts to parse preamble from a dump file and returns a DumpHeader
// if the premable is valid.
func NewDumpHeader(r *DumpReader) (h *DumpHeader, err error) {
	h = &DumpHeader{}

	//g: FormatHeader  <- FormatVersion Newline [UUID Newline]? Newline
	//g: FormatVersion <- SVN-fs-dump-format-version: <digits>
	if h.Format, err = r.IntAfter(VersionStringHeader); err != nil {
		return nil, fmt.Errorf("missing/invalid %s header, not an svn dump file? %w", VersionStringHeader, err)
	}
	if !r.Newline() {
		return nil, fmt.Errorf("missing newline after %s header", VersionStringHeader)
	}

	//g: UUID          <- UUID: <uuid>
	if h.Format >= 2 {
		if text, ok := r.LineAfter(UUIDHeader + ": "); ok {
			if h.ReposUUID, err = uuid.Parse(text); err != nil {
				return nil, fmt.Errorf("%w: %s: %s", ErrInvalidHeader, UUIDHeader, err)
			}
			if !r.Newline() {
				return nil, fmt.Errorf("missing newline after %s header", UUIDHeader)
			}
		}
	}

	return h, nil
}
