package svn

import (
	"fmt"
	"io"
	"time"
)

type Revision struct {
	Number     int         // Repository's number for this revision.
	Headers    *Headers    // Table of headers for this revision.
	Properties *Properties // Table of svn:properties attached to the revision.
	Nodes      []*Node     // The actual file/directory changes in the revision.
}

// NewRevision reads the next revision record and all of its nodes. Returns
// io.EOF when the reader is exhausted.
func NewRevision(r *DumpReader) (rev *Revision, err error) {
	r.SkipNewlines()
	if r.AtEOF() {
		return nil, io.EOF
	}

	rev = &Revision{}
	if rev.Headers, err = NewHeaders(r); err != nil {
		return nil, err
	}

	// Extract the revision number.
	if rev.Number, err = rev.Headers.Int(RevisionNumberHeader); err != nil {
		return nil, err
	}

	// Find the length of the property data.
	propLen, err := rev.Headers.OptionalInt(PropContentLengthHeader)
	if err != nil {
		return nil, fmt.Errorf("r%d: %w", rev.Number, err)
	}
	if propLen > 0 {
		data, err := r.Read(propLen)
		if err != nil {
			return nil, fmt.Errorf("r%d: properties: %w", rev.Number, err)
		}
		if rev.Properties, err = ParseProperties(data); err != nil {
			return nil, fmt.Errorf("r%d: properties: %w", rev.Number, err)
		}
	} else {
		rev.Properties = NewProperties()
	}

	for {
		r.SkipNewlines()
		if !r.HasPrefix(NodePathHeader + ": ") {
			break
		}
		node, err := NewNode(r)
		if err != nil {
			return nil, fmt.Errorf("r%d: %w", rev.Number, err)
		}
		rev.Nodes = append(rev.Nodes, node)
	}

	return rev, nil
}

// Author is the svn:author of the revision, possibly empty.
func (r *Revision) Author() string {
	return string(r.Properties.Get(PropAuthor))
}

// Log is the svn:log message of the revision.
func (r *Revision) Log() []byte {
	return r.Properties.Get(PropLog)
}

// Date parses svn:date. Revisions without a date, such as r0 of some dumps,
// return the zero time.
func (r *Revision) Date() (time.Time, error) {
	value := r.Properties.Get(PropDate)
	if len(value) == 0 {
		return time.Time{}, nil
	}
	when, err := time.Parse(time.RFC3339Nano, string(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("r%d: %s: %w", r.Number, PropDate, err)
	}
	return when, nil
}
