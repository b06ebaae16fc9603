package svn

import "errors"

var (
	ErrMissingField      = errors.New("missing required field")
	ErrMissingNewline    = errors.New("missing newline")
	ErrInvalidHeader     = errors.New("invalid header")
	ErrUnknownNodeAction = errors.New("unknown node action")
	ErrUnknownNodeKind   = errors.New("unknown node kind")
	ErrDeltaDump         = errors.New("delta dumps are not supported, dump without --deltas")
	ErrRevisionOrder     = errors.New("out-of-sequence revision")
)
