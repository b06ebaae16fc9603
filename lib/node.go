package svn

import (
	"fmt"
)

type NodeKind int

const (
	NodeKindNone NodeKind = iota // Deletions carry no kind.
	NodeKindFile
	NodeKindDir
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindFile:
		return "file"
	case NodeKindDir:
		return "dir"
	}
	return "-"
}

type NodeAction int

const (
	NodeActionChange NodeAction = iota
	NodeActionAdd
	NodeActionDelete
	NodeActionReplace
)

var nodeActions = map[string]NodeAction{
	"change":  NodeActionChange,
	"add":     NodeActionAdd,
	"delete":  NodeActionDelete,
	"replace": NodeActionReplace,
}

func (a NodeAction) String() string {
	for name, action := range nodeActions {
		if action == a {
			return name
		}
	}
	return "?"
}

// Node is one path operation within a revision. Text, when present, is the
// full file content and aliases the dump's memory.
type Node struct {
	Path   string
	Kind   NodeKind
	Action NodeAction

	FromRev  int
	FromPath string

	Properties *Properties // nil if the node carries no property block.
	PropDelta  bool
	Text       []byte
	HasText    bool
}

// Copied reports whether the node has copy-from history.
func (n *Node) Copied() bool {
	return n.FromPath != ""
}

func (n *Node) String() string {
	return fmt.Sprintf("%s:%s:%s", n.Action, n.Kind, n.Path)
}

// NewNode reads one node record, headers, properties and text.
func NewNode(r *DumpReader) (*Node, error) {
	headers, err := NewHeaders(r)
	if err != nil {
		return nil, err
	}

	node := &Node{}
	if node.Path, err = headers.String(NodePathHeader); err != nil {
		return nil, err
	}

	switch kind := headers.Get(NodeKindHeader); kind {
	case "file":
		node.Kind = NodeKindFile
	case "dir":
		node.Kind = NodeKindDir
	case "":
		node.Kind = NodeKindNone
	default:
		return nil, fmt.Errorf("%s: %w: %s", node.Path, ErrUnknownNodeKind, kind)
	}

	action, ok := nodeActions[headers.Get(NodeActionHeader)]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", node.Path, ErrUnknownNodeAction, headers.Get(NodeActionHeader))
	}
	node.Action = action

	if headers.Has(NodeCopyfromRevHeader) {
		if node.FromRev, err = headers.Int(NodeCopyfromRevHeader); err != nil {
			return nil, fmt.Errorf("%s: %w", node.Path, err)
		}
		if node.FromPath, err = headers.String(NodeCopyfromPathHeader); err != nil {
			return nil, fmt.Errorf("%s: %w", node.Path, err)
		}
	}

	if headers.Get(TextDeltaHeader) == "true" {
		return nil, fmt.Errorf("%s: %w", node.Path, ErrDeltaDump)
	}
	node.PropDelta = headers.Get(PropDeltaHeader) == "true"

	propLen, err := headers.OptionalInt(PropContentLengthHeader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Path, err)
	}
	textLen, err := headers.OptionalInt(TextContentLengthHeader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Path, err)
	}
	contentLen, err := headers.OptionalInt(ContentLengthHeader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", node.Path, err)
	}

	if headers.Has(PropContentLengthHeader) {
		data, err := r.Read(propLen)
		if err != nil {
			return nil, fmt.Errorf("%s: properties: %w", node.Path, err)
		}
		if node.Properties, err = ParseProperties(data); err != nil {
			return nil, fmt.Errorf("%s: properties: %w", node.Path, err)
		}
	}

	if headers.Has(TextContentLengthHeader) {
		if node.Text, err = r.Read(textLen); err != nil {
			return nil, fmt.Errorf("%s: text: %w", node.Path, err)
		}
		node.HasText = true
	}

	// Anything the content length covers beyond props and text is skipped.
	if extra := contentLen - propLen - textLen; extra > 0 {
		if _, err := r.Read(extra); err != nil {
			return nil, fmt.Errorf("%s: content: %w", node.Path, err)
		}
	}

	return node, nil
}
