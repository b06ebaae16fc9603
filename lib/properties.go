package svn

import (
	"fmt"
)

// Properties holds the svn properties of a revision or node. Deleted
// lists properties removed by a Prop-delta block.
type Properties struct {
	Table   map[string][]byte
	Deleted []string
}

func NewProperties() *Properties {
	return &Properties{Table: make(map[string][]byte)}
}

// ParseProperties decodes a property block: K/V pairs and D deletions
// terminated by PROPS-END.
func ParseProperties(data []byte) (*Properties, error) {
	props := NewProperties()
	r := NewDumpReader(data)
	for {
		if r.HasPrefix(PropsEnd) {
			return props, nil
		}
		if r.AtEOF() {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, PropsEnd)
		}
		if r.HasPrefix("D ") {
			key, err := r.ReadSized('D')
			if err != nil {
				return nil, err
			}
			props.Deleted = append(props.Deleted, string(key))
			continue
		}

		key, err := r.ReadSized('K')
		if err != nil {
			return nil, err
		}
		value, err := r.ReadSized('V')
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		props.Table[string(key)] = value
	}
}

// Has reports whether key is set.
func (p *Properties) Has(key string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Table[key]
	return ok
}

// Get returns the value of key, or nil.
func (p *Properties) Get(key string) []byte {
	if p == nil {
		return nil
	}
	return p.Table[key]
}

// Removes reports whether the block deletes key.
func (p *Properties) Removes(key string) bool {
	if p == nil {
		return false
	}
	for _, deleted := range p.Deleted {
		if deleted == key {
			return true
		}
	}
	return false
}

func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Table)
}
