package fastimport

import (
	"fmt"
	"strings"
)

// HeadsPrefix is the namespace every branch ref is emitted under.
const HeadsPrefix = "refs/heads/"

// BranchSpec declares a branch when a repository is constructed.
type BranchSpec struct {
	Name string // Branch name, optionally already qualified with refs/heads/.
	From string // Origin ref for the one-time ancestry directive, may be empty.
}

// Branch is the per-repository state of one destination branch.
type Branch struct {
	Name    string
	From    string
	Created bool // Set once the first commit on the branch was emitted.
}

// Ref returns the fully qualified ref of the branch.
func (b *Branch) Ref() string {
	return QualifyRef(b.Name)
}

// QualifyRef places name under refs/heads/ unless it already is.
func QualifyRef(name string) string {
	if strings.HasPrefix(name, HeadsPrefix) {
		return name
	}
	return HeadsPrefix + name
}

// BranchTable maps branch names to their state. The set of names is fixed
// at construction; only the Created flag ever changes.
type BranchTable struct {
	branches map[string]*Branch
	order    []string
}

// NewBranchTable builds a table from the declared branches.
func NewBranchTable(specs []BranchSpec) (*BranchTable, error) {
	t := &BranchTable{
		branches: make(map[string]*Branch, len(specs)),
		order:    make([]string, 0, len(specs)),
	}
	refs := make(map[string]string, len(specs))
	for _, spec := range specs {
		if spec.Name == "" || spec.Name == HeadsPrefix {
			return nil, fmt.Errorf("%w: empty name", ErrInvalidBranch)
		}
		// Names are unique by the ref they qualify to.
		ref := QualifyRef(spec.Name)
		if other, dup := refs[ref]; dup {
			return nil, fmt.Errorf("%w: %s and %s are both %s", ErrDuplicateBranch, other, spec.Name, ref)
		}
		refs[ref] = spec.Name
		t.branches[spec.Name] = &Branch{Name: spec.Name, From: spec.From}
		t.order = append(t.order, spec.Name)
	}
	return t, nil
}

// Ensure returns the branch called name, or ErrUnknownBranch.
func (t *BranchTable) Ensure(name string) (*Branch, error) {
	if branch, ok := t.branches[name]; ok {
		return branch, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownBranch, name)
}

// RecordCreated flags the branch as present in the destination. Returns
// true only for the call that actually flipped the flag.
func (t *BranchTable) RecordCreated(name string) (bool, error) {
	branch, err := t.Ensure(name)
	if err != nil {
		return false, err
	}
	if branch.Created {
		return false, nil
	}
	branch.Created = true
	return true, nil
}

// Names lists the declared branches in declaration order.
func (t *BranchTable) Names() []string {
	return append([]string{}, t.order...)
}

func (t *BranchTable) Len() int {
	return len(t.order)
}
