package fastimport

import "strconv"

// Mark identifies an object within one import stream.
type Mark int

func (m Mark) String() string {
	return ":" + strconv.Itoa(int(m))
}

// MarkAllocator hands out blob marks for one repository. Commit marks share
// the stream's mark space, so they are reserved here and skipped on
// allocation.
type MarkAllocator struct {
	seed     Mark
	counter  Mark
	reserved map[Mark]struct{}
}

// NewMarkAllocator returns an allocator whose first mark is seed+1.
func NewMarkAllocator(seed int) *MarkAllocator {
	return &MarkAllocator{
		seed:     Mark(seed),
		counter:  Mark(seed),
		reserved: make(map[Mark]struct{}),
	}
}

// Allocate returns the next unused mark.
func (a *MarkAllocator) Allocate() Mark {
	for {
		a.counter++
		if _, taken := a.reserved[a.counter]; !taken {
			return a.counter
		}
	}
}

// Reserve records that mark is used by a commit.
func (a *MarkAllocator) Reserve(mark Mark) {
	a.reserved[mark] = struct{}{}
}

// Issued reports whether mark was already handed out by Allocate.
func (a *MarkAllocator) Issued(mark Mark) bool {
	if mark <= a.seed || mark > a.counter {
		return false
	}
	_, reserved := a.reserved[mark]
	return !reserved
}

// Last returns the most recently allocated mark, or the seed if none.
func (a *MarkAllocator) Last() Mark {
	return a.counter
}
