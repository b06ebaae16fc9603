// Package fastimport turns change-sets into a git fast-import stream, one
// Repository per destination repository.
//
// A Repository owns the Stream feeding its import tool, the table of
// declared branches and the blob mark allocator. Transactions are built and
// committed one at a time; each Commit writes a complete commit frame and
// drains the stream before returning.
package fastimport

import (
	"context"
	"fmt"
	"io"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"go.uber.org/zap"
)

// TagFinalizer emits whatever tag bookkeeping the destination is owed once
// all revisions have been committed.
type TagFinalizer interface {
	FinalizeTags(ctx context.Context, repo string, w io.Writer) error
}

// Options tune a Repository.
type Options struct {
	// MarkSeed is the value blob marks count up from. Seeding with the
	// highest revision number keeps blob and commit marks disjoint.
	MarkSeed  int
	Logger    *zap.Logger
	Finalizer TagFinalizer
}

// Stats counts what a repository has emitted.
type Stats struct {
	Commits         int   `yaml:"commits"`
	Blobs           int   `yaml:"blobs"`
	BlobBytes       int64 `yaml:"blob-bytes"`
	Deletions       int   `yaml:"deletions"`
	Modifications   int   `yaml:"modifications"`
	BranchesCreated int   `yaml:"branches-created"`
}

// Repository is one destination repository. It is not safe for concurrent
// use; distinct repositories are independent of each other.
type Repository struct {
	name      string
	branches  *BranchTable
	marks     *MarkAllocator
	stream    Stream
	finalizer TagFinalizer
	log       *zap.Logger

	open      *Transaction
	err       error // First fatal error; the repository is unusable after it.
	finalized bool
	finalErr  error
	stats     Stats
}

// New creates a repository writing to stream. Nothing is started until the
// first transaction is opened.
func New(name string, branches []BranchSpec, stream Stream, opts Options) (*Repository, error) {
	table, err := NewBranchTable(branches)
	if err != nil {
		return nil, fmt.Errorf("repository %s: %w", name, err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{
		name:      name,
		branches:  table,
		marks:     NewMarkAllocator(opts.MarkSeed),
		stream:    stream,
		finalizer: opts.Finalizer,
		log:       log.With(zap.String("repository", name)),
	}, nil
}

func (r *Repository) Name() string { return r.name }

// Branches exposes the branch table, e.g. for reporting.
func (r *Repository) Branches() *BranchTable { return r.branches }

func (r *Repository) Stats() Stats { return r.stats }

// LastMark is the most recently allocated blob mark.
func (r *Repository) LastMark() Mark { return r.marks.Last() }

// HasBranch reports whether name was declared for this repository.
func (r *Repository) HasBranch(name string) bool {
	_, err := r.branches.Ensure(name)
	return err == nil
}

// Err returns the fatal error that made the repository unusable, if any.
func (r *Repository) Err() error {
	return r.failure()
}

// NewTransaction opens a transaction for revision on branch, starting the
// stream if needed. It fails with ErrUnknownBranch, without writing
// anything, if branch was not declared, and with ErrMarkCollision if an
// earlier blob already took the revision's mark.
func (r *Repository) NewTransaction(ctx context.Context, branch, sourceRef string, revision int) (*Transaction, error) {
	if err := r.failure(); err != nil {
		return nil, err
	}
	if r.finalized {
		return nil, fmt.Errorf("repository %s: %w", r.name, ErrRepositoryClosed)
	}
	b, err := r.branches.Ensure(branch)
	if err != nil {
		return nil, fmt.Errorf("repository %s: r%d: %w", r.name, revision, err)
	}
	if r.open != nil {
		return nil, fmt.Errorf("repository %s: r%d %s: %w: r%d %s",
			r.name, revision, branch, ErrTransactionOpen, r.open.revision, r.open.branch.Name)
	}
	// The commit mark is claimed before any blob of the transaction can
	// take it.
	mark := Mark(revision)
	if r.marks.Issued(mark) {
		return nil, r.poison(fmt.Errorf("%w: revision %d on %s", ErrMarkCollision, revision, branch))
	}
	r.marks.Reserve(mark)

	if err := r.stream.Start(ctx); err != nil {
		return nil, r.poison(err)
	}

	r.open = &Transaction{
		repo:          r,
		branch:        b,
		sourceRef:     sourceRef,
		revision:      revision,
		modifications: linkedhashmap.New(),
	}
	return r.open, nil
}

// Finalize runs the tag finalizer, if any, and shuts the stream down. Only
// the first call does anything; later calls return the same result.
func (r *Repository) Finalize(ctx context.Context) error {
	if r.finalized {
		return r.finalErr
	}
	r.finalized = true

	if r.open != nil {
		r.log.Warn("abandoning open transaction at finalize",
			zap.String("branch", r.open.branch.Name), zap.Int("revision", r.open.revision))
		_ = r.open.Abandon()
	}

	if r.err == nil && r.finalizer != nil && r.stream.Running() {
		if err := r.finalizer.FinalizeTags(ctx, r.name, frameWriter{r}); err != nil {
			r.poison(err)
		} else {
			_ = r.drain()
		}
	}

	shutdownErr := r.stream.Shutdown(ctx)
	switch {
	case r.err != nil:
		if shutdownErr != nil {
			r.log.Debug("shutdown after failure", zap.Error(shutdownErr))
		}
		r.finalErr = r.failure()
	case shutdownErr != nil:
		r.finalErr = r.poison(shutdownErr)
	}

	r.log.Info("finalized",
		zap.Int("commits", r.stats.Commits),
		zap.Int("blobs", r.stats.Blobs),
		zap.Int64("blob-bytes", r.stats.BlobBytes),
		zap.Error(r.finalErr))

	return r.finalErr
}

func (r *Repository) release(t *Transaction) {
	if r.open == t {
		r.open = nil
	}
}

func (r *Repository) write(p []byte) error {
	if err := r.failure(); err != nil {
		return err
	}
	if _, err := r.stream.Write(p); err != nil {
		return r.poison(err)
	}
	return nil
}

func (r *Repository) drain() error {
	if err := r.failure(); err != nil {
		return err
	}
	if err := r.stream.Drain(); err != nil {
		return r.poison(err)
	}
	return nil
}

// poison records err as the repository's fatal error unless one is already
// recorded, and returns the recorded error.
func (r *Repository) poison(err error) error {
	if r.err == nil {
		r.err = err
		r.log.Error("repository failed", zap.Error(err))
	}
	return r.failure()
}

func (r *Repository) failure() error {
	if r.err == nil {
		return nil
	}
	return fmt.Errorf("repository %s: %w", r.name, r.err)
}

// frameWriter lets collaborators append frames to the repository's stream.
type frameWriter struct{ r *Repository }

func (w frameWriter) Write(p []byte) (int, error) {
	if err := w.r.write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
