package fastimport

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"go.uber.org/zap"
)

type txnState int

const (
	txnOpen txnState = iota
	txnCommitted
	txnAbandoned
)

// Transaction accumulates one destination commit. It is created by
// Repository.NewTransaction and consumed by exactly one Commit or Abandon.
type Transaction struct {
	repo      *Repository
	branch    *Branch
	sourceRef string
	revision  int

	author   []byte
	datetime uint
	log      []byte

	deletions     []string
	modifications *linkedhashmap.Map // path -> FileChange, first-insertion order.

	pending *blobWriter
	state   txnState
}

func (t *Transaction) Branch() string { return t.branch.Name }
func (t *Transaction) Revision() int  { return t.revision }

func (t *Transaction) SetAuthor(author []byte) {
	t.author = append(t.author[:0], author...)
}

// SetDateTime sets the commit time in seconds since the epoch.
func (t *Transaction) SetDateTime(unixSeconds uint) {
	t.datetime = unixSeconds
}

func (t *Transaction) SetLog(log []byte) {
	t.log = append(t.log[:0], log...)
}

// DeleteFile schedules path for deletion. Paths are not checked for
// existence and duplicates are kept.
func (t *Transaction) DeleteFile(path string) error {
	if err := t.usable(); err != nil {
		return err
	}
	t.deletions = append(t.deletions, path)
	return nil
}

// AddFile emits a blob header for length bytes of content and returns the
// sink that content must be written to, in full, before any other call on
// the repository. The path is recorded as modified with the new blob,
// replacing any earlier change to the same path in this transaction.
func (t *Transaction) AddFile(path string, mode Mode, length int64) (io.WriteCloser, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: %s: negative length %d", ErrShortWrite, path, length)
	}

	repo := t.repo
	mark := repo.marks.Allocate()

	header := make([]byte, 0, 48)
	header = append(header, "blob\nmark "...)
	header = append(header, mark.String()...)
	header = append(header, "\ndata "...)
	header = strconv.AppendInt(header, length, 10)
	header = append(header, '\n')
	if err := repo.write(header); err != nil {
		return nil, err
	}

	t.modifications.Put(path, FileChange{Path: path, Mode: mode, Mark: mark})
	t.pending = &blobWriter{repo: repo, path: path, mark: mark, remaining: length}
	repo.stats.Blobs++

	return t.pending, nil
}

// Commit writes the commit frame and waits for the stream to drain.
func (t *Transaction) Commit() error {
	if t.state != txnOpen {
		return ErrTransactionClosed
	}
	t.state = txnCommitted
	repo := t.repo
	defer repo.release(t)

	if err := t.settle(); err != nil {
		return err
	}
	if err := repo.failure(); err != nil {
		return err
	}

	mark := Mark(t.revision)
	message := t.message()

	var frame bytes.Buffer
	fmt.Fprintf(&frame, "commit %s\n", t.branch.Ref())
	fmt.Fprintf(&frame, "mark %s\n", mark)
	fmt.Fprintf(&frame, "committer %s %d +0000\n", t.author, t.datetime)

	created, err := repo.branches.RecordCreated(t.branch.Name)
	if err != nil {
		return err
	}
	if created && t.branch.From != "" {
		fmt.Fprintf(&frame, "from %s\n", t.branch.From)
	}

	fmt.Fprintf(&frame, "data %d\n", len(message))
	frame.Write(message)

	deleted := 0
	for _, path := range t.deletions {
		// A later modification of the same path supersedes the deletion.
		if _, modified := t.modifications.Get(path); modified {
			continue
		}
		fmt.Fprintf(&frame, "D %s\n", QuotePath(path))
		deleted++
	}

	it := t.modifications.Iterator()
	for it.Next() {
		change := it.Value().(FileChange)
		fmt.Fprintf(&frame, "M %s %s %s\n", change.Mode, change.Mark, QuotePath(change.Path))
	}
	frame.WriteByte('\n')

	if err := repo.write(frame.Bytes()); err != nil {
		return err
	}
	if err := repo.drain(); err != nil {
		return err
	}

	repo.stats.Commits++
	repo.stats.Deletions += deleted
	repo.stats.Modifications += t.modifications.Size()
	if created {
		repo.stats.BranchesCreated++
	}

	repo.log.Debug("committed",
		zap.String("branch", t.branch.Name),
		zap.Int("revision", t.revision),
		zap.Int("deletions", deleted),
		zap.Int("modifications", t.modifications.Size()),
		zap.Bool("created", created))

	return nil
}

// Abandon discards the transaction without writing a commit.
func (t *Transaction) Abandon() error {
	if t.state != txnOpen {
		return nil
	}
	t.state = txnAbandoned
	defer t.repo.release(t)
	return t.settle()
}

// message is the log text, newline-terminated, followed by the provenance
// trailer.
func (t *Transaction) message() []byte {
	message := make([]byte, 0, len(t.log)+len(t.sourceRef)+32)
	message = append(message, t.log...)
	if len(message) == 0 || message[len(message)-1] != '\n' {
		message = append(message, '\n')
	}
	message = append(message, "\nsvn="...)
	message = append(message, t.sourceRef...)
	message = append(message, "; revision="...)
	message = strconv.AppendInt(message, int64(t.revision), 10)
	message = append(message, '\n')
	return message
}

// settle closes the outstanding blob sink, if any.
func (t *Transaction) settle() error {
	if t.pending == nil {
		return nil
	}
	pending := t.pending
	t.pending = nil
	return pending.Close()
}

func (t *Transaction) usable() error {
	if t.state != txnOpen {
		return ErrTransactionClosed
	}
	if err := t.settle(); err != nil {
		return err
	}
	return t.repo.failure()
}
