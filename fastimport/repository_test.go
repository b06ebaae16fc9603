package fastimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T, opts Options) (*Repository, *recordStream) {
	t.Helper()
	stream := newRecordStream()
	repo, err := New("R", []BranchSpec{
		{Name: "trunk", From: "refs/heads/main"},
		{Name: "stable", From: "refs/heads/trunk"},
		{Name: "orphan"},
	}, stream, opts)
	require.NoError(t, err)
	return repo, stream
}

func addContent(t *testing.T, txn *Transaction, path string, mode Mode, content string) {
	t.Helper()
	w, err := txn.AddFile(path, mode, int64(len(content)))
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func commitFrame(ref string, mark int, committer string, from string, message string, body string) string {
	frame := fmt.Sprintf("commit %s\nmark :%d\ncommitter %s\n", ref, mark, committer)
	if from != "" {
		frame += "from " + from + "\n"
	}
	frame += fmt.Sprintf("data %d\n%s", len(message), message)
	return frame + body + "\n"
}

func TestScenarioTwoRevisionsOnTrunk(t *testing.T) {
	ctx := context.Background()
	repo, stream := newTestRepository(t, Options{})

	txn, err := repo.NewTransaction(ctx, "trunk", "svn://repo", 5)
	require.NoError(t, err)
	txn.SetAuthor([]byte("A <a@x>"))
	txn.SetDateTime(1000)
	txn.SetLog([]byte("init"))
	addContent(t, txn, "f.txt", ModeFile, "hi")
	require.NoError(t, txn.Commit())

	expected := "blob\nmark :1\ndata 2\nhi" +
		commitFrame("refs/heads/trunk", 5, "A <a@x> 1000 +0000", "refs/heads/main",
			"init\n\nsvn=svn://repo; revision=5\n", "M 100644 :1 f.txt\n")
	assert.Equal(t, expected, stream.String())
	assert.Equal(t, 1, stream.drains)

	stream.Reset()
	txn, err = repo.NewTransaction(ctx, "trunk", "svn://repo", 6)
	require.NoError(t, err)
	txn.SetAuthor([]byte("A <a@x>"))
	txn.SetDateTime(1001)
	txn.SetLog([]byte("second\n"))
	addContent(t, txn, "f.txt", ModeFile, "hey")
	require.NoError(t, txn.Commit())

	expected = "blob\nmark :2\ndata 3\nhey" +
		commitFrame("refs/heads/trunk", 6, "A <a@x> 1001 +0000", "",
			"second\n\nsvn=svn://repo; revision=6\n", "M 100644 :2 f.txt\n")
	assert.Equal(t, expected, stream.String())
	assert.NotContains(t, stream.String(), "from ")
	assert.Equal(t, 1, stream.starts)
}

func TestAncestryEmittedOncePerBranch(t *testing.T) {
	ctx := context.Background()
	repo, stream := newTestRepository(t, Options{})

	for rev, branch := range []string{"trunk", "stable", "trunk", "stable", "orphan", "orphan"} {
		txn, err := repo.NewTransaction(ctx, branch, "/"+branch+"/", rev+1)
		require.NoError(t, err)
		require.NoError(t, txn.Commit())
	}

	out := stream.String()
	assert.Equal(t, 1, strings.Count(out, "from refs/heads/main\n"))
	assert.Equal(t, 1, strings.Count(out, "from refs/heads/trunk\n"))
	assert.Equal(t, 2, strings.Count(out, "from "), "orphan has no origin")
	assert.Equal(t, 3, repo.Stats().BranchesCreated)
	for _, name := range repo.Branches().Names() {
		branch, err := repo.Branches().Ensure(name)
		require.NoError(t, err)
		assert.True(t, branch.Created, name)
	}
}

func TestMarksStrictlyIncreasingAcrossTransactions(t *testing.T) {
	ctx := context.Background()
	repo, stream := newTestRepository(t, Options{MarkSeed: 100})

	var marks []Mark
	for rev := 1; rev <= 4; rev++ {
		branch := "trunk"
		if rev%2 == 0 {
			branch = "stable"
		}
		txn, err := repo.NewTransaction(ctx, branch, "/", rev)
		require.NoError(t, err)
		for i := 0; i < rev; i++ {
			addContent(t, txn, fmt.Sprintf("file%d", i), ModeFile, "x")
			marks = append(marks, repo.LastMark())
		}
		require.NoError(t, txn.Commit())
	}

	require.Len(t, marks, 10)
	for i := 1; i < len(marks); i++ {
		assert.True(t, marks[i] > marks[i-1], "mark %s after %s", marks[i], marks[i-1])
	}
	assert.Equal(t, Mark(101), marks[0])
	assert.Equal(t, 10, strings.Count(stream.String(), "blob\n"))
	assert.Equal(t, 10, repo.Stats().Blobs)
	assert.Equal(t, int64(10), repo.Stats().BlobBytes)
}

func TestEmptyCommitIsWellFormed(t *testing.T) {
	repo, stream := newTestRepository(t, Options{})
	txn, err := repo.NewTransaction(context.Background(), "orphan", "/orphan/", 3)
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	expected := commitFrame("refs/heads/orphan", 3, " 0 +0000", "",
		"\n\nsvn=/orphan/; revision=3\n", "")
	assert.Equal(t, expected, stream.String())
	assert.True(t, strings.HasSuffix(stream.String(), "\n\n"))
}

func TestDeletionsInOrderAndModificationWins(t *testing.T) {
	repo, stream := newTestRepository(t, Options{})
	txn, err := repo.NewTransaction(context.Background(), "trunk", "/trunk/", 20)
	require.NoError(t, err)

	require.NoError(t, txn.DeleteFile("b"))
	require.NoError(t, txn.DeleteFile("a.txt"))
	require.NoError(t, txn.DeleteFile("b"))
	addContent(t, txn, "a.txt", ModeFile, "one")
	addContent(t, txn, "tool", ModeExecutable, "#!")
	addContent(t, txn, "a.txt", ModeFile, "two")
	addContent(t, txn, "link", ModeSymlink, "a.txt")
	require.NoError(t, txn.Commit())

	out := stream.String()
	trailer := "revision=20\n"
	body := out[strings.Index(out, trailer)+len(trailer):]
	assert.Equal(t, "D b\nD b\nM 100644 :3 a.txt\nM 100755 :2 tool\nM 120000 :4 link\n\n", body)
	assert.NotContains(t, out, "D a.txt")
	assert.Equal(t, 2, repo.Stats().Deletions)
	assert.Equal(t, 3, repo.Stats().Modifications)
}

func TestUnknownBranchWritesNothing(t *testing.T) {
	repo, stream := newTestRepository(t, Options{})
	txn, err := repo.NewTransaction(context.Background(), "feature", "/feature/", 9)
	assert.Nil(t, txn)
	assert.True(t, errors.Is(err, ErrUnknownBranch))
	assert.False(t, IsFatal(err))
	assert.Equal(t, 0, stream.Len())
	assert.Equal(t, 0, stream.starts)
	assert.NoError(t, repo.Err())
}

func TestSecondOpenTransactionRejected(t *testing.T) {
	ctx := context.Background()
	repo, stream := newTestRepository(t, Options{})
	first, err := repo.NewTransaction(ctx, "trunk", "/trunk/", 1)
	require.NoError(t, err)

	_, err = repo.NewTransaction(ctx, "stable", "/stable/", 1)
	assert.True(t, errors.Is(err, ErrTransactionOpen))

	require.NoError(t, first.Abandon())
	assert.Equal(t, 0, stream.Len(), "abandoned transaction emits nothing")
	assert.True(t, errors.Is(first.Commit(), ErrTransactionClosed))

	second, err := repo.NewTransaction(ctx, "stable", "/stable/", 1)
	require.NoError(t, err)
	require.NoError(t, second.Commit())
	assert.True(t, errors.Is(second.Commit(), ErrTransactionClosed))
	assert.True(t, errors.Is(second.DeleteFile("x"), ErrTransactionClosed))
}

func TestShortWriteIsFatal(t *testing.T) {
	ctx := context.Background()
	repo, stream := newTestRepository(t, Options{})
	txn, err := repo.NewTransaction(ctx, "trunk", "/trunk/", 1)
	require.NoError(t, err)

	w, err := txn.AddFile("f", ModeFile, 4)
	require.NoError(t, err)
	_, err = w.Write([]byte("ab"))
	require.NoError(t, err)

	err = txn.Commit()
	assert.True(t, errors.Is(err, ErrShortWrite))
	assert.NotContains(t, stream.String(), "commit ")

	_, err = repo.NewTransaction(ctx, "trunk", "/trunk/", 2)
	assert.True(t, errors.Is(err, ErrShortWrite))
	assert.True(t, IsFatal(repo.Err()))
}

func TestShortWriteDetectedAtClose(t *testing.T) {
	repo, _ := newTestRepository(t, Options{})
	txn, err := repo.NewTransaction(context.Background(), "trunk", "/trunk/", 1)
	require.NoError(t, err)
	w, err := txn.AddFile("f", ModeFile, 1)
	require.NoError(t, err)
	assert.True(t, errors.Is(w.Close(), ErrShortWrite))
	assert.True(t, errors.Is(txn.DeleteFile("g"), ErrShortWrite))
}

func TestContentOverflowIsFatal(t *testing.T) {
	repo, stream := newTestRepository(t, Options{})
	txn, err := repo.NewTransaction(context.Background(), "trunk", "/trunk/", 1)
	require.NoError(t, err)
	w, err := txn.AddFile("f", ModeFile, 2)
	require.NoError(t, err)

	n, err := w.Write([]byte("abc"))
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, ErrContentOverflow))
	assert.Equal(t, "blob\nmark :2\ndata 2\n", stream.String(), "mark 1 belongs to the commit")
	assert.True(t, errors.Is(txn.Commit(), ErrContentOverflow))
}

func TestStreamFailurePoisonsRepository(t *testing.T) {
	ctx := context.Background()
	repo, stream := newTestRepository(t, Options{})
	stream.failAt = 10

	txn, err := repo.NewTransaction(ctx, "trunk", "/trunk/", 1)
	require.NoError(t, err)
	_, err = txn.AddFile("some/long/path", ModeFile, 1<<20)
	require.Error(t, err)

	_, err = repo.NewTransaction(ctx, "trunk", "/trunk/", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")

	err = repo.Finalize(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, stream.shutdowns, "stream is released even after failure")
}

func TestMarkCollisionDetected(t *testing.T) {
	ctx := context.Background()
	repo, stream := newTestRepository(t, Options{})

	txn, err := repo.NewTransaction(ctx, "trunk", "/trunk/", 1)
	require.NoError(t, err)
	for _, path := range []string{"a", "b", "c"} {
		addContent(t, txn, path, ModeFile, path)
	}
	require.NoError(t, txn.Commit())
	written := stream.Len()

	// Marks 2..4 went to the blobs above.
	_, err = repo.NewTransaction(ctx, "trunk", "/trunk/", 3)
	assert.True(t, errors.Is(err, ErrMarkCollision))
	assert.Equal(t, written, stream.Len())

	_, err = repo.NewTransaction(ctx, "trunk", "/trunk/", 5)
	assert.True(t, errors.Is(err, ErrMarkCollision), "repository stays failed")
}

func TestFirstRevisionAtSeedZero(t *testing.T) {
	ctx := context.Background()
	repo, stream := newTestRepository(t, Options{})

	txn, err := repo.NewTransaction(ctx, "orphan", "/trunk/", 1)
	require.NoError(t, err)
	txn.SetAuthor([]byte("A <a@x>"))
	addContent(t, txn, "README", ModeFile, "x")
	require.NoError(t, txn.Commit())
	require.NoError(t, repo.Err())

	expected := "blob\nmark :2\ndata 1\nx" +
		commitFrame("refs/heads/orphan", 1, "A <a@x> 0 +0000", "",
			"\n\nsvn=/trunk/; revision=1\n", "M 100644 :2 README\n")
	assert.Equal(t, expected, stream.String())
}

func TestCommitMarksAreSkippedByAllocator(t *testing.T) {
	ctx := context.Background()
	repo, stream := newTestRepository(t, Options{})

	txn, err := repo.NewTransaction(ctx, "trunk", "/trunk/", 2)
	require.NoError(t, err)
	addContent(t, txn, "a", ModeFile, "a")
	require.NoError(t, txn.Commit())

	txn, err = repo.NewTransaction(ctx, "trunk", "/trunk/", 10)
	require.NoError(t, err)
	addContent(t, txn, "b", ModeFile, "b")
	require.NoError(t, txn.Commit())

	assert.Contains(t, stream.String(), "blob\nmark :3\ndata 1\nb")
	assert.NotContains(t, stream.String(), "blob\nmark :2\n")
}

type recordFinalizer struct {
	calls int
}

func (f *recordFinalizer) FinalizeTags(ctx context.Context, repo string, w io.Writer) error {
	f.calls++
	_, err := fmt.Fprintf(w, "progress %s done\n", repo)
	return err
}

func TestFinalizeRunsOnce(t *testing.T) {
	ctx := context.Background()
	finalizer := &recordFinalizer{}
	repo, stream := newTestRepository(t, Options{Finalizer: finalizer})

	txn, err := repo.NewTransaction(ctx, "trunk", "/trunk/", 1)
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	require.NoError(t, repo.Finalize(ctx))
	require.NoError(t, repo.Finalize(ctx))
	assert.Equal(t, 1, finalizer.calls)
	assert.Equal(t, 1, stream.shutdowns)
	assert.True(t, strings.HasSuffix(stream.String(), "progress R done\n"))

	_, err = repo.NewTransaction(ctx, "trunk", "/trunk/", 2)
	assert.True(t, errors.Is(err, ErrRepositoryClosed))
}

func TestFinalizeNeverStarted(t *testing.T) {
	finalizer := &recordFinalizer{}
	repo, stream := newTestRepository(t, Options{Finalizer: finalizer})
	require.NoError(t, repo.Finalize(context.Background()))
	assert.Equal(t, 0, finalizer.calls)
	assert.Equal(t, 0, stream.shutdowns)
	assert.Equal(t, 0, stream.Len())
}

func TestFinalizeAbandonsOpenTransaction(t *testing.T) {
	ctx := context.Background()
	repo, stream := newTestRepository(t, Options{})
	_, err := repo.NewTransaction(ctx, "trunk", "/trunk/", 1)
	require.NoError(t, err)
	require.NoError(t, repo.Finalize(ctx))
	assert.Equal(t, 0, stream.Len())
}

func TestDuplicateBranchDeclaration(t *testing.T) {
	_, err := New("R", []BranchSpec{{Name: "trunk"}, {Name: "trunk"}}, newRecordStream(), Options{})
	assert.True(t, errors.Is(err, ErrDuplicateBranch))
}

func TestQuotePath(t *testing.T) {
	assert.Equal(t, "plain/path with space", QuotePath("plain/path with space"))
	assert.Equal(t, `mid"quote`, QuotePath(`mid"quote`))
	assert.Equal(t, `"\"lead\\ing"`, QuotePath(`"lead\ing`))
	assert.Equal(t, `"two\nlines"`, QuotePath("two\nlines"))
}

func TestQuotedPathsInFrame(t *testing.T) {
	repo, stream := newTestRepository(t, Options{})
	txn, err := repo.NewTransaction(context.Background(), "orphan", "/orphan/", 9)
	require.NoError(t, err)
	require.NoError(t, txn.DeleteFile(`"old"`))
	addContent(t, txn, `"new"`, ModeFile, "x")
	require.NoError(t, txn.Commit())

	assert.True(t, strings.HasSuffix(stream.String(), "D \"\\\"old\\\"\"\nM 100644 :1 \"\\\"new\\\"\"\n\n"))
}
