package fastimport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordStream captures everything written to it. Once failAt bytes were
// accepted, further writes fail like a dead import tool.
type recordStream struct {
	bytes.Buffer
	starts    int
	drains    int
	shutdowns int
	failAt    int
	running   bool
}

func newRecordStream() *recordStream {
	return &recordStream{failAt: -1}
}

func (s *recordStream) Start(ctx context.Context) error {
	if !s.running {
		s.starts++
		s.running = true
	}
	return nil
}

func (s *recordStream) Write(p []byte) (int, error) {
	if s.failAt >= 0 && s.Len()+len(p) > s.failAt {
		return 0, errors.New("broken pipe")
	}
	return s.Buffer.Write(p)
}

func (s *recordStream) Drain() error {
	s.drains++
	return nil
}

func (s *recordStream) Shutdown(ctx context.Context) error {
	if s.running {
		s.shutdowns++
		s.running = false
	}
	return nil
}

func (s *recordStream) Running() bool { return s.running }

func TestFileStreamLifecycle(t *testing.T) {
	out := filepath.Join(t.TempDir(), "repo.fi")
	opened := 0
	stream := NewFileStream(func() (f io.WriteCloser, err error) {
		opened++
		return os.Create(out)
	})

	assert.False(t, stream.Running())
	_, err := stream.Write([]byte("x"))
	assert.True(t, errors.Is(err, ErrProcessTerminated))

	require.NoError(t, stream.Start(context.Background()))
	require.NoError(t, stream.Start(context.Background()))
	assert.Equal(t, 1, opened)
	assert.True(t, stream.Running())

	_, err = stream.Write([]byte("blob\n"))
	require.NoError(t, err)
	require.NoError(t, stream.Drain())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "blob\n", string(data))

	require.NoError(t, stream.Shutdown(context.Background()))
	require.NoError(t, stream.Shutdown(context.Background()))
	assert.False(t, stream.Running())
	assert.True(t, errors.Is(stream.Start(context.Background()), ErrProcessTerminated))
}

func TestFileStreamOpenFailure(t *testing.T) {
	stream := NewFileStream(func() (io.WriteCloser, error) {
		return nil, errors.New("no space")
	})
	err := stream.Start(context.Background())
	assert.True(t, errors.Is(err, ErrSpawnFailure))
	assert.NoError(t, stream.Shutdown(context.Background()))
}

func TestWriterStream(t *testing.T) {
	var buf bytes.Buffer
	stream := NewWriterStream(&buf)
	require.NoError(t, stream.Start(context.Background()))
	_, err := stream.Write([]byte("data 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, buf.Len(), "bytes are buffered until drained")
	require.NoError(t, stream.Shutdown(context.Background()))
	assert.Equal(t, "data 0\n", buf.String())
}
