package fastimport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Stream is the ordered byte sink a Repository emits frames into.
//
// Start may be called any number of times; only the first call after the
// stream was created does any work. Write queues bytes without guaranteeing
// delivery. Drain blocks until every queued byte was accepted by the
// consumer. Shutdown releases the consumer and is a no-op if the stream was
// never started.
type Stream interface {
	Start(ctx context.Context) error
	Write(p []byte) (int, error)
	Drain() error
	Shutdown(ctx context.Context) error
	Running() bool
}

// FileStream is a Stream over a plain writer, used to produce a stream
// file instead of feeding an import tool. The writer is opened by the
// supplied function on Start.
type FileStream struct {
	open func() (io.WriteCloser, error)

	mu     sync.Mutex
	out    io.WriteCloser
	buf    *bufio.Writer
	err    error
	closed bool
}

// NewFileStream returns a FileStream that calls open on first Start.
func NewFileStream(open func() (io.WriteCloser, error)) *FileStream {
	return &FileStream{open: open}
}

// NewWriterStream wraps an already open writer. Shutdown closes it if it
// implements io.Closer.
func NewWriterStream(w io.Writer) *FileStream {
	return NewFileStream(func() (io.WriteCloser, error) {
		if wc, ok := w.(io.WriteCloser); ok {
			return wc, nil
		}
		return nopCloser{w}, nil
	})
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (s *FileStream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: stream already shut down", ErrProcessTerminated)
	}
	if s.out != nil {
		return nil
	}
	out, err := s.open()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSpawnFailure, err)
	}
	s.out = out
	s.buf = bufio.NewWriterSize(out, defaultBufferSize)
	return nil
}

func (s *FileStream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out != nil && !s.closed
}

func (s *FileStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return 0, err
	}
	n, err := s.buf.Write(p)
	if err != nil {
		s.err = fmt.Errorf("%w: %s", ErrProcessTerminated, err)
		return n, s.err
	}
	return n, nil
}

func (s *FileStream) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		s.err = fmt.Errorf("%w: %s", ErrProcessTerminated, err)
		return s.err
	}
	return nil
}

func (s *FileStream) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil || s.closed {
		s.closed = true
		return nil
	}
	s.closed = true
	flushErr := s.buf.Flush()
	closeErr := s.out.Close()
	switch {
	case s.err != nil:
		return s.err
	case flushErr != nil:
		return fmt.Errorf("%w: %s", ErrProcessTerminated, flushErr)
	case closeErr != nil:
		return fmt.Errorf("%w: %s", ErrProcessExit, closeErr)
	}
	return nil
}

func (s *FileStream) usable() error {
	if s.err != nil {
		return s.err
	}
	if s.out == nil || s.closed {
		return fmt.Errorf("%w: stream not running", ErrProcessTerminated)
	}
	return nil
}
