package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/kballard/go-shellquote"
	"github.com/kfsone/svn-fast-export/fastimport"
	"go.uber.org/zap"
)

// StreamFactory creates the output stream of each repository.
type StreamFactory struct {
	opts    *Options
	command []string
	log     *zap.Logger
}

func NewStreamFactory(opts *Options, log *zap.Logger) (*StreamFactory, error) {
	command, err := shellquote.Split(opts.fastImportCmd)
	if err != nil {
		return nil, fmt.Errorf("--fast-import-cmd: %w", err)
	}
	if len(command) == 0 {
		return nil, fmt.Errorf("--fast-import-cmd: no command")
	}
	return &StreamFactory{opts: opts, command: command, log: log}, nil
}

// Open returns the stream for repository name. Nothing is created on disk
// until the stream is started.
func (f *StreamFactory) Open(name string) (fastimport.Stream, error) {
	switch {
	case f.opts.dryRun:
		return fastimport.NewWriterStream(io.Discard), nil

	case f.opts.createDump:
		path := filepath.Join(f.opts.outDir, name+".fi")
		return fastimport.NewFileStream(func() (io.WriteCloser, error) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
			return os.Create(path)
		}), nil
	}

	dir := filepath.Join(f.opts.outDir, name)
	if err := f.initRepository(dir); err != nil {
		return nil, err
	}
	return fastimport.NewProcess(fastimport.ProcessConfig{
		Command: f.command,
		Dir:     dir,
		Timeout: f.opts.fastImportTimeout,
		Logger:  f.log.With(zap.String("repository", name)),
	}), nil
}

// initRepository creates a bare git repository at dir unless something
// already exists there.
func (f *StreamFactory) initRepository(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	f.log.Info("creating repository", zap.String("dir", dir))
	cmd := exec.Command("git", "init", "--bare", "--quiet", dir)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git init %s: %w", dir, err)
	}
	return nil
}

// unavailableStream stands in for a stream that could not be prepared. Its
// repository fails on the first transaction, as with a failed spawn, while
// the other repositories carry on.
type unavailableStream struct {
	err error
}

func (s unavailableStream) Start(ctx context.Context) error {
	return fmt.Errorf("%w: %s", fastimport.ErrSpawnFailure, s.err)
}

func (s unavailableStream) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("%w: never started", fastimport.ErrProcessTerminated)
}

func (s unavailableStream) Drain() error {
	return fmt.Errorf("%w: never started", fastimport.ErrProcessTerminated)
}

func (s unavailableStream) Shutdown(ctx context.Context) error { return nil }

func (s unavailableStream) Running() bool { return false }
