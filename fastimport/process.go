package fastimport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultBufferSize = 64 * 1024

// DefaultCommand is the import tool launched when none is configured.
var DefaultCommand = []string{"git", "fast-import"}

// ProcessConfig describes how to launch an import tool.
type ProcessConfig struct {
	Command []string      // argv of the tool, DefaultCommand if empty.
	Dir     string        // Working directory, i.e. the destination repository.
	Env     []string      // Extra environment, appended to os.Environ().
	Stdout  io.Writer     // Defaults to os.Stdout.
	Stderr  io.Writer     // Defaults to os.Stderr.
	Timeout time.Duration // Maximum wait in Shutdown; 0 waits forever.
	Logger  *zap.Logger
}

// Process owns an import tool child process and the write side of its
// standard input. It implements Stream.
type Process struct {
	cfg ProcessConfig
	log *zap.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	buf     *bufio.Writer
	started bool
	stopped bool
	err     error // Sticky failure, always wraps ErrProcessTerminated.

	exited  chan struct{}
	waitErr error // Valid once exited is closed.
}

// NewProcess returns an unstarted Process.
func NewProcess(cfg ProcessConfig) *Process {
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultCommand
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Process{cfg: cfg, log: log}
}

// Start spawns the tool unless it is already running.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		if p.stopped {
			return fmt.Errorf("%w: already shut down", ErrProcessTerminated)
		}
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrSpawnFailure, err)
	}

	cmd := exec.Command(p.cfg.Command[0], p.cfg.Command[1:]...)
	cmd.Dir = p.cfg.Dir
	cmd.Stdout = p.cfg.Stdout
	cmd.Stderr = p.cfg.Stderr
	if len(p.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), p.cfg.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrSpawnFailure, p.commandLine(), err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrSpawnFailure, p.commandLine(), err)
	}

	p.cmd, p.stdin = cmd, stdin
	p.buf = bufio.NewWriterSize(stdin, defaultBufferSize)
	p.exited = make(chan struct{})
	p.started = true

	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	p.log.Debug("started import tool",
		zap.String("command", p.commandLine()),
		zap.String("dir", p.cfg.Dir),
		zap.Int("pid", cmd.Process.Pid))

	return nil
}

func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.stopped && !p.hasExited()
}

// Write queues data for the tool. Large writes may block on the pipe.
func (p *Process) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(); err != nil {
		return 0, err
	}
	n, err := p.buf.Write(data)
	if err != nil {
		return n, p.fail(err)
	}
	return n, nil
}

// Drain blocks until the tool has accepted everything written so far.
func (p *Process) Drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(); err != nil {
		return err
	}
	if err := p.buf.Flush(); err != nil {
		return p.fail(err)
	}
	return nil
}

// Shutdown closes the tool's input and waits for it to exit. If the
// configured timeout or ctx expires first, the tool is killed.
func (p *Process) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.stopped {
		p.stopped = true
		return nil
	}
	p.stopped = true

	var flushErr error
	if p.err == nil {
		flushErr = p.buf.Flush()
	}
	closeErr := p.stdin.Close()

	var expire <-chan time.Time
	if p.cfg.Timeout > 0 {
		timer := time.NewTimer(p.cfg.Timeout)
		defer timer.Stop()
		expire = timer.C
	}

	select {
	case <-p.exited:
	case <-expire:
		p.kill()
		return fmt.Errorf("%w: after %s", ErrShutdownTimeout, p.cfg.Timeout)
	case <-ctx.Done():
		p.kill()
		return fmt.Errorf("%w: %s", ErrShutdownTimeout, ctx.Err())
	}

	p.log.Debug("import tool exited", zap.String("dir", p.cfg.Dir), zap.Error(p.waitErr))

	switch {
	case p.err != nil:
		return p.err
	case p.waitErr != nil:
		return fmt.Errorf("%w: %s: %s", ErrProcessExit, p.commandLine(), p.waitErr)
	case flushErr != nil:
		return fmt.Errorf("%w: %s", ErrProcessTerminated, flushErr)
	case closeErr != nil:
		return fmt.Errorf("%w: %s", ErrProcessTerminated, closeErr)
	}
	return nil
}

func (p *Process) kill() {
	if err := p.cmd.Process.Kill(); err != nil {
		p.log.Warn("failed to kill import tool", zap.Error(err))
	}
	<-p.exited
}

func (p *Process) hasExited() bool {
	if p.exited == nil {
		return false
	}
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

func (p *Process) usable() error {
	if p.err != nil {
		return p.err
	}
	if !p.started || p.stopped {
		return fmt.Errorf("%w: not running", ErrProcessTerminated)
	}
	if p.hasExited() {
		p.err = fmt.Errorf("%w: %s", ErrProcessTerminated, p.exitReason())
		return p.err
	}
	return nil
}

func (p *Process) fail(cause error) error {
	if p.hasExited() {
		p.err = fmt.Errorf("%w: %s: %s", ErrProcessTerminated, p.exitReason(), cause)
	} else {
		p.err = fmt.Errorf("%w: %s", ErrProcessTerminated, cause)
	}
	return p.err
}

func (p *Process) exitReason() string {
	if p.waitErr != nil {
		return p.waitErr.Error()
	}
	return "exited"
}

func (p *Process) commandLine() string {
	return strings.Join(p.cfg.Command, " ")
}
