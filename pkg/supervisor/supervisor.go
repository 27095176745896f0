// Package supervisor owns the lifecycle of the external engine process.
//
// A Process holds at most one child handle. Stop is fire-and-forget: it issues
// a platform-appropriate tree kill and returns without waiting for the child
// to exit. The child is reaped by a background goroutine started in Start.
package supervisor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

var (
	// ErrSpawn is returned when the engine process could not be started.
	ErrSpawn = errors.New("supervisor: spawn failed")
	// ErrTerminate is returned when the termination request itself failed.
	ErrTerminate = errors.New("supervisor: terminate failed")
)

// Supervisor is the contract the bridge depends on.
type Supervisor interface {
	Start() error
	Stop() error
	Running() bool
}

// Terminator ends a running process. Implementations decide how forcefully and
// whether to wait.
type Terminator interface {
	Terminate(p *os.Process) error
}

// TerminatorFunc adapts a plain function to the Terminator interface.
type TerminatorFunc func(p *os.Process) error

// Terminate calls f(p).
func (f TerminatorFunc) Terminate(p *os.Process) error { return f(p) }

// TreeKill force-kills the process and, where the platform supports it, every
// descendant it spawned.
var TreeKill Terminator = TerminatorFunc(killTree)

// Options configures a Process.
type Options struct {
	Command string
	Args    []string
	Dir     string
	// Env entries are appended to the parent environment.
	Env        []string
	Stdout     io.Writer
	Stderr     io.Writer
	Terminator Terminator
	Logger     *slog.Logger
}

type child struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// Process is a Supervisor backed by os/exec.
type Process struct {
	opts Options
	log  *slog.Logger

	mu    sync.Mutex
	child *child
}

var _ Supervisor = (*Process)(nil)

// New creates a Process. Nothing is spawned until Start.
func New(opts Options) *Process {
	if opts.Terminator == nil {
		opts.Terminator = TreeKill
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Process{opts: opts, log: log.With("component", "supervisor")}
}

// Start spawns the engine process. It is a no-op while a previously started
// child is still running. A spawn failure leaves the handle empty and is not
// retried.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.child != nil && !p.child.exited() {
		return nil
	}
	p.child = nil

	if p.opts.Command == "" {
		return fmt.Errorf("%w: no command configured", ErrSpawn)
	}

	cmd := exec.Command(p.opts.Command, p.opts.Args...) //nolint:gosec // command comes from local configuration
	cmd.Dir = p.opts.Dir
	cmd.Stdout = p.opts.Stdout
	cmd.Stderr = p.opts.Stderr
	if len(p.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), p.opts.Env...)
	}
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		p.log.Error("engine spawn failed", "command", p.opts.Command, "dir", p.opts.Dir, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrSpawn, p.opts.Command, err)
	}

	c := &child{cmd: cmd, done: make(chan struct{})}
	p.child = c
	p.log.Info("engine started", "pid", cmd.Process.Pid, "command", p.opts.Command)

	go func() {
		err := cmd.Wait()
		p.log.Info("engine exited", "pid", cmd.Process.Pid, "error", err)
		close(c.done)
	}()

	return nil
}

// Stop takes ownership of the current handle and terminates it without
// waiting. Calling Stop with nothing running returns nil.
func (p *Process) Stop() error {
	p.mu.Lock()
	c := p.child
	p.child = nil
	p.mu.Unlock()

	if c == nil || c.exited() {
		return nil
	}

	pid := c.cmd.Process.Pid
	if err := p.opts.Terminator.Terminate(c.cmd.Process); err != nil {
		p.log.Warn("engine terminate failed", "pid", pid, "error", err)
		return fmt.Errorf("%w: pid %d: %w", ErrTerminate, pid, err)
	}

	p.log.Info("engine stop requested", "pid", pid)
	return nil
}

// Running reports whether a started child has not yet been reaped.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.child != nil && !p.child.exited()
}

// Pid returns the current child's process id, or 0 if none is running.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.child == nil || p.child.exited() {
		return 0
	}
	return p.child.cmd.Process.Pid
}

// Done returns a channel closed once the current child has been reaped, or
// nil if nothing was started.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.child == nil {
		return nil
	}
	return p.child.done
}

func (c *child) exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
