package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"aubridge/pkg/protocol"
)

// Process abstracts a running agent subprocess.
type Process interface {
	Stdin() io.Writer
	Stdout() io.Reader
	Stderr() io.Reader
	// Signal delivers sig to the process (and its process group where the
	// platform supports it).
	Signal(sig os.Signal) error
	// Kill terminates the process immediately.
	Kill() error
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// ExitErr returns the exit error after Done is closed; nil on a clean
	// exit.
	ExitErr() error
}

// Spawner abstracts agent process creation for testing.
type Spawner interface {
	Spawn(ctx context.Context, command string, args ...string) (Process, error)
}

// ResolveScript returns the first candidate path that exists on disk.
// When none exists, it fails with a *protocol.StartupError naming the last
// candidate tried.
func ResolveScript(candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", &protocol.StartupError{Reason: "no agent script paths configured"}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", &protocol.StartupError{
		Reason: fmt.Sprintf("agent script not found at any of %d candidate paths", len(candidates)),
		Path:   candidates[len(candidates)-1],
	}
}

// ExecSpawner is the production Spawner backed by os/exec. Each agent gets
// its own process group so termination reaches its descendants.
type ExecSpawner struct{}

// Spawn starts the interpreter with the given arguments and wires up its
// three standard streams.
func (s *ExecSpawner) Spawn(ctx context.Context, command string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	p := &execProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// execProcess wraps *exec.Cmd to implement Process.
type execProcess struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	done    chan struct{}
	exitErr error
}

func (p *execProcess) Stdin() io.Writer  { return p.stdin }
func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

// Signal sends sig to the whole process group, falling back to the process
// itself when group delivery fails.
func (p *execProcess) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	if s, ok := sig.(syscall.Signal); ok {
		if err := syscall.Kill(-p.cmd.Process.Pid, s); err == nil {
			return nil
		}
	}
	return p.cmd.Process.Signal(sig)
}

// Kill force-terminates the process group.
func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL); err == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) Done() <-chan struct{} { return p.done }

// ExitErr reports the exit status; valid once Done is closed.
func (p *execProcess) ExitErr() error {
	select {
	case <-p.done:
		return p.exitErr
	default:
		return nil
	}
}

// exitCode extracts the process exit code from a Wait error; 0 when clean,
// -1 when unknown (e.g. killed by signal without a code).
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var xerr *exec.ExitError
	if errors.As(err, &xerr) {
		return xerr.ExitCode()
	}
	return -1
}
