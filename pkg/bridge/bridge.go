// Package bridge connects an external AI agent process to the editor's
// action and state surfaces over a newline-delimited JSON protocol. It owns
// the agent process lifecycle, reconstructs frames from the raw byte
// stream, routes each decoded envelope to its handler, and surfaces
// everything the host application needs as typed events on a channel.
package bridge

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"syscall"
	"time"

	"aubridge/pkg/editor"
	"aubridge/pkg/protocol"
)

// State is the bridge lifecycle state.
type State string

// Bridge lifecycle states. Uninitialized -> Starting -> Running ->
// {Stopping -> Stopped} | {Crashed -> Stopped}. Stop is valid from any
// state.
const (
	StateUninitialized State = "uninitialized"
	StateStarting      State = "starting"
	StateRunning       State = "running"
	StateStopping      State = "stopping"
	StateStopped       State = "stopped"
	StateCrashed       State = "crashed"
)

// EventKind tags a bridge event.
type EventKind string

// Event kinds delivered to the host application.
const (
	EventMessage  EventKind = "message"  // assistant chat message
	EventApproval EventKind = "approval" // agent requests a human decision
	EventError    EventKind = "error"    // user-visible error
	EventFeedback EventKind = "feedback" // action completion notice
	EventCrash    EventKind = "crash"    // agent process died unexpectedly
)

// Event is one bridge occurrence surfaced to the host application.
type Event struct {
	Kind     EventKind
	Message  string
	CanUndo  bool
	Approval *protocol.ApprovalRequest
	Err      error
}

// ActionExecutor dispatches named editor actions. A nil Execute return
// means accepted for dispatch; completion arrives on Completed.
type ActionExecutor interface {
	Execute(code string, params map[string]any) error
	IsEnabled(code string) bool
	Available() []string
	Completed() <-chan string
}

// StateReader answers read-only queries against the current project.
type StateReader interface {
	SelectionStart() float64
	SelectionEnd() float64
	HasSelection() bool
	SelectedTracks() []int64
	SelectedClips() []editor.ClipKey
	TrackList() []editor.TrackInfo
	CursorPosition() float64
	TotalDuration() float64
}

// AudioExporter produces the transcription mixdown file.
type AudioExporter interface {
	Export() (path string, err error)
}

// TranscriptSink stores transcript_data payloads.
type TranscriptSink interface {
	Save(ctx context.Context, t protocol.Transcript) (int64, error)
}

// Options configures a Bridge. Interpreter and ScriptPaths are required;
// the collaborators may be nil, in which case the matching requests fail
// with descriptive tool results instead of failing the bridge.
type Options struct {
	Interpreter string
	ScriptPaths []string

	Spawner     Spawner // defaults to ExecSpawner
	Actions     ActionExecutor
	State       StateReader
	Exporter    AudioExporter
	Transcripts TranscriptSink

	// LogWriter receives diagnostic output, including the agent's stderr.
	// Defaults to io.Discard.
	LogWriter io.Writer

	// Lifecycle timings; zero values take the defaults (5s, 3s, 1s).
	StartTimeout time.Duration
	StopGrace    time.Duration
	KillWait     time.Duration
}

const (
	defaultStartTimeout = 5 * time.Second
	defaultStopGrace    = 3 * time.Second
	defaultKillWait     = 1 * time.Second
)

// Bridge supervises exactly one agent process and speaks the line protocol
// with it. Inbound frames are handled to completion one at a time.
type Bridge struct {
	interpreter string
	scriptPaths []string
	spawner     Spawner
	logw        io.Writer

	tools   *ToolCallHandler
	queries *StateQueryHandler

	transcripts TranscriptSink
	actions     ActionExecutor

	startTimeout time.Duration
	stopGrace    time.Duration
	killWait     time.Duration

	events chan Event

	mu      sync.Mutex
	state   State
	proc    Process
	framer  protocol.LineFramer
	pending string // pending approval ID, empty when none
	wg      sync.WaitGroup
}

// New creates a Bridge in the Uninitialized state.
func New(opts Options) *Bridge {
	spawner := opts.Spawner
	if spawner == nil {
		spawner = &ExecSpawner{}
	}
	logw := opts.LogWriter
	if logw == nil {
		logw = io.Discard
	}
	b := &Bridge{
		interpreter:  opts.Interpreter,
		scriptPaths:  opts.ScriptPaths,
		spawner:      spawner,
		logw:         logw,
		transcripts:  opts.Transcripts,
		actions:      opts.Actions,
		startTimeout: opts.StartTimeout,
		stopGrace:    opts.StopGrace,
		killWait:     opts.KillWait,
		events:       make(chan Event, 128),
		state:        StateUninitialized,
	}
	if b.startTimeout <= 0 {
		b.startTimeout = defaultStartTimeout
	}
	if b.stopGrace <= 0 {
		b.stopGrace = defaultStopGrace
	}
	if b.killWait <= 0 {
		b.killWait = defaultKillWait
	}
	b.tools = &ToolCallHandler{actions: opts.Actions}
	b.queries = &StateQueryHandler{state: opts.State, actions: opts.Actions, exporter: opts.Exporter}
	return b
}

// Events delivers bridge events to the host application. The channel is
// never closed; consumers stop reading after Stop returns.
func (b *Bridge) Events() <-chan Event { return b.events }

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start resolves the agent script, spawns the process, and begins draining
// its output streams. It fails with *protocol.StartupError when the script
// is missing, the spawn fails, or the process does not come up within the
// start timeout.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StateUninitialized && b.state != StateStopped {
		st := b.state
		b.mu.Unlock()
		return &protocol.StartupError{Reason: fmt.Sprintf("bridge already %s", st)}
	}
	b.state = StateStarting
	b.mu.Unlock()

	script, err := ResolveScript(b.scriptPaths)
	if err != nil {
		b.setState(StateStopped)
		return err
	}
	fmt.Fprintf(b.logw, "bridge: using agent script %s\n", script)

	type spawned struct {
		proc Process
		err  error
	}
	ch := make(chan spawned, 1)
	go func() {
		proc, err := b.spawner.Spawn(ctx, b.interpreter, script)
		ch <- spawned{proc, err}
	}()

	var proc Process
	select {
	case s := <-ch:
		if s.err != nil {
			b.setState(StateStopped)
			return &protocol.StartupError{Reason: "failed to spawn agent process", Err: s.err}
		}
		proc = s.proc
	case <-time.After(b.startTimeout):
		// A spawn that loses the race would leak a running process;
		// reap it when it eventually arrives.
		go func() {
			if s := <-ch; s.err == nil && s.proc != nil {
				_ = s.proc.Kill()
			}
		}()
		b.setState(StateStopped)
		return &protocol.StartupError{
			Reason: fmt.Sprintf("agent process did not start within %s", b.startTimeout),
		}
	}

	b.mu.Lock()
	b.proc = proc
	b.framer.Reset()
	b.state = StateRunning
	b.mu.Unlock()

	b.wg.Add(3)
	go b.drainStdout(ctx, proc)
	go b.drainStderr(proc)
	go b.watchExit(proc)

	if b.actions != nil {
		b.wg.Add(1)
		go b.forwardCompletions(ctx, proc)
	}

	fmt.Fprintf(b.logw, "bridge: agent process running\n")
	return nil
}

// Stop terminates the agent process: a best-effort shutdown frame, then
// SIGTERM, then SIGKILL after the grace period. Idempotent and valid from
// any state.
func (b *Bridge) Stop() {
	b.mu.Lock()
	proc := b.proc
	st := b.state
	if st == StateStopped || st == StateStopping {
		b.mu.Unlock()
		return
	}
	b.state = StateStopping
	b.proc = nil
	b.mu.Unlock()

	if proc != nil {
		// The agent exits cleanly on a shutdown frame; escalate if not.
		if frame, err := protocol.Encode(protocol.Envelope{Type: protocol.TypeShutdown}); err == nil {
			_, _ = proc.Stdin().Write(frame)
		}
		_ = proc.Signal(syscall.SIGTERM)
		select {
		case <-proc.Done():
		case <-time.After(b.stopGrace):
			fmt.Fprintf(b.logw, "bridge: agent did not terminate, killing\n")
			_ = proc.Kill()
			select {
			case <-proc.Done():
			case <-time.After(b.killWait):
			}
		}
	}

	b.setState(StateStopped)
	fmt.Fprintf(b.logw, "bridge: stopped\n")
}

// SendMessage forwards a user chat message to the agent.
func (b *Bridge) SendMessage(text string) error {
	return b.send("message", protocol.Envelope{
		Type:        protocol.TypeMessage,
		UserMessage: &protocol.UserMessage{Message: text},
	})
}

// SendApproval resolves the pending approval request. The ID must match the
// pending ID exactly or share its base after stripping a `_step_N` suffix.
func (b *Bridge) SendApproval(approvalID string, approved, batchMode bool) error {
	b.mu.Lock()
	pending := b.pending
	b.mu.Unlock()

	if pending != "" && !approvalMatches(pending, approvalID) {
		return fmt.Errorf("approval id %q does not match pending %q", approvalID, pending)
	}

	err := b.send("approval", protocol.Envelope{
		Type: protocol.TypeApproval,
		Approval: &protocol.Approval{
			ApprovalID: approvalID,
			Approved:   approved,
			BatchMode:  batchMode,
		},
	})
	if err == nil {
		b.mu.Lock()
		b.pending = ""
		b.mu.Unlock()
	}
	return err
}

// CancelPending rejects the pending approval request, if any.
func (b *Bridge) CancelPending() error {
	b.mu.Lock()
	pending := b.pending
	b.pending = ""
	b.mu.Unlock()
	if pending == "" {
		return nil
	}
	return b.send("approval", protocol.Envelope{
		Type:     protocol.TypeApproval,
		Approval: &protocol.Approval{ApprovalID: pending, Approved: false},
	})
}

// PendingApprovalID returns the ID of the unresolved approval request, or
// empty.
func (b *Bridge) PendingApprovalID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// approvalMatches reports whether id resolves the pending approval: an
// exact match, a step-suffixed child of it, or a shared `_step_` base.
func approvalMatches(pending, id string) bool {
	if pending == id || strings.HasPrefix(id, pending) {
		return true
	}
	if base, _, found := strings.Cut(id, "_step_"); found {
		return base == pending
	}
	return false
}

// send encodes env and writes it to the agent's stdin. Writes are
// synchronous; a missing process or short write is a *protocol.LinkError.
func (b *Bridge) send(op string, env protocol.Envelope) error {
	b.mu.Lock()
	proc := b.proc
	st := b.state
	b.mu.Unlock()

	if proc == nil || st != StateRunning {
		return &protocol.LinkError{Op: op, Reason: "agent process not running"}
	}

	frame, err := protocol.Encode(env)
	if err != nil {
		return &protocol.LinkError{Op: op, Reason: err.Error()}
	}
	n, err := proc.Stdin().Write(frame)
	if err != nil {
		return &protocol.LinkError{Op: op, Reason: err.Error()}
	}
	if n != len(frame) {
		return &protocol.LinkError{Op: op, Reason: fmt.Sprintf("short write: %d of %d bytes", n, len(frame))}
	}
	return nil
}

// setState transitions to st under the lock.
func (b *Bridge) setState(st State) {
	b.mu.Lock()
	b.state = st
	b.mu.Unlock()
}

// emit delivers ev to the host application.
func (b *Bridge) emit(ev Event) {
	b.events <- ev
}

// drainStdout reads the agent's stdout and handles each complete frame to
// completion, one at a time, before the next buffered frame is decoded.
func (b *Bridge) drainStdout(ctx context.Context, proc Process) {
	defer b.wg.Done()

	buf := make([]byte, 4096)
	for {
		n, err := proc.Stdout().Read(buf)
		if n > 0 {
			b.mu.Lock()
			frames := b.framer.Push(buf[:n])
			b.mu.Unlock()
			for _, frame := range frames {
				b.handleFrame(ctx, frame)
			}
		}
		if err != nil {
			return
		}
	}
}

// drainStderr forwards the agent's stderr to the diagnostic log.
func (b *Bridge) drainStderr(proc Process) {
	defer b.wg.Done()

	buf := make([]byte, 4096)
	for {
		n, err := proc.Stderr().Read(buf)
		if n > 0 {
			fmt.Fprintf(b.logw, "agent: %s", buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// watchExit surfaces an unexpected exit from Running as exactly one crash
// event and the Crashed state. A stop-initiated exit is not a crash.
func (b *Bridge) watchExit(proc Process) {
	defer b.wg.Done()

	<-proc.Done()

	b.mu.Lock()
	if b.state != StateRunning || b.proc != proc {
		b.mu.Unlock()
		return
	}
	b.state = StateCrashed
	b.proc = nil
	b.mu.Unlock()

	cerr := &protocol.CrashError{ExitCode: exitCode(proc.ExitErr()), Reason: "unexpected exit"}
	fmt.Fprintf(b.logw, "bridge: %v\n", cerr)
	b.emit(Event{Kind: EventCrash, Message: "Agent process stopped unexpectedly", Err: cerr})
}

// forwardCompletions surfaces action completion notifications as feedback
// events, preserving the executor's separate completion contract.
func (b *Bridge) forwardCompletions(ctx context.Context, proc Process) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-proc.Done():
			return
		case code, ok := <-b.actions.Completed():
			if !ok {
				return
			}
			b.emit(Event{Kind: EventFeedback, Message: "Completed: " + code})
		}
	}
}
