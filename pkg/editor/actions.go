// Package editor provides the bridge's editor-side collaborators: the
// action registry the agent's tool calls dispatch into, the read-only state
// surface its queries run against, and the in-memory project model backing
// both.
package editor

import (
	"sync"

	"aubridge/pkg/protocol"
)

// ActionFunc applies a registered action to the project.
type ActionFunc func(params map[string]any) error

// action is one registry entry.
type action struct {
	fn      ActionFunc
	enabled bool
}

// Registry dispatches named editor actions. Execute returns once the action
// is accepted for dispatch; completion is signalled separately on
// Completed(). Callers that need the stronger guarantee must wait on that
// channel themselves.
type Registry struct {
	mu        sync.Mutex
	actions   map[string]*action
	completed chan string
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{
		actions:   make(map[string]*action),
		completed: make(chan string, 64),
	}
}

// Register adds an action under code. Registering an existing code replaces
// its handler. Actions start enabled.
func (r *Registry) Register(code string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[code] = &action{fn: fn, enabled: true}
}

// SetEnabled toggles whether a registered action may be dispatched.
func (r *Registry) SetEnabled(code string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.actions[code]; ok {
		a.enabled = enabled
	}
}

// IsEnabled reports whether code is registered and currently enabled.
func (r *Registry) IsEnabled(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actions[code]
	return ok && a.enabled
}

// Available returns the registered action codes.
func (r *Registry) Available() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, 0, len(r.actions))
	for code := range r.actions {
		codes = append(codes, code)
	}
	return codes
}

// Execute validates that code is enabled and registered, then dispatches it.
// A nil return means accepted for dispatch, not fully applied: the action
// runs on its own goroutine and its code is sent on Completed() when it
// finishes. Rejections are *protocol.ActionError and never run the handler.
func (r *Registry) Execute(code string, params map[string]any) error {
	r.mu.Lock()
	a, ok := r.actions[code]
	if ok && !a.enabled {
		r.mu.Unlock()
		return &protocol.ActionError{Code: code, Reason: "action not enabled"}
	}
	if !ok {
		r.mu.Unlock()
		return &protocol.ActionError{Code: code, Reason: "action not registered"}
	}
	fn := a.fn
	r.mu.Unlock()

	go func() {
		_ = fn(params)
		select {
		case r.completed <- code:
		default:
			// Completion channel full: drop rather than block dispatch.
		}
	}()
	return nil
}

// Completed delivers the code of each action that has finished running.
func (r *Registry) Completed() <-chan string {
	return r.completed
}
