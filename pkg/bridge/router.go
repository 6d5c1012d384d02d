package bridge

import (
	"context"
	"fmt"
	"strings"

	"aubridge/pkg/protocol"
)

// canUndoSuffix is the legacy convention for marking undoable assistant
// messages inside the content itself; it is stripped here and folded into
// the typed flag.
const canUndoSuffix = "|canUndo:true"

// handleFrame decodes one frame and routes it. A parse failure becomes a
// user-visible error event and never halts the stream.
func (b *Bridge) handleFrame(ctx context.Context, frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		fmt.Fprintf(b.logw, "bridge: %v\n", err)
		b.emit(Event{Kind: EventError, Message: "Invalid message from agent", Err: err})
		return
	}
	b.route(ctx, env)
}

// route dispatches a decoded envelope to the handler for its type tag.
func (b *Bridge) route(ctx context.Context, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeMessage:
		content := env.Message.Content
		canUndo := env.Message.CanUndo
		if strings.HasSuffix(content, canUndoSuffix) {
			content = strings.TrimSuffix(content, canUndoSuffix)
			canUndo = true
		}
		b.emit(Event{Kind: EventMessage, Message: content, CanUndo: canUndo})

	case protocol.TypeApprovalRequest:
		b.mu.Lock()
		b.pending = env.ApprovalRequest.ID
		b.mu.Unlock()
		b.emit(Event{Kind: EventApproval, Approval: env.ApprovalRequest})

	case protocol.TypeToolCall:
		result := b.tools.Handle(env.ToolCall)
		b.sendToolResult(result)

	case protocol.TypeStateQuery:
		result := b.queries.Handle(env.StateQuery)
		b.sendToolResult(result)

	case protocol.TypeError:
		b.emit(Event{Kind: EventError, Message: env.Error.Content})

	case protocol.TypeClarification:
		b.emit(Event{Kind: EventMessage, Message: env.Error.Content})

	case protocol.TypeTranscriptData:
		b.storeTranscript(ctx, env.Transcript)

	case protocol.TypeToolResult:
		// The agent answers tool calls, it does not issue results.
		fmt.Fprintf(b.logw, "bridge: unexpected tool_result frame for call %s\n", env.ToolResult.CallID)
	}
}

// sendToolResult reports a handler outcome back to the agent. A dead link
// here surfaces as an error event; the result is already final.
func (b *Bridge) sendToolResult(result *protocol.ToolResult) {
	err := b.send("tool_result", protocol.Envelope{
		Type:       protocol.TypeToolResult,
		ToolResult: result,
	})
	if err != nil {
		fmt.Fprintf(b.logw, "bridge: %v\n", err)
		b.emit(Event{Kind: EventError, Message: "Failed to deliver tool result to agent", Err: err})
	}
}

// storeTranscript saves a transcript payload when a sink is attached.
func (b *Bridge) storeTranscript(ctx context.Context, t *protocol.Transcript) {
	if b.transcripts == nil {
		fmt.Fprintf(b.logw, "bridge: transcript received but no store attached\n")
		return
	}
	if _, err := b.transcripts.Save(ctx, *t); err != nil {
		b.emit(Event{Kind: EventError, Message: "Failed to store transcript", Err: err})
	}
}
