package bridge

import "aubridge/pkg/protocol"

// ToolCallHandler executes agent tool calls against the action executor.
// Success in the result means accepted for dispatch, not fully applied:
// completion is observed separately on the executor's Completed channel.
type ToolCallHandler struct {
	actions ActionExecutor
}

// Handle executes one tool call at most once. Every failure mode yields a
// failed result with a human-readable error, never a bridge fault.
func (h *ToolCallHandler) Handle(call *protocol.ToolCall) *protocol.ToolResult {
	if h.actions == nil {
		return &protocol.ToolResult{
			CallID:  call.CallID,
			Success: false,
			Error:   "Action executor not available",
		}
	}

	result := &protocol.ToolResult{
		CallID:     call.CallID,
		ToolName:   call.ToolName,
		ActionCode: call.ActionCode,
	}
	if err := h.actions.Execute(call.ActionCode, call.Parameters); err != nil {
		result.Success = false
		result.Error = err.Error()
		return result
	}
	result.Success = true
	result.Message = "Action executed successfully"
	return result
}
