package protocol

import (
	"encoding/json"
	"fmt"
)

// wireFrame is the superset of fields that can appear on any frame. Decode
// reads into it and builds the typed variant; Encode flattens the variant
// back. Field order here fixes the canonical encoding order.
type wireFrame struct {
	Type MessageType `json:"type"`

	// message (inbound) / error / clarification_needed
	Content string `json:"content,omitempty"`
	CanUndo bool   `json:"can_undo,omitempty"`

	// message (outbound)
	Message string `json:"message,omitempty"`

	// approval_request / approval
	ApprovalID   string `json:"approval_id,omitempty"`
	Description  string `json:"description,omitempty"`
	Preview      string `json:"preview,omitempty"`
	CurrentStep  *int   `json:"current_step,omitempty"`
	TotalSteps   *int   `json:"total_steps,omitempty"`
	ApprovalMode string `json:"approval_mode,omitempty"`
	Approved     *bool  `json:"approved,omitempty"`
	BatchMode    *bool  `json:"batch_mode,omitempty"`

	// tool_call / state_query
	CallID     string         `json:"call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ActionCode string         `json:"action_code,omitempty"`
	QueryType  string         `json:"query_type,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`

	// tool_result
	Result *ToolResult `json:"result,omitempty"`

	// transcript_data
	Transcript *Transcript `json:"transcript,omitempty"`
}

// Decode converts one frame (without its newline delimiter) into a typed
// Envelope. A malformed frame or unknown type yields a *ParseError and never
// a partially populated envelope.
func Decode(line []byte) (Envelope, error) {
	var w wireFrame
	if err := json.Unmarshal(line, &w); err != nil {
		return Envelope{}, &ParseError{Line: string(line), Reason: "invalid JSON", Err: err}
	}

	switch w.Type {
	case TypeMessage:
		return Envelope{Type: TypeMessage, Message: &Message{
			Content: w.Content,
			CanUndo: w.CanUndo,
		}}, nil

	case TypeApprovalRequest:
		req := &ApprovalRequest{
			ID:           w.ApprovalID,
			Description:  w.Description,
			Preview:      w.Preview,
			TotalSteps:   1,
			ApprovalMode: ApprovalModeBatch,
		}
		if w.CurrentStep != nil {
			req.CurrentStep = *w.CurrentStep
		}
		if w.TotalSteps != nil {
			req.TotalSteps = *w.TotalSteps
		}
		if w.ApprovalMode != "" {
			req.ApprovalMode = w.ApprovalMode
		}
		return Envelope{Type: TypeApprovalRequest, ApprovalRequest: req}, nil

	case TypeToolCall:
		if w.CallID == "" {
			return Envelope{}, &ParseError{Line: string(line), Reason: "tool_call missing call_id"}
		}
		return Envelope{Type: TypeToolCall, ToolCall: &ToolCall{
			CallID:     w.CallID,
			ToolName:   w.ToolName,
			ActionCode: w.ActionCode,
			Parameters: w.Parameters,
		}}, nil

	case TypeStateQuery:
		if w.CallID == "" {
			return Envelope{}, &ParseError{Line: string(line), Reason: "state_query missing call_id"}
		}
		return Envelope{Type: TypeStateQuery, StateQuery: &StateQuery{
			CallID:     w.CallID,
			QueryType:  w.QueryType,
			Parameters: w.Parameters,
		}}, nil

	case TypeToolResult:
		if w.Result == nil {
			return Envelope{}, &ParseError{Line: string(line), Reason: "tool_result missing result"}
		}
		return Envelope{Type: TypeToolResult, ToolResult: w.Result}, nil

	case TypeError, TypeClarification:
		return Envelope{Type: w.Type, Error: &ErrorContent{Content: w.Content}}, nil

	case TypeTranscriptData:
		if w.Transcript == nil {
			return Envelope{}, &ParseError{Line: string(line), Reason: "transcript_data missing transcript"}
		}
		return Envelope{Type: TypeTranscriptData, Transcript: w.Transcript}, nil

	case "":
		return Envelope{}, &ParseError{Line: string(line), Reason: "missing type field"}

	default:
		return Envelope{}, &ParseError{Line: string(line), Reason: fmt.Sprintf("unknown type %q", w.Type)}
	}
}

// Encode converts an Envelope into exactly one newline-terminated frame.
func Encode(env Envelope) ([]byte, error) {
	w := wireFrame{Type: env.Type}

	switch env.Type {
	case TypeMessage:
		switch {
		case env.UserMessage != nil:
			w.Message = env.UserMessage.Message
		case env.Message != nil:
			w.Content = env.Message.Content
			w.CanUndo = env.Message.CanUndo
		default:
			return nil, fmt.Errorf("encode message: no payload")
		}

	case TypeApproval:
		if env.Approval == nil {
			return nil, fmt.Errorf("encode approval: no payload")
		}
		w.ApprovalID = env.Approval.ApprovalID
		w.Approved = &env.Approval.Approved
		w.BatchMode = &env.Approval.BatchMode

	case TypeApprovalRequest:
		if env.ApprovalRequest == nil {
			return nil, fmt.Errorf("encode approval_request: no payload")
		}
		req := env.ApprovalRequest
		w.ApprovalID = req.ID
		w.Description = req.Description
		w.Preview = req.Preview
		w.CurrentStep = &req.CurrentStep
		w.TotalSteps = &req.TotalSteps
		w.ApprovalMode = req.ApprovalMode

	case TypeToolCall:
		if env.ToolCall == nil {
			return nil, fmt.Errorf("encode tool_call: no payload")
		}
		w.CallID = env.ToolCall.CallID
		w.ToolName = env.ToolCall.ToolName
		w.ActionCode = env.ToolCall.ActionCode
		w.Parameters = env.ToolCall.Parameters

	case TypeStateQuery:
		if env.StateQuery == nil {
			return nil, fmt.Errorf("encode state_query: no payload")
		}
		w.CallID = env.StateQuery.CallID
		w.QueryType = env.StateQuery.QueryType
		w.Parameters = env.StateQuery.Parameters

	case TypeToolResult:
		if env.ToolResult == nil {
			return nil, fmt.Errorf("encode tool_result: no payload")
		}
		w.Result = env.ToolResult

	case TypeError, TypeClarification:
		if env.Error == nil {
			return nil, fmt.Errorf("encode %s: no payload", env.Type)
		}
		w.Content = env.Error.Content

	case TypeTranscriptData:
		if env.Transcript == nil {
			return nil, fmt.Errorf("encode transcript_data: no payload")
		}
		w.Transcript = env.Transcript

	case TypeShutdown:
		// Type tag only.

	default:
		return nil, fmt.Errorf("encode: unknown type %q", env.Type)
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	return append(data, '\n'), nil
}
