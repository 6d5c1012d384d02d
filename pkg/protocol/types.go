// Package protocol defines the line-delimited JSON wire protocol spoken
// between the editor and the external agent process: the envelope tagged
// union, the codec that converts frames to typed envelopes and back, the
// LineFramer that reconstructs frame boundaries from a raw byte stream, and
// the typed error taxonomy shared by the bridge.
package protocol

// MessageType tags an envelope on the wire.
type MessageType string

// Inbound envelope types (agent -> editor).
const (
	TypeMessage         MessageType = "message"
	TypeApprovalRequest MessageType = "approval_request"
	TypeToolCall        MessageType = "tool_call"
	TypeStateQuery      MessageType = "state_query"
	TypeToolResult      MessageType = "tool_result"
	TypeError           MessageType = "error"
	TypeClarification   MessageType = "clarification_needed"
	TypeTranscriptData  MessageType = "transcript_data"
)

// Outbound envelope types (editor -> agent). TypeMessage and TypeToolResult
// are used in both directions.
const (
	TypeApproval MessageType = "approval"
	TypeShutdown MessageType = "shutdown"
)

// Approval mode constants for ApprovalRequest.ApprovalMode.
const (
	ApprovalModeBatch      = "batch"
	ApprovalModeStepByStep = "step_by_step"
)

// Message is an assistant-authored chat message. CanUndo marks messages
// that describe an operation the user can undo.
type Message struct {
	Content string `json:"content"`
	CanUndo bool   `json:"can_undo,omitempty"`
}

// UserMessage is an outbound user chat message.
type UserMessage struct {
	Message string `json:"message"`
}

// Approval is the outbound resolution of a pending ApprovalRequest.
type Approval struct {
	ApprovalID string `json:"approval_id"`
	Approved   bool   `json:"approved"`
	BatchMode  bool   `json:"batch_mode"`
}

// ApprovalRequest asks the user to approve a planned operation. Step-by-step
// requests carry a `_step_N` suffix on the base ID.
type ApprovalRequest struct {
	ID           string `json:"approval_id"`
	Description  string `json:"description"`
	Preview      string `json:"preview,omitempty"`
	CurrentStep  int    `json:"current_step"`
	TotalSteps   int    `json:"total_steps"`
	ApprovalMode string `json:"approval_mode"`
}

// ToolCall requests execution of a named editor action. CallID is unique per
// call; the matching ToolResult must echo it exactly once.
type ToolCall struct {
	CallID     string         `json:"call_id"`
	ToolName   string         `json:"tool_name"`
	ActionCode string         `json:"action_code"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// StateQuery is a strictly read-only request for editor state.
type StateQuery struct {
	CallID     string         `json:"call_id"`
	QueryType  string         `json:"query_type"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ToolResult reports the outcome of a ToolCall or StateQuery. For tool calls
// Success means accepted for dispatch, not fully applied; completion is
// observed separately.
type ToolResult struct {
	CallID     string `json:"call_id"`
	ToolName   string `json:"tool_name,omitempty"`
	ActionCode string `json:"action_code,omitempty"`
	QueryType  string `json:"query_type,omitempty"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	Value      any    `json:"value,omitempty"`
}

// ErrorContent carries an error or clarification_needed frame.
type ErrorContent struct {
	Content string `json:"content"`
}

// Word is a single transcribed word with timing and confidence.
type Word struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
	IsFiller   bool    `json:"is_filler,omitempty"`
	Speaker    string  `json:"speaker,omitempty"`
}

// Utterance groups consecutive words from one speaker.
type Utterance struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Speaker   string  `json:"speaker,omitempty"`
	Words     []Word  `json:"words,omitempty"`
}

// Transcript is the payload of a transcript_data frame.
type Transcript struct {
	FullText    string      `json:"full_text"`
	Duration    float64     `json:"duration"`
	FillerCount int         `json:"filler_count"`
	Words       []Word      `json:"words,omitempty"`
	Utterances  []Utterance `json:"utterances,omitempty"`
}

// Envelope is one complete frame on the wire: a tagged union with exactly
// one payload pointer set for the given Type.
type Envelope struct {
	Type            MessageType
	Message         *Message
	UserMessage     *UserMessage
	Approval        *Approval
	ApprovalRequest *ApprovalRequest
	ToolCall        *ToolCall
	StateQuery      *StateQuery
	ToolResult      *ToolResult
	Error           *ErrorContent
	Transcript      *Transcript
}
