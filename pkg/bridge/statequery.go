package bridge

import (
	"fmt"
	"os"

	"aubridge/pkg/protocol"
)

// wavHeaderSize is the byte size of a header-only WAV file; an export must
// exceed it to contain any audio.
const wavHeaderSize = 44

// StateQueryHandler answers the fixed catalogue of read-only state queries.
// Queries never mutate editor state; an unknown query type is a failed
// result with an explicit message, never a fault.
type StateQueryHandler struct {
	state    StateReader
	actions  ActionExecutor
	exporter AudioExporter
}

// Handle answers one state query.
func (h *StateQueryHandler) Handle(q *protocol.StateQuery) *protocol.ToolResult {
	result := &protocol.ToolResult{
		CallID:    q.CallID,
		QueryType: q.QueryType,
	}

	if q.QueryType == "export_audio_for_transcription" {
		return h.exportAudio(result)
	}

	if h.state == nil {
		result.Error = "State reader not available"
		return result
	}

	switch q.QueryType {
	case "get_selection_start_time":
		result.Value = h.state.SelectionStart()
	case "get_selection_end_time":
		result.Value = h.state.SelectionEnd()
	case "has_time_selection":
		result.Value = h.state.HasSelection()
	case "get_selected_tracks":
		result.Value = h.state.SelectedTracks()
	case "get_selected_clips":
		result.Value = h.state.SelectedClips()
	case "get_track_list":
		result.Value = h.state.TrackList()
	case "get_cursor_position":
		result.Value = h.state.CursorPosition()
	case "get_total_duration":
		result.Value = h.state.TotalDuration()
	case "is_action_enabled":
		code, ok := q.Parameters["action_code"].(string)
		if !ok || code == "" {
			result.Error = "is_action_enabled requires an action_code parameter"
			return result
		}
		if h.actions == nil {
			result.Error = "Action executor not available"
			return result
		}
		result.Value = h.actions.IsEnabled(code)
	default:
		result.Error = fmt.Sprintf("Unknown query type: %s", q.QueryType)
		return result
	}

	result.Success = true
	return result
}

// exportAudio runs the mixdown synchronously and validates that the output
// holds more than a bare WAV header before reporting success.
func (h *StateQueryHandler) exportAudio(result *protocol.ToolResult) *protocol.ToolResult {
	if h.exporter == nil {
		result.Error = "Audio exporter not available"
		return result
	}

	path, err := h.exporter.Export()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	info, err := os.Stat(path)
	if err != nil {
		result.Error = fmt.Sprintf("exported file missing: %v", err)
		return result
	}
	if info.Size() <= wavHeaderSize {
		result.Error = fmt.Sprintf("exported file contains no audio (%d bytes)", info.Size())
		return result
	}

	result.Success = true
	result.Value = path
	return result
}
