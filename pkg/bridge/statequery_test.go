package bridge_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"aubridge/pkg/bridge"
	"aubridge/pkg/editor"
	"aubridge/pkg/protocol"
)

// fakeState is a canned StateReader.
type fakeState struct {
	selStart, selEnd float64
	cursor           float64
	duration         float64
	tracks           []editor.TrackInfo
	selected         []int64
	clips            []editor.ClipKey
}

func (s *fakeState) SelectionStart() float64         { return s.selStart }
func (s *fakeState) SelectionEnd() float64           { return s.selEnd }
func (s *fakeState) HasSelection() bool              { return s.selEnd > s.selStart }
func (s *fakeState) SelectedTracks() []int64         { return s.selected }
func (s *fakeState) SelectedClips() []editor.ClipKey { return s.clips }
func (s *fakeState) TrackList() []editor.TrackInfo   { return s.tracks }
func (s *fakeState) CursorPosition() float64         { return s.cursor }
func (s *fakeState) TotalDuration() float64          { return s.duration }

// fakeActions records Execute calls and answers IsEnabled from a set.
type fakeActions struct {
	enabled   map[string]bool
	execErr   error
	executed  []string
	completed chan string
}

func newFakeActions() *fakeActions {
	return &fakeActions{
		enabled:   map[string]bool{},
		completed: make(chan string, 8),
	}
}

func (a *fakeActions) Execute(code string, _ map[string]any) error {
	if a.execErr != nil {
		return a.execErr
	}
	a.executed = append(a.executed, code)
	return nil
}

func (a *fakeActions) IsEnabled(code string) bool { return a.enabled[code] }

func (a *fakeActions) Available() []string {
	codes := make([]string, 0, len(a.enabled))
	for code := range a.enabled {
		codes = append(codes, code)
	}
	return codes
}

func (a *fakeActions) Completed() <-chan string { return a.completed }

// fakeExporter writes a WAV-sized file, or fails.
type fakeExporter struct {
	dir     string
	size    int
	err     error
	missing bool
}

func (e *fakeExporter) Export() (string, error) {
	if e.err != nil {
		return "", e.err
	}
	path := filepath.Join(e.dir, "mix.wav")
	if e.missing {
		return path, nil
	}
	if err := os.WriteFile(path, make([]byte, e.size), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// queryResult sends one inbound frame and decodes the tool_result answer.
func queryResult(t *testing.T, proc *mockProcess, frame string) *protocol.ToolResult {
	t.Helper()
	proc.emitFrame(t, frame)
	line := proc.nextStdin(t)
	env, err := protocol.Decode([]byte(line))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if env.Type != protocol.TypeToolResult {
		t.Fatalf("answer type = %s, want tool_result", env.Type)
	}
	return env.ToolResult
}

func TestStateQueryCatalogue(t *testing.T) {
	t.Parallel()

	state := &fakeState{
		selStart: 1.5,
		selEnd:   4.25,
		cursor:   2.0,
		duration: 30.5,
		selected: []int64{1, 3},
		clips:    []editor.ClipKey{{TrackID: 1, ClipID: 0}},
		tracks: []editor.TrackInfo{
			{ID: 1, Name: "Vocals", SampleRate: 44100},
		},
	}
	actions := newFakeActions()
	actions.enabled["split"] = true

	_, proc := startBridge(t, bridge.Options{State: state, Actions: actions})

	tests := []struct {
		queryType string
		want      any
	}{
		{"get_selection_start_time", 1.5},
		{"get_selection_end_time", 4.25},
		{"has_time_selection", true},
		{"get_cursor_position", 2.0},
		{"get_total_duration", 30.5},
	}
	for i, tt := range tests {
		frame := fmt.Sprintf(`{"type":"state_query","call_id":"q%d","query_type":"%s"}`, i, tt.queryType)
		res := queryResult(t, proc, frame)
		if !res.Success {
			t.Errorf("%s failed: %s", tt.queryType, res.Error)
			continue
		}
		if res.Value != tt.want {
			t.Errorf("%s = %v, want %v", tt.queryType, res.Value, tt.want)
		}
	}

	res := queryResult(t, proc, `{"type":"state_query","call_id":"qt","query_type":"get_track_list"}`)
	if !res.Success {
		t.Fatalf("get_track_list failed: %s", res.Error)
	}
	tracks, ok := res.Value.([]any)
	if !ok || len(tracks) != 1 {
		t.Fatalf("track list = %v", res.Value)
	}
	track, _ := tracks[0].(map[string]any)
	if track["name"] != "Vocals" {
		t.Errorf("track name = %v, want Vocals", track["name"])
	}
}

func TestStateQueryIsActionEnabled(t *testing.T) {
	t.Parallel()

	actions := newFakeActions()
	actions.enabled["split"] = true

	_, proc := startBridge(t, bridge.Options{State: &fakeState{}, Actions: actions})

	res := queryResult(t, proc, `{"type":"state_query","call_id":"q1","query_type":"is_action_enabled","parameters":{"action_code":"split"}}`)
	if !res.Success || res.Value != true {
		t.Errorf("expected split enabled, got %+v", res)
	}

	res = queryResult(t, proc, `{"type":"state_query","call_id":"q2","query_type":"is_action_enabled","parameters":{"action_code":"trim"}}`)
	if !res.Success || res.Value != false {
		t.Errorf("expected trim disabled, got %+v", res)
	}

	res = queryResult(t, proc, `{"type":"state_query","call_id":"q3","query_type":"is_action_enabled"}`)
	if res.Success || res.Error == "" {
		t.Errorf("expected missing action_code to fail, got %+v", res)
	}
}

func TestStateQueryUnknownType(t *testing.T) {
	t.Parallel()

	b, proc := startBridge(t, bridge.Options{State: &fakeState{}})

	res := queryResult(t, proc, `{"type":"state_query","call_id":"q1","query_type":"get_weather"}`)
	if res.Success {
		t.Fatal("unknown query reported success")
	}
	if res.Error != "Unknown query type: get_weather" {
		t.Errorf("error = %q", res.Error)
	}
	if b.State() != bridge.StateRunning {
		t.Errorf("bridge state = %s, want running", b.State())
	}
}

func TestStateQueryNoStateReader(t *testing.T) {
	t.Parallel()

	_, proc := startBridge(t, bridge.Options{})

	res := queryResult(t, proc, `{"type":"state_query","call_id":"q1","query_type":"get_cursor_position"}`)
	if res.Success || res.Error != "State reader not available" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExportAudioQuery(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exp := &fakeExporter{dir: dir, size: 44 + 200}
	_, proc := startBridge(t, bridge.Options{Exporter: exp})

	res := queryResult(t, proc, `{"type":"state_query","call_id":"q1","query_type":"export_audio_for_transcription"}`)
	if !res.Success {
		t.Fatalf("export failed: %s", res.Error)
	}
	path, ok := res.Value.(string)
	if !ok || filepath.Dir(path) != dir {
		t.Errorf("export path = %v", res.Value)
	}
}

func TestExportAudioQueryHeaderOnlyFile(t *testing.T) {
	t.Parallel()

	exp := &fakeExporter{dir: t.TempDir(), size: 44}
	_, proc := startBridge(t, bridge.Options{Exporter: exp})

	res := queryResult(t, proc, `{"type":"state_query","call_id":"q1","query_type":"export_audio_for_transcription"}`)
	if res.Success {
		t.Fatal("header-only export reported success")
	}
}

func TestExportAudioQueryFailure(t *testing.T) {
	t.Parallel()

	exp := &fakeExporter{err: errors.New("no tracks to export")}
	_, proc := startBridge(t, bridge.Options{Exporter: exp})

	res := queryResult(t, proc, `{"type":"state_query","call_id":"q1","query_type":"export_audio_for_transcription"}`)
	if res.Success || res.Error != "no tracks to export" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExportAudioQueryNoExporter(t *testing.T) {
	t.Parallel()

	_, proc := startBridge(t, bridge.Options{})

	res := queryResult(t, proc, `{"type":"state_query","call_id":"q1","query_type":"export_audio_for_transcription"}`)
	if res.Success || res.Error != "Audio exporter not available" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestToolCallExecutes(t *testing.T) {
	t.Parallel()

	actions := newFakeActions()
	_, proc := startBridge(t, bridge.Options{Actions: actions})

	res := queryResult(t, proc, `{"type":"tool_call","call_id":"c1","tool_name":"apply_effect","action_code":"normalize","parameters":{"db":-1}}`)
	if !res.Success || res.Message != "Action executed successfully" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.CallID != "c1" || res.ActionCode != "normalize" {
		t.Errorf("result identity: %+v", res)
	}
}

func TestToolCallExecuteError(t *testing.T) {
	t.Parallel()

	actions := newFakeActions()
	actions.execErr = &protocol.ActionError{Code: "normalize", Reason: "action disabled"}
	_, proc := startBridge(t, bridge.Options{Actions: actions})

	res := queryResult(t, proc, `{"type":"tool_call","call_id":"c2","action_code":"normalize"}`)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error == "" {
		t.Error("error message empty")
	}
}

func TestCompletionFeedback(t *testing.T) {
	t.Parallel()

	actions := newFakeActions()
	b, _ := startBridge(t, bridge.Options{Actions: actions})

	actions.completed <- "normalize"
	ev := nextEvent(t, b)
	if ev.Kind != bridge.EventFeedback || ev.Message != "Completed: normalize" {
		t.Errorf("unexpected event: %+v", ev)
	}
}
