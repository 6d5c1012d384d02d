package editor

import (
	"sync"

	"aubridge/pkg/mixdown"
)

// ClipKey identifies one clip on one track.
type ClipKey struct {
	TrackID int64 `json:"track_id"`
	ClipID  int64 `json:"clip_id"`
}

// Clip is a titled region of a track.
type Clip struct {
	Key   ClipKey
	Title string
	Start float64
	End   float64
}

// Track is one audio track: mono samples starting at Start seconds on the
// project timeline, with per-track mute and linear volume.
type Track struct {
	ID         int64
	Name       string
	SampleRate int
	Start      float64
	Muted      bool
	Volume     float64
	Samples    []float32
}

// End returns the track's end position in seconds on the project timeline.
func (t *Track) End() float64 {
	if t.SampleRate <= 0 {
		return t.Start
	}
	return t.Start + float64(len(t.Samples))/float64(t.SampleRate)
}

// TrackInfo is the read-only track summary returned to state queries.
type TrackInfo struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	SampleRate int     `json:"sample_rate"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Muted      bool    `json:"muted"`
	Volume     float64 `json:"volume"`
}

// Project is the in-memory editor project: tracks, clips, selection and
// cursor. Reads taken during an export are a best-effort snapshot, not
// transactionally isolated from concurrent edits.
type Project struct {
	mu sync.RWMutex

	SampleRate int

	tracks []*Track
	clips  []Clip

	selStart, selEnd float64
	selectedTracks   []int64
	selectedClips    []ClipKey
	cursor           float64
}

// NewProject creates an empty project at the given sample rate.
func NewProject(sampleRate int) *Project {
	return &Project{SampleRate: sampleRate}
}

// AddTrack appends a track and returns it. A zero Volume is normalized to
// unity gain.
func (p *Project) AddTrack(t Track) *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.Volume == 0 {
		t.Volume = 1.0
	}
	if t.ID == 0 {
		t.ID = int64(len(p.tracks) + 1)
	}
	tr := &t
	p.tracks = append(p.tracks, tr)
	return tr
}

// AddClip records a clip region.
func (p *Project) AddClip(c Clip) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clips = append(p.clips, c)
}

// Track returns the track with the given ID, or nil.
func (p *Project) Track(id int64) *Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// SetMuted toggles a track's mute flag.
func (p *Project) SetMuted(id int64, muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.tracks {
		if t.ID == id {
			t.Muted = muted
		}
	}
}

// SetSelection sets the time selection in seconds.
func (p *Project) SetSelection(start, end float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selStart, p.selEnd = start, end
}

// SelectTracks replaces the selected track set.
func (p *Project) SelectTracks(ids []int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectedTracks = append([]int64(nil), ids...)
}

// SelectClips replaces the selected clip set.
func (p *Project) SelectClips(keys []ClipKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selectedClips = append([]ClipKey(nil), keys...)
}

// SetCursor moves the playback cursor.
func (p *Project) SetCursor(pos float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = pos
}

// --- StateReader surface ---

// SelectionStart returns the selection start in seconds.
func (p *Project) SelectionStart() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selStart
}

// SelectionEnd returns the selection end in seconds.
func (p *Project) SelectionEnd() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selEnd
}

// HasSelection reports whether a non-empty time selection or any selected
// clips exist.
func (p *Project) HasSelection() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selEnd > p.selStart || len(p.selectedClips) > 0
}

// SelectedTracks returns the selected track IDs.
func (p *Project) SelectedTracks() []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]int64(nil), p.selectedTracks...)
}

// SelectedClips returns the selected clip keys.
func (p *Project) SelectedClips() []ClipKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ClipKey(nil), p.selectedClips...)
}

// TrackList returns read-only summaries of all tracks.
func (p *Project) TrackList() []TrackInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	infos := make([]TrackInfo, 0, len(p.tracks))
	for _, t := range p.tracks {
		infos = append(infos, TrackInfo{
			ID:         t.ID,
			Name:       t.Name,
			SampleRate: t.SampleRate,
			Start:      t.Start,
			End:        t.End(),
			Muted:      t.Muted,
			Volume:     t.Volume,
		})
	}
	return infos
}

// CursorPosition returns the playback cursor in seconds.
func (p *Project) CursorPosition() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cursor
}

// TotalDuration returns the end of the latest track in seconds.
func (p *Project) TotalDuration() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var total float64
	for _, t := range p.tracks {
		if end := t.End(); end > total {
			total = end
		}
	}
	return total
}

// MixTracks snapshots the track list for the mixdown exporter. Sample
// slices are shared, not copied: exports read whatever the tracks hold at
// the time each chunk is mixed.
func (p *Project) MixTracks() []mixdown.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tracks := make([]mixdown.Track, 0, len(p.tracks))
	for _, t := range p.tracks {
		tracks = append(tracks, mixdown.Track{
			Name:       t.Name,
			SampleRate: t.SampleRate,
			Start:      t.Start,
			Muted:      t.Muted,
			Volume:     t.Volume,
			Samples:    t.Samples,
		})
	}
	return tracks
}
