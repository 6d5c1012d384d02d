package mixdown_test

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"testing"

	"aubridge/pkg/mixdown"
	"aubridge/pkg/protocol"
)

// constTrack builds a track of constant amplitude at the given rate and
// extent [start, start+dur).
func constTrack(name string, rate int, start, dur float64, amp float32) mixdown.Track {
	n := int(math.Round(dur * float64(rate)))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = amp
	}
	return mixdown.Track{
		Name:       name,
		SampleRate: rate,
		Start:      start,
		Volume:     1.0,
		Samples:    samples,
	}
}

// q mirrors the exporter's quantization: float32 accumulation scaled by
// 32767 and truncated.
func q(amp float64) int16 {
	return int16(float32(amp) * 32767)
}

// readWAV parses a mono 16-bit WAV file written by the exporter.
func readWAV(t *testing.T, path string) (rate int, samples []int16) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if len(data) < 44 {
		t.Fatalf("file too small: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("not a RIFF/WAVE file")
	}
	if ch := binary.LittleEndian.Uint16(data[22:24]); ch != 1 {
		t.Fatalf("channels = %d, want mono", ch)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != 16 {
		t.Fatalf("bits per sample = %d, want 16", bits)
	}
	rate = int(binary.LittleEndian.Uint32(data[24:28]))
	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	if dataSize != len(data)-44 {
		t.Fatalf("data chunk size %d, file has %d payload bytes", dataSize, len(data)-44)
	}

	samples = make([]int16, dataSize/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[44+i*2:]))
	}
	return rate, samples
}

func newExporter(t *testing.T) *mixdown.Exporter {
	t.Helper()
	return &mixdown.Exporter{OutDir: t.TempDir()}
}

func TestExportNoTracks(t *testing.T) {
	t.Parallel()

	_, err := newExporter(t).Export(44100, nil)
	var xerr *protocol.ExportError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected *ExportError, got %v", err)
	}
}

func TestExportAllMuted(t *testing.T) {
	t.Parallel()

	tr := constTrack("a", 44100, 0, 1, 0.5)
	tr.Muted = true
	_, err := newExporter(t).Export(44100, []mixdown.Track{tr})
	var xerr *protocol.ExportError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected *ExportError, got %v", err)
	}
}

func TestExportSilentPlusConstant(t *testing.T) {
	t.Parallel()

	const amp = 0.25
	tracks := []mixdown.Track{
		constTrack("silent", 8000, 0, 1, 0),
		constTrack("tone", 8000, 0, 1, amp),
	}

	path, err := newExporter(t).Export(8000, tracks)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rate, samples := readWAV(t, path)
	if rate != 8000 {
		t.Errorf("rate = %d, want 8000", rate)
	}
	if len(samples) != 8000 {
		t.Fatalf("got %d samples, want 8000", len(samples))
	}
	want := q(amp)
	for i, s := range samples {
		if s != want {
			t.Fatalf("sample %d = %d, want %d", i, s, want)
		}
	}
}

func TestExportClippingSaturates(t *testing.T) {
	t.Parallel()

	tracks := []mixdown.Track{
		constTrack("hot1", 8000, 0, 0.5, 0.8),
		constTrack("hot2", 8000, 0, 0.5, 0.8),
	}
	path, err := newExporter(t).Export(8000, tracks)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	_, samples := readWAV(t, path)
	for i, s := range samples {
		if s != 32767 {
			t.Fatalf("sample %d = %d, want clipped 32767 (no wraparound)", i, s)
		}
	}

	// Negative sums saturate at the negative extremum.
	tracks = []mixdown.Track{
		constTrack("cold1", 8000, 0, 0.5, -0.8),
		constTrack("cold2", 8000, 0, 0.5, -0.8),
	}
	path, err = newExporter(t).Export(8000, tracks)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	_, samples = readWAV(t, path)
	for i, s := range samples {
		if s != -32767 {
			t.Fatalf("sample %d = %d, want clipped -32767", i, s)
		}
	}
}

func TestExportMutedMatchesSolo(t *testing.T) {
	t.Parallel()

	ex := newExporter(t)

	keep := constTrack("keep", 8000, 0, 1, 0.3)
	muted := constTrack("muted", 8000, 0.5, 2, 0.9)
	muted.Muted = true

	both, err := ex.Export(8000, []mixdown.Track{keep, muted})
	if err != nil {
		t.Fatalf("export both: %v", err)
	}
	solo, err := ex.Export(8000, []mixdown.Track{keep})
	if err != nil {
		t.Fatalf("export solo: %v", err)
	}

	_, a := readWAV(t, both)
	_, b := readWAV(t, solo)
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}

// TestExportPartialOverlap is the reference scenario: A = [0,2]s at 0.5,
// B = [1,3]s at 0.5, rate 44100. The mix spans [0,3]s; the overlap region
// sums to exactly 1.0 (boundary, not clipped).
func TestExportPartialOverlap(t *testing.T) {
	t.Parallel()

	const rate = 44100
	tracks := []mixdown.Track{
		constTrack("a", rate, 0, 2, 0.5),
		constTrack("b", rate, 1, 2, 0.5),
	}

	path, err := newExporter(t).Export(rate, tracks)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	gotRate, samples := readWAV(t, path)
	if gotRate != rate {
		t.Errorf("rate = %d, want %d", gotRate, rate)
	}
	if want := 3 * rate; len(samples) != want {
		t.Fatalf("got %d samples, want %d (3s span)", len(samples), want)
	}

	at := func(sec float64) int16 {
		return samples[int(sec*rate)]
	}
	half := q(0.5)
	if got := at(0.5); got != half {
		t.Errorf("t=0.5s: %d, want %d", got, half)
	}
	if got := at(1.5); got != 32767 {
		t.Errorf("t=1.5s: %d, want 32767 (boundary, not clipped)", got)
	}
	if got := at(2.5); got != half {
		t.Errorf("t=2.5s: %d, want %d", got, half)
	}
}

// TestExportChunkAlignment forces tiny chunks so track edges land mid-chunk
// and across chunk boundaries, exercising the narrowed reads.
func TestExportChunkAlignment(t *testing.T) {
	t.Parallel()

	const rate = 1000
	ex := &mixdown.Exporter{OutDir: t.TempDir(), ChunkSize: 333}
	tracks := []mixdown.Track{
		constTrack("a", rate, 0.1, 0.5, 0.4), // frames [100, 600)
		constTrack("b", rate, 0.9, 0.3, 0.2), // frames [800, 1100)
	}

	path, err := ex.Export(rate, tracks)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	_, samples := readWAV(t, path)

	// Span is [0.1, 1.2)s: 1100 frames, re-anchored to the span start.
	if len(samples) != 1100 {
		t.Fatalf("got %d samples, want 1100", len(samples))
	}
	wantA := q(0.4)
	wantB := q(0.2)
	for i, s := range samples {
		var want int16
		switch {
		case i < 500:
			want = wantA // a covers the first 500 frames of the span
		case i >= 800:
			want = wantB // b covers frames [800, 1100)
		default:
			want = 0 // gap between the extents
		}
		if s != want {
			t.Fatalf("sample %d = %d, want %d", i, s, want)
		}
	}
}

func TestExportFileExceedsHeader(t *testing.T) {
	t.Parallel()

	path, err := newExporter(t).Export(8000, []mixdown.Track{constTrack("a", 8000, 0, 0.01, 0.1)})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() <= mixdown.HeaderSize {
		t.Errorf("file size %d does not exceed header size %d", info.Size(), mixdown.HeaderSize)
	}
}

func TestExportDefaultRateFromFirstTrack(t *testing.T) {
	t.Parallel()

	path, err := newExporter(t).Export(0, []mixdown.Track{constTrack("a", 22050, 0, 0.1, 0.1)})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rate, _ := readWAV(t, path)
	if rate != 22050 {
		t.Errorf("rate = %d, want first track's 22050", rate)
	}
}
