// Package mixdown mixes the audible tracks of a project into one mono
// 16-bit PCM WAV file, processing the timeline in fixed-size sample chunks
// so memory stays bounded regardless of project length.
package mixdown

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"aubridge/pkg/protocol"
)

// DefaultChunkSize is the number of samples mixed per chunk.
const DefaultChunkSize = 65536

// Track is the exporter's view of one audio track: mono samples at the
// track's own rate, placed at Start seconds on the project timeline.
type Track struct {
	Name       string
	SampleRate int
	Start      float64
	Muted      bool
	Volume     float64
	Samples    []float32
}

// End returns the track's end position in seconds.
func (t *Track) End() float64 {
	if t.SampleRate <= 0 {
		return t.Start
	}
	return t.Start + float64(len(t.Samples))/float64(t.SampleRate)
}

// Exporter writes transcription mixdowns. The zero value uses
// DefaultChunkSize and the system temp directory.
type Exporter struct {
	// ChunkSize bounds per-chunk memory; <=0 means DefaultChunkSize.
	ChunkSize int
	// OutDir receives output files; empty means os.TempDir().
	OutDir string
}

// Export mixes all unmuted tracks into a mono 16-bit WAV file and returns
// its path. The output rate is projectRate, or the first track's rate when
// projectRate is zero; tracks at other rates are read sample-for-sample
// without resampling (known limitation: their audio is time-distorted).
// The file is streamed chunk by chunk and never buffered whole. Failures
// are *protocol.ExportError.
func (e *Exporter) Export(projectRate int, tracks []Track) (string, error) {
	if len(tracks) == 0 {
		return "", &protocol.ExportError{Reason: "project has no tracks"}
	}

	rate := projectRate
	if rate <= 0 {
		rate = tracks[0].SampleRate
	}
	if rate <= 0 {
		return "", &protocol.ExportError{Reason: "no usable sample rate"}
	}

	var audible []Track
	for _, t := range tracks {
		if !t.Muted {
			audible = append(audible, t)
		}
	}
	if len(audible) == 0 {
		return "", &protocol.ExportError{Reason: "all tracks are muted"}
	}

	// Span is the union of the audible extents.
	spanStart := math.Inf(1)
	spanEnd := math.Inf(-1)
	for _, t := range audible {
		if t.Start < spanStart {
			spanStart = t.Start
		}
		if end := t.End(); end > spanEnd {
			spanEnd = end
		}
	}
	totalFrames := int(math.Round((spanEnd - spanStart) * float64(rate)))
	if totalFrames <= 0 {
		return "", &protocol.ExportError{Reason: "project is empty"}
	}

	// Track extents in span-relative frame offsets, computed once.
	starts := make([]int, len(audible))
	ends := make([]int, len(audible))
	for i, t := range audible {
		starts[i] = int(math.Round((t.Start - spanStart) * float64(rate)))
		ends[i] = starts[i] + len(t.Samples)
	}

	chunkSize := e.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	outDir := e.OutDir
	if outDir == "" {
		outDir = os.TempDir()
	}

	path := filepath.Join(outDir, fmt.Sprintf("mixdown-%s.wav", uuid.New().String()))
	f, err := os.Create(path)
	if err != nil {
		return "", &protocol.ExportError{Reason: "create output file", Err: err}
	}
	defer f.Close()

	if err := writeWAVHeader(f, rate, totalFrames); err != nil {
		return "", &protocol.ExportError{Reason: "write header", Err: err}
	}

	acc := make([]float32, chunkSize)
	pcm := make([]byte, chunkSize*2)

	for off := 0; off < totalFrames; off += chunkSize {
		n := chunkSize
		if rem := totalFrames - off; rem < n {
			n = rem
		}
		chunk := acc[:n]
		for i := range chunk {
			chunk[i] = 0
		}

		for i, t := range audible {
			// Intersect [off, off+n) with the track's extent; a track that
			// does not intersect this chunk contributes nothing.
			lo, hi := off, off+n
			if starts[i] > lo {
				lo = starts[i]
			}
			if ends[i] < hi {
				hi = ends[i]
			}
			if lo >= hi {
				continue
			}
			src := t.Samples[lo-starts[i] : hi-starts[i]]
			dst := chunk[lo-off:]
			vol := float32(t.Volume)
			for j, s := range src {
				dst[j] += s * vol
			}
		}

		out := pcm[:n*2]
		quantize(chunk, out)
		written, err := f.Write(out)
		if err != nil {
			return "", &protocol.ExportError{Reason: "write chunk", Err: err}
		}
		if written != len(out) {
			return "", &protocol.ExportError{
				Reason: fmt.Sprintf("short write: %d of %d bytes", written, len(out)),
			}
		}
	}

	if err := f.Close(); err != nil {
		return "", &protocol.ExportError{Reason: "close output file", Err: err}
	}
	return path, nil
}

// HeaderSize is the size of the WAV header in bytes. An export whose file
// does not exceed this size contains no audio and must be rejected.
const HeaderSize = wavHeaderSize
