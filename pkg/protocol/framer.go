package protocol

import "bytes"

// LineFramer reconstructs newline-delimited frames from an unstructured byte
// stream. It owns its carry buffer: a trailing partial frame stays buffered
// across calls, so a frame is never delivered split regardless of how the
// stream is chunked.
type LineFramer struct {
	buf []byte
}

// Push appends chunk to the buffer and returns every complete frame found,
// with the delimiter stripped and the consumed bytes removed. Empty frames
// are skipped.
func (f *LineFramer) Push(chunk []byte) [][]byte {
	f.buf = append(f.buf, chunk...)

	var frames [][]byte
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		line := f.buf[:i]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		if len(line) > 0 {
			frame := make([]byte, len(line))
			copy(frame, line)
			frames = append(frames, frame)
		}
		f.buf = f.buf[i+1:]
	}

	// Re-anchor the carry so consumed bytes don't pin the backing array.
	if len(f.buf) == 0 {
		f.buf = nil
	} else {
		carry := make([]byte, len(f.buf))
		copy(carry, f.buf)
		f.buf = carry
	}
	return frames
}

// Pending reports how many bytes of a partial frame are buffered.
func (f *LineFramer) Pending() int { return len(f.buf) }

// Reset discards any buffered partial frame.
func (f *LineFramer) Reset() { f.buf = nil }
