package mixdown

import (
	"encoding/binary"
	"fmt"
	"io"
)

// wavHeaderSize is the byte size of a RIFF/WAVE header with one fmt and one
// data chunk. An output at or below this size contains no audio.
const wavHeaderSize = 44

// writeWAVHeader writes a RIFF/WAVE header for mono 16-bit signed PCM with
// the given sample rate and total frame count. The frame count must be known
// up front so chunks can be streamed after the header.
func writeWAVHeader(w io.Writer, sampleRate, frames int) error {
	dataSize := uint32(frames * 2)

	var hdr [wavHeaderSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataSize)
	copy(hdr[8:12], "WAVE")

	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)                   // fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)                    // PCM format
	binary.LittleEndian.PutUint16(hdr[22:24], 1)                    // mono
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))   // sample rate
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(hdr[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(hdr[34:36], 16)                   // bits per sample

	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataSize)

	n, err := w.Write(hdr[:])
	if err != nil {
		return err
	}
	if n != len(hdr) {
		return fmt.Errorf("short header write: %d of %d bytes", n, len(hdr))
	}
	return nil
}

// quantize hard-clips each accumulated sample to [-1, 1] and converts it to
// little-endian signed 16-bit PCM in dst, scaling against the maximum
// positive 16-bit magnitude with truncation. dst must hold 2*len(acc) bytes.
func quantize(acc []float32, dst []byte) {
	for i, s := range acc {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(v))
	}
}
