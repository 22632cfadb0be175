// Package audio provides PCM frame types and a microphone frame source
// backed by an external recorder process.
package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/colonyops/narrator/pkg/executil"
)

// SampleRate is the fixed capture rate for all acoustic models.
const SampleRate = 16000

// Frame sizes the acoustic models expect.
const (
	// VADFrameSamples is ~32 ms at 16 kHz.
	VADFrameSamples = 512
	// WakeFrameSamples is 80 ms at 16 kHz.
	WakeFrameSamples = 1280
)

// Frame is a fixed-duration chunk of 16-bit mono PCM.
type Frame []int16

// Bytes encodes the frame as little-endian PCM.
func (f Frame) Bytes() []byte {
	out := make([]byte, len(f)*2)
	for i, s := range f {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// FrameFromBytes decodes little-endian PCM into a frame.
func FrameFromBytes(data []byte) Frame {
	f := make(Frame, len(data)/2)
	for i := range f {
		f[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return f
}

// Source yields successive microphone frames.
type Source interface {
	// Read blocks until a full frame of the given sample count is
	// available. Returns io.EOF when the stream ends.
	Read(samples int) (Frame, error)
	Close() error
}

// recorderArgs maps known recorder commands to the arguments that make
// them emit raw 16 kHz signed 16-bit mono PCM on stdout.
var recorderArgs = map[string][]string{
	"sox":     {"-q", "-d", "-t", "raw", "-r", "16000", "-e", "signed", "-b", "16", "-c", "1", "-"},
	"rec":     {"-q", "-t", "raw", "-r", "16000", "-e", "signed", "-b", "16", "-c", "1", "-"},
	"arecord": {"-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "raw"},
}

// PipeSource reads frames from an external recorder's stdout.
type PipeSource struct {
	r io.ReadCloser
	h *executil.Handle
}

// NewPipeSource spawns the recorder and begins streaming. The recorder
// lives until Close (or the context ends).
func NewPipeSource(ctx context.Context, exec executil.Executor, recorder string) (*PipeSource, error) {
	args, ok := recorderArgs[recorder]
	if !ok {
		return nil, fmt.Errorf("unknown recorder command %q", recorder)
	}
	r, h, err := exec.StartPipe(ctx, recorder, args...)
	if err != nil {
		return nil, fmt.Errorf("start recorder: %w", err)
	}
	return &PipeSource{r: r, h: h}, nil
}

// Read blocks until a full frame arrives.
func (s *PipeSource) Read(samples int) (Frame, error) {
	buf := make([]byte, samples*2)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, err
	}
	return FrameFromBytes(buf), nil
}

// Close kills the recorder and releases the pipe.
func (s *PipeSource) Close() error {
	s.h.Kill()
	err := s.r.Close()
	_ = s.h.Wait()
	return err
}

// EncodeWAV wraps PCM samples in a minimal RIFF/WAVE header at the
// capture sample rate, for handing a full utterance to transcription.
func EncodeWAV(samples []int16) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 0, 44+dataLen)

	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}

	buf = append(buf, "RIFF"...)
	buf = append(buf, u32(uint32(36+dataLen))...)
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = append(buf, u32(16)...)                 // fmt chunk size
	buf = append(buf, u16(1)...)                  // PCM
	buf = append(buf, u16(1)...)                  // mono
	buf = append(buf, u32(SampleRate)...)         // sample rate
	buf = append(buf, u32(SampleRate*2)...)       // byte rate
	buf = append(buf, u16(2)...)                  // block align
	buf = append(buf, u16(16)...)                 // bits per sample
	buf = append(buf, "data"...)
	buf = append(buf, u32(uint32(dataLen))...)
	buf = append(buf, Frame(samples).Bytes()...)
	return buf
}
