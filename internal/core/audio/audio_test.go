package audio

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/narrator/pkg/executil"
)

func TestFrameRoundTrip(t *testing.T) {
	f := Frame{0, 1, -1, 32767, -32768}
	assert.Equal(t, f, FrameFromBytes(f.Bytes()))
}

func TestEncodeWAV_Header(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	wav := EncodeWAV(samples)

	require.Len(t, wav, 44+8)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, "data", string(wav[36:40]))

	assert.EqualValues(t, 1, binary.LittleEndian.Uint16(wav[22:24]), "mono")
	assert.EqualValues(t, SampleRate, binary.LittleEndian.Uint32(wav[24:28]))
	assert.EqualValues(t, 16, binary.LittleEndian.Uint16(wav[34:36]), "bits per sample")
	assert.EqualValues(t, 8, binary.LittleEndian.Uint32(wav[40:44]), "data length")
}

func TestNewPipeSource_UnknownRecorder(t *testing.T) {
	_, err := NewPipeSource(context.Background(), &executil.RealExecutor{}, "pw-record")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown recorder")
}

func TestPipeSource_ReadsFrames(t *testing.T) {
	// Use a real pipe fed by a command that emits deterministic bytes.
	exec := &executil.RealExecutor{}
	r, h, err := exec.StartPipe(context.Background(), "sh", "-c", "head -c 2048 /dev/zero")
	require.NoError(t, err)

	src := &PipeSource{r: r, h: h}
	t.Cleanup(func() { _ = src.Close() })

	frame, err := src.Read(VADFrameSamples)
	require.NoError(t, err)
	require.Len(t, frame, VADFrameSamples)
	assert.Equal(t, int16(0), frame[0])

	frame, err = src.Read(VADFrameSamples)
	require.NoError(t, err)
	require.Len(t, frame, VADFrameSamples)

	// 2048 bytes = 1024 samples = exactly two VAD frames; next read hits EOF.
	_, err = src.Read(VADFrameSamples)
	require.Error(t, err)
}
