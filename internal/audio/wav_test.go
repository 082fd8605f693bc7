package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeHeader(t *testing.T) {
	format := Format{SampleRate: 16000, Channels: 1}
	header := EncodeHeader(format, 32000)

	assert.Len(t, header, 44)

	info, err := ReadHeader(bytes.NewReader(header))
	assert.NoError(t, err)
	assert.Equal(t, 16000, info.Format.SampleRate)
	assert.Equal(t, 1, info.Format.Channels)
	assert.Equal(t, int64(32000), info.DataBytes)
	// 32000 bytes of PCM16 mono at 16kHz is exactly one second
	assert.Equal(t, int64(1000), info.DurationMs())
}

func TestReadHeaderRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", []byte("RIFF")},
		{"not riff", bytes.Repeat([]byte{0x42}, 44)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadHeader(bytes.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDurationMath(t *testing.T) {
	tests := []struct {
		format    Format
		dataBytes int64
		wantMs    int64
	}{
		{Format{SampleRate: 16000, Channels: 1}, 32000, 1000},
		{Format{SampleRate: 16000, Channels: 2}, 32000, 500},
		{Format{SampleRate: 44100, Channels: 2}, 176400, 1000},
		{Format{SampleRate: 16000, Channels: 1}, 0, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.wantMs, tt.format.DurationMs(tt.dataBytes))
	}
}

func TestWAVWriterPatchesSizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	format := Format{SampleRate: 16000, Channels: 1}

	writer, err := NewWAVWriter(path, format)
	assert.NoError(t, err)

	pcm := make([]byte, 6400) // 200ms
	_, err = writer.Write(pcm)
	assert.NoError(t, err)
	assert.Equal(t, int64(6400), writer.DataBytes())
	assert.Equal(t, int64(200), writer.DurationMs())
	assert.NoError(t, writer.Close())

	// Double close is harmless, writes after close are not
	assert.NoError(t, writer.Close())
	_, err = writer.Write(pcm)
	assert.Error(t, err)

	info, err := Inspect(path)
	assert.NoError(t, err)
	assert.Equal(t, int64(6400), info.DataBytes)
	assert.Equal(t, int64(200), info.DurationMs())
}

func TestInspectClampsToPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.wav")

	// Header claims more data than the file holds
	header := EncodeHeader(Format{SampleRate: 16000, Channels: 1}, 64000)
	payload := make([]byte, 3200)
	assert.NoError(t, os.WriteFile(path, append(header, payload...), 0644))

	info, err := Inspect(path)
	assert.NoError(t, err)
	assert.Equal(t, int64(3200), info.DataBytes)
}
