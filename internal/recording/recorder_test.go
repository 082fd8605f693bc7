package recording

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snditnz/verbumcare-demo-sub002/internal/audio"
)

func TestRecorderCaptureCycle(t *testing.T) {
	format := audio.Format{SampleRate: 16000, Channels: 1}
	recorder := NewRecorder(t.TempDir(), format, testLogger(t))

	assert.False(t, recorder.Recording())
	assert.NoError(t, recorder.Start())
	assert.True(t, recorder.Recording())

	// Starting twice is an error
	assert.Error(t, recorder.Start())

	// Write one second of PCM16 mono audio
	frames := make([]byte, 16000*2)
	assert.NoError(t, recorder.WriteFrames(frames))

	take, err := recorder.Stop()
	assert.NoError(t, err)
	assert.False(t, recorder.Recording())
	assert.Equal(t, int64(1000), take.DurationMs)

	// The take is a valid WAV with the declared payload
	info, err := audio.Inspect(take.LocalPath)
	assert.NoError(t, err)
	assert.Equal(t, int64(len(frames)), info.DataBytes)
	assert.Equal(t, int64(1000), info.DurationMs())
}

func TestRecorderRejectsEmptyTake(t *testing.T) {
	format := audio.Format{SampleRate: 16000, Channels: 1}
	recorder := NewRecorder(t.TempDir(), format, testLogger(t))

	assert.NoError(t, recorder.Start())
	_, err := recorder.Stop()
	assert.Error(t, err, "an empty take must be rejected")
}

func TestRecorderCancelDropsTake(t *testing.T) {
	format := audio.Format{SampleRate: 16000, Channels: 1}
	recorder := NewRecorder(t.TempDir(), format, testLogger(t))

	assert.NoError(t, recorder.Start())
	assert.NoError(t, recorder.WriteFrames(make([]byte, 3200)))
	recorder.Cancel()

	assert.False(t, recorder.Recording())

	// A fresh take can be started after a cancel
	assert.NoError(t, recorder.Start())
	recorder.Cancel()
}

func TestRecorderStopWithoutStart(t *testing.T) {
	recorder := NewRecorder(t.TempDir(), audio.Format{SampleRate: 16000, Channels: 1}, testLogger(t))

	_, err := recorder.Stop()
	assert.Error(t, err)
	assert.Error(t, recorder.WriteFrames([]byte{0, 0}))
}
