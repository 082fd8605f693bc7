package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snditnz/verbumcare-demo-sub002/internal/audio"
	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// Recorder captures a single audio take at a time. It owns the local file
// until the take is handed off; an abandoned take is deleted on Cancel.
type Recorder struct {
	mu      sync.Mutex
	tempDir string
	format  audio.Format
	writer  *audio.WAVWriter
	path    string
	started time.Time
	logger  *logger.Logger
}

// NewRecorder creates a new recorder writing takes to tempDir
func NewRecorder(tempDir string, format audio.Format, log *logger.Logger) *Recorder {
	return &Recorder{
		tempDir: tempDir,
		format:  format,
		logger:  log.Named("recorder"),
	}
}

// Start begins a new take. Starting while a take is in progress is an error.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer != nil {
		return fmt.Errorf("recording already in progress")
	}

	path := filepath.Join(r.tempDir, fmt.Sprintf("take-%s.wav", uuid.NewString()))
	writer, err := audio.NewWAVWriter(path, r.format)
	if err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}

	r.writer = writer
	r.path = path
	r.started = time.Now().UTC()

	r.logger.Debug("Recording started", logger.String("path", path))
	return nil
}

// WriteFrames appends captured PCM16 frames to the current take
func (r *Recorder) WriteFrames(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return fmt.Errorf("no recording in progress")
	}

	if _, err := r.writer.Write(pcm); err != nil {
		return fmt.Errorf("failed to write frames: %w", err)
	}
	return nil
}

// Stop finalizes the current take and returns it. An empty take (no frames
// captured) is rejected and the file removed.
func (r *Recorder) Stop() (*Take, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return nil, fmt.Errorf("no recording in progress")
	}

	writer := r.writer
	path := r.path
	r.writer = nil
	r.path = ""

	durationMs := writer.DurationMs()
	if err := writer.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to finalize recording: %w", err)
	}

	if writer.DataBytes() == 0 {
		os.Remove(path)
		return nil, fmt.Errorf("recording is empty")
	}

	r.logger.Info("Recording stopped",
		logger.String("path", path),
		logger.Int64("duration_ms", durationMs))

	return &Take{LocalPath: path, DurationMs: durationMs}, nil
}

// Cancel aborts the current take, if any, and removes its file
func (r *Recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return
	}

	path := r.path
	r.writer.Close()
	r.writer = nil
	r.path = ""

	if err := os.Remove(path); err != nil {
		r.logger.Warn("Failed to remove canceled take",
			logger.String("path", path),
			logger.Error(err))
	}

	r.logger.Debug("Recording canceled", logger.String("path", path))
}

// Recording reports whether a take is currently in progress
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer != nil
}
