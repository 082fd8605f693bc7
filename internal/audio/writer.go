package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// WAVWriter writes PCM16 frames to a WAV file, fixing up the header sizes on
// close. A single writer owns its file; it is not safe for concurrent use.
type WAVWriter struct {
	file      *os.File
	format    Format
	dataBytes int64
	closed    bool
}

// NewWAVWriter creates a WAV file at path and writes a placeholder header
func NewWAVWriter(path string, format Format) (*WAVWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	// Placeholder sizes, patched on Close
	if _, err := file.Write(EncodeHeader(format, 0)); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	return &WAVWriter{file: file, format: format}, nil
}

// Write appends raw PCM16 data to the file
func (w *WAVWriter) Write(pcm []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed WAV writer")
	}
	n, err := w.file.Write(pcm)
	w.dataBytes += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write PCM data: %w", err)
	}
	return n, nil
}

// DataBytes returns the number of PCM bytes written so far
func (w *WAVWriter) DataBytes() int64 {
	return w.dataBytes
}

// DurationMs returns the duration of the audio written so far
func (w *WAVWriter) DurationMs() int64 {
	return w.format.DurationMs(w.dataBytes)
}

// Close patches the header size fields and closes the file
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	sizes := make([]byte, 4)

	// RIFF chunk size at offset 4
	binary.LittleEndian.PutUint32(sizes, uint32(36+w.dataBytes))
	if _, err := w.file.WriteAt(sizes, 4); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to patch RIFF size: %w", err)
	}

	// data chunk size at offset 40
	binary.LittleEndian.PutUint32(sizes, uint32(w.dataBytes))
	if _, err := w.file.WriteAt(sizes, 40); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to patch data size: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close WAV file: %w", err)
	}
	return nil
}
