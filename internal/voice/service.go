package voice

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/snditnz/verbumcare-demo-sub002/internal/audio"
	"github.com/snditnz/verbumcare-demo-sub002/internal/recording"
	"github.com/snditnz/verbumcare-demo-sub002/internal/storage/sqlite"
	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// RecordingStore is the storage surface the pipeline needs for recordings
type RecordingStore interface {
	StoreRecording(record *sqlite.RecordingRecord) error
	GetRecordingByID(id string) (*sqlite.RecordingRecord, error)
	GetRecordingsByStatus(status string, limit int) ([]*sqlite.RecordingRecord, error)
	UpdateRecordingStatus(id string, status string) error
	MarkRecordingFailed(id string, failureKind string) error
	StoreTranscript(id string, transcript string, segmentsJSON string) error
}

// Config holds upload pipeline settings
type Config struct {
	StorageDir        string
	DefaultLanguage   string
	DeleteAfterUpload bool
}

// Service owns the upload half of the pipeline: it validates a finished
// take, moves it into managed storage, and hands categorization off to the
// background worker. Categorization is never triggered for an id that did
// not come from a successful upload.
type Service struct {
	recordings RecordingStore
	config     Config
	logger     *logger.Logger
}

// NewService creates a new upload service
func NewService(recordings RecordingStore, config Config, log *logger.Logger) *Service {
	return &Service{
		recordings: recordings,
		config:     config,
		logger:     log.Named("voice-service"),
	}
}

// Upload validates and ingests a finished recording take. On success the
// local take is removed (ownership has transferred); on failure it is left
// in place so the caller can retry with the same URI.
func (s *Service) Upload(ctx context.Context, localURI string, rc recording.Context, durationMs int64, staffID string, language string) (string, error) {
	if staffID == "" {
		return "", NewError(KindValidation, "staff id is required")
	}
	if durationMs < 0 {
		return "", NewError(KindValidation, "duration must not be negative")
	}
	if rc.IsPatient() && rc.PatientID == "" {
		return "", NewError(KindValidation, "patient context is missing a patient id")
	}

	// The take must be a completed, non-empty WAV file
	info, err := audio.Inspect(localURI)
	if err != nil {
		return "", WrapError(KindValidation, "recording is not a readable WAV file", err)
	}
	if info.DataBytes == 0 {
		return "", NewError(KindValidation, "recording is empty")
	}
	if durationMs == 0 {
		durationMs = info.DurationMs()
	}

	if language == "" {
		language = s.config.DefaultLanguage
	}

	recordingID := uuid.NewString()
	storagePath := filepath.Join(s.config.StorageDir, recordingID+".wav")

	if err := copyFile(localURI, storagePath); err != nil {
		return "", WrapError(KindNetwork, "failed to store recording", err)
	}

	now := time.Now().UTC()
	record := &sqlite.RecordingRecord{
		ID:          recordingID,
		StaffID:     staffID,
		DurationMs:  durationMs,
		Language:    language,
		Status:      sqlite.RecordingStatusUploaded,
		StoragePath: storagePath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rc.IsPatient() {
		record.PatientID = rc.PatientID
		record.PatientName = rc.PatientName
	}

	if err := s.recordings.StoreRecording(record); err != nil {
		// Roll back the stored copy so a retry does not orphan files
		os.Remove(storagePath)
		return "", WrapError(KindNetwork, "failed to persist recording", err)
	}

	// Upload acknowledged; the local take is no longer needed
	if s.config.DeleteAfterUpload {
		if err := os.Remove(localURI); err != nil {
			s.logger.Warn("Failed to remove local take after upload",
				logger.String("path", localURI),
				logger.Error(err))
		}
	}

	s.logger.Info("Recording uploaded",
		logger.String("recording_id", recordingID),
		logger.String("staff_id", staffID),
		logger.String("context_type", string(rc.Type)),
		logger.String("patient_id", record.PatientID),
		logger.Int64("duration_ms", durationMs))

	return recordingID, nil
}

// TriggerCategorization marks an uploaded recording for processing. The
// categorizer worker picks it up asynchronously; the caller is not blocked
// on transcription.
func (s *Service) TriggerCategorization(ctx context.Context, recordingID string) error {
	record, err := s.recordings.GetRecordingByID(recordingID)
	if err != nil {
		return WrapError(KindNetwork, "failed to look up recording", err)
	}
	if record == nil {
		return NewError(KindNotFound, fmt.Sprintf("recording %s does not exist", recordingID))
	}
	if record.Status != sqlite.RecordingStatusUploaded {
		return NewError(KindState,
			fmt.Sprintf("recording %s is %s, not %s", recordingID, record.Status, sqlite.RecordingStatusUploaded))
	}

	if err := s.recordings.UpdateRecordingStatus(recordingID, sqlite.RecordingStatusProcessing); err != nil {
		return WrapError(KindNetwork, "failed to queue recording for categorization", err)
	}

	s.logger.Info("Categorization triggered",
		logger.String("recording_id", recordingID))

	return nil
}

// GetRecording returns the current state of a recording
func (s *Service) GetRecording(ctx context.Context, recordingID string) (*sqlite.RecordingRecord, error) {
	record, err := s.recordings.GetRecordingByID(recordingID)
	if err != nil {
		return nil, WrapError(KindNetwork, "failed to look up recording", err)
	}
	if record == nil {
		return nil, NewError(KindNotFound, fmt.Sprintf("recording %s does not exist", recordingID))
	}
	return record, nil
}

// copyFile copies src to dst, fsyncing the destination
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to sync destination: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to close destination: %w", err)
	}
	return nil
}
