package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// RecordingStorage handles storage of voice recording records
type RecordingStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRecordingStorage creates a new SQLite recording storage
func NewRecordingStorage(db *sql.DB, log *logger.Logger) *RecordingStorage {
	storage := &RecordingStorage{
		db:     db,
		logger: log.Named("sqlite-recordings"),
	}

	// Initialize database
	if err := storage.initDB(); err != nil {
		log.Error("Failed to initialize recording storage", logger.Error(err))
	}

	return storage
}

// initDB initializes the database tables
func (s *RecordingStorage) initDB() error {
	// Create recordings table
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			staff_id TEXT NOT NULL,
			patient_id TEXT,
			patient_name TEXT,
			storage_path TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			language TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'uploaded',
			failure_kind TEXT,
			transcript TEXT,
			segments TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create recordings table: %w", err)
	}

	// Create indexes for performance
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_recordings_staff_id ON recordings(staff_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recordings_patient_id ON recordings(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recordings_status ON recordings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_recordings_created_at ON recordings(created_at)`,
	}

	for _, indexSQL := range indexes {
		_, err = s.db.Exec(indexSQL)
		if err != nil {
			return fmt.Errorf("failed to create recording index: %w", err)
		}
	}

	return nil
}

// StoreRecording stores a recording record
func (s *RecordingStorage) StoreRecording(record *RecordingRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO recordings
		(id, staff_id, patient_id, patient_name, storage_path, duration_ms, language, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.StaffID,
		nullable(record.PatientID),
		nullable(record.PatientName),
		record.StoragePath,
		record.DurationMs,
		record.Language,
		record.Status,
		record.CreatedAt.Format(time.RFC3339),
		record.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recording: %w", err)
	}

	return nil
}

// GetRecordingByID returns the recording with the given ID
func (s *RecordingStorage) GetRecordingByID(id string) (*RecordingRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, staff_id, patient_id, patient_name, storage_path, duration_ms, language, status, failure_kind, transcript, segments, created_at, updated_at
		FROM recordings
		WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recording by id: %w", err)
	}
	defer rows.Close()

	records, err := s.scanRecordingRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// GetRecordingsByStatus returns up to limit recordings in the given status,
// oldest first
func (s *RecordingStorage) GetRecordingsByStatus(status string, limit int) ([]*RecordingRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, staff_id, patient_id, patient_name, storage_path, duration_ms, language, status, failure_kind, transcript, segments, created_at, updated_at
		FROM recordings
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings by status: %w", err)
	}
	defer rows.Close()

	return s.scanRecordingRows(rows)
}

// UpdateRecordingStatus updates the status of a recording
func (s *RecordingStorage) UpdateRecordingStatus(id string, status string) error {
	_, err := s.db.Exec(
		`UPDATE recordings
		SET status = ?, updated_at = ?
		WHERE id = ?`,
		status,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update recording status: %w", err)
	}

	return nil
}

// MarkRecordingFailed marks a recording failed with a classified failure kind
func (s *RecordingStorage) MarkRecordingFailed(id string, failureKind string) error {
	_, err := s.db.Exec(
		`UPDATE recordings
		SET status = ?, failure_kind = ?, updated_at = ?
		WHERE id = ?`,
		RecordingStatusFailed,
		failureKind,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark recording failed: %w", err)
	}

	return nil
}

// StoreTranscript stores the transcript and segment data for a recording
func (s *RecordingStorage) StoreTranscript(id string, transcript string, segmentsJSON string) error {
	_, err := s.db.Exec(
		`UPDATE recordings
		SET transcript = ?, segments = ?, updated_at = ?
		WHERE id = ?`,
		transcript,
		segmentsJSON,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to store transcript: %w", err)
	}

	return nil
}

// scanRecordingRows scans database rows into RecordingRecord structs
func (s *RecordingStorage) scanRecordingRows(rows *sql.Rows) ([]*RecordingRecord, error) {
	var records []*RecordingRecord
	for rows.Next() {
		var record RecordingRecord
		var createdAt, updatedAt string
		var patientID, patientName, failureKind, transcript, segments sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.StaffID,
			&patientID,
			&patientName,
			&record.StoragePath,
			&record.DurationMs,
			&record.Language,
			&record.Status,
			&failureKind,
			&transcript,
			&segments,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}

		// Parse timestamps
		var err error
		record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		record.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}

		// Handle nullable fields
		if patientID.Valid {
			record.PatientID = patientID.String
		}
		if patientName.Valid {
			record.PatientName = patientName.String
		}
		if failureKind.Valid {
			record.FailureKind = failureKind.String
		}
		if transcript.Valid {
			record.Transcript = transcript.String
		}
		if segments.Valid {
			record.Segments = segments.String
		}

		records = append(records, &record)
	}

	return records, nil
}

// nullable converts an empty string to a NULL value
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
