package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// NoteStorage handles storage of clinical note records
type NoteStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewNoteStorage creates a new SQLite clinical note storage
func NewNoteStorage(db *sql.DB, log *logger.Logger) *NoteStorage {
	storage := &NoteStorage{
		db:     db,
		logger: log.Named("sqlite-notes"),
	}

	// Initialize database
	if err := storage.initDB(); err != nil {
		log.Error("Failed to initialize note storage", logger.Error(err))
	}

	return storage
}

// initDB initializes the database tables
func (s *NoteStorage) initDB() error {
	// Create clinical_notes table
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS clinical_notes (
			id TEXT PRIMARY KEY,
			recording_id TEXT NOT NULL,
			patient_id TEXT,
			note_type TEXT NOT NULL,
			content TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'submitted',
			requires_approval INTEGER NOT NULL DEFAULT 1,
			approved_by TEXT,
			approver_name TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			FOREIGN KEY (recording_id) REFERENCES recordings(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create clinical_notes table: %w", err)
	}

	// Create indexes for performance
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_notes_recording_id ON clinical_notes(recording_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_patient_id ON clinical_notes(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_status ON clinical_notes(status)`,
	}

	for _, indexSQL := range indexes {
		_, err = s.db.Exec(indexSQL)
		if err != nil {
			return fmt.Errorf("failed to create note index: %w", err)
		}
	}

	return nil
}

// StoreNote stores a clinical note record
func (s *NoteStorage) StoreNote(record *NoteRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO clinical_notes
		(id, recording_id, patient_id, note_type, content, status, requires_approval, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.RecordingID,
		nullable(record.PatientID),
		record.NoteType,
		record.Content,
		record.Status,
		boolToInt(record.RequiresApproval),
		record.CreatedAt.Format(time.RFC3339),
		record.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert clinical note: %w", err)
	}

	return nil
}

// GetNoteByID returns the clinical note with the given ID
func (s *NoteStorage) GetNoteByID(id string) (*NoteRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, recording_id, patient_id, note_type, content, status, requires_approval, approved_by, approver_name, created_at, updated_at
		FROM clinical_notes
		WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query note by id: %w", err)
	}
	defer rows.Close()

	records, err := s.scanNoteRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// GetNotesByPatient returns clinical notes for a specific patient
func (s *NoteStorage) GetNotesByPatient(patientID string, limit int) ([]*NoteRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, recording_id, patient_id, note_type, content, status, requires_approval, approved_by, approver_name, created_at, updated_at
		FROM clinical_notes
		WHERE patient_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		patientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes by patient: %w", err)
	}
	defer rows.Close()

	return s.scanNoteRows(rows)
}

// RecordDecision records an approval or rejection on a note. The update is
// guarded on the submitted status so a racing decision cannot overwrite a
// terminal state; it reports whether a row was updated.
func (s *NoteStorage) RecordDecision(id string, status string, approvedBy string, approverName string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE clinical_notes
		SET status = ?, approved_by = ?, approver_name = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		status,
		approvedBy,
		approverName,
		time.Now().UTC().Format(time.RFC3339),
		id,
		NoteStatusSubmitted,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record note decision: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected == 1, nil
}

// scanNoteRows scans database rows into NoteRecord structs
func (s *NoteStorage) scanNoteRows(rows *sql.Rows) ([]*NoteRecord, error) {
	var records []*NoteRecord
	for rows.Next() {
		var record NoteRecord
		var createdAt, updatedAt string
		var requiresApproval int
		var patientID, approvedBy, approverName sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.RecordingID,
			&patientID,
			&record.NoteType,
			&record.Content,
			&record.Status,
			&requiresApproval,
			&approvedBy,
			&approverName,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan clinical note: %w", err)
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

		record.RequiresApproval = requiresApproval != 0

		// Handle nullable fields
		if patientID.Valid {
			record.PatientID = patientID.String
		}
		if approvedBy.Valid {
			record.ApprovedBy = approvedBy.String
		}
		if approverName.Valid {
			record.ApproverName = approverName.String
		}

		records = append(records, &record)
	}

	return records, nil
}

// boolToInt converts a bool to a SQLite integer
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
