package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// ReviewStorage handles storage of review-queue items
type ReviewStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewReviewStorage creates a new SQLite review-queue storage
func NewReviewStorage(db *sql.DB, log *logger.Logger) *ReviewStorage {
	storage := &ReviewStorage{
		db:     db,
		logger: log.Named("sqlite-review"),
	}

	// Initialize database
	if err := storage.initDB(); err != nil {
		log.Error("Failed to initialize review storage", logger.Error(err))
	}

	return storage
}

// initDB initializes the database tables
func (s *ReviewStorage) initDB() error {
	// Create review_items table
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS review_items (
			id TEXT PRIMARY KEY,
			recording_id TEXT NOT NULL UNIQUE,
			note_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			patient_id TEXT,
			patient_name TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL,
			decided_at TIMESTAMP,
			FOREIGN KEY (recording_id) REFERENCES recordings(id),
			FOREIGN KEY (note_id) REFERENCES clinical_notes(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create review_items table: %w", err)
	}

	// Create indexes for performance
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_review_items_user_id ON review_items(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_review_items_status ON review_items(status)`,
		`CREATE INDEX IF NOT EXISTS idx_review_items_created_at ON review_items(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_review_items_note_id ON review_items(note_id)`,
	}

	for _, indexSQL := range indexes {
		_, err = s.db.Exec(indexSQL)
		if err != nil {
			return fmt.Errorf("failed to create review index: %w", err)
		}
	}

	return nil
}

// StoreReviewItem stores a review-queue item
func (s *ReviewStorage) StoreReviewItem(record *ReviewItemRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO review_items
		(id, recording_id, note_id, user_id, patient_id, patient_name, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.RecordingID,
		record.NoteID,
		record.UserID,
		nullable(record.PatientID),
		nullable(record.PatientName),
		record.Status,
		record.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert review item: %w", err)
	}

	return nil
}

// GetReviewItemsByUser returns all review items for a user, newest first
func (s *ReviewStorage) GetReviewItemsByUser(userID string) ([]*ReviewItemRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, recording_id, note_id, user_id, patient_id, patient_name, status, created_at, decided_at
		FROM review_items
		WHERE user_id = ?
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query review items by user: %w", err)
	}
	defer rows.Close()

	return s.scanReviewRows(rows)
}

// GetReviewItemByNote returns the review item for a clinical note
func (s *ReviewStorage) GetReviewItemByNote(noteID string) (*ReviewItemRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, recording_id, note_id, user_id, patient_id, patient_name, status, created_at, decided_at
		FROM review_items
		WHERE note_id = ?`,
		noteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query review item by note: %w", err)
	}
	defer rows.Close()

	records, err := s.scanReviewRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// UpdateReviewStatus updates the status of a review item
func (s *ReviewStorage) UpdateReviewStatus(id string, status string, decidedAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE review_items
		SET status = ?, decided_at = ?
		WHERE id = ?`,
		status,
		decidedAt.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update review status: %w", err)
	}

	return nil
}

// scanReviewRows scans database rows into ReviewItemRecord structs
func (s *ReviewStorage) scanReviewRows(rows *sql.Rows) ([]*ReviewItemRecord, error) {
	var records []*ReviewItemRecord
	for rows.Next() {
		var record ReviewItemRecord
		var createdAt string
		var decidedAt, patientID, patientName sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.RecordingID,
			&record.NoteID,
			&record.UserID,
			&patientID,
			&patientName,
			&record.Status,
			&createdAt,
			&decidedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review item: %w", err)
		}

		// Parse timestamps
		var err error
		record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		if decidedAt.Valid {
			ts, err := time.Parse(time.RFC3339, decidedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse decided_at: %w", err)
			}
			record.DecidedAt = &ts
		}

		// Handle nullable patient fields
		if patientID.Valid {
			record.PatientID = patientID.String
		}
		if patientName.Valid {
			record.PatientName = patientName.String
		}

		records = append(records, &record)
	}

	return records, nil
}
