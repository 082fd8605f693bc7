package sqlite

import "time"

// Recording status values
const (
	RecordingStatusUploaded    = "uploaded"
	RecordingStatusProcessing  = "processing"
	RecordingStatusCategorized = "categorized"
	RecordingStatusFailed      = "failed"
)

// Clinical note status values
const (
	NoteStatusSubmitted = "submitted"
	NoteStatusApproved  = "approved"
	NoteStatusRejected  = "rejected"
)

// Review item status values
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// RecordingRecord represents an uploaded voice recording
type RecordingRecord struct {
	ID          string    `json:"recording_id"`
	StaffID     string    `json:"staff_id"`
	PatientID   string    `json:"patient_id,omitempty"`
	PatientName string    `json:"patient_name,omitempty"`
	StoragePath string    `json:"-"`
	DurationMs  int64     `json:"duration_ms"`
	Language    string    `json:"language"`
	Status      string    `json:"status"`
	FailureKind string    `json:"failure_kind,omitempty"`
	Transcript  string    `json:"transcript,omitempty"`
	Segments    string    `json:"-"` // JSON-encoded transcript segments
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NoteRecord represents a clinical note candidate produced by categorization
type NoteRecord struct {
	ID               string    `json:"note_id"`
	RecordingID      string    `json:"recording_id"`
	PatientID        string    `json:"patient_id,omitempty"`
	NoteType         string    `json:"note_type"` // "nurse_note", "doctor_note", "observation"
	Content          string    `json:"content"`
	Status           string    `json:"status"`
	RequiresApproval bool      `json:"requires_approval"`
	ApprovedBy       string    `json:"approved_by,omitempty"`
	ApproverName     string    `json:"approver_name,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ReviewItemRecord represents a review-queue entry, one per categorized recording
type ReviewItemRecord struct {
	ID          string     `json:"review_id"`
	RecordingID string     `json:"recording_id"`
	NoteID      string     `json:"note_id"`
	UserID      string     `json:"user_id"`
	PatientID   string     `json:"patient_id,omitempty"`
	PatientName string     `json:"patient_name,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}
