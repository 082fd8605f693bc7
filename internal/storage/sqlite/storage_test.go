package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func openTestStorages(t *testing.T) (*RecordingStorage, *NoteStorage, *ReviewStorage) {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := testLogger(t)
	return NewRecordingStorage(db, log), NewNoteStorage(db, log), NewReviewStorage(db, log)
}

func sampleRecording(id string, createdAt time.Time) *RecordingRecord {
	return &RecordingRecord{
		ID:          id,
		StaffID:     "staff-1",
		PatientID:   "p-1",
		PatientName: "Tanaka",
		StoragePath: "/data/recordings/" + id + ".wav",
		DurationMs:  4200,
		Language:    "ja",
		Status:      RecordingStatusUploaded,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	recordings, _, _ := openTestStorages(t)
	now := time.Now().UTC().Truncate(time.Second)

	assert.NoError(t, recordings.StoreRecording(sampleRecording("rec-1", now)))

	got, err := recordings.GetRecordingByID("rec-1")
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, "staff-1", got.StaffID)
	assert.Equal(t, "p-1", got.PatientID)
	assert.Equal(t, "Tanaka", got.PatientName)
	assert.Equal(t, int64(4200), got.DurationMs)
	assert.Equal(t, RecordingStatusUploaded, got.Status)
	assert.True(t, got.CreatedAt.Equal(now))

	missing, err := recordings.GetRecordingByID("nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecordingGlobalContextStoresNulls(t *testing.T) {
	recordings, _, _ := openTestStorages(t)

	record := sampleRecording("rec-1", time.Now().UTC().Truncate(time.Second))
	record.PatientID = ""
	record.PatientName = ""
	assert.NoError(t, recordings.StoreRecording(record))

	got, err := recordings.GetRecordingByID("rec-1")
	assert.NoError(t, err)
	assert.Empty(t, got.PatientID)
	assert.Empty(t, got.PatientName)
}

func TestGetRecordingsByStatusOldestFirst(t *testing.T) {
	recordings, _, _ := openTestStorages(t)
	base := time.Now().UTC().Truncate(time.Second)

	newer := sampleRecording("rec-new", base)
	older := sampleRecording("rec-old", base.Add(-time.Hour))
	newer.Status = RecordingStatusProcessing
	older.Status = RecordingStatusProcessing
	assert.NoError(t, recordings.StoreRecording(newer))
	assert.NoError(t, recordings.StoreRecording(older))
	assert.NoError(t, recordings.StoreRecording(sampleRecording("rec-idle", base)))

	got, err := recordings.GetRecordingsByStatus(RecordingStatusProcessing, 10)
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "rec-old", got[0].ID)
	assert.Equal(t, "rec-new", got[1].ID)

	limited, err := recordings.GetRecordingsByStatus(RecordingStatusProcessing, 1)
	assert.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMarkRecordingFailedAndTranscript(t *testing.T) {
	recordings, _, _ := openTestStorages(t)
	now := time.Now().UTC().Truncate(time.Second)

	assert.NoError(t, recordings.StoreRecording(sampleRecording("rec-1", now)))
	assert.NoError(t, recordings.StoreTranscript("rec-1", "体温は平熱です", `[{"start":"0.0","end":"1.5","text":"体温は平熱です"}]`))
	assert.NoError(t, recordings.MarkRecordingFailed("rec-1", "transcriber"))

	got, err := recordings.GetRecordingByID("rec-1")
	assert.NoError(t, err)
	assert.Equal(t, RecordingStatusFailed, got.Status)
	assert.Equal(t, "transcriber", got.FailureKind)
	assert.Equal(t, "体温は平熱です", got.Transcript)
	assert.NotEmpty(t, got.Segments)
}

func TestNoteRoundTripAndDecision(t *testing.T) {
	recordings, notes, _ := openTestStorages(t)
	now := time.Now().UTC().Truncate(time.Second)

	assert.NoError(t, recordings.StoreRecording(sampleRecording("rec-1", now)))
	note := &NoteRecord{
		ID:               "note-1",
		RecordingID:      "rec-1",
		PatientID:        "p-1",
		NoteType:         "nurse_note",
		Content:          "Vitals within normal range.",
		Status:           NoteStatusSubmitted,
		RequiresApproval: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	assert.NoError(t, notes.StoreNote(note))

	got, err := notes.GetNoteByID("note-1")
	assert.NoError(t, err)
	assert.Equal(t, NoteStatusSubmitted, got.Status)
	assert.True(t, got.RequiresApproval)
	assert.Empty(t, got.ApprovedBy)

	// First decision wins
	updated, err := notes.RecordDecision("note-1", NoteStatusApproved, "staff-2", "Sato Ken")
	assert.NoError(t, err)
	assert.True(t, updated)

	got, err = notes.GetNoteByID("note-1")
	assert.NoError(t, err)
	assert.Equal(t, NoteStatusApproved, got.Status)
	assert.Equal(t, "staff-2", got.ApprovedBy)
	assert.Equal(t, "Sato Ken", got.ApproverName)

	// A second decision finds no submitted row to update
	updated, err = notes.RecordDecision("note-1", NoteStatusRejected, "staff-3", "Suzuki")
	assert.NoError(t, err)
	assert.False(t, updated)

	got, _ = notes.GetNoteByID("note-1")
	assert.Equal(t, NoteStatusApproved, got.Status)
}

func TestGetNotesByPatientNewestFirst(t *testing.T) {
	recordings, notes, _ := openTestStorages(t)
	base := time.Now().UTC().Truncate(time.Second)

	assert.NoError(t, recordings.StoreRecording(sampleRecording("rec-1", base)))
	for i, id := range []string{"note-old", "note-new"} {
		ts := base.Add(time.Duration(i) * time.Hour)
		assert.NoError(t, notes.StoreNote(&NoteRecord{
			ID:          id,
			RecordingID: "rec-1",
			PatientID:   "p-1",
			NoteType:    "observation",
			Content:     "content",
			Status:      NoteStatusSubmitted,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}))
	}

	got, err := notes.GetNotesByPatient("p-1", 10)
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "note-new", got[0].ID)

	none, err := notes.GetNotesByPatient("p-other", 10)
	assert.NoError(t, err)
	assert.Empty(t, none)
}

func TestReviewItemRoundTrip(t *testing.T) {
	recordings, notes, reviews := openTestStorages(t)
	now := time.Now().UTC().Truncate(time.Second)

	assert.NoError(t, recordings.StoreRecording(sampleRecording("rec-1", now)))
	assert.NoError(t, notes.StoreNote(&NoteRecord{
		ID: "note-1", RecordingID: "rec-1", NoteType: "observation",
		Content: "content", Status: NoteStatusSubmitted, CreatedAt: now, UpdatedAt: now,
	}))

	item := &ReviewItemRecord{
		ID:          "review-1",
		RecordingID: "rec-1",
		NoteID:      "note-1",
		UserID:      "staff-1",
		PatientID:   "p-1",
		PatientName: "Tanaka",
		Status:      ReviewStatusPending,
		CreatedAt:   now,
	}
	assert.NoError(t, reviews.StoreReviewItem(item))

	byUser, err := reviews.GetReviewItemsByUser("staff-1")
	assert.NoError(t, err)
	assert.Len(t, byUser, 1)
	assert.Equal(t, ReviewStatusPending, byUser[0].Status)
	assert.Nil(t, byUser[0].DecidedAt)

	byNote, err := reviews.GetReviewItemByNote("note-1")
	assert.NoError(t, err)
	assert.NotNil(t, byNote)
	assert.Equal(t, "review-1", byNote.ID)

	decidedAt := now.Add(time.Minute)
	assert.NoError(t, reviews.UpdateReviewStatus("review-1", ReviewStatusApproved, decidedAt))

	byNote, err = reviews.GetReviewItemByNote("note-1")
	assert.NoError(t, err)
	assert.Equal(t, ReviewStatusApproved, byNote.Status)
	assert.NotNil(t, byNote.DecidedAt)
	assert.True(t, byNote.DecidedAt.Equal(decidedAt))
}

func TestReviewItemsOrderedNewestFirst(t *testing.T) {
	recordings, _, reviews := openTestStorages(t)
	base := time.Now().UTC().Truncate(time.Second)

	for i, id := range []string{"review-old", "review-new"} {
		recID := "rec-" + id
		assert.NoError(t, recordings.StoreRecording(sampleRecording(recID, base)))
		assert.NoError(t, reviews.StoreReviewItem(&ReviewItemRecord{
			ID:          id,
			RecordingID: recID,
			NoteID:      "note-" + id,
			UserID:      "staff-1",
			Status:      ReviewStatusPending,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := reviews.GetReviewItemsByUser("staff-1")
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "review-new", got[0].ID)
}
