package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snditnz/verbumcare-demo-sub002/internal/auth"
	"github.com/snditnz/verbumcare-demo-sub002/internal/storage/sqlite"
	"github.com/snditnz/verbumcare-demo-sub002/internal/voice"
	"github.com/snditnz/verbumcare-demo-sub002/internal/websocket"
	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// NoteStore is the storage surface the approval workflow needs for notes
type NoteStore interface {
	GetNoteByID(id string) (*sqlite.NoteRecord, error)
	RecordDecision(id string, status string, approvedBy string, approverName string) (bool, error)
}

// ReviewStore is the storage surface for the linked review-queue item
type ReviewStore interface {
	GetReviewItemByNote(noteID string) (*sqlite.ReviewItemRecord, error)
	UpdateReviewStatus(id string, status string, decidedAt time.Time) error
}

// Service implements the role-gated approve/reject workflow. A note's
// approval status only ever moves submitted -> approved or submitted ->
// rejected; both are terminal.
type Service struct {
	notes    NoteStore
	reviews  ReviewStore
	wsServer *websocket.Server
	logger   *logger.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewService creates a new approval service
func NewService(notes NoteStore, reviews ReviewStore, wsServer *websocket.Server, log *logger.Logger) *Service {
	return &Service{
		notes:    notes,
		reviews:  reviews,
		wsServer: wsServer,
		logger:   log.Named("approval"),
		inFlight: make(map[string]struct{}),
	}
}

// CanApprove is the single capability check applied before any decision.
// Only a doctor may decide, and only on a submitted note that requires
// approval.
func CanApprove(user auth.Staff, note *sqlite.NoteRecord) bool {
	if !user.IsDoctor() {
		return false
	}
	if note == nil || !note.RequiresApproval {
		return false
	}
	return note.Status == sqlite.NoteStatusSubmitted
}

// Decide approves or rejects a clinical note. Precondition violations fail
// before any mutation; on success the stored representation is returned and
// the caller must replace its local copy with it. Concurrent decisions on
// the same note are rejected while one is in flight.
func (s *Service) Decide(ctx context.Context, noteID string, approve bool, actingUser auth.Staff) (*sqlite.NoteRecord, error) {
	// Re-entrant guard: one pending decision per note
	if !s.begin(noteID) {
		return nil, voice.NewError(voice.KindState,
			fmt.Sprintf("a decision on note %s is already in progress", noteID))
	}
	defer s.end(noteID)

	note, err := s.notes.GetNoteByID(noteID)
	if err != nil {
		return nil, voice.WrapError(voice.KindNetwork, "failed to look up note", err)
	}
	if note == nil {
		return nil, voice.NewError(voice.KindNotFound, fmt.Sprintf("note %s does not exist", noteID))
	}

	// Permission before state, so a non-doctor always gets a permission
	// error regardless of the note's status
	if !actingUser.IsDoctor() {
		return nil, voice.NewError(voice.KindPermission,
			fmt.Sprintf("role %s may not approve or reject notes", actingUser.Role))
	}
	if !CanApprove(actingUser, note) {
		return nil, voice.NewError(voice.KindState,
			fmt.Sprintf("note %s is %s and cannot be decided", noteID, note.Status))
	}

	status := sqlite.NoteStatusApproved
	reviewStatus := sqlite.ReviewStatusApproved
	if !approve {
		status = sqlite.NoteStatusRejected
		reviewStatus = sqlite.ReviewStatusRejected
	}

	updated, err := s.notes.RecordDecision(noteID, status, actingUser.ID, actingUser.DisplayName)
	if err != nil {
		return nil, voice.WrapError(voice.KindNetwork, "failed to record decision", err)
	}
	if !updated {
		// Lost a race against another decision; the note is no longer
		// submitted
		return nil, voice.NewError(voice.KindState,
			fmt.Sprintf("note %s was already decided", noteID))
	}

	// Keep the linked review-queue item in step
	now := time.Now().UTC()
	if item, err := s.reviews.GetReviewItemByNote(noteID); err != nil {
		s.logger.Error("Failed to look up review item for decided note",
			logger.String("note_id", noteID),
			logger.Error(err))
	} else if item != nil {
		if err := s.reviews.UpdateReviewStatus(item.ID, reviewStatus, now); err != nil {
			s.logger.Error("Failed to update review item status",
				logger.String("review_id", item.ID),
				logger.Error(err))
		}
	}

	// Return the stored representation, never a local guess
	decided, err := s.notes.GetNoteByID(noteID)
	if err != nil {
		return nil, voice.WrapError(voice.KindNetwork, "failed to reload decided note", err)
	}

	s.logger.Info("Note decided",
		logger.String("note_id", noteID),
		logger.String("status", decided.Status),
		logger.String("approved_by", actingUser.ID))

	s.wsServer.Broadcast(&websocket.Message{
		Type: "note_decided",
		Data: map[string]interface{}{
			"note_id":       decided.ID,
			"status":        decided.Status,
			"approved_by":   decided.ApprovedBy,
			"approver_name": decided.ApproverName,
		},
	})

	return decided, nil
}

// begin registers a pending decision for a note; it reports false if one is
// already pending
func (s *Service) begin(noteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, pending := s.inFlight[noteID]; pending {
		return false
	}
	s.inFlight[noteID] = struct{}{}
	return true
}

// end clears the pending marker for a note
func (s *Service) end(noteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, noteID)
}
