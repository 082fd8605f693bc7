package voice

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snditnz/verbumcare-demo-sub002/internal/storage/sqlite"
	"github.com/snditnz/verbumcare-demo-sub002/internal/transcriber"
	"github.com/snditnz/verbumcare-demo-sub002/internal/websocket"
	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// Transcriber converts an uploaded recording into a transcript
type Transcriber interface {
	Transcribe(ctx context.Context, path string, language string) (*transcriber.Result, error)
}

// Structurer turns a transcript into a clinical note candidate
type Structurer interface {
	StructureNote(ctx context.Context, transcript string, patientName string) (*StructuredNote, error)
}

// NoteStore is the storage surface the categorizer needs for notes
type NoteStore interface {
	StoreNote(record *sqlite.NoteRecord) error
}

// ReviewStore is the storage surface the categorizer needs for queue items
type ReviewStore interface {
	StoreReviewItem(record *sqlite.ReviewItemRecord) error
}

// CategorizerConfig represents configuration for the categorization worker
type CategorizerConfig struct {
	Enabled         bool
	IntervalSeconds int
	BatchSize       int
}

// Categorizer is the background worker that turns recordings marked for
// processing into reviewable clinical note candidates. A recording that
// fails is marked failed with a classified kind rather than retried, so a
// corrupt upload cannot loop forever against the transcription service.
type Categorizer struct {
	ctx         context.Context
	cancel      context.CancelFunc
	recordings  RecordingStore
	notes       NoteStore
	reviews     ReviewStore
	transcriber Transcriber
	structurer  Structurer
	wsServer    *websocket.Server
	config      CategorizerConfig
	logger      *logger.Logger
	wg          sync.WaitGroup
}

// NewCategorizer creates a new categorization worker
func NewCategorizer(
	ctx context.Context,
	recordings RecordingStore,
	notes NoteStore,
	reviews ReviewStore,
	transcriber Transcriber,
	structurer Structurer,
	wsServer *websocket.Server,
	config CategorizerConfig,
	log *logger.Logger,
) *Categorizer {
	workerCtx, workerCancel := context.WithCancel(ctx)

	return &Categorizer{
		ctx:         workerCtx,
		cancel:      workerCancel,
		recordings:  recordings,
		notes:       notes,
		reviews:     reviews,
		transcriber: transcriber,
		structurer:  structurer,
		wsServer:    wsServer,
		config:      config,
		logger:      log.Named("categorizer"),
	}
}

// Start starts the categorization loop
func (c *Categorizer) Start() error {
	if !c.config.Enabled {
		c.logger.Info("Categorization is disabled, not starting")
		return nil
	}

	c.logger.Info("Starting categorization loop",
		logger.Int("interval_seconds", c.config.IntervalSeconds),
		logger.Int("batch_size", c.config.BatchSize))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(time.Duration(c.config.IntervalSeconds) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-c.ctx.Done():
				c.logger.Info("Categorization loop stopped due to context cancellation")
				return
			case <-ticker.C:
				if err := c.processNextBatch(); err != nil {
					c.logger.Error("Error processing batch", logger.Error(err))
				}
			}
		}
	}()
	return nil
}

// Stop stops the categorization loop
func (c *Categorizer) Stop() error {
	c.logger.Info("Stopping categorization loop")
	c.cancel()
	c.wg.Wait()
	return nil
}

// processNextBatch processes the next batch of recordings marked for
// categorization
func (c *Categorizer) processNextBatch() error {
	records, err := c.recordings.GetRecordingsByStatus(sqlite.RecordingStatusProcessing, c.config.BatchSize)
	if err != nil {
		return WrapError(KindNetwork, "failed to fetch recordings for categorization", err)
	}

	if len(records) == 0 {
		return nil // Nothing to process
	}

	c.logger.Debug("Processing batch of recordings", logger.Int("count", len(records)))

	for _, record := range records {
		if err := c.processRecording(record); err != nil {
			kind := KindOf(err)
			c.logger.Error("Categorization failed",
				logger.String("recording_id", record.ID),
				logger.String("kind", string(kind)),
				logger.Error(err))

			// Mark failed with the classified kind so the client can tell
			// the user whether re-recording is needed
			if markErr := c.recordings.MarkRecordingFailed(record.ID, string(kind)); markErr != nil {
				c.logger.Error("Failed to mark recording as failed",
					logger.String("recording_id", record.ID),
					logger.Error(markErr))
			}
			c.broadcastFailure(record, kind)
		}

		// Stop mid-batch on shutdown
		select {
		case <-c.ctx.Done():
			return nil
		default:
		}
	}

	return nil
}

// processRecording runs transcription and structuring for one recording and
// stores the resulting note candidate and review-queue item
func (c *Categorizer) processRecording(record *sqlite.RecordingRecord) error {
	// Transcribe
	result, err := c.transcriber.Transcribe(c.ctx, record.StoragePath, record.Language)
	if err != nil {
		return classifyTranscribeError(err)
	}

	segmentsJSON, err := json.Marshal(result.Segments)
	if err != nil {
		return WrapError(KindCategorizer, "failed to encode transcript segments", err)
	}
	if err := c.recordings.StoreTranscript(record.ID, result.FullText, string(segmentsJSON)); err != nil {
		return WrapError(KindNetwork, "failed to store transcript", err)
	}

	// Structure into a note candidate
	structured, err := c.structurer.StructureNote(c.ctx, result.FullText, record.PatientName)
	if err != nil {
		return classifyStructureError(err)
	}

	now := time.Now().UTC()
	note := &sqlite.NoteRecord{
		ID:               uuid.NewString(),
		RecordingID:      record.ID,
		PatientID:        record.PatientID,
		NoteType:         structured.NoteType,
		Content:          structured.Content,
		Status:           sqlite.NoteStatusSubmitted,
		RequiresApproval: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := c.notes.StoreNote(note); err != nil {
		return WrapError(KindNetwork, "failed to store note candidate", err)
	}

	item := &sqlite.ReviewItemRecord{
		ID:          uuid.NewString(),
		RecordingID: record.ID,
		NoteID:      note.ID,
		UserID:      record.StaffID,
		PatientID:   record.PatientID,
		PatientName: record.PatientName,
		Status:      sqlite.ReviewStatusPending,
		CreatedAt:   now,
	}
	if err := c.reviews.StoreReviewItem(item); err != nil {
		return WrapError(KindNetwork, "failed to store review item", err)
	}

	if err := c.recordings.UpdateRecordingStatus(record.ID, sqlite.RecordingStatusCategorized); err != nil {
		return WrapError(KindNetwork, "failed to update recording status", err)
	}

	c.logger.Info("Recording categorized",
		logger.String("recording_id", record.ID),
		logger.String("note_id", note.ID),
		logger.String("review_id", item.ID),
		logger.String("note_type", note.NoteType),
		logger.String("user_id", item.UserID))

	c.broadcastQueueUpdate(item, note)
	return nil
}

// broadcastQueueUpdate notifies connected clients that a new review item
// exists, so the visible queue updates without waiting for the next poll
func (c *Categorizer) broadcastQueueUpdate(item *sqlite.ReviewItemRecord, note *sqlite.NoteRecord) {
	c.wsServer.Broadcast(&websocket.Message{
		Type: "review_queue_updated",
		Data: map[string]interface{}{
			"review_id":    item.ID,
			"recording_id": item.RecordingID,
			"note_id":      note.ID,
			"note_type":    note.NoteType,
			"user_id":      item.UserID,
			"patient_id":   item.PatientID,
			"patient_name": item.PatientName,
			"status":       item.Status,
			"created_at":   item.CreatedAt,
		},
	})
}

// broadcastFailure notifies connected clients that categorization failed
func (c *Categorizer) broadcastFailure(record *sqlite.RecordingRecord, kind Kind) {
	c.wsServer.Broadcast(&websocket.Message{
		Type: "categorization_failed",
		Data: map[string]interface{}{
			"recording_id": record.ID,
			"user_id":      record.StaffID,
			"failure_kind": string(kind),
		},
	})
}
