package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/snditnz/verbumcare-demo-sub002/internal/approval"
	"github.com/snditnz/verbumcare-demo-sub002/internal/auth"
	"github.com/snditnz/verbumcare-demo-sub002/internal/config"
	"github.com/snditnz/verbumcare-demo-sub002/internal/recording"
	"github.com/snditnz/verbumcare-demo-sub002/internal/reviewqueue"
	"github.com/snditnz/verbumcare-demo-sub002/internal/storage/sqlite"
	"github.com/snditnz/verbumcare-demo-sub002/internal/transcriber"
	"github.com/snditnz/verbumcare-demo-sub002/internal/voice"
	"github.com/snditnz/verbumcare-demo-sub002/internal/websocket"
	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// Handler holds the API handlers and their dependencies
type Handler struct {
	voiceService    *voice.Service
	queueStore      *reviewqueue.Store
	approvalService *approval.Service
	noteStorage     *sqlite.NoteStorage
	authService     *auth.Service
	resolver        *recording.Resolver
	transcriber     *transcriber.Client
	wsServer        *websocket.Server
	db              *sql.DB
	config          *config.Config
	logger          *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	voiceService *voice.Service,
	queueStore *reviewqueue.Store,
	approvalService *approval.Service,
	noteStorage *sqlite.NoteStorage,
	authService *auth.Service,
	resolver *recording.Resolver,
	transcriberClient *transcriber.Client,
	wsServer *websocket.Server,
	db *sql.DB,
	cfg *config.Config,
	log *logger.Logger,
) *Handler {
	return &Handler{
		voiceService:    voiceService,
		queueStore:      queueStore,
		approvalService: approvalService,
		noteStorage:     noteStorage,
		authService:     authService,
		resolver:        resolver,
		transcriber:     transcriberClient,
		wsServer:        wsServer,
		db:              db,
		config:          cfg,
		logger:          log.Named("api-handler"),
	}
}

// IssueToken handles POST /auth/token
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StaffID string `json:"staff_id"`
		Secret  string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var entry *config.StaffEntry
	for i := range h.config.Auth.Staff {
		if h.config.Auth.Staff[i].ID == req.StaffID {
			entry = &h.config.Auth.Staff[i]
			break
		}
	}
	if entry == nil || entry.Secret != req.Secret {
		writeError(w, http.StatusUnauthorized, "unknown staff id or wrong secret")
		return
	}

	token, err := h.authService.IssueToken(auth.Staff{
		ID:          entry.ID,
		DisplayName: entry.DisplayName,
		Role:        entry.Role,
	})
	if err != nil {
		h.logger.Error("Failed to issue token", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"staff": auth.Staff{ID: entry.ID, DisplayName: entry.DisplayName, Role: entry.Role},
	})
}

// UploadRecording handles POST /recordings. The multipart form carries the
// WAV file plus the navigation-context and selected-patient fields the
// capture screen observed; the recording context is resolved here with the
// same priority rules the capture screen uses.
func (h *Handler) UploadRecording(w http.ResponseWriter, r *http.Request) {
	staff, ok := StaffFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	maxBytes := int64(h.config.Recording.MaxUploadSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing recording file")
		return
	}
	defer file.Close()

	// Spool the upload to a local take file; the service owns it from here
	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("upload-%s.wav", uuid.NewString()))
	temp, err := os.Create(tempPath)
	if err != nil {
		h.logger.Error("Failed to create temp file", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if _, err := io.Copy(temp, file); err != nil {
		temp.Close()
		os.Remove(tempPath)
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	temp.Close()

	durationMs := int64(0)
	if v := r.FormValue("duration_ms"); v != "" {
		durationMs, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			os.Remove(tempPath)
			writeError(w, http.StatusBadRequest, "invalid duration_ms")
			return
		}
	}

	rc := h.resolveContext(r)

	recordingID, err := h.voiceService.Upload(r.Context(), tempPath, rc, durationMs, staff.ID, r.FormValue("language"))
	if err != nil {
		// The take is preserved server-side only on success; the client
		// retries with its own copy
		os.Remove(tempPath)
		writeVoiceError(w, err)
		return
	}

	h.logger.Debug("Upload accepted",
		logger.String("recording_id", recordingID),
		logger.String("filename", header.Filename))

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"recording_id": recordingID,
		"context":      rc,
	})
}

// resolveContext builds the navigation context and selected patient from
// form fields and resolves them into a recording context
func (h *Handler) resolveContext(r *http.Request) recording.Context {
	var nav *recording.NavContext
	if origin := r.FormValue("nav_origin"); origin != "" {
		nav = &recording.NavContext{OriginScreen: origin}
		if ts, err := time.Parse(time.RFC3339, r.FormValue("nav_timestamp")); err == nil {
			nav.Timestamp = ts
		}
		if pid := r.FormValue("nav_patient_id"); pid != "" {
			nav.Patient = &recording.PatientRef{
				PatientID:   pid,
				PatientName: r.FormValue("nav_patient_name"),
			}
		}
	}

	var selected *recording.PatientRef
	if pid := r.FormValue("selected_patient_id"); pid != "" {
		selected = &recording.PatientRef{
			PatientID:   pid,
			PatientName: r.FormValue("selected_patient_name"),
		}
	}

	return h.resolver.Resolve(nav, selected, time.Now().UTC())
}

// ProcessRecording handles POST /recordings/{id}/process
func (h *Handler) ProcessRecording(w http.ResponseWriter, r *http.Request) {
	staff, ok := StaffFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	recordingID := chi.URLParam(r, "id")
	if err := h.voiceService.TriggerCategorization(r.Context(), recordingID); err != nil {
		writeVoiceError(w, err)
		return
	}

	// Refresh the uploader's queue snapshot in the background; a slow
	// refresh must not delay the response
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.queueStore.Load(ctx, staff.ID); err != nil {
			h.logger.Warn("Background queue refresh failed",
				logger.String("user_id", staff.ID),
				logger.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"recording_id": recordingID,
		"status":       sqlite.RecordingStatusProcessing,
	})
}

// GetRecording handles GET /recordings/{id}
func (h *Handler) GetRecording(w http.ResponseWriter, r *http.Request) {
	record, err := h.voiceService.GetRecording(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeVoiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GetReviewQueue handles GET /review-queue. Each call reloads the acting
// user's snapshot, so mount, focus and pull-to-refresh all converge on the
// same idempotent replace.
func (h *Handler) GetReviewQueue(w http.ResponseWriter, r *http.Request) {
	staff, ok := StaffFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.queueStore.Load(r.Context(), staff.ID); err != nil {
		writeError(w, http.StatusBadGateway, "failed to refresh review queue")
		return
	}

	now := time.Now().UTC()
	items := h.queueStore.Items(staff.ID, now)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp": now,
		"count":     h.queueStore.Count(staff.ID),
		"items":     items,
	})
}

// GetPatientNotes handles GET /patients/{id}/notes
func (h *Handler) GetPatientNotes(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	notes, err := h.noteStorage.GetNotesByPatient(patientID, limit)
	if err != nil {
		h.logger.Error("Failed to query patient notes",
			logger.String("patient_id", patientID),
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query notes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patient_id": patientID,
		"count":      len(notes),
		"notes":      notes,
	})
}

// DecideNote handles POST /notes/{id}/decision
func (h *Handler) DecideNote(w http.ResponseWriter, r *http.Request) {
	staff, ok := StaffFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	note, err := h.approvalService.Decide(r.Context(), chi.URLParam(r, "id"), req.Approve, staff)
	if err != nil {
		writeVoiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

// HandleWebSocket handles GET /ws
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

// GetHealth handles GET /health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"

	dbStatus := "ok"
	if err := h.db.PingContext(r.Context()); err != nil {
		dbStatus = "error"
		status = "degraded"
	}

	transcriberStatus := "ok"
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if _, err := h.transcriber.CheckHealth(ctx); err != nil {
		transcriberStatus = "error"
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      status,
		"database":    dbStatus,
		"transcriber": transcriberStatus,
		"ws_clients":  h.wsServer.ClientCount(),
		"timestamp":   time.Now().UTC(),
	})
}

// GetConfig handles GET /config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config.Sanitized())
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": message,
	})
}

// writeVoiceError maps a classified pipeline error to an HTTP response. The
// error kind travels in the body so the client can pick the right recovery
// action (retry vs. re-record) without parsing message text.
func writeVoiceError(w http.ResponseWriter, err error) {
	var verr *voice.Error
	if !errors.As(err, &verr) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch verr.Kind {
	case voice.KindValidation:
		status = http.StatusBadRequest
	case voice.KindNotFound:
		status = http.StatusNotFound
	case voice.KindState:
		status = http.StatusConflict
	case voice.KindPermission:
		status = http.StatusForbidden
	case voice.KindNetwork, voice.KindTranscriber, voice.KindCategorizer:
		status = http.StatusBadGateway
	case voice.KindTimeout:
		status = http.StatusGatewayTimeout
	}

	writeJSON(w, status, map[string]interface{}{
		"error":     verr.Message,
		"kind":      string(verr.Kind),
		"retryable": verr.Retryable(),
	})
}
