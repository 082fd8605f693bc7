package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
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

func writeAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := os.WriteFile(path, []byte("RIFF-ish bytes"), 0644); err != nil {
		t.Fatalf("failed to write audio file: %v", err)
	}
	return path
}

func newTestClient(t *testing.T, baseURL string, retries int) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:          baseURL,
		Language:         "ja",
		Timeout:          5 * time.Second,
		RetryMaxAttempts: retries,
		RetryBackoff:     time.Millisecond,
	}, testLogger(t))
}

func TestTranscribeSendsMultipartRequest(t *testing.T) {
	var gotLanguage, gotFilename string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transcribe", r.URL.Path)

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
		}
		gotLanguage = r.FormValue("language")
		if _, header, err := r.FormFile("file"); err == nil {
			gotFilename = header.Filename
		}

		json.NewEncoder(w).Encode(Result{
			Status:   "success",
			Language: "ja",
			Duration: "2.4",
			FullText: "呼吸音は清明です",
			Segments: []Segment{{Start: "0.0", End: "2.4", Text: "呼吸音は清明です"}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 1)
	result, err := client.Transcribe(context.Background(), writeAudioFile(t), "")

	assert.NoError(t, err)
	assert.Equal(t, "呼吸音は清明です", result.FullText)
	assert.Len(t, result.Segments, 1)
	// Language falls back to the configured default
	assert.Equal(t, "ja", gotLanguage)
	assert.Equal(t, "take.wav", gotFilename)
}

func TestTranscribeLanguageOverride(t *testing.T) {
	var gotLanguage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		gotLanguage = r.FormValue("language")
		json.NewEncoder(w).Encode(Result{Status: "success"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 1)
	_, err := client.Transcribe(context.Background(), writeAudioFile(t), "en")

	assert.NoError(t, err)
	assert.Equal(t, "en", gotLanguage)
}

func TestTranscribeRetriesTransportFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Result{Status: "success", FullText: "ok"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)
	result, err := client.Transcribe(context.Background(), writeAudioFile(t), "")

	assert.NoError(t, err)
	assert.Equal(t, "ok", result.FullText)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTranscribeGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	_, err := client.Transcribe(context.Background(), writeAudioFile(t), "")

	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTranscribeDoesNotRetryServiceErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(Result{Status: "error", ErrorMessage: "audio too short"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)
	_, err := client.Transcribe(context.Background(), writeAudioFile(t), "")

	var svcErr *ServiceError
	assert.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "audio too short", svcErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a rejected recording must not be re-sent")
}

func TestTranscribeMissingFile(t *testing.T) {
	client := newTestClient(t, "http://localhost:1", 1)
	_, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "absent.wav"), "")
	assert.Error(t, err)
}

func TestCheckHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		json.NewEncoder(w).Encode(Health{Status: "healthy", Service: "whisper", Model: "large-v3"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 1)
	health, err := client.CheckHealth(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "large-v3", health.Model)
}

func TestCheckHealthUnreachable(t *testing.T) {
	client := newTestClient(t, "http://localhost:1", 1)
	_, err := client.CheckHealth(context.Background())
	assert.Error(t, err)
}
