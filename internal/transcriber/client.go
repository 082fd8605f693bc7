package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// Result is the transcription service response
type Result struct {
	Status       string    `json:"status"` // "success" or "error"
	Language     string    `json:"language"`
	Duration     string    `json:"duration"`
	FullText     string    `json:"full_text"`
	Segments     []Segment `json:"segments"`
	ErrorMessage string    `json:"error,omitempty"`
}

// Segment is a timed slice of the transcript
type Segment struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`
}

// Health is the transcription service health response
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Model   string `json:"model"`
}

// Config holds transcriber client settings
type Config struct {
	BaseURL          string
	Language         string
	Timeout          time.Duration
	RetryMaxAttempts int
	RetryBackoff     time.Duration
}

// Client calls the Whisper transcription HTTP service
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *logger.Logger
}

// NewClient creates a new transcriber client
func NewClient(config Config, log *logger.Logger) *Client {
	if config.RetryMaxAttempts <= 0 {
		config.RetryMaxAttempts = 1
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
		logger: log.Named("transcriber"),
	}
}

// Transcribe uploads the audio file at path and returns the transcript.
// Connection failures are retried with backoff; a service-reported error is
// not retried, since re-sending the same audio will fail the same way.
func (c *Client) Transcribe(ctx context.Context, path string, language string) (*Result, error) {
	if language == "" {
		language = c.config.Language
	}

	retryDelay := c.config.RetryBackoff
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < c.config.RetryMaxAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying transcription request",
				logger.Int("attempt", attempt+1),
				logger.Int("max_attempts", c.config.RetryMaxAttempts),
				logger.Error(lastErr))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
				// Exponential backoff
				retryDelay *= 2
			}
		}

		result, err := c.transcribeOnce(ctx, path, language)
		if err != nil {
			// Re-sending the same audio to a service that rejected it will
			// fail the same way; only transport failures are worth a retry
			var svcErr *ServiceError
			if errors.As(err, &svcErr) {
				return nil, err
			}
			lastErr = err
			continue
		}
		return result, nil
	}

	return nil, fmt.Errorf("transcription failed after %d attempts: %w",
		c.config.RetryMaxAttempts, lastErr)
}

// transcribeOnce performs a single multipart request to the service
func (c *Client) transcribeOnce(ctx context.Context, path string, language string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	// Build multipart body
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy audio data: %w", err)
	}
	if err := writer.WriteField("language", language); err != nil {
		return nil, fmt.Errorf("failed to write language field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	// Create a new request with context
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/transcribe", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Sending audio for transcription",
		logger.String("path", path),
		logger.String("language", language))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	// Check response status
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// Decode response body
	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Status != "success" {
		return nil, &ServiceError{Message: result.ErrorMessage}
	}

	c.logger.Info("Transcription completed",
		logger.String("language", result.Language),
		logger.String("audio_duration", result.Duration),
		logger.Duration("elapsed", time.Since(start)),
		logger.Int("segments", len(result.Segments)))

	return &result, nil
}

// CheckHealth queries the transcription service health endpoint
func (c *Client) CheckHealth(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}

	return &health, nil
}

// ServiceError is an error reported by the transcription service itself, as
// opposed to a transport failure. It signals that the audio likely needs to
// be re-recorded rather than re-sent.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("transcription service error: %s", e.Message)
}
