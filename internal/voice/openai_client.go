package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// defaultSystemPrompt instructs the model to structure a raw clinical voice
// transcript into a reviewable note candidate. Used when no prompt file is
// configured.
const defaultSystemPrompt = `You are a clinical documentation assistant. You receive the raw transcript of a voice memo dictated by nursing or medical staff, possibly in Japanese. Produce a single JSON object with these fields:
- "note_type": one of "nurse_note", "doctor_note", "observation"
- "content": the transcript rewritten as a concise, well-formed clinical note in the transcript's language, preserving all vital signs, measurements, medications and assessments exactly as dictated
- "summary": a one-line summary of the note
Do not invent facts that are not in the transcript. Respond with JSON only.`

// StructuredNote is the categorization result for one transcript
type StructuredNote struct {
	NoteType string `json:"note_type"`
	Content  string `json:"content"`
	Summary  string `json:"summary,omitempty"`
}

// OpenAIClient structures transcripts into clinical note candidates
type OpenAIClient struct {
	client       openai.Client
	model        string
	systemPrompt string
	timeout      time.Duration
	logger       *logger.Logger
}

// NewOpenAIClient creates a new structuring client. If promptPath is set the
// system prompt is loaded from it, otherwise a built-in prompt is used.
func NewOpenAIClient(apiKey string, model string, promptPath string, timeout time.Duration, log *logger.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for categorization")
	}

	systemPrompt := defaultSystemPrompt
	if promptPath != "" {
		data, err := os.ReadFile(promptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read system prompt: %w", err)
		}
		systemPrompt = string(data)
	}

	return &OpenAIClient{
		client:       openai.NewClient(option.WithAPIKey(apiKey)),
		model:        model,
		systemPrompt: systemPrompt,
		timeout:      timeout,
		logger:       log.Named("openai-client"),
	}, nil
}

// StructureNote sends a transcript to the model and returns the structured
// note candidate
func (c *OpenAIClient) StructureNote(ctx context.Context, transcript string, patientName string) (*StructuredNote, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// User input carries the patient context (if any) and the raw transcript
	var input strings.Builder
	if patientName != "" {
		fmt.Fprintf(&input, "Patient: %s\n\n", patientName)
	} else {
		input.WriteString("Patient: (unattached recording)\n\n")
	}
	fmt.Fprintf(&input, "Transcript:\n%s", transcript)

	c.logger.Debug("Structuring transcript",
		logger.String("model", c.model),
		logger.Int("transcript_len", len(transcript)))

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(input.String()),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call OpenAI API: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from OpenAI API")
	}

	var note StructuredNote
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &note); err != nil {
		return nil, fmt.Errorf("failed to parse structured note: %w", err)
	}

	if note.Content == "" {
		return nil, fmt.Errorf("structured note has empty content")
	}
	switch note.NoteType {
	case "nurse_note", "doctor_note", "observation":
	default:
		c.logger.Warn("Unknown note type from model, defaulting to observation",
			logger.String("note_type", note.NoteType))
		note.NoteType = "observation"
	}

	c.logger.Info("Structured note candidate",
		logger.String("note_type", note.NoteType),
		logger.Duration("elapsed", time.Since(start)))

	return &note, nil
}
