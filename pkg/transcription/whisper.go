package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/otherjamesbrown/notetaker/pkg/llm"
)

// Recognition is the raw output of the speech service.
type Recognition struct {
	Text            string
	Language        string
	DurationSeconds float64
}

// Recognizer converts an audio file to text.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string) (*Recognition, error)
}

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions endpoint.
// No language is sent, so the service auto-detects it.
type WhisperClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewWhisperClient creates a client. cfg.Model is the speech model (e.g. "whisper-1").
func NewWhisperClient(cfg llm.Config) *WhisperClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = llm.DefaultConfig().BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	return &WhisperClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Recognize uploads audioPath as multipart form data and parses the verbose_json response.
func (c *WhisperClient) Recognize(ctx context.Context, audioPath string) (*Recognition, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, f, filepath.Base(audioPath), c.model))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", pr)
	if err != nil {
		pr.Close()
		return nil, &llm.Error{Code: llm.ErrUnavailable, Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &llm.Error{Code: llm.ErrTimeout, Message: "transcription request timeout"}
		}
		return nil, &llm.Error{Code: llm.ErrUnavailable, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrParseFailure, Message: fmt.Sprintf("read response: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, llm.StatusError(resp.StatusCode, body)
	}

	var out verboseResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &llm.Error{Code: llm.ErrParseFailure, Message: fmt.Sprintf("parse response: %v", err)}
	}
	return &Recognition{Text: out.Text, Language: out.Language, DurationSeconds: out.Duration}, nil
}

func writeForm(form *multipart.Writer, audio io.Reader, filename, model string) error {
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return err
	}
	if err := form.WriteField("model", model); err != nil {
		return err
	}
	if err := form.WriteField("response_format", "verbose_json"); err != nil {
		return err
	}
	return form.Close()
}
