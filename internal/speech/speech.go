// Package speech turns recorded client audio into text.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ziadkadry99/policyvoice/internal/metrics"
)

// Transcriber converts audio bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// TranscriptionError reports a failed call to the speech-to-text service.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// ErrEmptyAudio is returned by DecodeAudio when the payload carries no bytes.
var ErrEmptyAudio = errors.New("empty audio payload")

// DecodeAudio decodes a base64 audio payload. A data-URL prefix such as
// "data:audio/webm;base64," is stripped first.
func DecodeAudio(payload string) ([]byte, error) {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrEmptyAudio
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding audio: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	return data, nil
}

// WhisperConfig holds the settings for a WhisperTranscriber.
type WhisperConfig struct {
	Model    string
	Language string
	Timeout  time.Duration
}

// WhisperTranscriber calls the OpenAI audio transcription endpoint.
type WhisperTranscriber struct {
	client *openai.Client
	cfg    WhisperConfig
}

// NewWhisperTranscriber creates a transcriber using OPENAI_API_KEY.
func NewWhisperTranscriber(cfg WhisperConfig) (*WhisperTranscriber, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for transcription")
	}
	return NewWhisperTranscriberWithClient(openai.NewClient(apiKey), cfg), nil
}

// NewWhisperTranscriberWithClient creates a transcriber on an existing client.
func NewWhisperTranscriberWithClient(client *openai.Client, cfg WhisperConfig) *WhisperTranscriber {
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &WhisperTranscriber{client: client, cfg: cfg}
}

// Transcribe sends audio to Whisper and returns the trimmed text. format is
// the container extension, "webm" when empty.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if format == "" {
		format = "webm"
	}
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.cfg.Model,
		Reader:   bytes.NewReader(audio),
		FilePath: "audio." + format,
		Language: t.cfg.Language,
	})
	metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TranscriptionErrors.Inc()
		return "", &TranscriptionError{Err: err}
	}
	return strings.TrimSpace(resp.Text), nil
}
