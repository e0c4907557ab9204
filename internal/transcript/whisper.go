package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyTranscript is returned when the provider hears nothing usable.
var ErrEmptyTranscript = errors.New("transcript: empty transcription")

// Transcriber turns one recorded utterance into text. language is a
// BCP-47 hint such as "es"; empty lets the provider detect it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}

// WhisperService transcribes through any OpenAI-compatible
// /audio/transcriptions endpoint. Groq is the default deployment.
type WhisperService struct {
	client *openai.Client
	model  string
	// filename is sent with the multipart upload so the provider can sniff the container.
	filename string
}

func NewWhisperService(apiKey, baseURL, model string) *WhisperService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &WhisperService{client: openai.NewClientWithConfig(cfg), model: model, filename: "audio.wav"}
}

func (w *WhisperService) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("whisper: no audio")
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: w.filename,
		Reader:   bytes.NewReader(audio),
		Language: language,
	})
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
