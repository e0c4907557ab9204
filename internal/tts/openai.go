package tts

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISynthesizer calls the OpenAI speech endpoint and returns mp3 audio.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
	voice  string
	// Instructions steer delivery (tone, pace) on every fragment. The
	// tts-1 models ignore them.
	Instructions string
}

// NewOpenAISynthesizer builds a synthesizer. baseURL may be empty.
func NewOpenAISynthesizer(apiKey, baseURL, model, voice string) *OpenAISynthesizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini-tts"
	}
	if voice == "" {
		voice = string(openai.VoiceNova)
	}
	return &OpenAISynthesizer{client: openai.NewClientWithConfig(cfg), model: model, voice: voice}
}

func (o *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.SpeechVoice(o.voice),
		Instructions:   o.Instructions,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai speech: read audio: %w", err)
	}
	return audio, nil
}
