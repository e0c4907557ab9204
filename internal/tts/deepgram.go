package tts

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/rest"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

// DeepgramClient synthesizes through the Deepgram speak REST endpoint. It
// asks for mp3 so fragments concatenate into one playable stream like the
// other providers.
type DeepgramClient struct {
	apiKey string
	model  string
	// Host overrides the API host, e.g. "http://127.0.0.1:8080". Empty uses Deepgram's.
	Host string

	log zerolog.Logger
}

func NewDeepgramClient(apiKey, model string, log zerolog.Logger) *DeepgramClient {
	if model == "" {
		model = "aura-2-celeste-es"
	}
	return &DeepgramClient{
		apiKey: apiKey,
		model:  model,
		log:    log.With().Str("provider", "deepgram").Logger(),
	}
}

func (d *DeepgramClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("%w: deepgram api key missing", ErrSynthesis)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	client := speak.NewREST(d.apiKey, &interfaces.ClientOptions{Host: d.Host})
	if client == nil {
		return nil, fmt.Errorf("%w: deepgram client options rejected", ErrSynthesis)
	}
	var buf interfaces.RawResponse
	resp, err := api.New(client).ToStream(ctx, text, &interfaces.SpeakOptions{
		Model:    d.model,
		Encoding: "mp3",
	}, &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: deepgram speak: %w", ErrSynthesis, err)
	}
	if ct := resp.ContextType; ct != "" && !strings.HasPrefix(ct, "audio/mpeg") {
		return nil, fmt.Errorf("%w: deepgram returned %s, want audio/mpeg", ErrSynthesis, ct)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: deepgram returned no audio", ErrSynthesis)
	}
	d.log.Debug().Str("request_id", resp.RequestID).Int("characters", resp.Characters).
		Int("bytes", buf.Len()).Msg("speech synthesized")
	return bytes.Clone(buf.Bytes()), nil
}
