package tts

import (
	"context"
	"errors"
)

// ErrSynthesis marks a failed synthesis: provider error, missing audio or timeout.
var ErrSynthesis = errors.New("synthesis failed")

// ErrNothingToSynthesize is returned when a reply chunks into zero fragments.
var ErrNothingToSynthesize = errors.New("nothing to synthesize")

// Synthesizer turns one fragment of text into audio bytes.
// Implementations must be safe for concurrent use.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, text string) ([]byte, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f(ctx, text)
}
