package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/semaphore"

	"github.com/chadiek/interview-voice/internal/metrics"
)

// PipelineConfig tunes a Pipeline.
type PipelineConfig struct {
	// Concurrency caps in-flight syntheses across every caller of the pipeline.
	Concurrency int
	// MinWords is the TextChunker merge threshold.
	MinWords int
	// FragmentTimeout bounds a single fragment synthesis; zero means no bound.
	FragmentTimeout time.Duration
}

// Result is the reassembled audio of one reply.
type Result struct {
	Audio     []byte
	Fragments int
	// Dropped counts fragments whose synthesis failed and were left out.
	Dropped int
}

// Partial reports whether some fragments are missing from Audio.
func (r Result) Partial() bool { return r.Dropped > 0 }

// Pipeline chunks replies and synthesizes the fragments in parallel. One
// Pipeline is shared by all sessions so the concurrency cap is process-wide.
type Pipeline struct {
	synth   Synthesizer
	chunker Chunker
	limit   int
	sem     *semaphore.Weighted
	timeout time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewPipeline builds a Pipeline. m may be nil.
func NewPipeline(synth Synthesizer, cfg PipelineConfig, log zerolog.Logger, m *metrics.Metrics) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pipeline{
		synth:   synth,
		chunker: NewChunker(cfg.MinWords),
		limit:   cfg.Concurrency,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		timeout: cfg.FragmentTimeout,
		log:     log.With().Str("component", "tts-pipeline").Logger(),
		metrics: m,
	}
}

// Synthesize turns reply into one contiguous audio payload. Fragments are
// reassembled in text order regardless of completion order. A failed
// fragment is dropped and counted; the call fails only when every fragment
// fails or ctx ends.
func (p *Pipeline) Synthesize(ctx context.Context, reply string) (Result, error) {
	frags := p.chunker.Split(reply)
	if len(frags) == 0 {
		return Result{}, ErrNothingToSynthesize
	}
	start := time.Now()
	defer func() { p.metrics.Pipeline(time.Since(start)) }()

	if len(frags) == 1 {
		audio, err := p.synthesizeFragment(ctx, frags[0])
		if err != nil {
			return Result{Fragments: 1, Dropped: 1}, err
		}
		return Result{Audio: audio, Fragments: 1}, nil
	}

	audios := make([][]byte, len(frags))
	errs := make([]error, len(frags))

	workers := pool.New().WithMaxGoroutines(p.limit)
	for _, f := range frags {
		workers.Go(func() {
			audios[f.Ordinal], errs[f.Ordinal] = p.synthesizeFragment(ctx, f)
		})
	}
	workers.Wait()

	if err := ctx.Err(); err != nil {
		return Result{Fragments: len(frags), Dropped: len(frags)}, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	var (
		buf     bytes.Buffer
		dropped int
	)
	for i, f := range frags {
		if errs[i] != nil {
			dropped++
			p.log.Warn().Int("ordinal", f.Ordinal).Err(errs[i]).Msg("fragment dropped")
			continue
		}
		buf.Write(audios[i])
	}

	res := Result{Fragments: len(frags), Dropped: dropped}
	if dropped == len(frags) {
		return res, fmt.Errorf("%w: all %d fragments failed: %w", ErrSynthesis, len(frags), errors.Join(errs...))
	}
	res.Audio = buf.Bytes()
	p.log.Debug().Int("fragments", res.Fragments).Int("dropped", dropped).Int("bytes", len(res.Audio)).
		Dur("took", time.Since(start)).Msg("reply synthesized")
	return res, nil
}

func (p *Pipeline) synthesizeFragment(ctx context.Context, f Fragment) ([]byte, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.metrics.Fragment("failed")
		return nil, fmt.Errorf("%w: fragment %d: %w", ErrSynthesis, f.Ordinal, err)
	}
	defer p.sem.Release(1)

	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	audio, err := p.synth.Synthesize(callCtx, f.Text)
	if err == nil && len(audio) == 0 {
		err = errors.New("provider returned no audio")
	}
	p.metrics.Capability("synthesis", time.Since(start), err)
	if err != nil {
		p.metrics.Fragment("failed")
		if errors.Is(err, ErrSynthesis) {
			return nil, fmt.Errorf("fragment %d: %w", f.Ordinal, err)
		}
		return nil, fmt.Errorf("%w: fragment %d: %w", ErrSynthesis, f.Ordinal, err)
	}
	p.metrics.Fragment("ok")
	return audio, nil
}
