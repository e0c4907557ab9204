package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/chadiek/interview-voice/internal/metrics"
	"github.com/chadiek/interview-voice/internal/protocol"
	"github.com/chadiek/interview-voice/internal/transcript"
)

// Config wires the capabilities an Orchestrator drives.
type Config struct {
	Agent       *DialogueAgent
	Transcriber transcript.Transcriber
	Speech      Speech

	// Language is the transcription hint, e.g. "es".
	Language             string
	TranscriptionTimeout time.Duration
	// SynthesisQueue bounds replies waiting for the speaker.
	SynthesisQueue int

	Metrics *metrics.Metrics
	Logger  zerolog.Logger
	// Clock stamps outbound events; defaults to time.Now.
	Clock func() time.Time
}

// Orchestrator runs the protocol loop of one session. Inbound messages are
// handled strictly one at a time. Synthesis runs on a per-session speaker
// goroutine fed by a bounded queue, so the loop never waits for audio and
// replies are voiced in turn order.
type Orchestrator struct {
	id     string
	conn   Conn
	conv   *Conversation
	cfg    Config
	log    zerolog.Logger
	state  atomic.Int32
	speech chan string
}

// NewOrchestrator builds an orchestrator for session id. conv may be nil, in
// which case a fresh conversation is seeded from cfg.Agent.
func NewOrchestrator(id string, conn Conn, conv *Conversation, cfg Config) *Orchestrator {
	if cfg.SynthesisQueue <= 0 {
		cfg.SynthesisQueue = 8
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if conv == nil {
		conv = cfg.Agent.NewConversation()
	}
	return &Orchestrator{
		id:     id,
		conn:   conn,
		conv:   conv,
		cfg:    cfg,
		log:    cfg.Logger.With().Str("session", id).Logger(),
		speech: make(chan string, cfg.SynthesisQueue),
	}
}

func (o *Orchestrator) ID() string { return o.id }

func (o *Orchestrator) State() State { return State(o.state.Load()) }

// Conversation returns the session history. Only read it once Run has returned.
func (o *Orchestrator) Conversation() *Conversation { return o.conv }

// Run opens the session, sends the introduction and serves inbound messages
// until the client leaves, the transport fails or ctx ends. Outstanding
// synthesis is cancelled and awaited before Run returns. A clean close or a
// cancelled ctx returns nil; a transport failure returns an error wrapping
// ErrTransport.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return fmt.Errorf("agent: session %s already started", o.id)
	}
	opened := time.Now()
	o.cfg.Metrics.SessionOpened()
	o.log.Info().Msg("session opened")

	ctx, cancel := context.WithCancel(ctx)
	stopCloser := context.AfterFunc(ctx, func() { _ = o.conn.Close() })

	var speaker conc.WaitGroup
	speaker.Go(func() { o.speak(ctx) })

	reason := "client_closed"
	defer func() {
		stopCloser()
		cancel()
		speaker.Wait()
		o.state.Store(int32(StateClosed))
		o.cfg.Metrics.SessionClosed(reason, time.Since(opened))
		o.log.Info().Str("reason", reason).Dur("lifetime", time.Since(opened)).Msg("session closed")
	}()

	if err := o.introduce(ctx); err != nil {
		if ctx.Err() != nil {
			reason = "shutdown"
			return nil
		}
		reason = "transport_error"
		return err
	}

	for {
		frame, err := o.conn.ReadMessage()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				reason = "shutdown"
				return nil
			case errors.Is(err, io.EOF):
				return nil
			default:
				reason = "transport_error"
				return fmt.Errorf("%w: read: %w", ErrTransport, err)
			}
		}
		if err := o.handle(ctx, frame); err != nil {
			if ctx.Err() != nil {
				reason = "shutdown"
				return nil
			}
			reason = "transport_error"
			return err
		}
	}
}

func (o *Orchestrator) introduce(ctx context.Context) error {
	reply, ok, err := o.cfg.Agent.Respond(ctx, o.conv, "")
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return o.fail(err)
	}
	if !ok {
		return nil
	}
	return o.reply(reply)
}

// handle processes one inbound frame. Only transport failures and
// cancellation are returned; every other failure becomes an error event.
func (o *Orchestrator) handle(ctx context.Context, frame []byte) error {
	msg, err := protocol.Decode(frame)
	if err != nil {
		o.cfg.Metrics.Inbound("invalid")
		o.log.Warn().Err(err).Msg("undecodable message")
		return o.fail(fmt.Errorf("%w: %w", ErrDecode, err))
	}
	switch m := msg.(type) {
	case *protocol.AudioMessage:
		o.cfg.Metrics.Inbound(protocol.TypeAudio)
		return o.handleAudio(ctx, m.Audio)
	case *protocol.TextMessage:
		o.cfg.Metrics.Inbound(protocol.TypeText)
		return o.handleText(ctx, m.Text)
	default:
		return o.fail(fmt.Errorf("%w: unhandled message %T", ErrDecode, msg))
	}
}

func (o *Orchestrator) handleAudio(ctx context.Context, audio []byte) error {
	if err := o.emit(protocol.EventTranscriptionStarted, ""); err != nil {
		return err
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.cfg.TranscriptionTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.TranscriptionTimeout)
	}
	start := time.Now()
	text, err := o.cfg.Transcriber.Transcribe(callCtx, audio, o.cfg.Language)
	cancel()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = transcript.ErrEmptyTranscript
	}
	o.cfg.Metrics.Capability("transcription", time.Since(start), err)
	if err != nil {
		o.log.Warn().Err(err).Int("bytes", len(audio)).Msg("transcription failed")
		return o.fail(fmt.Errorf("%w: %w", ErrTranscription, err))
	}
	o.log.Debug().Str("text", text).Msg("heard")

	if err := o.emit(protocol.EventTranscriptionResult, text); err != nil {
		return err
	}
	return o.handleText(ctx, text)
}

func (o *Orchestrator) handleText(ctx context.Context, text string) error {
	if err := o.emit(protocol.EventDialogueStarted, ""); err != nil {
		return err
	}

	start := time.Now()
	reply, ok, err := o.cfg.Agent.Respond(ctx, o.conv, text)
	// the session is going away; nothing left to report to
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if ok || err != nil {
		o.cfg.Metrics.Capability("dialogue", time.Since(start), err)
	}
	if err != nil {
		o.log.Warn().Err(err).Msg("dialogue failed")
		return o.fail(err)
	}
	if !ok {
		return nil
	}
	return o.reply(reply)
}

// reply sends the text right away and queues its audio for the speaker.
func (o *Orchestrator) reply(text string) error {
	if err := o.emit(protocol.EventReplyText, text); err != nil {
		return err
	}
	select {
	case o.speech <- text:
		return nil
	default:
		o.log.Warn().Int("queue", cap(o.speech)).Msg("synthesis queue full, reply not voiced")
		return o.fail(fmt.Errorf("%w: synthesis queue full", ErrSynthesis))
	}
}

func (o *Orchestrator) speak(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-o.speech:
			o.synthesize(ctx, text)
		}
	}
}

func (o *Orchestrator) synthesize(ctx context.Context, text string) {
	if err := o.emit(protocol.EventSynthesisStarted, ""); err != nil {
		return
	}
	res, err := o.cfg.Speech.Synthesize(ctx, text)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if !errors.Is(err, ErrSynthesis) {
			err = fmt.Errorf("%w: %w", ErrSynthesis, err)
		}
		o.log.Warn().Err(err).Msg("synthesis failed")
		_ = o.fail(err)
		return
	}
	if res.Partial() {
		o.log.Warn().Int("fragments", res.Fragments).Int("dropped", res.Dropped).Msg("partial synthesis")
	}
	_ = o.write(protocol.NewSynthesisResult(res.Audio, res.Fragments, res.Dropped, o.cfg.Clock()))
}

func (o *Orchestrator) fail(err error) error {
	return o.emit(protocol.EventError, userMessage(err))
}

func (o *Orchestrator) emit(kind protocol.EventType, data string) error {
	return o.write(protocol.NewEvent(kind, data, o.cfg.Clock()))
}

func (o *Orchestrator) write(ev protocol.Event) error {
	if err := o.conn.WriteEvent(ev); err != nil {
		o.log.Debug().Err(err).Str("event", string(ev.Type)).Msg("write failed")
		return fmt.Errorf("%w: write %s: %w", ErrTransport, ev.Type, err)
	}
	return nil
}
