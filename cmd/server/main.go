package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/chadiek/interview-voice/internal/agent"
	"github.com/chadiek/interview-voice/internal/config"
	"github.com/chadiek/interview-voice/internal/content"
	"github.com/chadiek/interview-voice/internal/generator"
	"github.com/chadiek/interview-voice/internal/httpserver"
	"github.com/chadiek/interview-voice/internal/llm"
	"github.com/chadiek/interview-voice/internal/logging"
	"github.com/chadiek/interview-voice/internal/metrics"
	"github.com/chadiek/interview-voice/internal/sessions"
	"github.com/chadiek/interview-voice/internal/transcript"
	"github.com/chadiek/interview-voice/internal/tts"
)

func main() {
	configPath := flag.String("config", "", "path to a config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Environment, cfg.LogLevel)
	zlog.Logger = logger
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	m := metrics.New("interview")

	synth, err := newSynthesizer(cfg, logger)
	if err != nil {
		return err
	}
	pipeline := tts.NewPipeline(synth, tts.PipelineConfig{
		Concurrency:     cfg.MaxConcurrentTTS,
		MinWords:        cfg.MinWordsPerChunk,
		FragmentTimeout: cfg.SynthesisTimeout,
	}, logger, m)

	dialogue := agent.NewDialogueAgent(newDialogue(cfg), agent.DefaultPersona, cfg.DialogueTimeout)

	whisper := transcript.NewWhisperService(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.WhisperModel)

	questions, err := content.LoadQuestions()
	if err != nil {
		return err
	}

	var questionGen httpserver.QuestionGenerator
	if cfg.QuestionsConfigured() {
		questionGen = generator.New(cfg.OpenAIAPIKey, "", cfg.QuestionModel, cfg.QuestionTimeout, logger)
	}

	srv := httpserver.New(httpserver.Options{
		Session: agent.Config{
			Agent:                dialogue,
			Transcriber:          transcript.NewSpeechGate(whisper, cfg.SpeechGateThreshold),
			Speech:               pipeline,
			Language:             cfg.TranscriptionLanguage,
			TranscriptionTimeout: cfg.TranscriptionTimeout,
			SynthesisQueue:       cfg.SynthesisQueue,
			Metrics:              m,
			Logger:               logger,
		},
		Registry: sessions.NewRegistry(dialogue.NewConversation),
		Capabilities: httpserver.Capabilities{
			Transcription: cfg.TranscriptionConfigured(),
			Dialogue:      cfg.DialogueConfigured(),
			Synthesis:     cfg.SynthesisConfigured(),
			Questions:     cfg.QuestionsConfigured(),
		},
		Questions:      questions,
		Generator:      questionGen,
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        m,
		Logger:         logger,
	})

	srv.Echo.Server.ReadHeaderTimeout = 10 * time.Second
	srv.Echo.Server.IdleTimeout = 60 * time.Second

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress).
			Str("llm", cfg.LLMProvider).Str("tts", cfg.TTSProvider).
			Int("max_concurrent_tts", cfg.MaxConcurrentTTS).Msg("server listening")
		serverErrors <- srv.Echo.Start(cfg.HTTPAddress)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown incomplete")
		_ = srv.Echo.Close()
	}
	return nil
}

func newSynthesizer(cfg config.Config, logger zerolog.Logger) (tts.Synthesizer, error) {
	switch cfg.TTSProvider {
	case "openai":
		s := tts.NewOpenAISynthesizer(cfg.OpenAIAPIKey, "", cfg.TTSModel, cfg.TTSVoice)
		s.Instructions = agent.DefaultPersona.VoiceStyle
		return s, nil
	case "elevenlabs":
		return tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID), nil
	case "deepgram":
		return tts.NewDeepgramClient(cfg.DeepgramKey, cfg.DeepgramModel, logger), nil
	}
	return nil, fmt.Errorf("unknown TTS_PROVIDER %q", cfg.TTSProvider)
}

func newDialogue(cfg config.Config) llm.Dialogue {
	if cfg.LLMProvider == "cerebras" {
		return llm.NewCerebrasClient(cfg.CerebrasKey, cfg.CerebrasModelID)
	}
	return llm.NewOpenAIClient(cfg.OpenAIAPIKey, "", cfg.ChatModel)
}
