package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress    string
	Environment    string
	LogLevel       string
	AllowedOrigins []string

	GroqAPIKey            string
	GroqBaseURL           string
	WhisperModel          string
	TranscriptionLanguage string
	TranscriptionTimeout  time.Duration
	// SpeechGateThreshold is the RMS level below which WAV clips are treated
	// as silence and never sent to the provider. Zero disables the gate.
	SpeechGateThreshold float64

	LLMProvider     string
	OpenAIAPIKey    string
	ChatModel       string
	CerebrasKey     string
	CerebrasModelID string
	DialogueTimeout time.Duration

	// QuestionModel generates interview questions from job posts and CVs.
	QuestionModel   string
	QuestionTimeout time.Duration

	TTSProvider       string
	TTSModel          string
	TTSVoice          string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	DeepgramKey       string
	DeepgramModel     string

	MaxConcurrentTTS int
	MinWordsPerChunk int
	SynthesisTimeout time.Duration
	SynthesisQueue   int
}

var defaults = map[string]any{
	"http_address":           ":8000",
	"environment":            "development",
	"log_level":              "info",
	"allowed_origins":        "*",
	"groq_base_url":          "https://api.groq.com/openai/v1",
	"whisper_model":          "whisper-large-v3-turbo",
	"transcription_language": "es",
	"transcription_timeout":  "30s",
	"speech_gate_threshold":  300,
	"llm_provider":           "openai",
	"chat_model":             "gpt-4.1-mini",
	"cerebras_model_id":      "gpt-oss-120b",
	"dialogue_timeout":       "20s",
	"question_model":         "gpt-4.1-mini",
	"question_timeout":       "60s",
	"tts_provider":           "openai",
	"tts_model":              "gpt-4o-mini-tts",
	"tts_voice":              "nova",
	"deepgram_model":         "aura-2-celeste-es",
	"max_concurrent_tts":     10,
	"min_words_per_chunk":    4,
	"synthesis_timeout":      "30s",
	"synthesis_queue":        8,
}

// Load reads .env, an optional config.yaml and environment variables and
// returns Config with sane defaults. Missing provider keys are not errors;
// see Warnings.
func Load(configPath string) (Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		HTTPAddress:           v.GetString("http_address"),
		Environment:           v.GetString("environment"),
		LogLevel:              v.GetString("log_level"),
		AllowedOrigins:        splitList(v.GetString("allowed_origins")),
		GroqAPIKey:            v.GetString("groq_api_key"),
		GroqBaseURL:           v.GetString("groq_base_url"),
		WhisperModel:          v.GetString("whisper_model"),
		TranscriptionLanguage: v.GetString("transcription_language"),
		TranscriptionTimeout:  v.GetDuration("transcription_timeout"),
		SpeechGateThreshold:   v.GetFloat64("speech_gate_threshold"),
		LLMProvider:           strings.ToLower(v.GetString("llm_provider")),
		OpenAIAPIKey:          v.GetString("openai_api_key"),
		ChatModel:             v.GetString("chat_model"),
		CerebrasKey:           v.GetString("cerebras_api_key"),
		CerebrasModelID:       v.GetString("cerebras_model_id"),
		DialogueTimeout:       v.GetDuration("dialogue_timeout"),
		QuestionModel:         v.GetString("question_model"),
		QuestionTimeout:       v.GetDuration("question_timeout"),
		TTSProvider:           strings.ToLower(v.GetString("tts_provider")),
		TTSModel:              v.GetString("tts_model"),
		TTSVoice:              v.GetString("tts_voice"),
		ElevenLabsKey:         v.GetString("elevenlabs_api_key"),
		ElevenLabsVoiceID:     v.GetString("elevenlabs_voice_id"),
		DeepgramKey:           v.GetString("deepgram_api_key"),
		DeepgramModel:         v.GetString("deepgram_model"),
		MaxConcurrentTTS:      v.GetInt("max_concurrent_tts"),
		MinWordsPerChunk:      v.GetInt("min_words_per_chunk"),
		SynthesisTimeout:      v.GetDuration("synthesis_timeout"),
		SynthesisQueue:        v.GetInt("synthesis_queue"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.LLMProvider {
	case "openai", "cerebras":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.TTSProvider {
	case "openai", "elevenlabs", "deepgram":
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}
	if c.MaxConcurrentTTS <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_TTS must be positive, got %d", c.MaxConcurrentTTS)
	}
	if c.MinWordsPerChunk <= 0 {
		return fmt.Errorf("MIN_WORDS_PER_CHUNK must be positive, got %d", c.MinWordsPerChunk)
	}
	if c.SpeechGateThreshold < 0 {
		return fmt.Errorf("SPEECH_GATE_THRESHOLD must not be negative, got %v", c.SpeechGateThreshold)
	}
	if c.SynthesisQueue <= 0 {
		return fmt.Errorf("SYNTHESIS_QUEUE must be positive, got %d", c.SynthesisQueue)
	}
	return nil
}

// Warnings lists the capabilities that will not work for lack of
// credentials. Callers log them once the process logger exists.
func (c Config) Warnings() []string {
	var out []string
	if !c.TranscriptionConfigured() {
		out = append(out, "GROQ_API_KEY not set: transcription will not work")
	}
	if !c.DialogueConfigured() {
		out = append(out, fmt.Sprintf("%s dialogue key not set: replies will not work", c.LLMProvider))
	}
	if !c.SynthesisConfigured() {
		out = append(out, fmt.Sprintf("%s synthesis key not set: audio will not work", c.TTSProvider))
	}
	if !c.QuestionsConfigured() {
		out = append(out, "OPENAI_API_KEY not set: question generation will not work")
	}
	return out
}

// TranscriptionConfigured reports whether the transcription provider has credentials.
func (c Config) TranscriptionConfigured() bool { return c.GroqAPIKey != "" }

// DialogueConfigured reports whether the selected dialogue provider has credentials.
func (c Config) DialogueConfigured() bool {
	if c.LLMProvider == "cerebras" {
		return c.CerebrasKey != ""
	}
	return c.OpenAIAPIKey != ""
}

// QuestionsConfigured reports whether question generation has credentials.
func (c Config) QuestionsConfigured() bool { return c.OpenAIAPIKey != "" }

// SynthesisConfigured reports whether the selected synthesis provider has credentials.
func (c Config) SynthesisConfigured() bool {
	switch c.TTSProvider {
	case "elevenlabs":
		return c.ElevenLabsKey != "" && c.ElevenLabsVoiceID != ""
	case "deepgram":
		return c.DeepgramKey != ""
	default:
		return c.OpenAIAPIKey != ""
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
