package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const (
	MinJobDescription = 50
	MinCVText         = 100
)

var (
	// ErrInputTooShort wraps validation failures; callers answer 400.
	ErrInputTooShort = errors.New("generator: input too short")
	ErrGeneration    = errors.New("generator: generation failed")
)

// Question is one interview prompt. Type is "pregunta" or "actividad";
// Difficulty is "básico", "intermedio" or "avanzado".
type Question struct {
	Type            string   `json:"type"`
	Content         string   `json:"content"`
	SkillsEvaluated []string `json:"skills_evaluated"`
	Difficulty      string   `json:"difficulty"`
}

type JobAnalysis struct {
	JobSummary     string     `json:"job_summary"`
	RequiredSkills []string   `json:"required_skills"`
	Questions      []Question `json:"questions"`
}

type CVAnalysis struct {
	CVSummary        string     `json:"cv_summary"`
	IdentifiedSkills []string   `json:"identified_skills"`
	ExperienceLevel  string     `json:"experience_level"`
	Questions        []Question `json:"questions"`
}

// Generator turns a job post or a CV into tailored interview questions.
type Generator struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	temperature float32
	maxTokens   int
	log         zerolog.Logger
}

func New(apiKey, baseURL, model string, timeout time.Duration, log zerolog.Logger) *Generator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4.1-mini"
	}
	return &Generator{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		timeout:     timeout,
		temperature: 0.7,
		maxTokens:   2000,
		log:         log.With().Str("component", "generator").Logger(),
	}
}

func (g *Generator) AnalyzeJob(ctx context.Context, description string) (JobAnalysis, error) {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) < MinJobDescription {
		return JobAnalysis{}, fmt.Errorf("%w: job description needs at least %d characters", ErrInputTooShort, MinJobDescription)
	}
	var out JobAnalysis
	if err := g.complete(ctx, jobSystemPrompt, fmt.Sprintf(jobPrompt, description), &out); err != nil {
		return JobAnalysis{}, err
	}
	out.Questions = normalize(out.Questions)
	if len(out.Questions) == 0 {
		return JobAnalysis{}, fmt.Errorf("%w: no questions in response", ErrGeneration)
	}
	return out, nil
}

func (g *Generator) AnalyzeCV(ctx context.Context, cv string) (CVAnalysis, error) {
	cv = strings.TrimSpace(cv)
	if utf8.RuneCountInString(cv) < MinCVText {
		return CVAnalysis{}, fmt.Errorf("%w: cv needs at least %d characters", ErrInputTooShort, MinCVText)
	}
	var out CVAnalysis
	if err := g.complete(ctx, cvSystemPrompt, fmt.Sprintf(cvPrompt, cv), &out); err != nil {
		return CVAnalysis{}, err
	}
	out.Questions = normalize(out.Questions)
	if len(out.Questions) == 0 {
		return CVAnalysis{}, fmt.Errorf("%w: no questions in response", ErrGeneration)
	}
	switch out.ExperienceLevel {
	case "junior", "mid", "senior":
	default:
		out.ExperienceLevel = "mid"
	}
	return out, nil
}

// complete asks for a JSON object and decodes it into dst.
func (g *Generator) complete(ctx context.Context, system, prompt string, dst any) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:    g.temperature,
		MaxTokens:      g.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%w: no choices", ErrGeneration)
	}
	content := stripFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), dst); err != nil {
		g.log.Warn().Err(err).Int("bytes", len(content)).Msg("undecodable generation")
		return fmt.Errorf("%w: decode: %w", ErrGeneration, err)
	}
	g.log.Debug().Dur("took", time.Since(start)).Int("tokens", resp.Usage.TotalTokens).Msg("questions generated")
	return nil
}

// stripFence drops a ```json wrapper some models add despite JSON mode.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func normalize(qs []Question) []Question {
	out := qs[:0]
	for _, q := range qs {
		q.Content = strings.TrimSpace(q.Content)
		if q.Content == "" {
			continue
		}
		if q.Type != "actividad" {
			q.Type = "pregunta"
		}
		switch q.Difficulty {
		case "básico", "intermedio", "avanzado":
		default:
			q.Difficulty = "intermedio"
		}
		if q.SkillsEvaluated == nil {
			q.SkillsEvaluated = []string{}
		}
		out = append(out, q)
	}
	return out
}
