package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chadiek/interview-voice/internal/agent"
	"github.com/chadiek/interview-voice/internal/content"
	"github.com/chadiek/interview-voice/internal/generator"
	"github.com/chadiek/interview-voice/internal/llm"
	"github.com/chadiek/interview-voice/internal/metrics"
	"github.com/chadiek/interview-voice/internal/protocol"
	"github.com/chadiek/interview-voice/internal/sessions"
	"github.com/chadiek/interview-voice/internal/tts"
)

type dialogueFunc func(ctx context.Context, h []llm.Message) (string, error)

func (f dialogueFunc) Reply(ctx context.Context, h []llm.Message) (string, error) { return f(ctx, h) }

type transcriberFunc func(ctx context.Context, audio []byte, lang string) (string, error)

func (f transcriberFunc) Transcribe(ctx context.Context, audio []byte, lang string) (string, error) {
	return f(ctx, audio, lang)
}

var persona = agent.Persona{SystemPrompt: "sys", Introduction: "Hola. ¿Cuál es tu nombre completo?"}

func newTestServer(t *testing.T, origins ...string) (*Server, *httptest.Server) {
	t.Helper()
	m := metrics.New("httptest")
	dialogue := agent.NewDialogueAgent(dialogueFunc(func(ctx context.Context, h []llm.Message) (string, error) {
		return "Encantada, " + h[len(h)-1].Content + ".", nil
	}), persona, time.Second)
	pipeline := tts.NewPipeline(tts.SynthesizerFunc(func(ctx context.Context, text string) ([]byte, error) {
		return []byte("<" + text + ">"), nil
	}), tts.PipelineConfig{Concurrency: 2, MinWords: 1}, zerolog.Nop(), m)

	catalogue, err := content.LoadQuestions()
	require.NoError(t, err)

	srv := New(Options{
		Session: agent.Config{
			Agent: dialogue,
			Transcriber: transcriberFunc(func(ctx context.Context, audio []byte, lang string) (string, error) {
				if string(audio) == "ruido" {
					return "", errors.New("asr failed")
				}
				return string(audio), nil
			}),
			Speech:         pipeline,
			Language:       "es",
			SynthesisQueue: 4,
			Metrics:        m,
			Logger:         zerolog.Nop(),
		},
		Registry:       sessions.NewRegistry(dialogue.NewConversation),
		Capabilities:   Capabilities{Transcription: true, Dialogue: true, Synthesis: false},
		Questions:      catalogue,
		AllowedOrigins: origins,
		Metrics:        m,
		Logger:         zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Echo)
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	c, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, query), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) protocol.Event {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev protocol.Event
	require.NoError(t, c.ReadJSON(&ev))
	assert.Greater(t, ev.Timestamp, 0.0)
	return ev
}

// readUntil collects events until one of kind arrives.
func readUntil(t *testing.T, c *websocket.Conn, kind protocol.EventType) []protocol.Event {
	t.Helper()
	var out []protocol.Event
	for {
		ev := readEvent(t, c)
		out = append(out, ev)
		if ev.Type == kind {
			return out
		}
	}
}

func kinds(evs []protocol.Event) []protocol.EventType {
	out := make([]protocol.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func TestServer_Healthz(t *testing.T) {
	srv, _ := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Echo.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	assert.Equal(t, "ok", w.Body.String())
}

func TestServer_HealthReportsCapabilities(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Echo.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Services.Transcription)
	assert.True(t, body.Services.Dialogue)
	assert.False(t, body.Services.Synthesis)
	assert.Zero(t, body.Sessions)
}

func TestServer_Questions(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Echo.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/questions", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var c content.Catalogue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.NotEmpty(t, c.Questions)
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Echo.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "httptest_sessions_active")
}

func TestWS_InterviewTurn(t *testing.T) {
	_, ts := newTestServer(t)
	c := dial(t, ts, "")

	intro := readEvent(t, c)
	assert.Equal(t, protocol.EventReplyText, intro.Type)
	assert.Equal(t, persona.Introduction, intro.Data)
	readUntil(t, c, protocol.EventSynthesisResult)

	require.NoError(t, c.WriteJSON(map[string]string{"type": "text", "data": "Ana"}))
	evs := readUntil(t, c, protocol.EventSynthesisResult)
	assert.Equal(t, []protocol.EventType{
		protocol.EventDialogueStarted,
		protocol.EventReplyText,
		protocol.EventSynthesisStarted,
		protocol.EventSynthesisResult,
	}, kinds(evs))
	assert.Equal(t, "Encantada, Ana.", evs[1].Data)

	audio, err := base64.StdEncoding.DecodeString(evs[3].Data)
	require.NoError(t, err)
	assert.Equal(t, "<Encantada, Ana>", string(audio))
	assert.Equal(t, 1, evs[3].Fragments)
}

func TestWS_AudioFailureThenRecovery(t *testing.T) {
	_, ts := newTestServer(t)
	c := dial(t, ts, "")
	readUntil(t, c, protocol.EventSynthesisResult)

	bad := base64.StdEncoding.EncodeToString([]byte("ruido"))
	require.NoError(t, c.WriteJSON(map[string]string{"type": "audio", "data": bad}))
	evs := readUntil(t, c, protocol.EventError)
	assert.Equal(t, []protocol.EventType{protocol.EventTranscriptionStarted, protocol.EventError}, kinds(evs))

	good := base64.StdEncoding.EncodeToString([]byte("Ana Torres"))
	require.NoError(t, c.WriteJSON(map[string]string{"type": "audio", "data": good}))
	evs = readUntil(t, c, protocol.EventReplyText)
	assert.Equal(t, []protocol.EventType{
		protocol.EventTranscriptionStarted,
		protocol.EventTranscriptionResult,
		protocol.EventDialogueStarted,
		protocol.EventReplyText,
	}, kinds(evs))
	assert.Equal(t, "Ana Torres", evs[1].Data)
}

func TestWS_MalformedFrameKeepsSession(t *testing.T) {
	_, ts := newTestServer(t)
	c := dial(t, ts, "")
	readUntil(t, c, protocol.EventSynthesisResult)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("{nope")))
	assert.Equal(t, protocol.EventError, readEvent(t, c).Type)

	require.NoError(t, c.WriteJSON(map[string]string{"type": "text", "data": ""}))
	assert.Equal(t, protocol.EventDialogueStarted, readEvent(t, c).Type)

	require.NoError(t, c.WriteJSON(map[string]string{"type": "text", "data": "Ana"}))
	assert.Equal(t, protocol.EventDialogueStarted, readEvent(t, c).Type, "blank text produced no reply")
	assert.Equal(t, protocol.EventReplyText, readEvent(t, c).Type)
}

func TestWS_SessionIDAndDuplicateRejected(t *testing.T) {
	srv, ts := newTestServer(t)
	c := dial(t, ts, "?session_id=cand-7")
	readEvent(t, c)

	_, ok := srv.opts.Registry.Get("cand-7")
	require.True(t, ok)

	dup := dial(t, ts, "?session_id=cand-7")
	ev := readEvent(t, dup)
	assert.Equal(t, protocol.EventError, ev.Type)
	_ = dup.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := dup.ReadMessage()
	assert.Error(t, err, "duplicate connection is closed")

	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	require.Eventually(t, func() bool { return srv.opts.Registry.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWS_RejectsForeignOrigin(t *testing.T) {
	_, ts := newTestServer(t, "https://entrevistas.example.com")
	h := http.Header{}
	h.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), h)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.Set("Origin", "https://entrevistas.example.com")
	c, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), h)
	require.NoError(t, err)
	_ = resp.Body.Close()
	_ = c.Close()
}

func TestServer_ShutdownDrainsSessions(t *testing.T) {
	srv, ts := newTestServer(t)
	c := dial(t, ts, "")
	readEvent(t, c)
	require.Eventually(t, func() bool { return srv.opts.Registry.Count() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, srv.opts.Registry.CancelAll())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.True(t, srv.opts.Registry.Wait(ctx))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000/"})
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(r), "no origin header")
	r.Header.Set("Origin", "http://LOCALHOST:3000")
	assert.True(t, check(r))
	r.Header.Set("Origin", "http://localhost:4000")
	assert.False(t, check(r))

	assert.True(t, originChecker([]string{"*"})(r))
}

func TestServer_QuestionListAlias(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Echo.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/preguntas", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var list []content.Question
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, srv.opts.Questions.Questions, list)
}

type fakeGenerator struct {
	job func(ctx context.Context, description string) (generator.JobAnalysis, error)
	cv  func(ctx context.Context, cv string) (generator.CVAnalysis, error)
}

func (f fakeGenerator) AnalyzeJob(ctx context.Context, description string) (generator.JobAnalysis, error) {
	return f.job(ctx, description)
}

func (f fakeGenerator) AnalyzeCV(ctx context.Context, cv string) (generator.CVAnalysis, error) {
	return f.cv(ctx, cv)
}

func postJSON(srv *Server, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Echo.ServeHTTP(w, req)
	return w
}

func TestServer_GenerateQuestions(t *testing.T) {
	srv, _ := newTestServer(t)
	var gotJob, gotCV string
	srv.opts.Generator = fakeGenerator{
		job: func(ctx context.Context, description string) (generator.JobAnalysis, error) {
			gotJob = description
			return generator.JobAnalysis{
				JobSummary:     "Backend de pagos",
				RequiredSkills: []string{"Go"},
				Questions:      []generator.Question{{Type: "pregunta", Content: "¿Qué es un canal?", SkillsEvaluated: []string{"Go"}, Difficulty: "básico"}},
			}, nil
		},
		cv: func(ctx context.Context, cv string) (generator.CVAnalysis, error) {
			gotCV = cv
			return generator.CVAnalysis{CVSummary: "Ingeniera", ExperienceLevel: "senior"}, nil
		},
	}

	for _, path := range []string{"/api/questions/job", "/api/analyze-job-proposal"} {
		t.Run(path, func(t *testing.T) {
			w := postJSON(srv, path, `{"job_description":"Desarrollador Go"}`)
			require.Equal(t, http.StatusOK, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, true, body["success"])
			assert.Equal(t, "Backend de pagos", body["job_summary"])
			assert.Equal(t, []any{"Go"}, body["required_skills"])
			require.Len(t, body["questions"], 1)
			assert.Equal(t, "Desarrollador Go", gotJob)
		})
	}

	for _, path := range []string{"/api/questions/cv", "/api/analyze-cv"} {
		t.Run(path, func(t *testing.T) {
			w := postJSON(srv, path, `{"cv_text":"Ana Torres"}`)
			require.Equal(t, http.StatusOK, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "senior", body["experience_level"])
			assert.Equal(t, "Ana Torres", gotCV)
		})
	}
}

func TestServer_GenerateQuestionsErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(srv, "/api/questions/job", `{"job_description":"Desarrollador Go"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "no generator configured")

	srv.opts.Generator = fakeGenerator{
		job: func(ctx context.Context, description string) (generator.JobAnalysis, error) {
			return generator.JobAnalysis{}, fmt.Errorf("%w: short", generator.ErrInputTooShort)
		},
		cv: func(ctx context.Context, cv string) (generator.CVAnalysis, error) {
			return generator.CVAnalysis{}, fmt.Errorf("%w: upstream 500", generator.ErrGeneration)
		},
	}

	w = postJSON(srv, "/api/questions/job", `{"job_description":"Go"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Detail, "50 caracteres")

	w = postJSON(srv, "/api/questions/cv", `{"cv_text":"Ana Torres"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = postJSON(srv, "/api/questions/cv", `{"cv_text":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
