package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/chadiek/interview-voice/internal/agent"
	"github.com/chadiek/interview-voice/internal/content"
	"github.com/chadiek/interview-voice/internal/metrics"
	"github.com/chadiek/interview-voice/internal/protocol"
	"github.com/chadiek/interview-voice/internal/sessions"
)

// Capabilities reports which providers have credentials.
type Capabilities struct {
	Transcription bool `json:"transcription"`
	Dialogue      bool `json:"dialogue"`
	Synthesis     bool `json:"synthesis"`
	Questions     bool `json:"questions"`
}

// Options wires a Server.
type Options struct {
	// Session is the template every orchestrator is built from.
	Session      agent.Config
	Registry     *sessions.Registry
	Capabilities Capabilities
	Questions    content.Catalogue
	// Generator backs the question generation routes; nil answers 503.
	Generator      QuestionGenerator
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

// Server bundles the echo router and the live session registry.
type Server struct {
	Echo *echo.Echo

	opts     Options
	upgrader *websocket.Upgrader
	log      zerolog.Logger
}

type healthResponse struct {
	Status   string       `json:"status"`
	Services Capabilities `json:"services"`
	Sessions int          `json:"sessions"`
}

// New constructs the HTTP server with routes.
func New(opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		opts:     opts,
		upgrader: newUpgrader(opts.AllowedOrigins),
		log:      opts.Logger.With().Str("component", "http").Logger(),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := s.log.Info()
			if v.Error != nil {
				ev = s.log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/health", s.health)
	e.GET("/api/questions", s.questions)
	e.GET("/api/preguntas", s.questionList)
	e.POST("/api/questions/job", s.generateFromJob)
	e.POST("/api/questions/cv", s.generateFromCV)
	e.POST("/api/analyze-job-proposal", s.generateFromJob)
	e.POST("/api/analyze-cv", s.generateFromCV)
	e.GET("/metrics", echo.WrapHandler(opts.Metrics.Handler()))
	e.GET("/ws", s.serveWS)

	s.Echo = e
	return s
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:   "ok",
		Services: s.opts.Capabilities,
		Sessions: s.opts.Registry.Count(),
	})
}

func (s *Server) questions(c echo.Context) error {
	return c.JSON(http.StatusOK, s.opts.Questions)
}

// questionList serves the bare question list older clients expect.
func (s *Server) questionList(c echo.Context) error {
	return c.JSON(http.StatusOK, s.opts.Questions.Questions)
}

// serveWS upgrades the request and runs one interview session on it until
// the client leaves. An optional ?session_id= names the session.
func (s *Server) serveWS(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already answered with an HTTP error
		s.log.Warn().Err(err).Str("origin", c.Request().Header.Get("Origin")).Msg("ws upgrade failed")
		return nil
	}
	conn := newWSConn(ws)
	defer func() { _ = conn.Close() }()

	sess, err := s.opts.Registry.Create(context.Background(), c.QueryParam("session_id"), conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("session rejected")
		_ = conn.WriteEvent(protocol.NewEvent(protocol.EventError, "La sesión ya está activa", time.Now()))
		return nil
	}
	defer s.opts.Registry.Remove(sess.ID)

	orch := agent.NewOrchestrator(sess.ID, sess.Conn, sess.Conversation, s.opts.Session)
	err = orch.Run(sess.Context())
	log := s.log.With().Str("session", sess.ID).Dur("lifetime", time.Since(sess.Started)).Logger()
	switch {
	case err == nil:
		log.Info().Msg("session ended")
	case errors.Is(err, agent.ErrTransport):
		log.Info().Err(err).Msg("session transport closed")
	default:
		log.Error().Err(err).Msg("session failed")
	}
	return nil
}

// Shutdown stops accepting requests, cancels live sessions and waits for
// them to drain until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	if n := s.opts.Registry.CancelAll(); n > 0 {
		s.log.Info().Int("sessions", n).Msg("cancelling live sessions")
	}
	if !s.opts.Registry.Wait(ctx) {
		return errors.Join(err, errors.New("httpserver: sessions did not drain before deadline"))
	}
	return err
}
