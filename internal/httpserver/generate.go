package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chadiek/interview-voice/internal/generator"
)

// QuestionGenerator produces interview questions from a job post or a CV.
type QuestionGenerator interface {
	AnalyzeJob(ctx context.Context, description string) (generator.JobAnalysis, error)
	AnalyzeCV(ctx context.Context, cv string) (generator.CVAnalysis, error)
}

type jobRequest struct {
	JobDescription string `json:"job_description"`
}

type cvRequest struct {
	CVText string `json:"cv_text"`
}

type jobResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	generator.JobAnalysis
}

type cvResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	generator.CVAnalysis
}

type errorResponse struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}

func (s *Server) generateFromJob(c echo.Context) error {
	var req jobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Detail: "Cuerpo de la solicitud inválido"})
	}
	if s.opts.Generator == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Detail: "La generación de preguntas no está configurada"})
	}
	out, err := s.opts.Generator.AnalyzeJob(c.Request().Context(), req.JobDescription)
	if err != nil {
		return s.generationError(c, err, "La descripción del trabajo debe tener al menos 50 caracteres")
	}
	return c.JSON(http.StatusOK, jobResponse{Success: true, Message: "Preguntas generadas exitosamente", JobAnalysis: out})
}

func (s *Server) generateFromCV(c echo.Context) error {
	var req cvRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Detail: "Cuerpo de la solicitud inválido"})
	}
	if s.opts.Generator == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Detail: "La generación de preguntas no está configurada"})
	}
	out, err := s.opts.Generator.AnalyzeCV(c.Request().Context(), req.CVText)
	if err != nil {
		return s.generationError(c, err, "El CV debe tener al menos 100 caracteres")
	}
	return c.JSON(http.StatusOK, cvResponse{Success: true, Message: "Análisis de CV completado exitosamente", CVAnalysis: out})
}

func (s *Server) generationError(c echo.Context, err error, tooShort string) error {
	if errors.Is(err, generator.ErrInputTooShort) {
		return c.JSON(http.StatusBadRequest, errorResponse{Detail: tooShort})
	}
	s.log.Warn().Err(err).Str("uri", c.Request().RequestURI).Msg("question generation failed")
	return c.JSON(http.StatusBadGateway, errorResponse{Detail: "No se pudieron generar las preguntas"})
}
