package agent

import (
	"errors"

	"github.com/chadiek/interview-voice/internal/tts"
)

var (
	ErrDecode        = errors.New("decode failure")
	ErrTranscription = errors.New("transcription failure")
	ErrDialogue      = errors.New("dialogue failure")
	ErrSynthesis     = tts.ErrSynthesis
	// ErrTransport is the only failure that ends a session.
	ErrTransport = errors.New("transport failure")
)

// userMessage maps a failure to the text shown to the candidate. Provider
// details stay in the log.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrDecode):
		return "Mensaje no válido"
	case errors.Is(err, ErrTranscription):
		return "No pude entender el audio, ¿puedes repetirlo?"
	case errors.Is(err, ErrDialogue):
		return "No pude generar una respuesta, intenta de nuevo"
	case errors.Is(err, ErrSynthesis):
		return "No pude generar el audio de la respuesta"
	default:
		return "Error interno"
	}
}
