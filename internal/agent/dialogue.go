package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chadiek/interview-voice/internal/llm"
)

// Persona is the scripted interviewer: its instructions, the fixed
// introduction that opens every session and how it should sound.
type Persona struct {
	SystemPrompt string
	Introduction string
	// VoiceStyle is passed to speech providers that accept delivery instructions.
	VoiceStyle string
}

// DefaultPersona interviews candidates for a data analyst role.
var DefaultPersona = Persona{
	SystemPrompt: `Eres María, entrevistadora virtual del Banco de Crédito del Perú (BCP) para el puesto de Analista de Datos.

Reglas:
- Solo hablas de la entrevista para Analista de Datos en BCP.
- Si el candidato pregunta otra cosa, redirige con cortesía a la entrevista.
- Tono profesional y cercano, sin listas ni numeración.
- Haz una sola pregunta clara a la vez y responde de forma breve.

Orden de la entrevista: nombre del candidato, experiencia en análisis de datos,
herramientas (SQL, Python, Excel, Power BI), experiencia en banca o finanzas,
resolución de problemas con datos, motivación para trabajar en BCP, trabajo en
equipo y cierre con los siguientes pasos.`,
	Introduction: "¡Hola! Soy María del BCP. Vamos a iniciar la entrevista para Analista de Datos. ¿Cuál es tu nombre completo?",
	VoiceStyle: `Eres María, entrevistadora virtual del BCP.
Tono profesional e institucional, confiable y amable. Energía positiva pero
corporativa. Pronunciación clara, ritmo pausado y seguro, con pausas breves
antes de las preguntas importantes.`,
}

// DialogueAgent runs the interview state machine on top of a Conversation.
type DialogueAgent struct {
	dialogue llm.Dialogue
	persona  Persona
	timeout  time.Duration
}

// NewDialogueAgent builds an agent. A zero timeout leaves dialogue calls unbounded.
func NewDialogueAgent(d llm.Dialogue, persona Persona, timeout time.Duration) *DialogueAgent {
	return &DialogueAgent{dialogue: d, persona: persona, timeout: timeout}
}

// NewConversation returns a history seeded with the persona's system turn.
func (a *DialogueAgent) NewConversation() *Conversation {
	return NewConversation(a.persona.SystemPrompt)
}

// Respond advances conv by one step. ok is false when there is nothing to say.
//
// The first call on a conversation always returns the introduction, whatever
// the utterance. After that, blank utterances yield no reply and anything
// else is sent to the dialogue capability with the full history. On failure
// the user turn stays in the history so the next utterance can retry.
func (a *DialogueAgent) Respond(ctx context.Context, conv *Conversation, utterance string) (string, bool, error) {
	if !conv.introductionSent {
		conv.append(llm.RoleAssistant, a.persona.Introduction)
		conv.introductionSent = true
		return a.persona.Introduction, true, nil
	}

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return "", false, nil
	}
	conv.append(llm.RoleUser, utterance)
	defer conv.trim()

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	reply, err := a.dialogue.Reply(callCtx, conv.Turns())
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrDialogue, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", false, fmt.Errorf("%w: %w", ErrDialogue, llm.ErrEmptyReply)
	}
	conv.append(llm.RoleAssistant, reply)
	return reply, true, nil
}
