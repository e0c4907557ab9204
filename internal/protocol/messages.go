package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventType enumerates server -> client event kinds.
type EventType string

const (
	EventTranscriptionStarted EventType = "transcription_started"
	EventTranscriptionResult  EventType = "transcription_result"
	EventDialogueStarted      EventType = "dialogue_started"
	EventReplyText            EventType = "reply_text"
	EventSynthesisStarted     EventType = "synthesis_started"
	EventSynthesisResult      EventType = "synthesis_result"
	EventError                EventType = "error"
)

// Event is one server -> client frame. Timestamp is epoch seconds.
type Event struct {
	Type      EventType `json:"type"`
	Data      string    `json:"data,omitempty"`
	Fragments int       `json:"fragments,omitempty"`
	Dropped   int       `json:"dropped,omitempty"`
	Timestamp float64   `json:"timestamp"`
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// NewEvent builds an event stamped with now.
func NewEvent(kind EventType, data string, now time.Time) Event {
	return Event{Type: kind, Data: data, Timestamp: epochSeconds(now)}
}

// NewSynthesisResult builds a synthesis_result event carrying base64 audio.
// dropped is the number of fragments that failed and were left out.
func NewSynthesisResult(audio []byte, fragments, dropped int, now time.Time) Event {
	ev := NewEvent(EventSynthesisResult, base64.StdEncoding.EncodeToString(audio), now)
	ev.Fragments = fragments
	ev.Dropped = dropped
	return ev
}

// Inbound is a decoded client -> server message: *AudioMessage or *TextMessage.
type Inbound interface {
	isInbound()
}

// AudioMessage carries decoded audio bytes.
type AudioMessage struct {
	Audio []byte
}

// TextMessage carries a typed utterance. Text may be empty.
type TextMessage struct {
	Text string
}

func (*AudioMessage) isInbound() {}
func (*TextMessage) isInbound()  {}

const (
	TypeAudio = "audio"
	TypeText  = "text"
)

// DecodeError describes a malformed inbound frame.
type DecodeError struct {
	Code    string
	Message string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badRequest(format string, args ...any) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: fmt.Sprintf(format, args...)}
}

type rawInbound struct {
	Type string           `json:"type"`
	Data *json.RawMessage `json:"data"`
}

// Decode parses one client frame.
func Decode(frame []byte) (Inbound, error) {
	var raw rawInbound
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, badRequest("invalid json: %v", err)
	}

	var data string
	if raw.Data != nil && string(*raw.Data) != "null" {
		if err := json.Unmarshal(*raw.Data, &data); err != nil {
			return nil, badRequest("data must be a string")
		}
	}

	switch strings.ToLower(strings.TrimSpace(raw.Type)) {
	case TypeAudio:
		if data == "" {
			return nil, badRequest("audio message without data")
		}
		audio, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, badRequest("audio data is not base64: %v", err)
		}
		return &AudioMessage{Audio: audio}, nil
	case TypeText:
		return &TextMessage{Text: data}, nil
	case "":
		return nil, badRequest("missing type")
	default:
		return nil, &DecodeError{Code: "unsupported", Message: fmt.Sprintf("unknown message type %q", raw.Type)}
	}
}
