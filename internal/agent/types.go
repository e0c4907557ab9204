package agent

import (
	"context"

	"github.com/chadiek/interview-voice/internal/protocol"
	"github.com/chadiek/interview-voice/internal/tts"
)

// Conn is the duplex connection of one session.
// ReadMessage returns io.EOF once the client closed cleanly; any other error
// is a transport failure. WriteEvent must be safe for concurrent use because
// the speaker writes alongside the main loop.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteEvent(ev protocol.Event) error
	Close() error
}

// Speech turns a whole reply into one audio payload. *tts.Pipeline implements it.
type Speech interface {
	Synthesize(ctx context.Context, reply string) (tts.Result, error)
}

// State is the lifecycle of an Orchestrator.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}
