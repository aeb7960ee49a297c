package server

import (
	"github.com/quibble-ai/quibble/internal/acquire"
)

// SessionHeader carries the signed session token in both directions.
const SessionHeader = "X-Quibble-Session"

// ThreadCreateRequest starts a buyer thread from free text.
type ThreadCreateRequest struct {
	Text  string `json:"text"`
	Debug bool   `json:"debug,omitempty"`
}

// ThreadCreateResponse returns the initial offer set and session token.
type ThreadCreateResponse struct {
	ThreadID    string          `json:"thread_id"`
	Summary     string          `json:"summary"`
	Offers      []acquire.Offer `json:"offers"`
	Mocked      bool            `json:"mocked,omitempty"`
	Diagnostics *acquire.Trace  `json:"diagnostics,omitempty"`
}

// MessageRequest advances the negotiation with one buyer message.
type MessageRequest struct {
	Text string `json:"text"`
}

// MessageResponse carries the scripted reply and the thread's current stage.
type MessageResponse struct {
	ThreadID string `json:"thread_id"`
	Stage    string `json:"stage"`
	Reply    string `json:"reply"`
}

// HTTPError is the unified error body.
type HTTPError struct {
	Error string `json:"error"`
}
