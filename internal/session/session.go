// Package session carries the entire negotiation state inside a signed,
// client-held token. The server keeps nothing: every request presents the
// token, every response hands back a replacement.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quibble-ai/quibble/internal/acquire"
	"github.com/quibble-ai/quibble/internal/intent"
)

// Stage is the negotiation state machine position.
type Stage string

const (
	StageIntake      Stage = "intake"
	StageSearching   Stage = "searching"
	StagePresenting  Stage = "presenting"
	StageNegotiating Stage = "negotiating"
	StageConfirming  Stage = "confirming"
	StageConfirmed   Stage = "confirmed"
	StageAbandoned   Stage = "abandoned"
)

// State is everything the broker knows about one buyer thread.
type State struct {
	ThreadID    string          `json:"thread_id"`
	Stage       Stage           `json:"stage"`
	Intent      intent.Spec     `json:"intent"`
	Offers      []acquire.Offer `json:"offers,omitempty"`
	Round       int             `json:"round"`
	ChosenOffer string          `json:"chosen_offer,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

var (
	// ErrTampered marks a token whose signature does not verify.
	ErrTampered = errors.New("session: token tampered or malformed")
	// ErrExpired marks a token past its TTL.
	ErrExpired = errors.New("session: token expired")
)

// Codec signs and verifies session tokens.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec builds a codec. The secret must be non-empty.
func NewCodec(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("session: empty signing secret")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Codec{secret: secret, ttl: ttl}, nil
}

// Encode serializes the state into a signed token.
func (c *Codec) Encode(state State) (string, error) {
	claims := jwt.MapClaims{
		"sub":   state.ThreadID,
		"exp":   time.Now().Add(c.ttl).Unix(),
		"iat":   time.Now().Unix(),
		"state": state,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode verifies the token and extracts the state. Tampering yields
// ErrTampered; expiry yields ErrExpired.
func (c *Codec) Decode(token string) (State, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return State{}, ErrExpired
		}
		return State{}, ErrTampered
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return State{}, ErrTampered
	}
	raw, err := json.Marshal(claims["state"])
	if err != nil {
		return State{}, ErrTampered
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, ErrTampered
	}
	if state.ThreadID == "" {
		return State{}, ErrTampered
	}
	return state, nil
}
