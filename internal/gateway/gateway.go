// Package gateway exposes the assistant over a websocket endpoint, a small
// REST surface and a browser page.
package gateway

import (
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ziadkadry99/policyvoice/internal/session"
	"github.com/ziadkadry99/policyvoice/internal/speech"
	"github.com/ziadkadry99/policyvoice/internal/turn"
)

// DefaultMaxMessageBytes bounds a single inbound websocket frame.
const DefaultMaxMessageBytes = 10 << 20

// Gateway routes client messages to the turn runner.
type Gateway struct {
	runner          turn.Runner
	store           session.Store
	transcriber     speech.Transcriber
	logger          zerolog.Logger
	maxMessageBytes int64
}

// New creates a Gateway. transcriber may be nil, in which case audio
// messages are answered with an error.
func New(runner turn.Runner, store session.Store, transcriber speech.Transcriber, logger zerolog.Logger) *Gateway {
	return &Gateway{
		runner:          runner,
		store:           store,
		transcriber:     transcriber,
		logger:          logger.With().Str("component", "gateway").Logger(),
		maxMessageBytes: DefaultMaxMessageBytes,
	}
}

// SetMaxMessageBytes overrides the inbound frame limit. Non-positive values
// are ignored.
func (g *Gateway) SetMaxMessageBytes(n int64) {
	if n > 0 {
		g.maxMessageBytes = n
	}
}

// RegisterRoutes mounts all gateway routes onto the given router.
func (g *Gateway) RegisterRoutes(r chi.Router) {
	r.Get("/", g.ServeIndex)
	r.Get("/ws", g.handleWebSocket)
	r.Get("/api/sessions", g.handleListSessions)
	r.Get("/api/sessions/{id}/messages", g.handleSessionMessages)
	r.Post("/api/chat", g.handleChat)
}

// newSessionID returns prefix followed by 8 hex characters.
func newSessionID(prefix string) string {
	return prefix + uuid.NewString()[:8]
}
