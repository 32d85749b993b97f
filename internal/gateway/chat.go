package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/policyvoice/internal/metrics"
	"github.com/ziadkadry99/policyvoice/internal/pipeline"
	"github.com/ziadkadry99/policyvoice/internal/speech"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Inbound message types.
const (
	typeText  = "text"
	typeAudio = "audio"
	typeReset = "reset"
)

// Outbound message types.
const (
	typeTranscript = "transcript"
	typeResponse   = "response"
	typeError      = "error"
)

// Client-facing failure texts. Causes stay in the server log.
const (
	msgAssistantUnavailable = "The assistant is unavailable, please try again."
	msgTranscriptionFailed  = "Could not transcribe the audio, please try again."
	msgTurnFailed           = "Something went wrong, please try again."
	msgSpeechNotConfigured  = "speech-to-text is not configured"
)

// inboundMessage is the incoming WebSocket message format.
type inboundMessage struct {
	Type      string `json:"type"`       // "text", "audio" or "reset"
	Data      string `json:"data"`       // text, or base64 audio
	SessionID string `json:"session_id"` // empty for the connection default
}

// outboundMessage is the outgoing WebSocket message format.
type outboundMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// connState is the per-connection session association.
type connState struct {
	defaultID string
}

func (s *connState) sessionFor(msg inboundMessage) string {
	if msg.SessionID != "" {
		return msg.SessionID
	}
	return s.defaultID
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(g.maxMessageBytes)

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	state := &connState{defaultID: newSessionID("conn_")}
	log := g.logger.With().Str("conn_session", state.defaultID).Logger()
	log.Debug().Msg("websocket connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read")
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			g.ignore("unparseable", err.Error())
			continue
		}

		switch msg.Type {
		case typeReset:
			state.defaultID = newSessionID("conn_")
			g.send(conn, outboundMessage{Type: typeResponse, Text: "Session reset.", SessionID: state.defaultID})
		case typeText:
			text := strings.TrimSpace(msg.Data)
			if text == "" {
				g.ignore("empty_payload", "text")
				continue
			}
			g.answer(r.Context(), conn, state.sessionFor(msg), text)
		case typeAudio:
			g.handleAudio(r.Context(), conn, state.sessionFor(msg), msg.Data)
		default:
			g.ignore("unknown_type", msg.Type)
		}
	}
}

func (g *Gateway) handleAudio(ctx context.Context, conn *websocket.Conn, sessionID, payload string) {
	start := time.Now()
	audio, err := speech.DecodeAudio(payload)
	if err != nil {
		g.ignore("bad_audio", err.Error())
		return
	}
	if g.transcriber == nil {
		g.sendError(conn, sessionID, msgSpeechNotConfigured)
		return
	}

	text, err := g.transcriber.Transcribe(ctx, audio, "webm")
	if err != nil {
		g.logger.Warn().Err(err).Str("session_id", sessionID).Msg("transcription failed")
		g.sendError(conn, sessionID, msgTranscriptionFailed)
		return
	}
	g.logger.Debug().
		Str("session_id", sessionID).
		Int("audio_bytes", len(audio)).
		Dur("elapsed", time.Since(start)).
		Msg("audio transcribed")

	if text == "" {
		g.ignore("empty_transcript", sessionID)
		return
	}

	g.send(conn, outboundMessage{Type: typeTranscript, Text: text, SessionID: sessionID})
	g.answer(ctx, conn, sessionID, text)
}

// answer runs one turn and reports its outcome to the client.
func (g *Gateway) answer(ctx context.Context, conn *websocket.Conn, sessionID, text string) {
	reply, err := g.runner.RunTurn(ctx, sessionID, text)
	if err != nil {
		var upErr *pipeline.UpstreamError
		if errors.As(err, &upErr) {
			g.logger.Warn().Err(err).Str("session_id", sessionID).Msg("upstream failure")
			g.sendError(conn, sessionID, msgAssistantUnavailable)
		} else {
			g.logger.Error().Err(err).Str("session_id", sessionID).Msg("turn failed")
			g.sendError(conn, sessionID, msgTurnFailed)
		}
		return
	}
	g.send(conn, outboundMessage{Type: typeResponse, Text: reply, SessionID: sessionID})
}

func (g *Gateway) ignore(reason, detail string) {
	metrics.IgnoredMessages.WithLabelValues(reason).Inc()
	g.logger.Debug().Str("reason", reason).Str("detail", detail).Msg("ignoring message")
}

func (g *Gateway) send(conn *websocket.Conn, msg outboundMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		g.logger.Warn().Err(err).Msg("websocket write")
	}
}

func (g *Gateway) sendError(conn *websocket.Conn, sessionID, message string) {
	g.send(conn, outboundMessage{Type: typeError, Message: message, SessionID: sessionID})
}
