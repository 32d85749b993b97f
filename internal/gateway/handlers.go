package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/policyvoice/internal/llm"
	"github.com/ziadkadry99/policyvoice/internal/pipeline"
	"github.com/ziadkadry99/policyvoice/internal/session"
)

// sessionsResponse is the JSON response for the session list endpoint.
type sessionsResponse struct {
	Sessions []session.Session `json:"sessions"`
	Total    int               `json:"total"`
}

// messagesResponse is the JSON response for a session's conversation.
type messagesResponse struct {
	SessionID string        `json:"session_id"`
	Messages  []llm.Message `json:"messages"`
}

// chatBody is both the request and response body of POST /api/chat.
type chatBody struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	sessions, err := g.store.ListSessions(ctx, limit)
	if err != nil {
		g.storeFailure(w, err, "listing sessions")
		return
	}
	total, err := g.store.CountSessions(ctx)
	if err != nil {
		g.storeFailure(w, err, "counting sessions")
		return
	}

	if sessions == nil {
		sessions = []session.Session{}
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions, Total: total})
}

func (g *Gateway) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msgs, err := g.store.Load(r.Context(), id)
	if err != nil {
		g.storeFailure(w, err, "loading session")
		return
	}
	if msgs == nil {
		msgs = []llm.Message{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{SessionID: id, Messages: msgs})
}

func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, g.maxMessageBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = newSessionID("api_")
	}

	reply, err := g.runner.RunTurn(r.Context(), req.SessionID, text)
	if err != nil {
		status, message := http.StatusInternalServerError, msgTurnFailed
		var upErr *pipeline.UpstreamError
		if errors.As(err, &upErr) {
			status, message = http.StatusBadGateway, msgAssistantUnavailable
		}
		g.logger.Warn().Err(err).Str("session_id", req.SessionID).Int("status", status).Msg("chat request failed")
		writeJSON(w, status, map[string]string{"error": message, "session_id": req.SessionID})
		return
	}

	writeJSON(w, http.StatusOK, chatBody{SessionID: req.SessionID, Text: reply})
}

func (g *Gateway) storeFailure(w http.ResponseWriter, err error, op string) {
	g.logger.Error().Err(err).Str("op", op).Msg("session store")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgTurnFailed})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
