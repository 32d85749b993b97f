// Package turn runs a single conversation turn end to end: load the session,
// run the pipeline, persist the exchange.
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/policyvoice/internal/llm"
	"github.com/ziadkadry99/policyvoice/internal/metrics"
	"github.com/ziadkadry99/policyvoice/internal/pipeline"
	"github.com/ziadkadry99/policyvoice/internal/session"
)

// Runner answers one user message within a session.
type Runner interface {
	RunTurn(ctx context.Context, sessionID, text string) (string, error)
}

// Orchestrator implements Runner over a session store and a pipeline.
type Orchestrator struct {
	store    session.Store
	pipeline *pipeline.Pipeline
	timeout  time.Duration
	logger   zerolog.Logger
	turns    session.KeyedMutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds the pipeline run of each turn. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(store session.Store, p *pipeline.Pipeline, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		pipeline: p,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunTurn answers text in the context of sessionID's conversation. The user
// message and the reply are persisted together, and only on success.
//
// Turns on the same session are serialized for their whole duration, so a
// turn always sees every earlier turn of its session.
func (o *Orchestrator) RunTurn(ctx context.Context, sessionID, text string) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id is required")
	}

	unlock := o.turns.Lock(sessionID)
	defer unlock()

	start := time.Now()
	log := o.logger.With().Str("session_id", sessionID).Logger()

	history, err := o.store.Load(ctx, sessionID)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("store_error").Inc()
		return "", fmt.Errorf("loading session: %w", err)
	}

	userMsg := llm.UserMessage(text)
	tc := &pipeline.TurnContext{
		Messages: append(history[:len(history):len(history)], userMsg),
	}

	runCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	if err := o.pipeline.Run(runCtx, tc); err != nil {
		metrics.TurnsTotal.WithLabelValues("upstream_error").Inc()
		log.Warn().Err(err).Msg("turn failed, nothing persisted")
		return "", err
	}

	reply, ok := tc.Reply()
	if !ok {
		metrics.TurnsTotal.WithLabelValues("upstream_error").Inc()
		return "", errors.New("pipeline produced no reply")
	}

	if err := o.store.Append(ctx, sessionID, userMsg, reply); err != nil {
		metrics.TurnsTotal.WithLabelValues("store_error").Inc()
		return "", fmt.Errorf("persisting turn: %w", err)
	}

	elapsed := time.Since(start)
	metrics.TurnsTotal.WithLabelValues("ok").Inc()
	metrics.TurnDuration.Observe(elapsed.Seconds())
	log.Debug().
		Int("history", len(history)).
		Bool("knowledge", tc.Snippet != "").
		Dur("elapsed", elapsed).
		Msg("turn completed")

	return reply.Content, nil
}

// History returns the stored conversation for sessionID.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]llm.Message, error) {
	return o.store.Load(ctx, sessionID)
}
