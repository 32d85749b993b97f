// Package pipeline runs one conversation turn through a fixed, linear graph
// of stages: knowledge lookup, then the augmented LLM answer.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/policyvoice/internal/llm"
)

// TurnContext is the state threaded through the stages of a single turn.
// It is discarded once the turn produces its reply.
type TurnContext struct {
	// Messages is the conversation so far, ending with the user message
	// being answered. The Answer stage appends the assistant reply.
	Messages []llm.Message
	// Snippet is the knowledge text computed for this turn.
	Snippet string
}

// LastUserMessage returns the content of the most recent user message.
func (tc *TurnContext) LastUserMessage() string {
	for i := len(tc.Messages) - 1; i >= 0; i-- {
		if tc.Messages[i].Role == llm.RoleUser {
			return tc.Messages[i].Content
		}
	}
	return ""
}

// Reply returns the final assistant message, if the turn produced one.
func (tc *TurnContext) Reply() (llm.Message, bool) {
	if n := len(tc.Messages); n > 0 && tc.Messages[n-1].Role == llm.RoleAssistant {
		return tc.Messages[n-1], true
	}
	return llm.Message{}, false
}

// Stage is one node of the pipeline graph.
type Stage interface {
	Name() string
	Run(ctx context.Context, tc *TurnContext) error
}

// Pipeline executes its stages in order, each exactly once per Run.
type Pipeline struct {
	stages []Stage
	logger zerolog.Logger
}

// New builds a pipeline from the given stages.
func New(logger zerolog.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, logger: logger}
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run executes every stage against tc. The first failing stage aborts the
// run; its error is returned wrapped with the stage name.
func (p *Pipeline) Run(ctx context.Context, tc *TurnContext) error {
	for _, s := range p.stages {
		start := time.Now()
		err := s.Run(ctx, tc)
		p.logger.Debug().
			Str("stage", s.Name()).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("stage finished")
		if err != nil {
			return fmt.Errorf("%s stage: %w", s.Name(), err)
		}
	}
	return nil
}
