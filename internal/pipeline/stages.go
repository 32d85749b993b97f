package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ziadkadry99/policyvoice/internal/knowledge"
	"github.com/ziadkadry99/policyvoice/internal/llm"
	"github.com/ziadkadry99/policyvoice/internal/metrics"
)

// Directive is the fixed behavioral instruction sent ahead of every conversation.
const Directive = "You are a lightning-fast life insurance assistant. " +
	"Answer in exactly 1 or 2 short sentences. " +
	"Do not use lists or bullet points. " +
	"Be direct and conversational."

// LookupStage fills TurnContext.Snippet from the knowledge base.
type LookupStage struct {
	lookup *knowledge.Lookup
}

// NewLookupStage returns a stage querying the given lookup.
func NewLookupStage(lookup *knowledge.Lookup) *LookupStage {
	return &LookupStage{lookup: lookup}
}

func (s *LookupStage) Name() string { return "lookup" }

func (s *LookupStage) Run(_ context.Context, tc *TurnContext) error {
	tc.Snippet = s.lookup.Query(tc.LastUserMessage())
	if tc.Snippet != "" {
		metrics.KnowledgeHits.Inc()
	}
	return nil
}

// AnswerConfig holds the fixed generation settings for the Answer stage.
type AnswerConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// AnswerStage asks the LLM for the assistant reply, with the knowledge
// snippet folded into the system preamble.
type AnswerStage struct {
	provider llm.Provider
	cfg      AnswerConfig
}

// NewAnswerStage returns a stage calling provider with cfg.
func NewAnswerStage(provider llm.Provider, cfg AnswerConfig) *AnswerStage {
	return &AnswerStage{provider: provider, cfg: cfg}
}

func (s *AnswerStage) Name() string { return "answer" }

func (s *AnswerStage) Run(ctx context.Context, tc *TurnContext) error {
	messages := make([]llm.Message, 0, len(tc.Messages)+1)
	messages = append(messages, llm.SystemMessage(Preamble(tc.Snippet)))
	messages = append(messages, tc.Messages...)

	start := time.Now()
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	metrics.LLMDuration.WithLabelValues(s.provider.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return &UpstreamError{Provider: s.provider.Name(), Err: err}
	}
	s.recordUsage(resp)

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return &UpstreamError{Provider: s.provider.Name(), Err: fmt.Errorf("empty completion")}
	}
	tc.Messages = append(tc.Messages, llm.AssistantMessage(content))
	return nil
}

func (s *AnswerStage) recordUsage(resp *llm.CompletionResponse) {
	name := s.provider.Name()
	metrics.LLMTokens.WithLabelValues(name, "input").Add(float64(resp.InputTokens))
	metrics.LLMTokens.WithLabelValues(name, "output").Add(float64(resp.OutputTokens))

	// Price on the configured model; responses often carry a dated snapshot id.
	model := s.cfg.Model
	if model == "" {
		model = resp.Model
	}
	metrics.LLMCostUSD.WithLabelValues(name).Add(llm.EstimateCost(model, resp.InputTokens, resp.OutputTokens))
}

// Preamble returns the system instruction for a turn with the given snippet.
func Preamble(snippet string) string {
	if snippet == "" {
		return Directive
	}
	return Directive + " Context: " + snippet
}
