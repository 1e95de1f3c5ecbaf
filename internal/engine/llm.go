package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
)

// Generator invokes a generative model with a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMGenerator sends prompts through the OpenAI-compatible go-kit client.
type LLMGenerator struct {
	client *llm.Client
}

// NewLLMGenerator wraps an initialized client.
func NewLLMGenerator(client *llm.Client) *LLMGenerator {
	return &LLMGenerator{client: client}
}

// Generate returns the model's text output without post-processing.
func (g *LLMGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.client.Complete(ctx, "", prompt)
}

// BuildPrompt renders the grounding prompt from retrieved passages in rank order.
func BuildPrompt(passages []ScoredPassage, question string) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return fmt.Sprintf(groundedAnswerPrompt, RefusalAnswer, strings.Join(texts, PassageDelimiter), question)
}

// GenerateAnswer builds the prompt and calls the model once.
// The output is returned as-is; grounding is enforced only by the instruction.
func GenerateAnswer(ctx context.Context, gen Generator, passages []ScoredPassage, question string) (string, error) {
	prompt := BuildPrompt(passages, question)
	metrics.LLMCalls.Add(1)
	out, err := gen.Generate(ctx, prompt)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", newError(KindGeneration, err)
	}
	if strings.TrimSpace(out) == "" {
		metrics.LLMErrors.Add(1)
		return "", newError(KindGeneration, errors.New("model returned empty output"))
	}
	return out, nil
}
