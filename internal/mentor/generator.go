package mentor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/Selleo/mentingo-sub006/internal/prompt"
	"github.com/Selleo/mentingo-sub006/internal/thread"
)

// Generator runs the completion backend. The genkit-backed implementation
// is the only production one; tests substitute a mock.
type Generator interface {
	// Complete returns finished text for a bare prompt.
	Complete(ctx context.Context, promptText string) (string, error)
	// Generate runs an assembled message context. When onChunk is non-nil
	// it is invoked for every streamed fragment; the returned string is
	// always the complete reply.
	Generate(ctx context.Context, messages []*prompt.Message, onChunk func(string) error) (string, error)
	// Evaluate runs a prompt expecting a structured verdict.
	Evaluate(ctx context.Context, promptText string) (*Verdict, error)
}

// Verdict is the judge model's structured output.
type Verdict struct {
	Summary string `json:"summary"`
	Score   int    `json:"score"`
	Passed  bool   `json:"passed"`
}

type genkitGenerator struct {
	g         *genkit.Genkit
	modelName string
	maxTokens int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewGenerator wires the completion backend. limiter bounds the outbound
// request rate across all threads; nil disables limiting.
func NewGenerator(g *genkit.Genkit, modelName string, maxTokens int, limiter *rate.Limiter, logger *slog.Logger) Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &genkitGenerator{
		g:         g,
		modelName: modelName,
		maxTokens: maxTokens,
		limiter:   limiter,
		logger:    logger,
	}
}

func (gen *genkitGenerator) Complete(ctx context.Context, promptText string) (string, error) {
	if err := gen.wait(ctx); err != nil {
		return "", err
	}
	resp, err := genkit.Generate(ctx, gen.g,
		ai.WithModelName(gen.modelName),
		ai.WithPrompt(promptText),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	return resp.Text(), nil
}

func (gen *genkitGenerator) Generate(ctx context.Context, messages []*prompt.Message, onChunk func(string) error) (string, error) {
	if err := gen.wait(ctx); err != nil {
		return "", err
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(gen.modelName),
		ai.WithMessages(toModelMessages(messages)...),
	}
	if gen.maxTokens > 0 {
		opts = append(opts, ai.WithConfig(&genai.GenerateContentConfig{
			MaxOutputTokens: int32(gen.maxTokens), // #nosec G115 -- configured token budgets are small
		}))
	}
	if onChunk != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return onChunk(chunk.Text())
		}))
	}

	resp, err := genkit.Generate(ctx, gen.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}
	return resp.Text(), nil
}

func (gen *genkitGenerator) Evaluate(ctx context.Context, promptText string) (*Verdict, error) {
	if err := gen.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := genkit.Generate(ctx, gen.g,
		ai.WithModelName(gen.modelName),
		ai.WithPrompt(promptText),
		ai.WithOutputType(Verdict{}),
	)
	if err != nil {
		return nil, fmt.Errorf("generating verdict: %w", err)
	}
	var verdict Verdict
	if err := resp.Output(&verdict); err != nil {
		return nil, fmt.Errorf("parsing verdict: %w", err)
	}
	return &verdict, nil
}

func (gen *genkitGenerator) wait(ctx context.Context) error {
	if gen.limiter == nil {
		return nil
	}
	if err := gen.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// toModelMessages maps the assembled context onto backend roles. SUMMARY is
// presented as a system message; the persisted role is untouched. Grounding
// entries are prefixed so the model can tell retrieved course material from
// the authored persona.
func toModelMessages(messages []*prompt.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(messages))
	for _, msg := range messages {
		content := msg.Content
		if msg.Grounding {
			content = "Course material:\n" + content
		}
		out = append(out, &ai.Message{
			Role:    toModelRole(msg.Role),
			Content: []*ai.Part{ai.NewTextPart(content)},
		})
	}
	return out
}

func toModelRole(role thread.Role) ai.Role {
	switch role.PresentationRole() {
	case thread.RoleSystem:
		return ai.RoleSystem
	case thread.RoleMentor:
		return ai.RoleModel
	default:
		return ai.RoleUser
	}
}
