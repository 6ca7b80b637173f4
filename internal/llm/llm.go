package llm

import (
	"context"
	"fmt"
	"strings"
)

// TokenUsage tracks the tokens consumed by a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// New returns the generator for provider, or nil when provider is empty.
// The caller closes the result when it implements Closer.
func New(ctx context.Context, provider, apiKey string) (TextGenerator, error) {
	switch strings.ToLower(provider) {
	case "":
		return nil, nil
	case ProviderGemini:
		g, err := NewGeminiClient(ctx, apiKey, "")
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderGroq:
		return NewGroqClient(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (want gemini or groq)", provider)
	}
}

// StripCodeFence removes a surrounding ```json fence some models add
// even when asked for raw JSON.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
