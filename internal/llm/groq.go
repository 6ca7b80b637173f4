package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	groqAPIURL = "https://api.groq.com/openai/v1"
	groqModel  = "llama-3.3-70b-versatile"
)

// GroqClient is a client for the Groq chat completions API.
type GroqClient struct {
	client *resty.Client
	model  string
}

// GroqOption customizes a GroqClient.
type GroqOption func(*GroqClient)

// WithGroqBaseURL points the client at another OpenAI compatible endpoint.
func WithGroqBaseURL(u string) GroqOption {
	return func(c *GroqClient) { c.client.SetBaseURL(u) }
}

// NewGroqClient creates a new Groq API client.
func NewGroqClient(apiKey string, opts ...GroqOption) *GroqClient {
	c := &GroqClient{
		client: resty.New().
			SetBaseURL(groqAPIURL).
			SetAuthToken(apiKey).
			SetHeader("Content-Type", "application/json").
			SetTimeout(30 * time.Second),
		model: groqModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqRequest struct {
	Model          string            `json:"model"`
	Messages       []groqMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type groqResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message groqMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// GenerateContent sends a prompt to the Groq model and returns the generated text.
func (c *GroqClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	var out groqResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(groqRequest{
			Model:          c.model,
			Messages:       []groqMessage{{Role: "user", Content: prompt}},
			Temperature:    0.1,
			ResponseFormat: map[string]string{"type": "json_object"},
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		return ContentResponse{}, fmt.Errorf("groq api error: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	if len(out.Choices) == 0 {
		return ContentResponse{}, errors.New("no content generated")
	}

	return ContentResponse{
		Content: out.Choices[0].Message.Content,
		Usage: TokenUsage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
			Model:            out.Model,
		},
	}, nil
}
