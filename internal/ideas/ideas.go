// Package ideas turns a list of pantry ingredients into recipe suggestions.
package ideas

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"recipe-companion/internal/llm"
	"recipe-companion/internal/recipe"
)

const maxLLMIdeas = 5

// Backend is the part of the API client the suggester needs.
type Backend interface {
	RecipeIdeas(ctx context.Context, ingredients []string) ([]string, error)
	GetCompactRecipesBatch(ctx context.Context, ids []string) ([]recipe.Recipe, error)
}

// Result holds either resolved recipes or free text suggestions.
type Result struct {
	Recipes     []recipe.Recipe
	Suggestions []string
	FromLLM     bool
}

// Empty reports whether nothing was suggested.
func (r Result) Empty() bool {
	return len(r.Recipes) == 0 && len(r.Suggestions) == 0
}

// Suggester asks the backend for ideas, falling back to an LLM when the
// backend has none.
type Suggester struct {
	backend Backend
	textGen llm.TextGenerator
}

// NewSuggester creates a Suggester. textGen may be nil.
func NewSuggester(backend Backend, textGen llm.TextGenerator) *Suggester {
	return &Suggester{backend: backend, textGen: textGen}
}

// Clean trims ingredients and drops blank ones.
func Clean(ingredients []string) []string {
	out := make([]string, 0, len(ingredients))
	for _, in := range ingredients {
		if s := strings.TrimSpace(in); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Suggest returns ideas for ingredients. When every value the backend
// returns is a recipe id, the ids are resolved to compact recipes.
func (s *Suggester) Suggest(ctx context.Context, ingredients []string) (Result, error) {
	ingredients = Clean(ingredients)
	if len(ingredients) == 0 {
		return Result{}, fmt.Errorf("%w: at least one ingredient is required", recipe.ErrInvalid)
	}

	values, err := s.backend.RecipeIdeas(ctx, ingredients)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get recipe ideas: %w", err)
	}

	if len(values) == 0 {
		if s.textGen == nil {
			return Result{}, nil
		}
		return s.fromLLM(ctx, ingredients)
	}

	if allIDs(values) {
		recipes, err := s.backend.GetCompactRecipesBatch(ctx, values)
		if err != nil {
			return Result{}, fmt.Errorf("failed to resolve suggested recipes: %w", err)
		}
		return Result{Recipes: recipes}, nil
	}
	return Result{Suggestions: values}, nil
}

func allIDs(values []string) bool {
	for _, v := range values {
		if _, err := uuid.Parse(v); err != nil {
			return false
		}
	}
	return true
}

func (s *Suggester) fromLLM(ctx context.Context, ingredients []string) (Result, error) {
	prompt := fmt.Sprintf(`
You are a home cook. Suggest up to %d dish names that can be cooked mostly with these ingredients:
%s

Return the result strictly as a JSON object with this structure:
{"ideas": ["Dish 1", "Dish 2"]}
`, maxLLMIdeas, strings.Join(ingredients, ", "))

	resp, err := s.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("ai suggestion failed: %w", err)
	}

	var parsed struct {
		Ideas []string `json:"ideas"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp.Content)), &parsed); err != nil {
		return Result{}, fmt.Errorf("failed to parse AI response: %w", err)
	}

	ideas := Clean(parsed.Ideas)
	if len(ideas) > maxLLMIdeas {
		ideas = ideas[:maxLLMIdeas]
	}
	log.Debug().Int("ideas", len(ideas)).Int("tokens", resp.Usage.TotalTokens).Msg("LLM ideas generated")
	return Result{Suggestions: ideas, FromLLM: true}, nil
}
