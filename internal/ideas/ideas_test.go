package ideas

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-companion/internal/llm"
	"recipe-companion/internal/recipe"
)

type fakeBackend struct {
	ideas    []string
	recipes  map[string]recipe.Recipe
	asked    []string
	batchIDs []string
}

func (f *fakeBackend) RecipeIdeas(ctx context.Context, ingredients []string) ([]string, error) {
	f.asked = ingredients
	return f.ideas, nil
}

func (f *fakeBackend) GetCompactRecipesBatch(ctx context.Context, ids []string) ([]recipe.Recipe, error) {
	f.batchIDs = ids
	var out []recipe.Recipe
	for _, id := range ids {
		if r, ok := f.recipes[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeGen struct {
	content string
	err     error
	calls   int
}

func (g *fakeGen) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	g.calls++
	return llm.ContentResponse{Content: g.content}, g.err
}

func TestSuggest(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectsEmptyInput", func(t *testing.T) {
		b := &fakeBackend{}
		_, err := NewSuggester(b, nil).Suggest(ctx, []string{" ", ""})
		assert.ErrorIs(t, err, recipe.ErrInvalid)
		assert.Nil(t, b.asked)
	})

	t.Run("TextSuggestions", func(t *testing.T) {
		b := &fakeBackend{ideas: []string{"Tomates mozza", "Caviar"}}
		res, err := NewSuggester(b, nil).Suggest(ctx, []string{" tomato", "mozzarella "})
		require.NoError(t, err)
		assert.Equal(t, []string{"tomato", "mozzarella"}, b.asked)
		assert.Equal(t, []string{"Tomates mozza", "Caviar"}, res.Suggestions)
		assert.Empty(t, res.Recipes)
		assert.Nil(t, b.batchIDs)
	})

	t.Run("IDsResolveToRecipes", func(t *testing.T) {
		a, c := uuid.NewString(), uuid.NewString()
		b := &fakeBackend{
			ideas: []string{a, c},
			recipes: map[string]recipe.Recipe{
				a: {ID: a, Name: "Caprese"},
				c: {ID: c, Name: "Bruschetta"},
			},
		}
		res, err := NewSuggester(b, nil).Suggest(ctx, []string{"tomato"})
		require.NoError(t, err)
		assert.Equal(t, []string{a, c}, b.batchIDs)
		require.Len(t, res.Recipes, 2)
		assert.Equal(t, "Caprese", res.Recipes[0].Name)
		assert.Empty(t, res.Suggestions)
	})

	t.Run("MixedValuesStayText", func(t *testing.T) {
		b := &fakeBackend{ideas: []string{uuid.NewString(), "Caviar"}}
		res, err := NewSuggester(b, nil).Suggest(ctx, []string{"tomato"})
		require.NoError(t, err)
		assert.Len(t, res.Suggestions, 2)
		assert.Nil(t, b.batchIDs)
	})

	t.Run("LLMFallbackWhenBackendEmpty", func(t *testing.T) {
		gen := &fakeGen{content: `{"ideas": ["Shakshuka", " ", "Omelette"]}`}
		res, err := NewSuggester(&fakeBackend{}, gen).Suggest(ctx, []string{"egg"})
		require.NoError(t, err)
		assert.True(t, res.FromLLM)
		assert.Equal(t, []string{"Shakshuka", "Omelette"}, res.Suggestions)
	})

	t.Run("NoLLMMeansEmptyResult", func(t *testing.T) {
		res, err := NewSuggester(&fakeBackend{}, nil).Suggest(ctx, []string{"egg"})
		require.NoError(t, err)
		assert.True(t, res.Empty())
	})

	t.Run("LLMErrorPropagates", func(t *testing.T) {
		gen := &fakeGen{err: errors.New("quota")}
		_, err := NewSuggester(&fakeBackend{}, gen).Suggest(ctx, []string{"egg"})
		assert.ErrorContains(t, err, "quota")
	})

	t.Run("LLMNotCalledWhenBackendAnswers", func(t *testing.T) {
		gen := &fakeGen{}
		_, err := NewSuggester(&fakeBackend{ideas: []string{"Caviar"}}, gen).Suggest(ctx, []string{"egg"})
		require.NoError(t, err)
		assert.Zero(t, gen.calls)
	})
}
