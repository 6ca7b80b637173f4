package app

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"recipe-companion/internal/clipper"
	"recipe-companion/internal/ideas"
	"recipe-companion/internal/recipe"
)

// ImportRecipe clips the recipe at url, links its ingredients to the
// backend catalog and creates it.
func (a *App) ImportRecipe(ctx context.Context, url string) (recipe.Recipe, error) {
	draft, err := a.clipper.ClipURL(ctx, url)
	if err != nil {
		return recipe.Recipe{}, err
	}
	catalog, err := a.client.ListIngredients(ctx)
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("failed to load ingredients: %w", err)
	}

	r := BuildRecipe(draft, catalog)
	if err := r.Validate(); err != nil {
		return recipe.Recipe{}, fmt.Errorf("clipped recipe is incomplete: %w", err)
	}
	created, err := a.client.CreateRecipe(ctx, r)
	if err != nil {
		return recipe.Recipe{}, err
	}
	log.Info().Str("recipe_id", created.ID).Str("name", created.Name).Int("ingredients", len(created.Ingredients)).Msg("Recipe imported")
	return created, nil
}

// Ideas suggests recipes for the given pantry ingredients.
func (a *App) Ideas(ctx context.Context, ingredients []string) (ideas.Result, error) {
	return a.suggester.Suggest(ctx, ingredients)
}

// BuildRecipe turns a clipped draft into a recipe the backend accepts.
// Ingredient lines that match no catalog entry are listed in the
// description under "Also needed:".
func BuildRecipe(d clipper.Draft, catalog []recipe.IngredientInfo) recipe.Recipe {
	r := d.Recipe
	r.Ingredients = nil

	var unresolved []string
	for _, line := range d.IngredientLines {
		info, ok := MatchIngredient(line, catalog)
		if !ok {
			unresolved = append(unresolved, line)
			continue
		}
		r.Ingredients = addIngredient(r.Ingredients, recipe.Ingredient{IngredientID: info.ID, Amount: ParseAmount(line)})
	}

	var desc strings.Builder
	desc.WriteString(strings.TrimSpace(r.Description))
	if len(unresolved) > 0 {
		if desc.Len() > 0 {
			desc.WriteString("\n\n")
		}
		desc.WriteString("Also needed:")
		for _, line := range unresolved {
			desc.WriteString("\n- ")
			desc.WriteString(line)
		}
	}
	if d.SourceURL != "" {
		if desc.Len() > 0 {
			desc.WriteString("\n\n")
		}
		desc.WriteString("Source: ")
		desc.WriteString(d.SourceURL)
	}
	r.Description = desc.String()
	return r
}

func addIngredient(list []recipe.Ingredient, ing recipe.Ingredient) []recipe.Ingredient {
	for i := range list {
		if list[i].IngredientID == ing.IngredientID && strings.EqualFold(list[i].Amount.Unit, ing.Amount.Unit) {
			list[i].Amount.Value += ing.Amount.Value
			return list
		}
	}
	return append(list, ing)
}

// MatchIngredient finds the catalog entry whose name appears in line,
// ignoring case. The longest name wins so that "olive oil" beats "oil".
func MatchIngredient(line string, catalog []recipe.IngredientInfo) (recipe.IngredientInfo, bool) {
	l := strings.ToLower(line)
	var best recipe.IngredientInfo
	for _, info := range catalog {
		name := strings.ToLower(strings.TrimSpace(info.Name))
		if name == "" || !strings.Contains(l, name) {
			continue
		}
		if len(name) > len(best.Name) {
			best = info
			best.Name = strings.TrimSpace(info.Name)
		}
	}
	return best, best.ID != ""
}

var (
	amountRe = regexp.MustCompile(`^\s*(\d+\s*/\s*\d+|\d+(?:[.,]\d+)?)\s*([A-Za-z]+\.?)?`)
	units    = map[string]string{
		"g": "g", "gr": "g", "gram": "g", "grams": "g",
		"kg": "kg", "kilo": "kg", "kilos": "kg",
		"mg": "mg",
		"ml": "ml", "cl": "cl", "dl": "dl",
		"l": "l", "liter": "l", "liters": "l", "litre": "l", "litres": "l",
		"tsp": "tsp", "teaspoon": "tsp", "teaspoons": "tsp",
		"tbsp": "tbsp", "tablespoon": "tbsp", "tablespoons": "tbsp",
		"cup": "cup", "cups": "cup",
		"oz": "oz", "lb": "lb", "lbs": "lb",
		"pinch": "pinch", "clove": "clove", "cloves": "clove",
		"slice": "slice", "slices": "slice", "can": "can", "cans": "can",
	}
)

// ParseAmount reads a leading quantity such as "200 g", "1/2 cup" or "3".
// A line without a number yields a zero amount.
func ParseAmount(line string) recipe.Amount {
	m := amountRe.FindStringSubmatch(line)
	if m == nil {
		return recipe.Amount{}
	}

	var value float64
	if num, den, ok := strings.Cut(m[1], "/"); ok {
		n, _ := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, _ := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if d != 0 {
			value = n / d
		}
	} else {
		value, _ = strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	}

	unit := units[strings.TrimSuffix(strings.ToLower(m[2]), ".")]
	return recipe.Amount{Value: value, Unit: unit}
}
