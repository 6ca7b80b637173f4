package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"recipe-companion/internal/recipe"
	"recipe-companion/internal/shopping"
)

// CalendarReader loads one calendar day. A day with nothing planned comes
// back as an item with no events.
type CalendarReader interface {
	GetCalendarItem(ctx context.Context, date string) (CalendarItem, error)
}

// RecipeReader loads full recipes and the ingredient catalog.
type RecipeReader interface {
	GetRecipesBatch(ctx context.Context, ids []string) ([]recipe.Recipe, error)
	ListIngredients(ctx context.Context) ([]recipe.IngredientInfo, error)
}

// Planner reads the meal calendar over a range of days.
type Planner struct {
	calendar CalendarReader
	recipes  RecipeReader
}

// NewPlanner creates a new Planner instance.
func NewPlanner(calendar CalendarReader, recipes RecipeReader) *Planner {
	return &Planner{calendar: calendar, recipes: recipes}
}

// Week returns one calendar item per day starting at start. Days without
// events are returned empty, never skipped.
func (p *Planner) Week(ctx context.Context, start time.Time, days int) ([]CalendarItem, error) {
	if days <= 0 {
		days = 7
	}
	out := make([]CalendarItem, 0, days)
	for i := 0; i < days; i++ {
		date := FormatDate(start.AddDate(0, 0, i))
		item, err := p.calendar.GetCalendarItem(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("failed to load calendar for %s: %w", date, err)
		}
		if item.Date == "" {
			item.Date = date
		}
		out = append(out, item)
	}
	return out, nil
}

// GroceryFromPlan builds the grocery items needed for the recipes planned
// in the range. Amounts of the same ingredient and unit are summed.
func (p *Planner) GroceryFromPlan(ctx context.Context, start time.Time, days int) ([]shopping.Item, error) {
	week, err := p.Week(ctx, start, days)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, day := range week {
		for _, id := range day.RecipeIDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// A recipe planned on several days is cooked several times.
	uses := make(map[string]int)
	for _, day := range week {
		for _, id := range day.RecipeIDs() {
			uses[id]++
		}
	}

	recipes, err := p.recipes.GetRecipesBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load planned recipes: %w", err)
	}
	catalog, err := p.recipes.ListIngredients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ingredients: %w", err)
	}
	byID := make(map[string]recipe.IngredientInfo, len(catalog))
	for _, info := range catalog {
		byID[info.ID] = info
	}

	type key struct{ id, unit string }
	totals := make(map[key]*shopping.Item)
	var order []key
	for _, r := range recipes {
		times := uses[r.ID]
		if times == 0 {
			times = 1
		}
		for _, ing := range r.Ingredients {
			info, ok := byID[ing.IngredientID]
			if !ok {
				log.Warn().Str("recipe_id", r.ID).Str("ingredient_id", ing.IngredientID).Msg("Unknown ingredient in planned recipe")
				continue
			}
			k := key{id: info.ID, unit: strings.ToLower(ing.Amount.Unit)}
			item, exists := totals[k]
			if !exists {
				itemType := info.Type
				if itemType == "" {
					itemType = shopping.Categorize(info.Name)
				}
				item = &shopping.Item{
					IngredientName: info.Name,
					IngredientType: itemType,
					Quantity:       &recipe.Amount{Unit: ing.Amount.Unit},
				}
				totals[k] = item
				order = append(order, k)
			}
			item.Quantity.Value += ing.Amount.Value * float64(times)
		}
	}

	items := make([]shopping.Item, 0, len(order))
	for _, k := range order {
		items = append(items, *totals[k])
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IngredientType != items[j].IngredientType {
			return items[i].IngredientType < items[j].IngredientType
		}
		return items[i].IngredientName < items[j].IngredientName
	})
	return items, nil
}
