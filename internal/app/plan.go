package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"recipe-companion/internal/planner"
	"recipe-companion/internal/shopping"
)

// ErrNotOnList is returned when a grocery product name matches nothing.
var ErrNotOnList = errors.New("not on the grocery list")

// Day returns the meal events of date. An empty date means today.
func (a *App) Day(ctx context.Context, date string) (planner.CalendarItem, error) {
	if date == "" {
		date = a.today()
	}
	return a.client.GetCalendarItem(ctx, date)
}

// Week returns days calendar items starting at start (today when empty).
func (a *App) Week(ctx context.Context, start string, days int) ([]planner.CalendarItem, error) {
	from, err := a.parseStart(start)
	if err != nil {
		return nil, err
	}
	return a.mealPlanner.Week(ctx, from, days)
}

// PlanMeal adds or replaces the event of its meal type on date.
func (a *App) PlanMeal(ctx context.Context, date string, ev planner.MealEvent) (planner.CalendarItem, error) {
	if date == "" {
		date = a.today()
	}
	return a.client.UpsertMealEvents(ctx, planner.CalendarUpdate{Date: date, MealEvents: []planner.MealEvent{ev}})
}

// UnplanMeal removes a matching event from date.
func (a *App) UnplanMeal(ctx context.Context, date string, ev planner.MealEvent) (planner.CalendarItem, error) {
	if date == "" {
		date = a.today()
	}
	return a.client.RemoveMealEvents(ctx, planner.CalendarUpdate{Date: date, MealEvents: []planner.MealEvent{ev}})
}

// Grocery returns the current grocery list.
func (a *App) Grocery(ctx context.Context) (shopping.List, error) {
	return a.client.GetGroceryList(ctx)
}

// AddGrocery merges items into the grocery list.
func (a *App) AddGrocery(ctx context.Context, items ...shopping.Item) (shopping.List, error) {
	for idx, item := range items {
		if err := item.Validate(); err != nil {
			return shopping.List{}, fmt.Errorf("product %d: %w", idx+1, err)
		}
	}
	return a.updateGrocery(ctx, func(l shopping.List) (shopping.List, error) {
		return l.Add(items...), nil
	})
}

// MarkBought flags the product called name as bought.
func (a *App) MarkBought(ctx context.Context, name string) (shopping.List, error) {
	return a.updateGrocery(ctx, func(l shopping.List) (shopping.List, error) {
		out, found := l.MarkBought(name)
		if !found {
			return l, fmt.Errorf("%q: %w", name, ErrNotOnList)
		}
		return out, nil
	})
}

// RemoveGrocery drops the product called name.
func (a *App) RemoveGrocery(ctx context.Context, name string) (shopping.List, error) {
	return a.updateGrocery(ctx, func(l shopping.List) (shopping.List, error) {
		out, found := l.Remove(name)
		if !found {
			return l, fmt.Errorf("%q: %w", name, ErrNotOnList)
		}
		return out, nil
	})
}

// ClearBought drops every product already bought.
func (a *App) ClearBought(ctx context.Context) (shopping.List, error) {
	return a.updateGrocery(ctx, func(l shopping.List) (shopping.List, error) {
		return l.ClearBought(), nil
	})
}

// GroceryFromPlan adds the ingredients of the recipes planned in the
// range to the grocery list and returns the list with the number of
// products contributed by the plan.
func (a *App) GroceryFromPlan(ctx context.Context, start string, days int) (shopping.List, int, error) {
	from, err := a.parseStart(start)
	if err != nil {
		return shopping.List{}, 0, err
	}
	items, err := a.mealPlanner.GroceryFromPlan(ctx, from, days)
	if err != nil {
		return shopping.List{}, 0, err
	}
	if len(items) == 0 {
		list, err := a.Grocery(ctx)
		return list, 0, err
	}
	list, err := a.updateGrocery(ctx, func(l shopping.List) (shopping.List, error) {
		return l.Add(items...), nil
	})
	if err != nil {
		return shopping.List{}, 0, err
	}
	log.Info().Str("start", planner.FormatDate(from)).Int("items", len(items)).Msg("Grocery list filled from meal plan")
	return list, len(items), nil
}

func (a *App) updateGrocery(ctx context.Context, change func(shopping.List) (shopping.List, error)) (shopping.List, error) {
	a.groceryMu.Lock()
	defer a.groceryMu.Unlock()

	current, err := a.client.GetGroceryList(ctx)
	if err != nil {
		return shopping.List{}, fmt.Errorf("failed to load grocery list: %w", err)
	}
	next, err := change(current)
	if err != nil {
		return shopping.List{}, err
	}
	return a.client.ReplaceGroceryList(ctx, next.Update())
}

func (a *App) parseStart(start string) (time.Time, error) {
	if start == "" {
		start = a.today()
	}
	return planner.ParseDate(start)
}
