package planner

import (
	"errors"
	"fmt"
	"time"

	"recipe-companion/internal/recipe"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// ErrInvalidEvent is wrapped by every meal event validation failure.
var ErrInvalidEvent = errors.New("invalid meal event")

// MealEvent is one entry of a calendar day. It points at a recipe or
// carries a free-text event name.
type MealEvent struct {
	MealType   recipe.MealType `json:"mealType"`
	RecipeID   string          `json:"recipeId,omitempty"`
	EventName  string          `json:"eventName,omitempty"`
	RecipeName string          `json:"recipeName,omitempty"`
}

// Validate checks the event before it is sent to the calendar.
func (e MealEvent) Validate() error {
	if _, err := recipe.ParseMealType(string(e.MealType)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if e.RecipeID == "" && e.EventName == "" {
		return fmt.Errorf("%w: recipeId or eventName is required", ErrInvalidEvent)
	}
	return nil
}

// Label is what a person reads for this event.
func (e MealEvent) Label() string {
	switch {
	case e.RecipeName != "":
		return e.RecipeName
	case e.EventName != "":
		return e.EventName
	default:
		return e.RecipeID
	}
}

// CalendarItem holds the meal events of one user for one day.
type CalendarItem struct {
	ID         string      `json:"id,omitempty"`
	Date       string      `json:"date"`
	MealEvents []MealEvent `json:"mealEvents"`
}

// CalendarUpdate is the body of the calendar PUT and DELETE endpoints.
type CalendarUpdate struct {
	Date       string      `json:"date"`
	MealEvents []MealEvent `json:"mealEvents"`
}

// Validate checks the date format and every event.
func (u CalendarUpdate) Validate() error {
	if _, err := ParseDate(u.Date); err != nil {
		return err
	}
	if len(u.MealEvents) == 0 {
		return fmt.Errorf("%w: at least one meal event is required", ErrInvalidEvent)
	}
	for _, e := range u.MealEvents {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidEvent, s)
	}
	return t, nil
}

// FormatDate formats t as a calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Event returns the event planned for the meal type, if any.
func (c CalendarItem) Event(mt recipe.MealType) (MealEvent, bool) {
	for _, e := range c.MealEvents {
		if e.MealType == mt {
			return e, true
		}
	}
	return MealEvent{}, false
}

// Merge applies events the way the backend does: an incoming event
// replaces the existing one with the same meal type. Events stay ordered
// breakfast, lunch, dinner.
func (c CalendarItem) Merge(events ...MealEvent) CalendarItem {
	byType := make(map[recipe.MealType]MealEvent, len(c.MealEvents)+len(events))
	for _, e := range c.MealEvents {
		byType[e.MealType] = e
	}
	for _, e := range events {
		byType[e.MealType] = e
	}
	out := CalendarItem{ID: c.ID, Date: c.Date}
	for _, mt := range recipe.MealTypes {
		if e, ok := byType[mt]; ok {
			out.MealEvents = append(out.MealEvents, e)
		}
	}
	return out
}

// Remove drops events matching the meal type and either the recipe id or
// the event name of one of the given events.
func (c CalendarItem) Remove(events ...MealEvent) CalendarItem {
	out := CalendarItem{ID: c.ID, Date: c.Date}
	for _, existing := range c.MealEvents {
		if !matchesAny(existing, events) {
			out.MealEvents = append(out.MealEvents, existing)
		}
	}
	return out
}

func matchesAny(e MealEvent, targets []MealEvent) bool {
	for _, t := range targets {
		if e.MealType != t.MealType {
			continue
		}
		if t.RecipeID != "" && e.RecipeID == t.RecipeID {
			return true
		}
		if t.EventName != "" && e.EventName == t.EventName {
			return true
		}
	}
	return false
}

// RecipeIDs lists the recipe ids referenced by the day's events.
func (c CalendarItem) RecipeIDs() []string {
	var ids []string
	for _, e := range c.MealEvents {
		if e.RecipeID != "" {
			ids = append(ids, e.RecipeID)
		}
	}
	return ids
}
