package shopping

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"recipe-companion/internal/recipe"
)

// ErrInvalidItem is wrapped by every grocery item validation failure.
var ErrInvalidItem = errors.New("invalid grocery item")

// Item is one product on the grocery list.
type Item struct {
	ID             string                `json:"id,omitempty"`
	IngredientName string                `json:"ingredientName"`
	IngredientType recipe.IngredientType `json:"ingredientType,omitempty"`
	Quantity       *recipe.Amount        `json:"quantity,omitempty"`
	AlreadyBought  bool                  `json:"alreadyBought"`
}

// Validate checks a single item. The name is the only required field.
func (i Item) Validate() error {
	if strings.TrimSpace(i.IngredientName) == "" {
		return fmt.Errorf("%w: ingredient name is required", ErrInvalidItem)
	}
	if i.IngredientType != "" {
		if _, err := recipe.ParseIngredientType(string(i.IngredientType)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidItem, err)
		}
	}
	if i.Quantity != nil && i.Quantity.Value < 0 {
		return fmt.Errorf("%w: %s has a negative quantity", ErrInvalidItem, i.IngredientName)
	}
	return nil
}

// List is the user's grocery list. The backend keeps one per user and
// replaces it as a whole on every update.
type List struct {
	Products  []Item    `json:"products"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Update is the body of the grocery PUT endpoint.
type Update struct {
	Products []Item `json:"products"`
}

// Validate rejects the whole update when any item is invalid.
func (u Update) Validate() error {
	for idx, item := range u.Products {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("product %d: %w", idx+1, err)
		}
	}
	return nil
}
