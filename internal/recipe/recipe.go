package recipe

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalid is wrapped by every recipe validation failure.
var ErrInvalid = errors.New("invalid recipe")

// MealType is the meal a recipe (or calendar event) belongs to.
type MealType string

const (
	Breakfast MealType = "BREAKFAST"
	Lunch     MealType = "LUNCH"
	Dinner    MealType = "DINNER"
)

// MealTypes lists the meal types in the order they happen during a day.
var MealTypes = []MealType{Breakfast, Lunch, Dinner}

// FoodOrigin is the cuisine a recipe comes from.
type FoodOrigin string

const (
	Thai    FoodOrigin = "THAI"
	Chinese FoodOrigin = "CHINESE"
	French  FoodOrigin = "FRENCH"
	Italian FoodOrigin = "ITALIAN"
	USA     FoodOrigin = "USA"
	Spanish FoodOrigin = "SPANISH"
)

var FoodOrigins = []FoodOrigin{Thai, Chinese, French, Italian, USA, Spanish}

// RelativePrice is a coarse price bracket.
type RelativePrice string

const (
	Cheap     RelativePrice = "CHEAP"
	Moderate  RelativePrice = "MODERATE"
	Expensive RelativePrice = "EXPENSIVE"
)

var RelativePrices = []RelativePrice{Cheap, Moderate, Expensive}

// IngredientType classifies ingredients for grocery grouping.
type IngredientType string

const (
	Fruit     IngredientType = "FRUIT"
	Vegetable IngredientType = "VEGETABLE"
	Fish      IngredientType = "FISH"
	Meat      IngredientType = "MEAT"
	Carb      IngredientType = "CARB"
	Spice     IngredientType = "SPICE"
	Dairy     IngredientType = "DAIRY"
	Legume    IngredientType = "LEGUME"
	Nut       IngredientType = "NUT"
	Herb      IngredientType = "HERB"
	Condiment IngredientType = "CONDIMENT"
	Sweetener IngredientType = "SWEETENER"
	Oil       IngredientType = "OIL"
	Beverage  IngredientType = "BEVERAGE"
)

var IngredientTypes = []IngredientType{
	Fruit, Vegetable, Fish, Meat, Carb, Spice, Dairy, Legume,
	Nut, Herb, Condiment, Sweetener, Oil, Beverage,
}

// Amount is a quantity with its unit ("g", "ml", "pcs", ...).
type Amount struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

func (a Amount) String() string {
	v := strconv.FormatFloat(a.Value, 'f', -1, 64)
	if a.Unit == "" {
		return v
	}
	return v + " " + a.Unit
}

// Ingredient references a backend ingredient with the amount a recipe needs.
type Ingredient struct {
	IngredientID string `json:"ingredientId"`
	Amount       Amount `json:"amount"`
}

// IngredientInfo is the backend's ingredient lookup entry.
type IngredientInfo struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	ImageURL string         `json:"imageUrl,omitempty"`
	Type     IngredientType `json:"type"`
}

// Recipe mirrors the backend RecipeDto. Compact listings leave ingredients
// and steps empty.
type Recipe struct {
	ID            string        `json:"id,omitempty"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Ingredients   []Ingredient  `json:"ingredients,omitempty"`
	Steps         []string      `json:"steps,omitempty"`
	MealTypes     []MealType    `json:"mealTypes,omitempty"`
	FoodOrigins   []FoodOrigin  `json:"foodOrigins,omitempty"`
	RelativePrice RelativePrice `json:"relativePrice,omitempty"`
	PrepTimeMin   int           `json:"prepTimeMin,omitempty"`
	CookTimeMin   int           `json:"cookTimeMin,omitempty"`
	Servings      int           `json:"servings,omitempty"`
	ImageURL      string        `json:"imageUrl,omitempty"`
	IsPublic      bool          `json:"isPublic"`
}

// TotalTimeMin is preparation plus cooking time.
func (r Recipe) TotalTimeMin() int {
	return r.PrepTimeMin + r.CookTimeMin
}

// Validate checks a recipe before it is sent for creation.
func (r Recipe) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if len(r.Ingredients) == 0 {
		return fmt.Errorf("%w: at least one ingredient is required", ErrInvalid)
	}
	for i, ing := range r.Ingredients {
		if ing.IngredientID == "" {
			return fmt.Errorf("%w: ingredient %d has no ingredientId", ErrInvalid, i+1)
		}
		if ing.Amount.Value < 0 {
			return fmt.Errorf("%w: ingredient %d has a negative amount", ErrInvalid, i+1)
		}
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrInvalid)
	}
	for i, step := range r.Steps {
		if strings.TrimSpace(step) == "" {
			return fmt.Errorf("%w: step %d is empty", ErrInvalid, i+1)
		}
	}
	for _, mt := range r.MealTypes {
		if _, err := ParseMealType(string(mt)); err != nil {
			return err
		}
	}
	for _, fo := range r.FoodOrigins {
		if _, err := ParseFoodOrigin(string(fo)); err != nil {
			return err
		}
	}
	if r.RelativePrice != "" {
		if _, err := ParseRelativePrice(string(r.RelativePrice)); err != nil {
			return err
		}
	}
	if r.PrepTimeMin < 0 || r.CookTimeMin < 0 {
		return fmt.Errorf("%w: times cannot be negative", ErrInvalid)
	}
	return nil
}

// ParseMealType accepts any casing of a known meal type.
func ParseMealType(s string) (MealType, error) {
	mt := MealType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range MealTypes {
		if mt == known {
			return mt, nil
		}
	}
	return "", fmt.Errorf("%w: unknown meal type %q", ErrInvalid, s)
}

func ParseFoodOrigin(s string) (FoodOrigin, error) {
	fo := FoodOrigin(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range FoodOrigins {
		if fo == known {
			return fo, nil
		}
	}
	return "", fmt.Errorf("%w: unknown food origin %q", ErrInvalid, s)
}

func ParseRelativePrice(s string) (RelativePrice, error) {
	rp := RelativePrice(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range RelativePrices {
		if rp == known {
			return rp, nil
		}
	}
	return "", fmt.Errorf("%w: unknown relative price %q", ErrInvalid, s)
}

func ParseIngredientType(s string) (IngredientType, error) {
	it := IngredientType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range IngredientTypes {
		if it == known {
			return it, nil
		}
	}
	return "", fmt.Errorf("%w: unknown ingredient type %q", ErrInvalid, s)
}

// Filter selects public recipes on the backend's /recipes/filters endpoint.
// Zero fields are omitted from the query.
type Filter struct {
	RelativePrice RelativePrice
	FoodOrigin    FoodOrigin
	MealType      MealType
	Limit         int
}

// Query encodes the filter as query parameters.
func (f Filter) Query() url.Values {
	q := url.Values{}
	if f.RelativePrice != "" {
		q.Set("relativePrice", string(f.RelativePrice))
	}
	if f.FoodOrigin != "" {
		q.Set("foodOrigin", string(f.FoodOrigin))
	}
	if f.MealType != "" {
		q.Set("mealType", string(f.MealType))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// Matches reports whether r passes the filter, ignoring Limit.
func (f Filter) Matches(r Recipe) bool {
	if f.RelativePrice != "" && r.RelativePrice != f.RelativePrice {
		return false
	}
	if f.FoodOrigin != "" && !containsOrigin(r.FoodOrigins, f.FoodOrigin) {
		return false
	}
	if f.MealType != "" && !containsMealType(r.MealTypes, f.MealType) {
		return false
	}
	return true
}

func containsOrigin(list []FoodOrigin, v FoodOrigin) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsMealType(list []MealType, v MealType) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Compact strips a recipe down to what list views need.
func (r Recipe) Compact() Recipe {
	return Recipe{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		MealTypes:     r.MealTypes,
		FoodOrigins:   r.FoodOrigins,
		RelativePrice: r.RelativePrice,
		PrepTimeMin:   r.PrepTimeMin,
		CookTimeMin:   r.CookTimeMin,
		ImageURL:      r.ImageURL,
		IsPublic:      r.IsPublic,
	}
}
