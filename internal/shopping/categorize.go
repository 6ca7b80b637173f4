package shopping

import (
	"strings"

	"recipe-companion/internal/recipe"
)

// Categorize guesses the ingredient type of a grocery item name.
// Matching is case-insensitive: exact match first, then substring match.
// It returns "" when nothing matches.
func Categorize(name string) recipe.IngredientType {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return ""
	}

	if t, ok := exactTypes[n]; ok {
		return t
	}

	for _, entry := range substringTypes {
		if strings.Contains(n, entry.keyword) {
			return entry.kind
		}
	}

	return ""
}

var exactTypes = map[string]recipe.IngredientType{
	// Fruit
	"apple":        recipe.Fruit,
	"apples":       recipe.Fruit,
	"banana":       recipe.Fruit,
	"bananas":      recipe.Fruit,
	"orange":       recipe.Fruit,
	"lemon":        recipe.Fruit,
	"lime":         recipe.Fruit,
	"avocado":      recipe.Fruit,
	"mango":        recipe.Fruit,
	"pineapple":    recipe.Fruit,
	"strawberries": recipe.Fruit,
	"blueberries":  recipe.Fruit,
	"pear":         recipe.Fruit,
	"peach":        recipe.Fruit,

	// Vegetable
	"tomato":      recipe.Vegetable,
	"tomatoes":    recipe.Vegetable,
	"potato":      recipe.Vegetable,
	"potatoes":    recipe.Vegetable,
	"onion":       recipe.Vegetable,
	"onions":      recipe.Vegetable,
	"garlic":      recipe.Vegetable,
	"carrot":      recipe.Vegetable,
	"carrots":     recipe.Vegetable,
	"lettuce":     recipe.Vegetable,
	"spinach":     recipe.Vegetable,
	"broccoli":    recipe.Vegetable,
	"zucchini":    recipe.Vegetable,
	"cucumber":    recipe.Vegetable,
	"mushrooms":   recipe.Vegetable,
	"bell pepper": recipe.Vegetable,
	"eggplant":    recipe.Vegetable,

	// Fish
	"salmon":  recipe.Fish,
	"tuna":    recipe.Fish,
	"cod":     recipe.Fish,
	"shrimp":  recipe.Fish,
	"prawns":  recipe.Fish,
	"tilapia": recipe.Fish,

	// Meat
	"chicken":     recipe.Meat,
	"beef":        recipe.Meat,
	"pork":        recipe.Meat,
	"lamb":        recipe.Meat,
	"bacon":       recipe.Meat,
	"ham":         recipe.Meat,
	"turkey":      recipe.Meat,
	"ground beef": recipe.Meat,

	// Carb
	"rice":      recipe.Carb,
	"pasta":     recipe.Carb,
	"spaghetti": recipe.Carb,
	"noodles":   recipe.Carb,
	"bread":     recipe.Carb,
	"flour":     recipe.Carb,
	"tortillas": recipe.Carb,
	"oats":      recipe.Carb,

	// Dairy
	"milk":         recipe.Dairy,
	"butter":       recipe.Dairy,
	"cheese":       recipe.Dairy,
	"yogurt":       recipe.Dairy,
	"cream":        recipe.Dairy,
	"eggs":         recipe.Dairy,
	"parmesan":     recipe.Dairy,
	"mozzarella":   recipe.Dairy,
	"sour cream":   recipe.Dairy,
	"heavy cream":  recipe.Dairy,
	"cream cheese": recipe.Dairy,

	// Legume
	"lentils":   recipe.Legume,
	"chickpeas": recipe.Legume,
	"beans":     recipe.Legume,
	"tofu":      recipe.Legume,
	"peas":      recipe.Legume,

	// Nut
	"almonds":       recipe.Nut,
	"walnuts":       recipe.Nut,
	"peanuts":       recipe.Nut,
	"cashews":       recipe.Nut,
	"peanut butter": recipe.Nut,

	// Herb
	"basil":    recipe.Herb,
	"parsley":  recipe.Herb,
	"cilantro": recipe.Herb,
	"thyme":    recipe.Herb,
	"rosemary": recipe.Herb,
	"mint":     recipe.Herb,
	"oregano":  recipe.Herb,

	// Spice
	"salt":     recipe.Spice,
	"pepper":   recipe.Spice,
	"cumin":    recipe.Spice,
	"paprika":  recipe.Spice,
	"cinnamon": recipe.Spice,
	"turmeric": recipe.Spice,
	"ginger":   recipe.Spice,

	// Condiment
	"ketchup":    recipe.Condiment,
	"mustard":    recipe.Condiment,
	"mayonnaise": recipe.Condiment,
	"soy sauce":  recipe.Condiment,
	"vinegar":    recipe.Condiment,
	"fish sauce": recipe.Condiment,
	"salsa":      recipe.Condiment,

	// Sweetener
	"sugar":       recipe.Sweetener,
	"honey":       recipe.Sweetener,
	"maple syrup": recipe.Sweetener,

	// Oil
	"oil":           recipe.Oil,
	"olive oil":     recipe.Oil,
	"sesame oil":    recipe.Oil,
	"vegetable oil": recipe.Oil,

	// Beverage
	"water":  recipe.Beverage,
	"coffee": recipe.Beverage,
	"tea":    recipe.Beverage,
	"juice":  recipe.Beverage,
	"wine":   recipe.Beverage,
	"beer":   recipe.Beverage,
}

type substringEntry struct {
	keyword string
	kind    recipe.IngredientType
}

// Longer and more specific keywords come first.
var substringTypes = []substringEntry{
	{"coconut milk", recipe.Dairy},
	{"peanut butter", recipe.Nut},
	{"chicken breast", recipe.Meat},
	{"chicken thigh", recipe.Meat},
	{"ground beef", recipe.Meat},
	{"ground pork", recipe.Meat},
	{"olive oil", recipe.Oil},
	{"soy sauce", recipe.Condiment},
	{"fish sauce", recipe.Condiment},
	{"maple syrup", recipe.Sweetener},
	{"bell pepper", recipe.Vegetable},
	{"sweet potato", recipe.Vegetable},
	{"green onion", recipe.Vegetable},
	{"black pepper", recipe.Spice},
	{"brown sugar", recipe.Sweetener},

	{"salmon", recipe.Fish},
	{"tuna", recipe.Fish},
	{"shrimp", recipe.Fish},
	{"fish", recipe.Fish},
	{"chicken", recipe.Meat},
	{"beef", recipe.Meat},
	{"pork", recipe.Meat},
	{"bacon", recipe.Meat},
	{"sausage", recipe.Meat},
	{"cheese", recipe.Dairy},
	{"yogurt", recipe.Dairy},
	{"milk", recipe.Dairy},
	{"butter", recipe.Dairy},
	{"cream", recipe.Dairy},
	{"egg", recipe.Dairy},
	{"lentil", recipe.Legume},
	{"bean", recipe.Legume},
	{"chickpea", recipe.Legume},
	{"almond", recipe.Nut},
	{"walnut", recipe.Nut},
	{"cashew", recipe.Nut},
	{"rice", recipe.Carb},
	{"pasta", recipe.Carb},
	{"noodle", recipe.Carb},
	{"bread", recipe.Carb},
	{"flour", recipe.Carb},
	{"tomato", recipe.Vegetable},
	{"potato", recipe.Vegetable},
	{"onion", recipe.Vegetable},
	{"garlic", recipe.Vegetable},
	{"carrot", recipe.Vegetable},
	{"mushroom", recipe.Vegetable},
	{"lettuce", recipe.Vegetable},
	{"spinach", recipe.Vegetable},
	{"apple", recipe.Fruit},
	{"banana", recipe.Fruit},
	{"lemon", recipe.Fruit},
	{"lime", recipe.Fruit},
	{"berr", recipe.Fruit},
	{"basil", recipe.Herb},
	{"parsley", recipe.Herb},
	{"cilantro", recipe.Herb},
	{"herb", recipe.Herb},
	{"sugar", recipe.Sweetener},
	{"honey", recipe.Sweetener},
	{"oil", recipe.Oil},
	{"sauce", recipe.Condiment},
	{"vinegar", recipe.Condiment},
	{"pepper", recipe.Spice},
	{"salt", recipe.Spice},
	{"spice", recipe.Spice},
	{"juice", recipe.Beverage},
	{"coffee", recipe.Beverage},
	{"wine", recipe.Beverage},
}
