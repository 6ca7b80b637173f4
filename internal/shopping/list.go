package shopping

import (
	"sort"
	"strings"

	"recipe-companion/internal/recipe"
)

func sameItem(a, b Item) bool {
	if !strings.EqualFold(strings.TrimSpace(a.IngredientName), strings.TrimSpace(b.IngredientName)) {
		return false
	}
	return unitOf(a) == unitOf(b)
}

func unitOf(i Item) string {
	if i.Quantity == nil {
		return ""
	}
	return strings.ToLower(i.Quantity.Unit)
}

// Add merges items into the list. An item with the same name and unit as
// a product still to buy adds to its quantity; anything else is appended.
// Missing ingredient types are filled in with Categorize.
func (l List) Add(items ...Item) List {
	out := List{Products: append([]Item(nil), l.Products...), UpdatedAt: l.UpdatedAt}
	for _, item := range items {
		item.IngredientName = strings.TrimSpace(item.IngredientName)
		if item.IngredientType == "" {
			item.IngredientType = Categorize(item.IngredientName)
		}
		merged := false
		for idx := range out.Products {
			p := &out.Products[idx]
			if p.AlreadyBought || !sameItem(*p, item) {
				continue
			}
			switch {
			case p.Quantity != nil && item.Quantity != nil:
				q := *p.Quantity
				q.Value += item.Quantity.Value
				p.Quantity = &q
			case item.Quantity != nil:
				q := *item.Quantity
				p.Quantity = &q
			}
			merged = true
			break
		}
		if !merged {
			out.Products = append(out.Products, item)
		}
	}
	return out
}

// MarkBought flags every product with the given name as bought. It reports
// whether anything matched.
func (l List) MarkBought(name string) (List, bool) {
	out := List{Products: append([]Item(nil), l.Products...), UpdatedAt: l.UpdatedAt}
	found := false
	for idx := range out.Products {
		if strings.EqualFold(out.Products[idx].IngredientName, strings.TrimSpace(name)) {
			out.Products[idx].AlreadyBought = true
			found = true
		}
	}
	return out, found
}

// Remove drops every product with the given name.
func (l List) Remove(name string) (List, bool) {
	out := List{UpdatedAt: l.UpdatedAt}
	found := false
	for _, p := range l.Products {
		if strings.EqualFold(p.IngredientName, strings.TrimSpace(name)) {
			found = true
			continue
		}
		out.Products = append(out.Products, p)
	}
	return out, found
}

// ClearBought drops the products already bought.
func (l List) ClearBought() List {
	out := List{UpdatedAt: l.UpdatedAt}
	for _, p := range l.Products {
		if !p.AlreadyBought {
			out.Products = append(out.Products, p)
		}
	}
	return out
}

// Pending returns the products still to buy.
func (l List) Pending() []Item {
	var out []Item
	for _, p := range l.Products {
		if !p.AlreadyBought {
			out = append(out, p)
		}
	}
	return out
}

// ByType groups products by ingredient type, sorted by name inside each group.
func (l List) ByType() map[recipe.IngredientType][]Item {
	groups := make(map[recipe.IngredientType][]Item)
	for _, p := range l.Products {
		t := p.IngredientType
		if t == "" {
			t = Categorize(p.IngredientName)
		}
		groups[t] = append(groups[t], p)
	}
	for _, items := range groups {
		sort.Slice(items, func(i, j int) bool {
			return strings.ToLower(items[i].IngredientName) < strings.ToLower(items[j].IngredientName)
		})
	}
	return groups
}

// Update turns the list into the body of a replace request.
func (l List) Update() Update {
	return Update{Products: append([]Item{}, l.Products...)}
}
