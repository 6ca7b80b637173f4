package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"recipe-companion/internal/planner"
	"recipe-companion/internal/recipe"
	"recipe-companion/internal/shopping"
)

func printDay(item planner.CalendarItem) {
	fmt.Println(item.Date)
	if len(item.MealEvents) == 0 {
		fmt.Println("  nothing planned")
		return
	}
	for _, mt := range recipe.MealTypes {
		if ev, ok := item.Event(mt); ok {
			fmt.Printf("  %-10s %s\n", strings.ToLower(string(mt)), ev.Label())
		}
	}
}

func printGrocery(list shopping.List) error {
	return output(list, func() {
		if len(list.Products) == 0 {
			fmt.Println("The grocery list is empty.")
			return
		}
		groups := list.ByType()
		types := make([]string, 0, len(groups))
		for t := range groups {
			types = append(types, string(t))
		}
		sort.Strings(types)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, t := range types {
			label := strings.ToLower(t)
			if label == "" {
				label = "other"
			}
			fmt.Fprintf(w, "%s\n", label)
			for _, p := range groups[recipe.IngredientType(t)] {
				mark := "[ ]"
				if p.AlreadyBought {
					mark = "[x]"
				}
				qty := ""
				if p.Quantity != nil {
					qty = p.Quantity.String()
				}
				fmt.Fprintf(w, "  %s %s\t%s\n", mark, p.IngredientName, qty)
			}
		}
		w.Flush()
	})
}

// mealEvent reads a meal type plus either --recipe or --event.
func mealEvent(meal, recipeID, event string) (planner.MealEvent, error) {
	mt, err := recipe.ParseMealType(meal)
	if err != nil {
		return planner.MealEvent{}, err
	}
	ev := planner.MealEvent{MealType: mt, RecipeID: recipeID, EventName: event}
	return ev, ev.Validate()
}

func init() {
	calendarCmd := &cobra.Command{Use: "calendar", Short: "Meal calendar"}

	calendarCmd.AddCommand(&cobra.Command{
		Use:   "show [DATE]",
		Short: "Show one day, today by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := ""
			if len(args) == 1 {
				date = args[0]
			}
			item, err := application.Day(ctxOf(cmd), date)
			if err != nil {
				return err
			}
			return output(item, func() { printDay(item) })
		},
	})

	var days int
	weekCmd := &cobra.Command{
		Use:   "week [START]",
		Short: "Show consecutive days, starting today by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := ""
			if len(args) == 1 {
				start = args[0]
			}
			items, err := application.Week(ctxOf(cmd), start, days)
			if err != nil {
				return err
			}
			return output(items, func() {
				for _, item := range items {
					printDay(item)
				}
			})
		},
	}
	weekCmd.Flags().IntVarP(&days, "days", "d", 7, "Number of days")
	calendarCmd.AddCommand(weekCmd)

	for _, op := range []struct {
		use, short string
		remove     bool
	}{
		{"add", "Plan a meal", false},
		{"remove", "Remove a planned meal", true},
	} {
		var date, recipeID, event string
		c := &cobra.Command{
			Use:   op.use + " MEAL",
			Short: op.short + " (MEAL is breakfast, lunch or dinner)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ev, err := mealEvent(args[0], recipeID, event)
				if err != nil {
					return err
				}
				var item planner.CalendarItem
				if op.remove {
					item, err = application.UnplanMeal(ctxOf(cmd), date, ev)
				} else {
					item, err = application.PlanMeal(ctxOf(cmd), date, ev)
				}
				if err != nil {
					return err
				}
				return output(item, func() { printDay(item) })
			},
		}
		c.Flags().StringVar(&date, "date", "", "Day as YYYY-MM-DD (default today)")
		c.Flags().StringVar(&recipeID, "recipe", "", "Recipe id")
		c.Flags().StringVar(&event, "event", "", "Free text event, e.g. \"restaurant\"")
		calendarCmd.AddCommand(c)
	}
	rootCmd.AddCommand(calendarCmd)

	groceryCmd := &cobra.Command{Use: "grocery", Short: "Grocery list"}

	groceryCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the grocery list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := application.Grocery(ctxOf(cmd))
			if err != nil {
				return err
			}
			return printGrocery(list)
		},
	})

	var qty float64
	var unit, kind string
	addCmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := shopping.Item{IngredientName: args[0]}
			if qty > 0 || unit != "" {
				item.Quantity = &recipe.Amount{Value: qty, Unit: unit}
			}
			if kind != "" {
				t, err := recipe.ParseIngredientType(kind)
				if err != nil {
					return err
				}
				item.IngredientType = t
			}
			list, err := application.AddGrocery(ctxOf(cmd), item)
			if err != nil {
				return err
			}
			return printGrocery(list)
		},
	}
	addCmd.Flags().Float64VarP(&qty, "quantity", "q", 0, "Quantity")
	addCmd.Flags().StringVarP(&unit, "unit", "u", "", "Unit, e.g. g or ml")
	addCmd.Flags().StringVarP(&kind, "type", "t", "", "Ingredient type (guessed from the name when omitted)")
	groceryCmd.AddCommand(addCmd)

	groceryCmd.AddCommand(&cobra.Command{
		Use:   "bought NAME",
		Short: "Mark a product as bought",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := application.MarkBought(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			return printGrocery(list)
		},
	})

	groceryCmd.AddCommand(&cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := application.RemoveGrocery(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			return printGrocery(list)
		},
	})

	groceryCmd.AddCommand(&cobra.Command{
		Use:   "clear-bought",
		Short: "Drop every product already bought",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := application.ClearBought(ctxOf(cmd))
			if err != nil {
				return err
			}
			return printGrocery(list)
		},
	})

	var planDays int
	fromPlanCmd := &cobra.Command{
		Use:   "from-plan [START]",
		Short: "Add the ingredients of the planned recipes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := ""
			if len(args) == 1 {
				start = args[0]
			}
			list, added, err := application.GroceryFromPlan(ctxOf(cmd), start, planDays)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%d products from the meal plan.\n", added)
			return printGrocery(list)
		},
	}
	fromPlanCmd.Flags().IntVarP(&planDays, "days", "d", 7, "Number of days")
	groceryCmd.AddCommand(fromPlanCmd)

	rootCmd.AddCommand(groceryCmd)
}
