package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"recipe-companion/internal/api"
	"recipe-companion/internal/recipe"
	"recipe-companion/internal/session"
)

func printRecipes(list []recipe.Recipe) error {
	return output(list, func() {
		if len(list) == 0 {
			fmt.Println("No recipes.")
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMEALS\tTIME")
		for _, r := range list {
			meals := make([]string, len(r.MealTypes))
			for i, mt := range r.MealTypes {
				meals[i] = strings.ToLower(string(mt))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d min\n", r.ID, r.Name, strings.Join(meals, ","), r.TotalTimeMin())
		}
		w.Flush()
	})
}

func printRecipe(r recipe.Recipe) error {
	return output(r, func() {
		fmt.Printf("%s (%s)\n", r.Name, r.ID)
		if r.Description != "" {
			fmt.Printf("\n%s\n", r.Description)
		}
		fmt.Printf("\nprep %d min, cook %d min", r.PrepTimeMin, r.CookTimeMin)
		if r.Servings > 0 {
			fmt.Printf(", serves %d", r.Servings)
		}
		fmt.Println()
		if len(r.Ingredients) > 0 {
			fmt.Println("\nIngredients:")
			for _, ing := range r.Ingredients {
				fmt.Printf("  - %s %s\n", ing.Amount, ing.IngredientID)
			}
		}
		if len(r.Steps) > 0 {
			fmt.Println("\nSteps:")
			for i, s := range r.Steps {
				fmt.Printf("  %d. %s\n", i+1, s)
			}
		}
	})
}

func printUser(u session.User) error {
	return output(u, func() {
		fmt.Printf("own recipes: %d, saved recipes: %d\n", len(u.RecipesIDs), len(u.SavedRecipesIDs))
	})
}

type (
	listFunc   func(*api.Client, context.Context) ([]recipe.Recipe, error)
	changeFunc func(*api.Client, context.Context, string) (session.User, error)
)

// collectionCmd builds the list/add/remove commands of a user's recipe
// collection.
func collectionCmd(use, short string, list listFunc, add, remove changeFunc) *cobra.Command {
	c := &cobra.Command{Use: use, Short: short}
	c.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipes, err := list(application.API(), ctxOf(cmd))
			if err != nil {
				return err
			}
			return printRecipes(recipes)
		},
	})
	for name, change := range map[string]changeFunc{"add": add, "remove": remove} {
		c.AddCommand(&cobra.Command{
			Use:   name + " RECIPE_ID",
			Short: strings.ToUpper(name[:1]) + name[1:] + " a recipe",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				u, err := change(application.API(), ctxOf(cmd), args[0])
				if err != nil {
					return err
				}
				return printUser(u)
			},
		})
	}
	return c
}

func init() {
	recipesCmd := &cobra.Command{Use: "recipes", Short: "Recipe operations"}

	recipesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List public recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := application.API().ListRecipes(ctxOf(cmd))
			if err != nil {
				return err
			}
			return printRecipes(list)
		},
	})

	recipesCmd.AddCommand(&cobra.Command{
		Use:   "compact [ID...]",
		Short: "List compact recipes, or a batch of them by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []recipe.Recipe
			var err error
			if len(args) == 0 {
				list, err = application.API().ListCompactRecipes(ctxOf(cmd))
			} else {
				list, err = application.API().GetCompactRecipesBatch(ctxOf(cmd), args)
			}
			if err != nil {
				return err
			}
			return printRecipes(list)
		},
	})

	recipesCmd.AddCommand(&cobra.Command{
		Use:   "get ID",
		Short: "Show one recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := application.API().GetRecipe(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			return printRecipe(r)
		},
	})

	var price, origin, meal string
	var limit int
	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter public recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := recipe.Filter{Limit: limit}
			var err error
			if price != "" {
				if f.RelativePrice, err = recipe.ParseRelativePrice(price); err != nil {
					return err
				}
			}
			if origin != "" {
				if f.FoodOrigin, err = recipe.ParseFoodOrigin(origin); err != nil {
					return err
				}
			}
			if meal != "" {
				if f.MealType, err = recipe.ParseMealType(meal); err != nil {
					return err
				}
			}
			list, err := application.API().FilterRecipes(ctxOf(cmd), f)
			if err != nil {
				return err
			}
			return printRecipes(list)
		},
	}
	filterCmd.Flags().StringVar(&price, "price", "", "cheap, moderate or expensive")
	filterCmd.Flags().StringVar(&origin, "origin", "", "Food origin, e.g. italian")
	filterCmd.Flags().StringVar(&meal, "meal", "", "breakfast, lunch or dinner")
	filterCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of recipes")
	recipesCmd.AddCommand(filterCmd)

	var imagePath string
	createCmd := &cobra.Command{
		Use:   "create FILE",
		Short: "Create a recipe from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var r recipe.Recipe
			if err := json.Unmarshal(data, &r); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}
			if imagePath == "" {
				created, err := application.API().CreateRecipe(ctxOf(cmd), r)
				if err != nil {
					return err
				}
				return printRecipe(created)
			}
			img, err := os.Open(imagePath)
			if err != nil {
				return err
			}
			defer img.Close()
			created, err := application.API().CreateRecipeWithImage(ctxOf(cmd), r, filepath.Base(imagePath), img)
			if err != nil {
				return err
			}
			return printRecipe(created)
		},
	}
	createCmd.Flags().StringVar(&imagePath, "image", "", "Cover image to upload with the recipe")
	recipesCmd.AddCommand(createCmd)

	recipesCmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete one of your recipes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := application.API().DeleteRecipe(ctxOf(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Deleted %s.\n", args[0])
			return nil
		},
	})

	recipesCmd.AddCommand(&cobra.Command{
		Use:   "clip URL",
		Short: "Import a recipe from a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := application.ImportRecipe(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			return printRecipe(r)
		},
	})

	rootCmd.AddCommand(recipesCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "ideas INGREDIENT...",
		Short: "Suggest recipes for the ingredients you have",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := application.Ideas(ctxOf(cmd), args)
			if err != nil {
				return err
			}
			if len(res.Recipes) > 0 {
				return printRecipes(res.Recipes)
			}
			return output(res, func() {
				if res.Empty() {
					fmt.Println("No ideas.")
					return
				}
				if res.FromLLM {
					fmt.Println("Suggested by the assistant:")
				}
				for _, s := range res.Suggestions {
					fmt.Printf("  - %s\n", s)
				}
			})
		},
	})

	rootCmd.AddCommand(collectionCmd("saved", "Recipes you saved",
		(*api.Client).ListSavedRecipes, (*api.Client).SaveRecipe, (*api.Client).UnsaveRecipe))
	rootCmd.AddCommand(collectionCmd("mine", "Recipes you own",
		(*api.Client).ListUserRecipes, (*api.Client).AddUserRecipe, (*api.Client).RemoveUserRecipe))

	ingredientsCmd := &cobra.Command{Use: "ingredients", Short: "Ingredient catalog"}
	ingredientsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known ingredients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := application.API().ListIngredients(ctxOf(cmd))
			if err != nil {
				return err
			}
			return output(list, func() {
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tTYPE")
				for _, ing := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\n", ing.ID, ing.Name, strings.ToLower(string(ing.Type)))
				}
				w.Flush()
			})
		},
	})
	rootCmd.AddCommand(ingredientsCmd)
}
