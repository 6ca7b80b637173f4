package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-companion/internal/api"
	"recipe-companion/internal/backendtest"
	"recipe-companion/internal/clipper"
	"recipe-companion/internal/config"
	"recipe-companion/internal/planner"
	"recipe-companion/internal/recipe"
	"recipe-companion/internal/session"
	"recipe-companion/internal/shopping"
)

const (
	mail     = "ada@example.com"
	password = "s3cret"
)

var may1 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func testConfig(srv *backendtest.Server, dir string) *config.Config {
	return &config.Config{
		APIURL:           srv.BaseURL(),
		DataDir:          dir,
		Storage:          config.StorageSQLite,
		VaultPassphrase:  "device secret",
		HTTPTimeout:      5 * time.Second,
		RetryMaxAttempts: 2,
		LogLevel:         "info",
		MetricsRetention: 30,
	}
}

func openApp(t *testing.T, srv *backendtest.Server, dir string) *App {
	t.Helper()
	fast := api.RetryPolicy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	a, err := New(context.Background(), testConfig(srv, dir),
		WithAPIOptions(api.WithRetryPolicy(fast)),
		WithClock(func() time.Time { return may1 }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func loggedIn(t *testing.T) (*App, *backendtest.Server) {
	t.Helper()
	srv := backendtest.New(t)
	srv.AddUser("Ada", mail, password)
	a := openApp(t, srv, t.TempDir())
	_, err := a.Login(context.Background(), mail, password)
	require.NoError(t, err)
	return a, srv
}

func stored(t *testing.T, a *App, key string) bool {
	t.Helper()
	_, ok, err := a.store.Get(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestLoginPersistsSession(t *testing.T) {
	ctx := context.Background()
	srv := backendtest.New(t)
	srv.AddUser("Ada", mail, password)
	a := openApp(t, srv, t.TempDir())

	_, err := a.Login(ctx, mail, "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrAuthentication)
	for _, key := range []string{session.KeyAccessToken, session.KeyRefreshToken, session.KeyUser, session.KeyCredentials} {
		assert.False(t, stored(t, a, key), "failed login must not store %s", key)
	}

	s, err := a.Login(ctx, mail, password)
	require.NoError(t, err)
	assert.Equal(t, "Ada", s.DisplayName())
	for _, key := range []string{session.KeyAccessToken, session.KeyRefreshToken, session.KeyUser, session.KeyCredentials} {
		assert.True(t, stored(t, a, key), "missing %s", key)
	}

	me, err := a.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, mail, me.Mail)
}

func TestLogoutClearsSession(t *testing.T) {
	ctx := context.Background()
	a, srv := loggedIn(t)

	require.NoError(t, a.Logout(ctx))
	for _, key := range []string{session.KeyAccessToken, session.KeyRefreshToken, session.KeyUser} {
		assert.False(t, stored(t, a, key), "logout must clear %s", key)
	}

	before := srv.TotalHits()
	_, err := a.WhoAmI(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNoAccessToken)
	assert.Equal(t, "no access token", err.Error())
	assert.Equal(t, before, srv.TotalHits())
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("KeepsSessionOnServerError", func(t *testing.T) {
		srv := backendtest.New(t)
		srv.AddUser("Ada", mail, password)
		dir := t.TempDir()
		first := openApp(t, srv, dir)
		_, err := first.Login(ctx, mail, password)
		require.NoError(t, err)

		srv.FailNext("GET /user/profile", http.StatusInternalServerError)
		second := openApp(t, srv, dir)
		s, ok, err := second.Restore(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Ada", s.DisplayName())
		assert.True(t, stored(t, second, session.KeyAccessToken))
	})

	t.Run("ClearsSessionOnForbidden", func(t *testing.T) {
		srv := backendtest.New(t)
		srv.AddUser("Ada", mail, password)
		dir := t.TempDir()
		first := openApp(t, srv, dir)
		_, err := first.Login(ctx, mail, password)
		require.NoError(t, err)

		srv.RevokeAccessTokens()
		second := openApp(t, srv, dir)
		_, ok, err := second.Restore(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, stored(t, second, session.KeyAccessToken))
		assert.False(t, stored(t, second, session.KeyUser))
		assert.False(t, stored(t, second, session.KeyCredentials))
	})

	t.Run("NothingStored", func(t *testing.T) {
		srv := backendtest.New(t)
		a := openApp(t, srv, t.TempDir())
		_, ok, err := a.Restore(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, srv.TotalHits())
	})
}

func TestRenewWithCachedCredentials(t *testing.T) {
	ctx := context.Background()
	a, srv := loggedIn(t)

	// Both the access token and the refresh are rejected; the sealed
	// credentials let the client sign in again on its own.
	srv.RevokeAccessTokens()
	srv.FailNext("POST /auth/refresh", http.StatusForbidden)

	me, err := a.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.Name)
	assert.Equal(t, 2, srv.Hits("POST /auth/login"))
}

func TestCalendarRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, _ := loggedIn(t)

	_, err := a.PlanMeal(ctx, "2024-05-01", planner.MealEvent{MealType: recipe.Lunch, RecipeID: "abc"})
	require.NoError(t, err)

	day, err := a.Day(ctx, "")
	require.NoError(t, err, "empty date is today")
	assert.Equal(t, "2024-05-01", day.Date)
	lunch, ok := day.Event(recipe.Lunch)
	require.True(t, ok)
	assert.Equal(t, "abc", lunch.RecipeID)

	week, err := a.Week(ctx, "", 3)
	require.NoError(t, err)
	require.Len(t, week, 3)
	assert.Equal(t, "2024-05-03", week[2].Date)
	assert.Empty(t, week[1].MealEvents)

	day, err = a.UnplanMeal(ctx, "2024-05-01", planner.MealEvent{MealType: recipe.Lunch, RecipeID: "abc"})
	require.NoError(t, err)
	assert.Empty(t, day.MealEvents)
}

func TestGroceryUseCases(t *testing.T) {
	ctx := context.Background()
	a, srv := loggedIn(t)

	soup := srv.AddRecipe(recipe.Recipe{
		Name: "Tomato soup",
		Ingredients: []recipe.Ingredient{
			{IngredientID: "ing-tomato", Amount: recipe.Amount{Value: 500, Unit: "g"}},
			{IngredientID: "ing-basil", Amount: recipe.Amount{Value: 10, Unit: "g"}},
		},
		Steps:    []string{"Cook."},
		IsPublic: true,
	})
	_, err := a.PlanMeal(ctx, "2024-05-01", planner.MealEvent{MealType: recipe.Lunch, RecipeID: soup.ID})
	require.NoError(t, err)
	_, err = a.PlanMeal(ctx, "2024-05-02", planner.MealEvent{MealType: recipe.Dinner, RecipeID: soup.ID})
	require.NoError(t, err)

	_, err = a.AddGrocery(ctx, shopping.Item{IngredientName: "Tomato", Quantity: &recipe.Amount{Value: 200, Unit: "g"}})
	require.NoError(t, err)

	list, added, err := a.GroceryFromPlan(ctx, "2024-05-01", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	require.Len(t, list.Products, 2)

	byName := map[string]shopping.Item{}
	for _, p := range list.Products {
		byName[p.IngredientName] = p
	}
	assert.Equal(t, 1200.0, byName["Tomato"].Quantity.Value)
	assert.Equal(t, 20.0, byName["Basil"].Quantity.Value)
	assert.Equal(t, recipe.Herb, byName["Basil"].IngredientType)

	_, err = a.MarkBought(ctx, "caviar")
	assert.ErrorIs(t, err, ErrNotOnList)

	list, err = a.MarkBought(ctx, "tomato")
	require.NoError(t, err)
	assert.Len(t, list.Pending(), 1)

	list, err = a.ClearBought(ctx)
	require.NoError(t, err)
	require.Len(t, list.Products, 1)
	assert.Equal(t, "Basil", list.Products[0].IngredientName)

	list, err = a.RemoveGrocery(ctx, "Basil")
	require.NoError(t, err)
	assert.Empty(t, list.Products)

	_, err = a.AddGrocery(ctx, shopping.Item{IngredientName: " "})
	assert.ErrorIs(t, err, shopping.ErrInvalidItem)
}

const clipPage = `<html><head><script type="application/ld+json">
{"@type": "Recipe", "name": "Garlic spaghetti", "description": "Quick.",
 "recipeIngredient": ["200 g spaghetti", "2 cloves garlic", "3 tbsp olive oil", "1 dragon fruit"],
 "recipeInstructions": "Boil the pasta.\nFry the garlic in oil.",
 "cookTime": "PT20M", "recipeYield": "2"}
</script></head><body></body></html>`

func TestImportRecipe(t *testing.T) {
	ctx := context.Background()
	a, srv := loggedIn(t)

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(clipPage))
	}))
	defer page.Close()

	created, err := a.ImportRecipe(ctx, page.URL)
	require.NoError(t, err)
	assert.Equal(t, "Garlic spaghetti", created.Name)

	stored, ok := srv.Recipe(created.ID)
	require.True(t, ok)
	require.Len(t, stored.Ingredients, 3)
	assert.Equal(t, "ing-spaghetti", stored.Ingredients[0].IngredientID)
	assert.Equal(t, recipe.Amount{Value: 2, Unit: "clove"}, stored.Ingredients[1].Amount)
	assert.Equal(t, "ing-olive-oil", stored.Ingredients[2].IngredientID)
	assert.Equal(t, []string{"Boil the pasta.", "Fry the garlic in oil."}, stored.Steps)
	assert.Contains(t, stored.Description, "Also needed:\n- 1 dragon fruit")
	assert.Contains(t, stored.Description, "Source: "+page.URL)
}

func TestIdeas(t *testing.T) {
	a, _ := loggedIn(t)
	res, err := a.Ideas(context.Background(), []string{"tomato", "mozzarella"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tomates mozza", "Caviar"}, res.Suggestions)
}

func TestUsageIsRecorded(t *testing.T) {
	ctx := context.Background()
	a, _ := loggedIn(t)

	_, err := a.WhoAmI(ctx)
	require.NoError(t, err)

	usage, err := a.Usage(ctx, 1)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.GreaterOrEqual(t, usage[0].Calls, 2)

	n, err := a.CleanupMetrics(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is older than the retention")

	assert.NotEmpty(t, a.Health().DataDiskSize)
}

func TestBuildRecipe(t *testing.T) {
	catalog := []recipe.IngredientInfo{
		{ID: "oil", Name: "Oil"},
		{ID: "olive-oil", Name: "Olive oil"},
		{ID: "egg", Name: "Egg"},
	}
	d := clipper.Draft{
		Recipe:          recipe.Recipe{Name: "Mayo", Steps: []string{"Whisk."}},
		IngredientLines: []string{"1 egg", "1 egg", "250 ml olive oil", "salt"},
	}

	r := BuildRecipe(d, catalog)
	require.Len(t, r.Ingredients, 2)
	assert.Equal(t, recipe.Ingredient{IngredientID: "egg", Amount: recipe.Amount{Value: 2}}, r.Ingredients[0])
	assert.Equal(t, recipe.Ingredient{IngredientID: "olive-oil", Amount: recipe.Amount{Value: 250, Unit: "ml"}}, r.Ingredients[1])
	assert.Equal(t, "Also needed:\n- salt", r.Description)
	assert.NoError(t, r.Validate())
}

func TestParseAmount(t *testing.T) {
	cases := map[string]recipe.Amount{
		"200 g spaghetti": {Value: 200, Unit: "g"},
		"200g spaghetti":  {Value: 200, Unit: "g"},
		"1/2 cup milk":    {Value: 0.5, Unit: "cup"},
		"1,5 l water":     {Value: 1.5, Unit: "l"},
		"3 tomatoes":      {Value: 3},
		"2 Tbsp. vinegar": {Value: 2, Unit: "tbsp"},
		"salt to taste":   {},
	}
	for line, want := range cases {
		assert.Equal(t, want, ParseAmount(line), line)
	}
}
