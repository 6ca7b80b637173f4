package api_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-companion/internal/api"
	"recipe-companion/internal/backendtest"
	"recipe-companion/internal/metrics"
	"recipe-companion/internal/planner"
	"recipe-companion/internal/recipe"
	"recipe-companion/internal/session"
	"recipe-companion/internal/shopping"
	"recipe-companion/internal/storage"
)

var fastRetry = api.RetryPolicy{MaxAttempts: 3, InitialInterval: 5 * time.Millisecond, MaxInterval: 20 * time.Millisecond}

type recorder struct {
	mu    sync.Mutex
	calls []metrics.APICall
}

func (r *recorder) RecordCall(ctx context.Context, c metrics.APICall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return nil
}

type fixture struct {
	srv     *backendtest.Server
	client  *api.Client
	manager *session.Manager
	user    session.User
	rec     *recorder
}

func setup(t *testing.T, opts ...api.Option) *fixture {
	t.Helper()
	srv := backendtest.New(t)
	rec := &recorder{}
	opts = append([]api.Option{api.WithRetryPolicy(fastRetry), api.WithCallRecorder(rec)}, opts...)
	base, err := api.New(srv.BaseURL(), opts...)
	require.NoError(t, err)

	m := session.NewManager(storage.NewMemoryStore(), base)
	user := srv.AddUser("Ada", "ada@example.com", "pw")
	_, err = m.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)

	return &fixture{srv: srv, client: base.WithSession(m), manager: m, user: user, rec: rec}
}

func soup() recipe.Recipe {
	return recipe.Recipe{
		Name:        "Tomato soup",
		Ingredients: []recipe.Ingredient{{IngredientID: "ing-tomato", Amount: recipe.Amount{Value: 500, Unit: "g"}}},
		Steps:       []string{"Simmer tomatoes.", "Blend."},
		MealTypes:   []recipe.MealType{recipe.Lunch},
		FoodOrigins: []recipe.FoodOrigin{recipe.French},
		IsPublic:    true,
	}
}

func TestNoAccessTokenFailsFast(t *testing.T) {
	ctx := context.Background()
	srv := backendtest.New(t)

	t.Run("NoSessionSource", func(t *testing.T) {
		c, err := api.New(srv.BaseURL())
		require.NoError(t, err)

		_, err = c.GetProfile(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, session.ErrNoAccessToken)
		assert.Equal(t, "no access token", err.Error())

		_, err = c.GetGroceryList(ctx)
		assert.ErrorIs(t, err, session.ErrNoAccessToken)
		_, err = c.ListRecipes(ctx)
		assert.ErrorIs(t, err, session.ErrNoAccessToken)
	})

	t.Run("LoggedOut", func(t *testing.T) {
		c, err := api.New(srv.BaseURL())
		require.NoError(t, err)
		m := session.NewManager(storage.NewMemoryStore(), c)
		authed := c.WithSession(m)

		_, err = authed.GetCalendarItem(ctx, "2024-05-01")
		assert.ErrorIs(t, err, session.ErrNoAccessToken)
	})

	assert.Zero(t, srv.TotalHits(), "no request may reach the backend")
}

func TestReauthenticatesOnceOn403(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.srv.AddRecipe(soup())

	f.srv.RevokeAccessTokens()
	before, _ := f.manager.Current()

	recipes, err := f.client.ListRecipes(ctx)
	require.NoError(t, err)
	assert.Len(t, recipes, 1)

	assert.Equal(t, 2, f.srv.Hits("GET /recipes"))
	assert.Equal(t, 1, f.srv.Hits("POST /auth/refresh"))
	after, _ := f.manager.Current()
	assert.NotEqual(t, before.AccessToken, after.AccessToken)
}

func TestSecond403Propagates(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	f.srv.FailNext("GET /recipes", http.StatusForbidden, http.StatusForbidden)

	_, err := f.client.ListRecipes(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrPermissionDenied)
	assert.Equal(t, http.StatusForbidden, api.StatusCode(err))

	assert.Equal(t, 2, f.srv.Hits("GET /recipes"), "at most one retry")
	assert.Equal(t, 1, f.srv.Hits("POST /auth/refresh"), "at most one renewal")
}

func TestFailedRenewPropagates(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	f.srv.FailNext("GET /recipes", http.StatusForbidden)
	f.srv.FailNext("POST /auth/refresh", http.StatusForbidden)

	_, err := f.client.ListRecipes(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrAuthentication)
	assert.Equal(t, 1, f.srv.Hits("GET /recipes"))
}

func TestReauthReplaysRequestBody(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	f.srv.RevokeAccessTokens()
	created, err := f.client.CreateRecipe(ctx, soup())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Tomato soup", created.Name)
	assert.Equal(t, 2, f.srv.Hits("POST /recipes"))
}

func TestTransientRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("GetRecovers", func(t *testing.T) {
		f := setup(t)
		f.srv.FailNext("GET /recipes/compact", http.StatusServiceUnavailable, http.StatusBadGateway)

		_, err := f.client.ListCompactRecipes(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, f.srv.Hits("GET /recipes/compact"))
	})

	t.Run("GetGivesUpAfterMaxAttempts", func(t *testing.T) {
		f := setup(t)
		f.srv.FailNext("GET /recipes/compact", 503, 503, 503, 503)

		_, err := f.client.ListCompactRecipes(ctx)
		require.Error(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, api.StatusCode(err))
		assert.Equal(t, 3, f.srv.Hits("GET /recipes/compact"))
	})

	t.Run("PostIsNeverRetried", func(t *testing.T) {
		f := setup(t)
		f.srv.FailNext("POST /recipes/batch", http.StatusServiceUnavailable)

		_, err := f.client.GetRecipesBatch(ctx, []string{"abc"})
		require.Error(t, err)
		assert.Equal(t, 1, f.srv.Hits("POST /recipes/batch"))
	})

	t.Run("SingleAttemptDisablesRetry", func(t *testing.T) {
		f := setup(t, api.WithRetryPolicy(api.RetryPolicy{MaxAttempts: 1}))
		f.srv.FailNext("GET /recipes/compact", http.StatusServiceUnavailable)

		_, err := f.client.ListCompactRecipes(ctx)
		require.Error(t, err)
		assert.Equal(t, 1, f.srv.Hits("GET /recipes/compact"))
	})
}

func TestGroceryEmptyNameMakesNoNetworkCall(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	before := f.srv.TotalHits()

	_, err := f.client.ReplaceGroceryList(ctx, shopping.Update{Products: []shopping.Item{
		{IngredientName: "Milk"},
		{IngredientName: "", IngredientType: recipe.Vegetable},
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, shopping.ErrInvalidItem)
	assert.Equal(t, before, f.srv.TotalHits())
}

func TestGroceryReplace(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	empty, err := f.client.GetGroceryList(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Products)

	list, err := f.client.ReplaceGroceryList(ctx, shopping.Update{Products: []shopping.Item{
		{IngredientName: "Milk", IngredientType: recipe.Dairy, Quantity: &recipe.Amount{Value: 1, Unit: "l"}},
	}})
	require.NoError(t, err)
	require.Len(t, list.Products, 1)
	assert.NotEmpty(t, list.Products[0].ID)
	assert.False(t, list.UpdatedAt.IsZero())

	got, err := f.client.GetGroceryList(ctx)
	require.NoError(t, err)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "Milk", got.Products[0].IngredientName)
	assert.Equal(t, 1.0, got.Products[0].Quantity.Value)
}

func TestCalendarRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	empty, err := f.client.GetCalendarItem(ctx, "2024-05-01")
	require.NoError(t, err, "a missing day is not an error")
	assert.Equal(t, "2024-05-01", empty.Date)
	assert.Empty(t, empty.MealEvents)

	_, err = f.client.UpsertMealEvents(ctx, planner.CalendarUpdate{
		Date:       "2024-05-01",
		MealEvents: []planner.MealEvent{{MealType: recipe.Lunch, RecipeID: "abc"}},
	})
	require.NoError(t, err)

	day, err := f.client.GetCalendarItem(ctx, "2024-05-01")
	require.NoError(t, err)
	lunch, ok := day.Event(recipe.Lunch)
	require.True(t, ok)
	assert.Equal(t, "abc", lunch.RecipeID)

	// Same meal type replaces the event.
	_, err = f.client.UpsertMealEvents(ctx, planner.CalendarUpdate{
		Date:       "2024-05-01",
		MealEvents: []planner.MealEvent{{MealType: recipe.Lunch, EventName: "Picnic"}},
	})
	require.NoError(t, err)
	day, err = f.client.GetCalendarItem(ctx, "2024-05-01")
	require.NoError(t, err)
	require.Len(t, day.MealEvents, 1)
	assert.Equal(t, "Picnic", day.MealEvents[0].EventName)

	day, err = f.client.RemoveMealEvents(ctx, planner.CalendarUpdate{
		Date:       "2024-05-01",
		MealEvents: []planner.MealEvent{{MealType: recipe.Lunch, EventName: "Picnic"}},
	})
	require.NoError(t, err)
	assert.Empty(t, day.MealEvents)
}

func TestCalendarRejectsInvalidEvents(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	before := f.srv.TotalHits()

	_, err := f.client.UpsertMealEvents(ctx, planner.CalendarUpdate{
		Date:       "2024-05-01",
		MealEvents: []planner.MealEvent{{MealType: recipe.Lunch}},
	})
	assert.ErrorIs(t, err, planner.ErrInvalidEvent)
	_, err = f.client.GetCalendarItem(ctx, "May 1st")
	assert.ErrorIs(t, err, planner.ErrInvalidEvent)
	assert.Equal(t, before, f.srv.TotalHits())
}

func TestRecipes(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	t.Run("NotFoundCarriesBackendCode", func(t *testing.T) {
		_, err := f.client.GetRecipe(ctx, "missing")
		require.Error(t, err)
		assert.True(t, api.IsNotFound(err))
		var apiErr *api.Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "RECIPE_NOT_FOUND", apiErr.Code)
		assert.Contains(t, apiErr.Error(), "GET /recipes/missing: status 404")
	})

	t.Run("InvalidRecipeIsNotSent", func(t *testing.T) {
		before := f.srv.TotalHits()
		_, err := f.client.CreateRecipe(ctx, recipe.Recipe{Name: "Empty"})
		assert.ErrorIs(t, err, recipe.ErrInvalid)
		assert.Equal(t, before, f.srv.TotalHits())
	})

	t.Run("CreateGetPatchDelete", func(t *testing.T) {
		created, err := f.client.CreateRecipe(ctx, soup())
		require.NoError(t, err)

		got, err := f.client.GetRecipe(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Name, got.Name)

		patched, err := f.client.UpdateRecipe(ctx, created.ID, recipe.Recipe{Description: "Velvety"})
		require.NoError(t, err)
		assert.Equal(t, "Velvety", patched.Description)
		assert.Equal(t, "Tomato soup", patched.Name)

		mine, err := f.client.ListUserRecipes(ctx)
		require.NoError(t, err)
		require.Len(t, mine, 1)

		require.NoError(t, f.client.DeleteRecipe(ctx, created.ID))
		_, err = f.client.GetRecipe(ctx, created.ID)
		assert.True(t, api.IsNotFound(err))
	})

	t.Run("WithCoverImage", func(t *testing.T) {
		created, err := f.client.CreateRecipeWithImage(ctx, soup(), "soup.png", bytes.NewReader([]byte("\x89PNG fake")))
		require.NoError(t, err)
		assert.Equal(t, "/images/soup.png", created.ImageURL)
	})

	t.Run("FilterAndBatches", func(t *testing.T) {
		dinner := soup()
		dinner.Name = "Carbonara"
		dinner.MealTypes = []recipe.MealType{recipe.Dinner}
		dinner.FoodOrigins = []recipe.FoodOrigin{recipe.Italian}
		d := f.srv.AddRecipe(dinner)

		found, err := f.client.FilterRecipes(ctx, recipe.Filter{FoodOrigin: recipe.Italian, MealType: recipe.Dinner})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Carbonara", found[0].Name)

		compact, err := f.client.GetCompactRecipesBatch(ctx, []string{d.ID})
		require.NoError(t, err)
		require.Len(t, compact, 1)
		assert.Empty(t, compact[0].Steps)

		full, err := f.client.GetRecipesBatch(ctx, []string{d.ID})
		require.NoError(t, err)
		require.Len(t, full, 1)
		assert.Len(t, full[0].Steps, 2)
	})

	t.Run("Ideas", func(t *testing.T) {
		ideas, err := f.client.RecipeIdeas(ctx, []string{" tomato ", "", "mozzarella"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Tomates mozza", "Caviar"}, ideas)

		_, err = f.client.RecipeIdeas(ctx, []string{"  "})
		assert.ErrorIs(t, err, recipe.ErrInvalid)
	})
}

func TestSavedRecipes(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	r := f.srv.AddRecipe(soup())

	saved, err := f.client.IsRecipeSaved(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, saved)

	u, err := f.client.SaveRecipe(ctx, r.ID)
	require.NoError(t, err)
	assert.Contains(t, u.SavedRecipesIDs, r.ID)

	list, err := f.client.ListSavedRecipes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	saved, err = f.client.IsRecipeSaved(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, saved)

	u, err = f.client.UnsaveRecipe(ctx, r.ID)
	require.NoError(t, err)
	assert.NotContains(t, u.SavedRecipesIDs, r.ID)

	_, err = f.client.SaveRecipe(ctx, "../etc")
	assert.Error(t, err)
}

func TestIngredients(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	all, err := f.client.ListIngredients(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)

	basil, err := f.client.GetIngredient(ctx, "ing-basil")
	require.NoError(t, err)
	assert.Equal(t, recipe.Herb, basil.Type)
}

func TestCallRecorderSeesRouteTemplates(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, _ = f.client.GetRecipe(ctx, "missing")

	f.rec.mu.Lock()
	defer f.rec.mu.Unlock()
	require.NotEmpty(t, f.rec.calls)
	last := f.rec.calls[len(f.rec.calls)-1]
	assert.Equal(t, "/recipes/{id}", last.Endpoint)
	assert.Equal(t, http.MethodGet, last.Method)
	assert.Equal(t, http.StatusNotFound, last.Status)
}

func TestAuthEndpoints(t *testing.T) {
	ctx := context.Background()
	srv := backendtest.New(t)
	c, err := api.New(srv.BaseURL())
	require.NoError(t, err)

	msg, err := c.Signup(ctx, "Bob", "bob@example.com", "pw")
	require.NoError(t, err)
	assert.Contains(t, msg, "bob@example.com")

	_, err = c.Login(ctx, "bob@example.com", "pw")
	require.Error(t, err, "unconfirmed accounts cannot log in")
	assert.ErrorIs(t, err, session.ErrPermissionDenied)

	_, err = c.ConfirmAccount(ctx, "bob@example.com", "000000x")
	require.Error(t, err)

	msg, err = c.ConfirmAccount(ctx, "bob@example.com", srv.OTP("bob@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "Account confirmed", msg)

	res, err := c.Login(ctx, "bob@example.com", "pw")
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Equal(t, "Bob", res.User.Name)

	refreshed, err := c.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.AccessToken, refreshed.AccessToken)

	profile, err := c.Profile(ctx, refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, profile.ID)

	_, err = c.Profile(ctx, "garbage")
	assert.ErrorIs(t, err, session.ErrPermissionDenied)
}

type staticSource struct{ s session.Session }

func (f staticSource) Current() (session.Session, bool) { return f.s, true }

func (f staticSource) Renew(ctx context.Context, stale session.Session) (session.Session, error) {
	return f.s, nil
}

func TestBearerStaysOnBackendHost(t *testing.T) {
	var elsewhere string
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		elsewhere = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	}))
	t.Cleanup(other.Close)

	var origin string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin = r.Header.Get("Authorization")
		http.Redirect(w, r, other.URL+"/recipes", http.StatusFound)
	}))
	t.Cleanup(backend.Close)

	base, err := api.New(backend.URL + "/api/v1")
	require.NoError(t, err)
	c := base.WithSession(staticSource{s: session.Session{AccessToken: "tok", User: session.User{ID: "u1"}}})

	list, err := c.ListRecipes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, "Bearer tok", origin)
	assert.Empty(t, elsewhere, "the token must not follow a redirect to another host")
}
