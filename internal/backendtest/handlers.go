package backendtest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"recipe-companion/internal/planner"
	"recipe-companion/internal/recipe"
	"recipe-companion/internal/shopping"
)

func withAccount(ctx context.Context, a *account) context.Context {
	return context.WithValue(ctx, ctxAccount{}, a)
}

func accountFrom(r *http.Request) *account {
	a, _ := r.Context().Value(ctxAccount{}).(*account)
	return a
}

// --------------------------------------------------------------------
// Auth
// --------------------------------------------------------------------

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Mail     string `json:"mail"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Mail == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "username, mail and password are required")
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[req.Mail]; exists {
		s.mu.Unlock()
		writeError(w, r, http.StatusConflict, "USER_ALREADY_EXISTS", "an account already uses this mail")
		return
	}
	a := s.newAccount(req.Username, req.Mail, req.Password)
	a.otp = randomOTP()
	s.mu.Unlock()

	writeText(w, http.StatusOK, "Account created. A confirmation code was sent to "+req.Mail)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mail string `json:"mail"`
		OTP  string `json:"otp"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[req.Mail]
	if !ok {
		writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", "no account for this mail")
		return
	}
	if a.confirmed {
		writeText(w, http.StatusOK, "Account already confirmed")
		return
	}
	if a.otp == "" || a.otp != req.OTP {
		writeError(w, r, http.StatusBadRequest, "INVALID_OTP", "the confirmation code is not valid")
		return
	}
	a.confirmed = true
	a.otp = ""
	writeText(w, http.StatusOK, "Account confirmed")
}

type authResponse struct {
	User         any    `json:"user,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mail     string `json:"mail"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	a, ok := s.accounts[req.Mail]
	valid := ok && a.password == req.Password
	confirmed := ok && a.confirmed
	omitUser := s.omitUser
	s.mu.Unlock()

	if !valid {
		writeError(w, r, http.StatusUnauthorized, "BAD_CREDENTIALS", "wrong mail or password")
		return
	}
	if !confirmed {
		writeError(w, r, http.StatusForbidden, "ACCOUNT_NOT_CONFIRMED", "confirm your account first")
		return
	}

	access, err := s.issue(a, audienceAccess, s.accessTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "TOKEN_ERROR", err.Error())
		return
	}
	refresh, err := s.issue(a, audienceRefresh, 7*24*time.Hour)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "TOKEN_ERROR", err.Error())
		return
	}
	resp := authResponse{AccessToken: access, RefreshToken: refresh}
	if !omitUser {
		resp.User = s.userOf(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refresh := bearer(r)
	a, err := s.parseToken(refresh, audienceRefresh)
	if err != nil {
		writeError(w, r, http.StatusForbidden, "ACCESS_DENIED", "invalid refresh token")
		return
	}
	access, err := s.issue(a, audienceAccess, s.accessTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "TOKEN_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, authResponse{AccessToken: access, RefreshToken: refresh})
}

func (s *Server) userOf(a *account) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := a.user
	u.RecipesIDs = append([]string(nil), a.user.RecipesIDs...)
	u.SavedRecipesIDs = append([]string(nil), a.user.SavedRecipesIDs...)
	return u
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.userOf(accountFrom(r)))
}

// --------------------------------------------------------------------
// Recipes
// --------------------------------------------------------------------

func (s *Server) visible(a *account) []recipe.Recipe {
	own := make(map[string]bool, len(a.user.RecipesIDs))
	for _, id := range a.user.RecipesIDs {
		own[id] = true
	}
	var out []recipe.Recipe
	for _, id := range s.recipeOrder {
		r := s.recipes[id]
		if r.IsPublic || own[id] {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := s.visible(accountFrom(r))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (s *Server) handleListCompact(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := s.visible(accountFrom(r))
	s.mu.Unlock()
	for i := range out {
		out[i] = out[i].Compact()
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (s *Server) handleFilterRecipes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f recipe.Filter
	// Unknown enum values are ignored, as the real backend does.
	if v, err := recipe.ParseRelativePrice(q.Get("relativePrice")); err == nil {
		f.RelativePrice = v
	}
	if v, err := recipe.ParseFoodOrigin(q.Get("foodOrigin")); err == nil {
		f.FoodOrigin = v
	}
	if v, err := recipe.ParseMealType(q.Get("mealType")); err == nil {
		f.MealType = v
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	s.mu.Lock()
	var out []recipe.Recipe
	for _, id := range s.recipeOrder {
		rec := s.recipes[id]
		if rec.IsPublic && f.Matches(rec) {
			out = append(out, rec)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (s *Server) handleBatch(compact bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ids []string
		if !decode(w, r, &ids) {
			return
		}
		s.mu.Lock()
		var out []recipe.Recipe
		for _, id := range ids {
			if rec, ok := s.recipes[id]; ok {
				if compact {
					rec = rec.Compact()
				}
				out = append(out, rec)
			}
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, nonNil(out))
	}
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.Recipe(mux.Vars(r)["id"])
	if !ok {
		writeError(w, r, http.StatusNotFound, "RECIPE_NOT_FOUND", "recipe not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) createFor(a *account, rec recipe.Recipe) recipe.Recipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = ""
	rec = s.putRecipe(rec)
	a.user.RecipesIDs = append(a.user.RecipesIDs, rec.ID)
	return rec
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	var rec recipe.Recipe
	if !decode(w, r, &rec) {
		return
	}
	if err := rec.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.createFor(accountFrom(r), rec))
}

func (s *Server) handleCreateWithImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "MALFORMED_BODY", err.Error())
		return
	}
	var rec recipe.Recipe
	if err := json.Unmarshal([]byte(r.FormValue("recipe")), &rec); err != nil {
		writeError(w, r, http.StatusBadRequest, "MALFORMED_BODY", "recipe part: "+err.Error())
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "MISSING_IMAGE", err.Error())
		return
	}
	file.Close()
	if err := rec.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	rec.ImageURL = "/images/" + header.Filename
	writeJSON(w, http.StatusOK, s.createFor(accountFrom(r), rec))
}

func (s *Server) handlePatchRecipe(w http.ResponseWriter, r *http.Request) {
	var patch recipe.Recipe
	if !decode(w, r, &patch) {
		return
	}
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recipes[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, "RECIPE_NOT_FOUND", "recipe not found")
		return
	}
	if patch.Name != "" {
		rec.Name = patch.Name
	}
	if patch.Description != "" {
		rec.Description = patch.Description
	}
	if len(patch.Ingredients) > 0 {
		rec.Ingredients = patch.Ingredients
	}
	if len(patch.Steps) > 0 {
		rec.Steps = patch.Steps
	}
	if len(patch.MealTypes) > 0 {
		rec.MealTypes = patch.MealTypes
	}
	if len(patch.FoodOrigins) > 0 {
		rec.FoodOrigins = patch.FoodOrigins
	}
	if patch.RelativePrice != "" {
		rec.RelativePrice = patch.RelativePrice
	}
	if patch.PrepTimeMin > 0 {
		rec.PrepTimeMin = patch.PrepTimeMin
	}
	if patch.CookTimeMin > 0 {
		rec.CookTimeMin = patch.CookTimeMin
	}
	if patch.Servings > 0 {
		rec.Servings = patch.Servings
	}
	s.recipes[id] = rec
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recipes[id]; !ok {
		writeError(w, r, http.StatusNotFound, "RECIPE_NOT_FOUND", "recipe not found")
		return
	}
	s.deleteRecipe(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteRecipe(id string) {
	delete(s.recipes, id)
	for i, rid := range s.recipeOrder {
		if rid == id {
			s.recipeOrder = append(s.recipeOrder[:i], s.recipeOrder[i+1:]...)
			break
		}
	}
	for _, a := range s.byID {
		a.user.RecipesIDs = without(a.user.RecipesIDs, id)
		a.user.SavedRecipesIDs = without(a.user.SavedRecipesIDs, id)
	}
}

func (s *Server) handleIdeas(w http.ResponseWriter, r *http.Request) {
	var ingredients []string
	if !decode(w, r, &ingredients) {
		return
	}
	if len(ingredients) == 0 {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "ingredients are required")
		return
	}
	s.mu.Lock()
	out := append([]string{}, s.ideas...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// --------------------------------------------------------------------
// Ingredients
// --------------------------------------------------------------------

func (s *Server) handleListIngredients(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]recipe.IngredientInfo{}, s.ingredients...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetIngredient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ing := range s.ingredients {
		if ing.ID == id {
			writeJSON(w, http.StatusOK, ing)
			return
		}
	}
	writeError(w, r, http.StatusNotFound, "INGREDIENT_NOT_FOUND", "ingredient not found")
}

// --------------------------------------------------------------------
// Calendar
// --------------------------------------------------------------------

func (s *Server) handleGetCalendar(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	a := accountFrom(r)
	s.mu.Lock()
	item, ok := a.calendar[date]
	s.mu.Unlock()
	if !ok {
		writeError(w, r, http.StatusNotFound, "CALENDAR_ITEM_NOT_FOUND", "nothing planned on "+date)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleWriteCalendar(w http.ResponseWriter, r *http.Request) {
	var u planner.CalendarUpdate
	if !decode(w, r, &u) {
		return
	}
	if err := u.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	a := accountFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range u.MealEvents {
		if rec, ok := s.recipes[e.RecipeID]; ok && e.RecipeName == "" {
			u.MealEvents[i].RecipeName = rec.Name
		}
	}
	item, ok := a.calendar[u.Date]
	if !ok {
		item = planner.CalendarItem{ID: "cal-" + a.user.ID[:8] + "-" + u.Date, Date: u.Date}
	}
	if r.Method == http.MethodPut {
		item = item.Merge(u.MealEvents...)
	} else {
		item = item.Remove(u.MealEvents...)
	}
	a.calendar[u.Date] = item
	writeJSON(w, http.StatusOK, item)
}

// --------------------------------------------------------------------
// Grocery
// --------------------------------------------------------------------

func (s *Server) handleGetGrocery(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r)
	s.mu.Lock()
	list := a.grocery
	s.mu.Unlock()
	if list.Products == nil {
		list.Products = []shopping.Item{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePutGrocery(w http.ResponseWriter, r *http.Request) {
	var u shopping.Update
	if !decode(w, r, &u) {
		return
	}
	if err := u.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	a := accountFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range u.Products {
		if u.Products[i].ID == "" {
			u.Products[i].ID = "item-" + strconv.Itoa(i+1) + "-" + strings.ToLower(strings.ReplaceAll(u.Products[i].IngredientName, " ", "-"))
		}
	}
	a.grocery = shopping.List{Products: u.Products, UpdatedAt: time.Now().UTC().Truncate(time.Second)}
	writeJSON(w, http.StatusOK, a.grocery)
}

// --------------------------------------------------------------------
// Saved and authored recipes
// --------------------------------------------------------------------

type collection int

const (
	savedCollection collection = iota
	authoredCollection
)

func (c collection) ids(a *account) *[]string {
	if c == savedCollection {
		return &a.user.SavedRecipesIDs
	}
	return &a.user.RecipesIDs
}

func (s *Server) handleListCollection(c collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := accountFrom(r)
		s.mu.Lock()
		var out []recipe.Recipe
		for _, id := range *c.ids(a) {
			if rec, ok := s.recipes[id]; ok {
				out = append(out, rec)
			}
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, nonNil(out))
	}
}

func (s *Server) handleChangeCollection(c collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("recipeId")
		a := accountFrom(r)

		s.mu.Lock()
		if _, ok := s.recipes[id]; !ok {
			s.mu.Unlock()
			writeError(w, r, http.StatusNotFound, "RECIPE_NOT_FOUND", "recipe not found")
			return
		}
		ids := c.ids(a)
		if r.Method == http.MethodPost {
			if !contains(*ids, id) {
				*ids = append(*ids, id)
			}
		} else {
			*ids = without(*ids, id)
			if c == authoredCollection {
				s.deleteRecipe(id)
			}
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, s.userOf(a))
	}
}

func (s *Server) handleIsSaved(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("recipeId")
	a := accountFrom(r)
	s.mu.Lock()
	saved := contains(a.user.SavedRecipesIDs, id)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, saved)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func without(list []string, v string) []string {
	out := list[:0:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func nonNil(list []recipe.Recipe) []recipe.Recipe {
	if list == nil {
		return []recipe.Recipe{}
	}
	return list
}
