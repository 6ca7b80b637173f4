package clipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"recipe-companion/internal/llm"
	"recipe-companion/internal/recipe"
)

// ErrNoRecipe is returned when a page carries no recipe the clipper can read.
var ErrNoRecipe = errors.New("no recipe found on page")

// maxPromptText bounds the page text sent to the LLM.
const maxPromptText = 12000

// Draft is a recipe read from a web page. Its ingredients are not yet
// linked to backend ingredient ids; IngredientLines holds them as written.
type Draft struct {
	Recipe          recipe.Recipe
	IngredientLines []string
	SourceURL       string
}

// Clipper fetches recipe pages and extracts a Draft from them.
type Clipper struct {
	http    *resty.Client
	textGen llm.TextGenerator
}

// NewClipper creates a new Clipper. textGen may be nil, in which case
// pages without structured recipe data are rejected.
func NewClipper(textGen llm.TextGenerator) *Clipper {
	return &Clipper{
		http: resty.New().
			SetTimeout(15*time.Second).
			SetHeader("User-Agent", "recipe-companion/1.0 (+recipe clipper)").
			SetHeader("Accept", "text/html,application/xhtml+xml"),
		textGen: textGen,
	}
}

// IsURL reports whether s is an absolute http(s) URL.
func IsURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ClipURL fetches rawURL and extracts its recipe. Structured schema.org
// data wins; the LLM only sees the page when there is none.
func (c *Clipper) ClipURL(ctx context.Context, rawURL string) (Draft, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !IsURL(rawURL) {
		return Draft{}, fmt.Errorf("not an http(s) URL: %q", rawURL)
	}

	doc, err := c.fetch(ctx, rawURL)
	if err != nil {
		return Draft{}, fmt.Errorf("failed to fetch content: %w", err)
	}

	if draft, ok := FromJSONLD(doc); ok {
		draft.SourceURL = rawURL
		log.Debug().Str("url", rawURL).Str("name", draft.Recipe.Name).Msg("Recipe clipped from JSON-LD")
		return draft, nil
	}

	if c.textGen == nil {
		return Draft{}, ErrNoRecipe
	}
	draft, err := c.extractWithLLM(ctx, cleanText(doc))
	if err != nil {
		return Draft{}, err
	}
	draft.SourceURL = rawURL
	log.Debug().Str("url", rawURL).Str("name", draft.Recipe.Name).Msg("Recipe clipped with LLM")
	return draft, nil
}

func (c *Clipper) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	resp, err := c.http.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode())
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
}

// cleanText returns the visible body text with layout noise removed.
func cleanText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, iframe, noscript, aside, .ads, #ads").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(text) > maxPromptText {
		text = text[:maxPromptText]
	}
	return text
}

// --------------------------------------------------------------------
// schema.org JSON-LD
// --------------------------------------------------------------------

// FromJSONLD looks for a schema.org Recipe in the page's JSON-LD blocks.
func FromJSONLD(doc *goquery.Document) (Draft, bool) {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			log.Debug().Err(err).Msg("Skipping malformed JSON-LD block")
			return true
		}
		found = findRecipe(v)
		return found == nil
	})
	if found == nil {
		return Draft{}, false
	}
	return draftFromSchema(found), true
}

func findRecipe(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if r := findRecipe(item); r != nil {
				return r
			}
		}
	case map[string]any:
		if isRecipeType(t["@type"]) {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findRecipe(graph)
		}
	}
	return nil
}

func isRecipeType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Recipe"
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

func draftFromSchema(m map[string]any) Draft {
	r := recipe.Recipe{
		Name:        text(m["name"]),
		Description: text(m["description"]),
		Steps:       instructions(m["recipeInstructions"]),
		PrepTimeMin: DurationMinutes(text(m["prepTime"])),
		CookTimeMin: DurationMinutes(text(m["cookTime"])),
		Servings:    servings(m["recipeYield"]),
		ImageURL:    image(m["image"]),
	}
	if r.PrepTimeMin == 0 && r.CookTimeMin == 0 {
		r.CookTimeMin = DurationMinutes(text(m["totalTime"]))
	}
	for _, c := range stringList(m["recipeCategory"]) {
		if mt, ok := mealTypeFor(c); ok && !containsMeal(r.MealTypes, mt) {
			r.MealTypes = append(r.MealTypes, mt)
		}
	}
	for _, c := range stringList(m["recipeCuisine"]) {
		if fo, ok := originFor(c); ok {
			r.FoodOrigins = append(r.FoodOrigins, fo)
		}
	}

	var lines []string
	for _, l := range stringList(m["recipeIngredient"]) {
		if l = text(l); l != "" {
			lines = append(lines, l)
		}
	}
	return Draft{Recipe: r, IngredientLines: lines}
}

func text(v any) string {
	s, _ := v.(string)
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// stringList accepts a string, a list of strings or a comma separated string.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func instructions(v any) []string {
	var steps []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			for _, line := range strings.Split(t, "\n") {
				if s := text(line); s != "" {
					steps = append(steps, s)
				}
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		case map[string]any:
			if list, ok := t["itemListElement"]; ok {
				walk(list)
				return
			}
			if s := text(t["text"]); s != "" {
				steps = append(steps, s)
			} else if s := text(t["name"]); s != "" {
				steps = append(steps, s)
			}
		}
	}
	walk(v)
	return steps
}

var firstNumber = regexp.MustCompile(`\d+`)

func servings(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(firstNumber.FindString(t))
		return n
	case []any:
		for _, item := range t {
			if n := servings(item); n > 0 {
				return n
			}
		}
	}
	return 0
}

func image(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s := image(item); s != "" {
				return s
			}
		}
	case map[string]any:
		return text(t["url"])
	}
	return ""
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// DurationMinutes converts an ISO-8601 duration such as "PT1H30M" to
// whole minutes. Unparseable input yields 0.
func DurationMinutes(s string) int {
	m := isoDuration.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0
	}
	n := func(i int) int {
		v, _ := strconv.Atoi(m[i])
		return v
	}
	total := n(1)*24*60 + n(2)*60 + n(3)
	if n(4) >= 30 {
		total++
	}
	return total
}

func mealTypeFor(category string) (recipe.MealType, bool) {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "breakfast"), strings.Contains(c, "brunch"):
		return recipe.Breakfast, true
	case strings.Contains(c, "lunch"):
		return recipe.Lunch, true
	case strings.Contains(c, "dinner"), strings.Contains(c, "main"), strings.Contains(c, "supper"):
		return recipe.Dinner, true
	}
	return "", false
}

func containsMeal(list []recipe.MealType, mt recipe.MealType) bool {
	for _, m := range list {
		if m == mt {
			return true
		}
	}
	return false
}

var cuisineAliases = map[string]recipe.FoodOrigin{
	"american": recipe.USA,
	"us":       recipe.USA,
	"chinese":  recipe.Chinese,
	"thai":     recipe.Thai,
}

func originFor(cuisine string) (recipe.FoodOrigin, bool) {
	c := strings.ToLower(strings.TrimSpace(cuisine))
	if fo, ok := cuisineAliases[c]; ok {
		return fo, true
	}
	fo, err := recipe.ParseFoodOrigin(c)
	return fo, err == nil
}

// --------------------------------------------------------------------
// LLM fallback
// --------------------------------------------------------------------

type extractedRecipe struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	PrepTimeMin int      `json:"prepTimeMin"`
	CookTimeMin int      `json:"cookTimeMin"`
	Servings    int      `json:"servings"`
}

func (c *Clipper) extractWithLLM(ctx context.Context, content string) (Draft, error) {
	if content == "" {
		return Draft{}, ErrNoRecipe
	}
	prompt := fmt.Sprintf(`
You are a recipe extraction expert. Extract the recipe from the following web page text.
Return the result strictly as a JSON object with this structure:
{
  "name": "Recipe name",
  "description": "One sentence description",
  "ingredients": ["200 g flour", "2 eggs", ...],
  "steps": ["Step 1 description", "Step 2 description", ...],
  "prepTimeMin": 10,
  "cookTimeMin": 20,
  "servings": 4
}
If the page contains no recipe, return {"name": ""}.

Page text:
%s
`, content)

	resp, err := c.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return Draft{}, fmt.Errorf("ai extraction failed: %w", err)
	}

	var extracted extractedRecipe
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp.Content)), &extracted); err != nil {
		return Draft{}, fmt.Errorf("failed to parse AI response: %w", err)
	}
	if strings.TrimSpace(extracted.Name) == "" {
		return Draft{}, ErrNoRecipe
	}

	log.Debug().Int("tokens", resp.Usage.TotalTokens).Str("model", resp.Usage.Model).Msg("LLM extraction finished")
	return Draft{
		Recipe: recipe.Recipe{
			Name:        strings.TrimSpace(extracted.Name),
			Description: strings.TrimSpace(extracted.Description),
			Steps:       extracted.Steps,
			PrepTimeMin: extracted.PrepTimeMin,
			CookTimeMin: extracted.CookTimeMin,
			Servings:    extracted.Servings,
		},
		IngredientLines: extracted.Ingredients,
	}, nil
}
