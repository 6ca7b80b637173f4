package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"recipe-companion/internal/app"
	"recipe-companion/internal/metrics"
	"recipe-companion/internal/planner"
	"recipe-companion/internal/recipe"
	"recipe-companion/internal/session"
	"recipe-companion/internal/shopping"
)

// --- Mocks ---

type MockSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *MockSender) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.sent {
		switch v := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, v.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, v.Text)
		}
	}
	return out
}

type MockService struct {
	day      planner.CalendarItem
	list     shopping.List
	imported recipe.Recipe
	err      error
	asked    []string
}

func (m *MockService) Day(ctx context.Context, date string) (planner.CalendarItem, error) {
	m.asked = append(m.asked, "day:"+date)
	if date != "" {
		m.day.Date = date
	}
	return m.day, m.err
}

func (m *MockService) Grocery(ctx context.Context) (shopping.List, error) {
	return m.list, m.err
}

func (m *MockService) AddGrocery(ctx context.Context, items ...shopping.Item) (shopping.List, error) {
	if m.err != nil {
		return shopping.List{}, m.err
	}
	m.list = m.list.Add(items...)
	return m.list, nil
}

func (m *MockService) MarkBought(ctx context.Context, name string) (shopping.List, error) {
	if m.err != nil {
		return shopping.List{}, m.err
	}
	out, ok := m.list.MarkBought(name)
	if !ok {
		return shopping.List{}, fmt.Errorf("%q: %w", name, app.ErrNotOnList)
	}
	m.list = out
	return out, nil
}

func (m *MockService) ImportRecipe(ctx context.Context, url string) (recipe.Recipe, error) {
	m.asked = append(m.asked, "import:"+url)
	return m.imported, m.err
}

func (m *MockService) Usage(ctx context.Context, days int) ([]metrics.DailyUsage, error) {
	return []metrics.DailyUsage{{Date: "2024-05-01", Calls: 12, Errors: 1, AvgLatencyMS: 42}}, m.err
}

func (m *MockService) Health() metrics.SysHealth {
	return metrics.SysHealth{AllocMB: 3, SysMB: 10, Goroutines: 7, DataDiskSize: "1.0 KB"}
}

// --- Tests ---

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in, cmd, arg string
	}{
		{"/today", "today", ""},
		{"/day 2024-05-01", "day", "2024-05-01"},
		{"/Day@RecipeBot  2024-05-01 ", "day", "2024-05-01"},
		{"/add olive oil", "add", "olive oil"},
		{"hello", "", "hello"},
	}
	for _, c := range cases {
		cmd, arg := parseCommand(c.in)
		if cmd != c.cmd || arg != c.arg {
			t.Errorf("parseCommand(%q) = %q, %q; want %q, %q", c.in, cmd, arg, c.cmd, c.arg)
		}
	}
}

func TestRespond(t *testing.T) {
	ctx := context.Background()

	t.Run("Today", func(t *testing.T) {
		svc := &MockService{day: planner.CalendarItem{Date: "2024-05-01", MealEvents: []planner.MealEvent{
			{MealType: recipe.Dinner, RecipeID: "r1", RecipeName: "Carbonara"},
			{MealType: recipe.Lunch, EventName: "Team_lunch"},
		}}}
		out := newBot(&MockSender{}, svc, nil).respond(ctx, "/today")

		if !strings.Contains(out, "📅 *2024-05-01*") {
			t.Errorf("Missing date header in %q", out)
		}
		lunch := strings.Index(out, "*Lunch*: Team\\_lunch")
		dinner := strings.Index(out, "*Dinner*: Carbonara")
		if lunch < 0 || dinner < 0 || lunch > dinner {
			t.Errorf("Expected lunch before dinner with escaped names, got %q", out)
		}
		if svc.asked[0] != "day:" {
			t.Errorf("Expected today to ask for the empty date, got %v", svc.asked)
		}
	})

	t.Run("DayNeedsDate", func(t *testing.T) {
		out := newBot(&MockSender{}, &MockService{}, nil).respond(ctx, "/day")
		if !strings.HasPrefix(out, "Usage: /day") {
			t.Errorf("Expected usage, got %q", out)
		}
	})

	t.Run("EmptyDay", func(t *testing.T) {
		out := newBot(&MockSender{}, &MockService{}, nil).respond(ctx, "/day 2024-05-02")
		if !strings.Contains(out, "_Nothing planned_") {
			t.Errorf("Expected empty day, got %q", out)
		}
	})

	t.Run("GroceryAddAndBought", func(t *testing.T) {
		svc := &MockService{}
		b := newBot(&MockSender{}, svc, nil)

		out := b.respond(ctx, "/add Milk")
		if !strings.Contains(out, "• Milk") || !strings.Contains(out, "*DAIRY*") {
			t.Errorf("Expected categorized milk, got %q", out)
		}

		out = b.respond(ctx, "/bought milk")
		if !strings.Contains(out, "✓ Milk") {
			t.Errorf("Expected milk bought, got %q", out)
		}

		out = b.respond(ctx, "/bought caviar")
		if !strings.Contains(out, "is not on the grocery list") {
			t.Errorf("Expected not-on-list reply, got %q", out)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		out := newBot(&MockSender{}, &MockService{}, nil).respond(ctx, "/metrics")
		for _, want := range []string{"12 calls, 1 errors, 42 ms avg", "Goroutines: 7", "Disk Data: 1.0 KB"} {
			if !strings.Contains(out, want) {
				t.Errorf("Expected %q in %q", want, out)
			}
		}
	})

	t.Run("NotSignedIn", func(t *testing.T) {
		svc := &MockService{err: session.ErrNoAccessToken}
		out := newBot(&MockSender{}, svc, nil).respond(ctx, "/grocery")
		if !strings.Contains(out, "not signed in") {
			t.Errorf("Expected sign-in hint, got %q", out)
		}
	})

	t.Run("BackendDown", func(t *testing.T) {
		svc := &MockService{err: errors.New("dial tcp: connection refused")}
		out := newBot(&MockSender{}, svc, nil).respond(ctx, "/grocery")
		if strings.Contains(out, "dial tcp") {
			t.Errorf("Transport details must not leak: %q", out)
		}
	})

	t.Run("Help", func(t *testing.T) {
		out := newBot(&MockSender{}, &MockService{}, nil).respond(ctx, "what now?")
		if out != helpText {
			t.Errorf("Expected help text, got %q", out)
		}
	})
}

func postUpdate(t *testing.T, h http.Handler, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestWebhook(t *testing.T) {
	t.Run("AllowedUserGetsReply", func(t *testing.T) {
		sender := &MockSender{}
		b := newBot(sender, &MockService{}, []int64{42})

		code := postUpdate(t, b.Handler(), `{"update_id":1,"message":{"message_id":5,"from":{"id":42,"is_bot":false,"first_name":"Ada"},"chat":{"id":99,"type":"private"},"date":0,"text":"/grocery"}}`)
		b.Wait()

		if code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", code)
		}
		texts := sender.texts()
		if len(texts) != 1 || !strings.Contains(texts[0], "_Empty_") {
			t.Errorf("Expected one empty grocery reply, got %v", texts)
		}
		msg := sender.sent[0].(tgbotapi.MessageConfig)
		if msg.ChatID != 99 || msg.ParseMode != tgbotapi.ModeMarkdown {
			t.Errorf("Unexpected message config %+v", msg)
		}
	})

	t.Run("UnknownUserIsIgnored", func(t *testing.T) {
		sender := &MockSender{}
		b := newBot(sender, &MockService{}, []int64{42})

		code := postUpdate(t, b.Handler(), `{"update_id":1,"message":{"message_id":5,"from":{"id":7},"chat":{"id":7},"text":"/grocery"}}`)
		b.Wait()

		if code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", code)
		}
		if len(sender.texts()) != 0 {
			t.Errorf("Expected no reply, got %v", sender.texts())
		}
	})

	t.Run("LinkIsImported", func(t *testing.T) {
		sender := &MockSender{}
		svc := &MockService{imported: recipe.Recipe{ID: "r9", Name: "Pie", CookTimeMin: 40, Steps: []string{"Bake"}}}
		b := newBot(sender, svc, []int64{42})

		postUpdate(t, b.Handler(), `{"update_id":2,"message":{"message_id":6,"from":{"id":42},"chat":{"id":99},"text":"https://example.com/pie"}}`)
		b.Wait()

		texts := sender.texts()
		if len(texts) != 2 {
			t.Fatalf("Expected status and result messages, got %v", texts)
		}
		if !strings.Contains(texts[1], "*Name:* Pie") || !strings.Contains(texts[1], "*Time:* 40 min") {
			t.Errorf("Unexpected result %q", texts[1])
		}
		if svc.asked[0] != "import:https://example.com/pie" {
			t.Errorf("Expected import call, got %v", svc.asked)
		}
		if _, ok := sender.sent[1].(tgbotapi.EditMessageTextConfig); !ok {
			t.Error("Expected the status message to be edited")
		}
	})

	t.Run("MalformedUpdate", func(t *testing.T) {
		b := newBot(&MockSender{}, &MockService{}, nil)
		if code := postUpdate(t, b.Handler(), "{"); code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", code)
		}
	})

	t.Run("Health", func(t *testing.T) {
		b := newBot(&MockSender{}, &MockService{}, nil)
		rec := httptest.NewRecorder()
		b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
			t.Errorf("Unexpected health response %d %q", rec.Code, rec.Body.String())
		}
	})
}
