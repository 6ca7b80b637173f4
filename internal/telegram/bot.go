package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"recipe-companion/internal/app"
	"recipe-companion/internal/clipper"
	"recipe-companion/internal/config"
	"recipe-companion/internal/metrics"
	"recipe-companion/internal/planner"
	"recipe-companion/internal/recipe"
	"recipe-companion/internal/session"
	"recipe-companion/internal/shopping"
)

const (
	parseMode      = tgbotapi.ModeMarkdown
	messageTimeout = time.Minute
	usageDays      = 7
)

// Service is the set of use cases the bot exposes. *app.App implements it.
type Service interface {
	Day(ctx context.Context, date string) (planner.CalendarItem, error)
	Grocery(ctx context.Context) (shopping.List, error)
	AddGrocery(ctx context.Context, items ...shopping.Item) (shopping.List, error)
	MarkBought(ctx context.Context, name string) (shopping.List, error)
	ImportRecipe(ctx context.Context, url string) (recipe.Recipe, error)
	Usage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
	Health() metrics.SysHealth
}

var _ Service = (*app.App)(nil)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot answers Telegram updates delivered to its webhook.
type Bot struct {
	api     sender
	svc     Service
	allowed map[int64]bool
	wg      sync.WaitGroup
}

// NewBot initializes the Telegram Bot and sets the Webhook when one is
// configured.
func NewBot(cfg *config.Config, svc Service) (*Bot, error) {
	if err := cfg.RequireTelegram(); err != nil {
		return nil, err
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log.Info().Str("account", bot.Self.UserName).Msg("Authorized on Telegram")

	if cfg.TelegramWebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook URL: %w", err)
		}
		resp, err := bot.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		log.Info().Str("description", resp.Description).Msg("Webhook set")
	}
	return newBot(bot, svc, cfg.TelegramAllowedUserIDs), nil
}

func newBot(api sender, svc Service, allowedIDs []int64) *Bot {
	allowed := make(map[int64]bool, len(allowedIDs))
	for _, id := range allowedIDs {
		allowed[id] = true
	}
	return &Bot{api: api, svc: svc, allowed: allowed}
}

// Handler routes /webhook and /health.
func (b *Bot) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/webhook", b.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	return r
}

// Wait blocks until every message in flight has been answered.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Warn().Err(err).Msg("Error parsing update")
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !b.allowed[msg.From.ID] {
		log.Warn().Int64("user_id", msg.From.ID).Str("username", msg.From.UserName).Msg("Unauthorized access attempt")
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.processMessage(msg)
	}()
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()

	text := strings.TrimSpace(msg.Text)
	if clipper.IsURL(text) {
		b.handleClipperRequest(ctx, msg.Chat.ID, text)
		return
	}
	b.send(tgbotapi.NewMessage(msg.Chat.ID, b.respond(ctx, text)))
}

func (b *Bot) handleClipperRequest(ctx context.Context, chatID int64, url string) {
	sent, err := b.send(tgbotapi.NewMessage(chatID, "✂️ *Clipping recipe...*"))
	if err != nil {
		return
	}
	r, err := b.svc.ImportRecipe(ctx, url)
	var text string
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Error clipping recipe")
		text = "❌ *Error clipping recipe:* " + escape(userMessage(err))
	} else {
		text = formatRecipe(r)
	}
	b.send(tgbotapi.NewEditMessageText(chatID, sent.MessageID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		m.ParseMode = parseMode
		c = m
	case tgbotapi.EditMessageTextConfig:
		m.ParseMode = parseMode
		c = m
	}
	sent, err := b.api.Send(c)
	if err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
	return sent, err
}

// parseCommand splits "/day@MyBot 2024-05-01" into "day" and "2024-05-01".
func parseCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, arg, _ := strings.Cut(text[1:], " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

const helpText = `*Recipe companion*
/today - meals planned today
/day YYYY-MM-DD - meals planned that day
/grocery - the grocery list
/add <name> - add a product to the grocery list
/bought <name> - mark a product as bought
/metrics - API usage and health
Send a recipe link to import it.`

// respond runs a command and returns the Markdown reply.
func (b *Bot) respond(ctx context.Context, text string) string {
	cmd, arg := parseCommand(text)
	switch cmd {
	case "today":
		item, err := b.svc.Day(ctx, "")
		if err != nil {
			return failure("loading today", err)
		}
		return formatDay(item)

	case "day":
		if arg == "" {
			return "Usage: /day YYYY-MM-DD"
		}
		item, err := b.svc.Day(ctx, arg)
		if err != nil {
			return failure("loading "+arg, err)
		}
		return formatDay(item)

	case "grocery":
		list, err := b.svc.Grocery(ctx)
		if err != nil {
			return failure("loading the grocery list", err)
		}
		return formatGrocery(list)

	case "add":
		if arg == "" {
			return "Usage: /add <name>"
		}
		list, err := b.svc.AddGrocery(ctx, shopping.Item{IngredientName: arg})
		if err != nil {
			return failure("adding "+arg, err)
		}
		return "➕ Added *" + escape(arg) + "*\n\n" + formatGrocery(list)

	case "bought":
		if arg == "" {
			return "Usage: /bought <name>"
		}
		list, err := b.svc.MarkBought(ctx, arg)
		if errors.Is(err, app.ErrNotOnList) {
			return "🤷 *" + escape(arg) + "* is not on the grocery list."
		}
		if err != nil {
			return failure("updating "+arg, err)
		}
		return "✅ Bought *" + escape(arg) + "*\n\n" + formatGrocery(list)

	case "metrics":
		usage, err := b.svc.Usage(ctx, usageDays)
		if err != nil {
			return failure("fetching metrics", err)
		}
		return formatMetrics(usage, b.svc.Health())

	default:
		return helpText
	}
}

func failure(action string, err error) string {
	log.Error().Err(err).Str("action", action).Msg("Bot command failed")
	return "❌ Error " + escape(action) + ": " + escape(userMessage(err))
}

// userMessage hides transport details behind a short explanation.
func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNoAccessToken), errors.Is(err, session.ErrAuthentication):
		return "the companion is not signed in; run `recipe-companion login` on the server"
	case errors.Is(err, recipe.ErrInvalid), errors.Is(err, shopping.ErrInvalidItem), errors.Is(err, planner.ErrInvalidEvent):
		return err.Error()
	case errors.Is(err, clipper.ErrNoRecipe):
		return "no recipe found on that page"
	}
	return "the recipe service is unavailable, try again later"
}

func escape(s string) string {
	return tgbotapi.EscapeText(parseMode, s)
}

func formatDay(item planner.CalendarItem) string {
	var sb strings.Builder
	sb.WriteString("📅 *" + escape(item.Date) + "*\n\n")
	if len(item.MealEvents) == 0 {
		sb.WriteString("_Nothing planned_\n")
		return sb.String()
	}
	for _, mt := range recipe.MealTypes {
		ev, ok := item.Event(mt)
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("*%s*: %s\n", mealLabel(mt), escape(ev.Label())))
	}
	return sb.String()
}

func mealLabel(mt recipe.MealType) string {
	s := strings.ToLower(string(mt))
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatGrocery(list shopping.List) string {
	var sb strings.Builder
	sb.WriteString("🛒 *Grocery list*\n")
	if len(list.Products) == 0 {
		sb.WriteString("\n_Empty_\n")
		return sb.String()
	}

	groups := list.ByType()
	types := make([]string, 0, len(groups))
	for t := range groups {
		types = append(types, string(t))
	}
	sort.Strings(types)

	for _, t := range types {
		label := t
		if label == "" {
			label = "OTHER"
		}
		sb.WriteString("\n*" + escape(label) + "*\n")
		for _, p := range groups[recipe.IngredientType(t)] {
			mark := "•"
			if p.AlreadyBought {
				mark = "✓"
			}
			line := p.IngredientName
			if p.Quantity != nil && p.Quantity.Value > 0 {
				line += " (" + p.Quantity.String() + ")"
			}
			sb.WriteString(mark + " " + escape(line) + "\n")
		}
	}
	return sb.String()
}

func formatRecipe(r recipe.Recipe) string {
	var sb strings.Builder
	sb.WriteString("✅ *Recipe saved!*\n\n")
	sb.WriteString("*Name:* " + escape(r.Name) + "\n")
	if total := r.TotalTimeMin(); total > 0 {
		sb.WriteString(fmt.Sprintf("*Time:* %d min\n", total))
	}
	sb.WriteString(fmt.Sprintf("*Ingredients:* %d, *Steps:* %d\n", len(r.Ingredients), len(r.Steps)))
	sb.WriteString("*ID:* `" + r.ID + "`")
	return sb.String()
}

func formatMetrics(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent API Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d calls, %d errors, %.0f ms avg\n", d.Date, d.Calls, d.Errors, d.AvgLatencyMS))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", health.Uptime))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))
	return sb.String()
}
