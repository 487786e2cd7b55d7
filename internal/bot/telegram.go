package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bot-dashboard/internal/service"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// StateReader is the part of the dashboard the bot commands read.
type StateReader interface {
	Symbols() []string
	States(ctx context.Context) []service.KeyedState
}

var newBot = tele.NewBot

// StartTelegramBot starts the command bot and returns an alerter bound to
// alertChat. Without a token nothing is started and both results are nil.
// A zero alertChat still serves commands but the alerter is nil.
func StartTelegramBot(token string, alertChat int64, dashboard StateReader, logger *zap.Logger) (*Alerter, error) {
	if token == "" {
		logger.Info("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil, nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := newBot(pref)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/status", func(c tele.Context) error {
		symbols := dashboard.Symbols()
		args := c.Args()
		if len(args) == 0 {
			return c.Send(fmt.Sprintf("Usage: /status BTCUSDT\nTracked: %s", strings.Join(symbols, ", ")))
		}
		symbol := strings.ToUpper(args[0])
		if !contains(symbols, symbol) {
			return c.Send(fmt.Sprintf("Unknown symbol: %s\nTracked: %s", symbol, strings.Join(symbols, ", ")))
		}
		return c.Send(FormatStatus(symbol, dashboard.States(context.Background()), time.Now()))
	})

	logger.Info("telegram bot started")
	go b.Start()

	if alertChat == 0 {
		return nil, nil
	}
	return NewAlerter(b, tele.ChatID(alertChat), logger), nil
}

// FormatStatus renders the states of one symbol for a chat reply.
func FormatStatus(symbol string, states []service.KeyedState, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(symbol)
	for _, s := range states {
		if s.Key.Symbol != symbol {
			continue
		}
		origin := string(s.Origin)
		if origin == "" {
			origin = "pending"
		}
		fmt.Fprintf(&sb, "\n%s: %s", s.Key.Resource, origin)
		if s.IsStale {
			sb.WriteString(" (stale)")
		}
		if s.Resolved() {
			fmt.Fprintf(&sb, ", %s ago", s.Age(now).Truncate(time.Second))
		}
		if s.Error != "" {
			fmt.Fprintf(&sb, "\n  error: %s", s.Error)
		}
	}
	return sb.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
