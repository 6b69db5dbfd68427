package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/analytics"
	"github.com/mico/crypto-sentiment-analysis/internal/coins"
	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"

	tele "gopkg.in/telebot.v3"
)

type Analytics interface {
	Summary(ctx context.Context, q analytics.Query) (*analytics.Summary, error)
	Coin(ctx context.Context, symbol string, q analytics.Query) (*analytics.CoinSummary, error)
}

type Bot struct {
	bot       *tele.Bot
	analytics Analytics
	table     *coins.Table
	chatID    int64
	log       logger.Logger
	timeout   time.Duration
}

// New returns a nil Bot when token is empty.
func New(token string, chatID int64, a Analytics, table *coins.Table, log logger.Logger) (*Bot, error) {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(token) == "" {
		log.Info("telegram bot token not set, skipping bot startup")
		return nil, nil
	}
	tb, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	b := &Bot{bot: tb, analytics: a, table: table, chatID: chatID, log: log, timeout: 15 * time.Second}
	tb.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	tb.Handle("/sentiment", func(c tele.Context) error {
		return c.Send(b.coinReply(context.Background(), c.Args()))
	})
	tb.Handle("/top", func(c tele.Context) error {
		return c.Send(b.topReply(context.Background()))
	})
	return b, nil
}

func (b *Bot) Start() {
	b.log.Info("telegram bot started")
	go b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

// NotifyRun posts a run summary to the configured chat. Without a chat id
// it does nothing.
func (b *Bot) NotifyRun(ctx context.Context, result domain.RunResult) error {
	if b.chatID == 0 || b.bot == nil {
		return nil
	}
	if _, err := b.bot.Send(tele.ChatID(b.chatID), formatRun(result)); err != nil {
		return fmt.Errorf("send run summary: %w", err)
	}
	return nil
}

func (b *Bot) usage() string {
	return fmt.Sprintf("Usage: /sentiment BTC\nSupported: %s", strings.Join(b.table.Symbols(), ", "))
}

func (b *Bot) coinReply(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return b.usage()
	}
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	if !b.table.Has(symbol) {
		return fmt.Sprintf("Unknown symbol: %s\n%s", symbol, b.usage())
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	s, err := b.analytics.Coin(ctx, symbol, analytics.Query{Source: analytics.SourceAll})
	if err != nil {
		b.log.Warn("coin sentiment lookup failed", "symbol", symbol, "err", err)
		return fmt.Sprintf("Error fetching sentiment for %s: %v", symbol, err)
	}
	return formatCoin(s)
}

func (b *Bot) topReply(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	s, err := b.analytics.Summary(ctx, analytics.Query{Source: analytics.SourceAll})
	if err != nil {
		b.log.Warn("summary lookup failed", "err", err)
		return fmt.Sprintf("Error fetching summary: %v", err)
	}
	return formatTop(s)
}

func formatCoin(s *analytics.CoinSummary) string {
	if s.Total == 0 {
		return fmt.Sprintf("%s\nNo mentions yet.", s.Symbol)
	}
	return fmt.Sprintf(
		"%s sentiment (%d mentions)\nPositive: %d\nNeutral: %d\nNegative: %d\nAverage score: %.3f",
		s.Symbol, s.Total, s.Positive, s.Neutral, s.Negative, s.AverageSentiment,
	)
}

func formatTop(s *analytics.Summary) string {
	if s.Total == 0 {
		return "No articles stored yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d articles\n", s.Total)
	fmt.Fprintf(&sb, "Most mentioned: %s\n", joinOrNone(s.TopMentions))
	fmt.Fprintf(&sb, "Most positive: %s\n", joinOrNone(s.TopPositive))
	fmt.Fprintf(&sb, "Most negative: %s", joinOrNone(s.TopNegative))
	return sb.String()
}

func formatRun(r domain.RunResult) string {
	msg := fmt.Sprintf(
		"Ingestion run %s: %s\nPositive %d / Neutral %d / Negative %d",
		r.RunID, r.Summary(), r.Positive, r.Neutral, r.Negative,
	)
	if n := len(r.Errors); n > 0 {
		msg += fmt.Sprintf("\n%d source errors", n)
	}
	return msg
}

func joinOrNone(v []string) string {
	if len(v) == 0 {
		return "none"
	}
	return strings.Join(v, ", ")
}
