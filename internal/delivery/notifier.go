package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/slack-go/slack"
)

const (
	slackMaxText    = 3500
	telegramMaxText = 4000
)

type SlackNotifier struct {
	channel string
	client  *slack.Client
}

func NewSlackNotifier(botToken, channel string, options ...slack.Option) *SlackNotifier {
	return &SlackNotifier{
		channel: channel,
		client:  slack.New(botToken, options...),
	}
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

func (s *SlackNotifier) Send(ctx context.Context, content string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(truncate(content, slackMaxText), false))
	if err != nil {
		return scoutErrors.Wrap(err, "failed to send Slack message")
	}
	slog.Debug("Slack message sent", "channel", s.channel)
	return nil
}

// TelegramNotifier connects on first use, since creating the bot calls getMe.
type TelegramNotifier struct {
	token    string
	chatID   int64
	endpoint string

	once sync.Once
	bot  *tgbotapi.BotAPI
	err  error
}

func NewTelegramNotifier(token string, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{token: token, chatID: chatID, endpoint: tgbotapi.APIEndpoint}
}

// WithEndpoint points the bot at another API endpoint, in tgbotapi's
// "<base>/bot%s/%s" form.
func (t *TelegramNotifier) WithEndpoint(endpoint string) *TelegramNotifier {
	t.endpoint = endpoint
	return t
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) Send(ctx context.Context, content string) error {
	t.once.Do(func() {
		t.bot, t.err = tgbotapi.NewBotAPIWithAPIEndpoint(t.token, t.endpoint)
	})
	if t.err != nil {
		return scoutErrors.Wrap(t.err, "failed to connect Telegram bot")
	}

	msg := tgbotapi.NewMessage(t.chatID, truncate(content, telegramMaxText))
	if _, err := t.bot.Send(msg); err != nil {
		return scoutErrors.Wrap(err, "failed to send Telegram message")
	}
	slog.Debug("Telegram message sent", "chat_id", t.chatID)
	return nil
}

// NewNotifiers builds the enabled notifiers.
func NewNotifiers(cfg config.DeliveryConfig) []Notifier {
	var notifiers []Notifier
	if cfg.Slack.Enabled {
		notifiers = append(notifiers, NewSlackNotifier(cfg.Slack.BotToken, cfg.Slack.Channel))
	}
	if cfg.Telegram.Enabled {
		notifiers = append(notifiers, NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	return notifiers
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return fmt.Sprintf("%s…", string(r[:limit]))
}
