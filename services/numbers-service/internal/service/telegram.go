package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	botmodels "github.com/go-telegram/bot/models"

	"github.com/vanityline/vanityline/pkg/logger"
	"github.com/vanityline/vanityline/pkg/messaging"
)

// AlertSender delivers one-line admin alerts.
type AlertSender interface {
	SendAlert(ctx context.Context, text string) error
}

type TelegramAlerter struct {
	bot    *bot.Bot
	chatID int64
}

func NewTelegramAlerter(token string, chatID int64) (*TelegramAlerter, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &TelegramAlerter{bot: b, chatID: chatID}, nil
}

func (t *TelegramAlerter) SendAlert(ctx context.Context, text string) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: botmodels.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

type LogAlerter struct {
	logger logger.Logger
}

func NewLogAlerter(log logger.Logger) *LogAlerter {
	return &LogAlerter{logger: log}
}

func (a *LogAlerter) SendAlert(ctx context.Context, text string) error {
	a.logger.WithContext(ctx).Info("Admin alert", logger.F("text", text))
	return nil
}

// AdminAlertConsumer forwards lifecycle events from the admin-alerts queue to the admin chat.
type AdminAlertConsumer struct {
	sender AlertSender
	logger logger.Logger
}

func NewAdminAlertConsumer(sender AlertSender, log logger.Logger) *AdminAlertConsumer {
	return &AdminAlertConsumer{sender: sender, logger: log}
}

func (c *AdminAlertConsumer) Start(ctx context.Context, sub messaging.Subscriber) error {
	return sub.Consume(ctx, messaging.AdminAlertsQueue, "numbers-service-admin-alerts", func(body []byte) error {
		return c.Handle(ctx, body)
	})
}

// Handle returns an error only for deliveries that should go to the dead-letter queue.
func (c *AdminAlertConsumer) Handle(ctx context.Context, body []byte) error {
	var event SubscriptionEvent
	msg, err := messaging.DecodeMessage(body, &event)
	if err != nil {
		return err
	}

	text := FormatAdminAlert(event)
	if text == "" {
		c.logger.Debug("Ignoring event without admin alert", logger.F("type", msg.Type))
		return nil
	}
	return c.sender.SendAlert(ctx, text)
}

// FormatAdminAlert returns an HTML one-liner, or "" for events admins are not alerted about.
func FormatAdminAlert(e SubscriptionEvent) string {
	var verb string
	switch e.Event {
	case EventCreated:
		verb = "subscribed to"
	case EventCancelled:
		verb = "cancelled"
	case EventExpired:
		verb = "let expire"
	default:
		return ""
	}

	parts := []string{
		fmt.Sprintf("<b>%s</b>", html.EscapeString(strings.ToUpper(e.Event))),
		fmt.Sprintf("%s %s <code>%s</code>", html.EscapeString(e.UserEmail), verb, html.EscapeString(e.Number)),
		fmt.Sprintf("(%s, ends %s)", e.Plan, e.EndDate.Format("2006-01-02")),
	}
	return strings.Join(parts, " ")
}
