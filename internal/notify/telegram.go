// Package notify delivers digests over Telegram.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"focusflow/internal/model"
)

// API is the part of *tgbotapi.BotAPI the notifier uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type UserLister interface {
	ListWithTelegram(ctx context.Context) ([]model.User, error)
}

type Digester interface {
	DailySummary(ctx context.Context, user model.User, now time.Time) (string, error)
}

// Telegram sends digests to users that registered a chat id and answers
// the few commands the bot understands.
type Telegram struct {
	api    API
	users  UserLister
	digest Digester
	log    *logrus.Entry
	now    func() time.Time
}

// NewBotAPI authorizes a bot token.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

func NewTelegram(api API, users UserLister, digest Digester, log *logrus.Entry) *Telegram {
	return &Telegram{
		api:    api,
		users:  users,
		digest: digest,
		log:    log.WithField("component", "telegram"),
		now:    time.Now,
	}
}

// SendDigests sends a digest to every registered user and returns how many
// were delivered. Per-user failures are logged and skipped.
func (t *Telegram) SendDigests(ctx context.Context) (int, error) {
	users, err := t.users.ListWithTelegram(ctx)
	if err != nil {
		return 0, fmt.Errorf("list digest users: %w", err)
	}

	now := t.now()
	sent := 0
	for _, user := range users {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		default:
		}
		if user.TelegramChatID == nil {
			continue
		}
		log := t.log.WithField("user_id", user.ID)

		text, err := t.digest.DailySummary(ctx, user, now)
		if err != nil {
			log.WithError(err).Warn("build digest")
			continue
		}
		if err := t.sendText(*user.TelegramChatID, text); err != nil {
			log.WithError(err).Warn("send digest")
			continue
		}
		sent++
	}
	t.log.WithField("sent", sent).Info("digests delivered")
	return sent, nil
}

// Listen polls updates until ctx is cancelled.
func (t *Telegram) Listen(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := t.api.GetUpdatesChan(updateConfig)

	t.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		t.api.StopReceivingUpdates()
	}()

	for update := range updates {
		msg := update.Message
		if msg == nil || msg.Chat == nil || !msg.Chat.IsPrivate() || !msg.IsCommand() {
			continue
		}
		if err := t.handleCommand(ctx, msg); err != nil {
			t.log.WithError(err).Warn("handle command")
		}
	}
	return nil
}

func (t *Telegram) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "help":
		text := fmt.Sprintf(
			"👋 Your chat id is <code>%d</code>.\n"+
				"Save it in your FocusFlow profile to receive digests.\n\n"+
				"• /digest — send the digest now",
			msg.Chat.ID,
		)
		return t.sendText(msg.Chat.ID, text)
	case "digest":
		return t.sendDigestTo(ctx, msg.Chat.ID)
	default:
		return t.sendText(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

func (t *Telegram) sendDigestTo(ctx context.Context, chatID int64) error {
	users, err := t.users.ListWithTelegram(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		if user.TelegramChatID == nil || *user.TelegramChatID != chatID {
			continue
		}
		text, err := t.digest.DailySummary(ctx, user, t.now())
		if err != nil {
			return t.sendText(chatID, "Could not build the digest, try again later.")
		}
		return t.sendText(chatID, text)
	}
	return t.sendText(chatID, "This chat is not linked to an account yet. Send /start for instructions.")
}

func (t *Telegram) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(text))
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := t.api.Send(msg)
	return err
}
