package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"sahayak/pkg/bus"
	"sahayak/pkg/channel"
	"sahayak/pkg/config"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const messagePreviewLimit = 240

// Adapter bridges Telegram long-polling updates into inbound events and
// delivers outbound replies. Menus are rendered as inline keyboards; a
// keyboard tap comes back as a callback query and turns into a selection
// event.
type Adapter struct {
	cfg       config.TelegramConfig
	bot       *telego.Bot
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs the adapter.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return &Adapter{
		cfg:       cfg,
		bot:       bot,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in events and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts long polling and forwards updates to the intake. It blocks
// until the context is canceled or polling fails.
func (a *Adapter) Run(ctx context.Context, intake channel.Intake) error {
	if intake == nil {
		return errors.New("intake is required")
	}

	updates, err := a.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}
			a.handleUpdate(ctx, intake, update)
		}
	}
}

func (a *Adapter) handleUpdate(ctx context.Context, intake channel.Intake, update telego.Update) {
	event, ack, ok := a.parseUpdate(update)
	if !ok {
		return
	}

	if !a.senderAllowed(event.SenderID) {
		a.log.Debug("Ignoring update from unauthorized sender", "sender_id", event.SenderID)
		return
	}

	a.log.Info("Received update", "event_id", event.EventID, "kind", string(event.Kind), "sender_id", event.SenderID, "content", previewText(event.Text))

	if err := intake(ctx, event); err != nil {
		a.log.Error("Failed to ingest telegram update", "event_id", event.EventID, "error", err)
		return
	}
	if ack != "" {
		// Callback queries must be answered or the client spins forever.
		if err := a.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: ack}); err != nil {
			a.log.Debug("Failed to answer callback query", "error", err)
		}
	}
}

// parseUpdate maps one Telegram update onto an inbound event. The second
// return is the callback query id to acknowledge, when there is one.
func (a *Adapter) parseUpdate(update telego.Update) (bus.InboundEvent, string, bool) {
	if query := update.CallbackQuery; query != nil {
		selection := strings.TrimSpace(query.Data)
		if selection == "" {
			return bus.InboundEvent{}, "", false
		}
		event := bus.InboundEvent{
			Channel:  channelName,
			EventID:  eventID(update.UpdateID),
			SenderID: strconv.FormatInt(query.From.ID, 10),
			Kind:     bus.KindSelection,
			Text:     selection,
		}
		if msg := query.Message; msg != nil {
			event.ChatID = strconv.FormatInt(msg.GetChat().ID, 10)
		}
		return event, query.ID, true
	}

	message := update.Message
	if message == nil || message.From == nil {
		return bus.InboundEvent{}, "", false
	}

	event := bus.InboundEvent{
		Channel:  channelName,
		EventID:  eventID(update.UpdateID),
		SenderID: strconv.FormatInt(message.From.ID, 10),
		ChatID:   strconv.FormatInt(message.Chat.ID, 10),
	}

	switch {
	case message.Location != nil:
		event.Kind = bus.KindLocationPin
		event.Pin = &bus.LocationPin{
			Latitude:  message.Location.Latitude,
			Longitude: message.Location.Longitude,
		}
		event.Text = strings.TrimSpace(message.Caption)
	case strings.TrimSpace(message.Text) != "":
		event.Kind = bus.KindText
		event.Text = strings.TrimSpace(message.Text)
	default:
		a.log.Debug("Ignoring unsupported update payload", "chat_id", event.ChatID)
		return bus.InboundEvent{}, "", false
	}

	return event, "", true
}

// Send delivers one outbound message. Menus become inline keyboards with the
// row id as callback data.
func (a *Adapter) Send(ctx context.Context, out bus.Outbound) error {
	chatID, err := strconv.ParseInt(firstNonEmpty(out.ChatID, out.Recipient), 10, 64)
	if err != nil {
		return fmt.Errorf("parse telegram chat id: %w", err)
	}

	if !out.IsMenu() {
		if strings.TrimSpace(out.Text) == "" {
			return nil
		}
		_, err := a.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), out.Text))
		return err
	}

	menu := out.Menu
	var keyboard [][]telego.InlineKeyboardButton
	for _, section := range menu.Sections {
		for _, row := range section.Rows {
			keyboard = append(keyboard, []telego.InlineKeyboardButton{
				tu.InlineKeyboardButton(row.Label).WithCallbackData(row.ID),
			})
		}
	}

	params := tu.Message(tu.ID(chatID), menu.Prompt).
		WithReplyMarkup(&telego.InlineKeyboardMarkup{InlineKeyboard: keyboard})
	_, err = a.bot.SendMessage(ctx, params)
	return err
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

func eventID(updateID int) string {
	return "tg-" + strconv.Itoa(updateID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}
