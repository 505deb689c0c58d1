package telegram

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-storefront/internal/config"
	"telegram-storefront/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*BotNotifier)(nil)

// BotNotifier delivers HTML messages through the Bot API. It only sends; update
// polling belongs to the companion bot process.
type BotNotifier struct {
	api         *tgbotapi.BotAPI
	adminChatID int64
	timeout     time.Duration
	log         *zerolog.Logger
}

// NewBotNotifier connects with the bot token and calls getMe once. An empty
// endpoint means the public Bot API; otherwise it uses tgbotapi's "<base>/bot%s/%s" format.
func NewBotNotifier(cfg config.BotConfig, timeout time.Duration, endpoint string, logger *zerolog.Logger) (*BotNotifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("bot token is empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "telegram_notifier").Logger()
	return &BotNotifier{api: api, adminChatID: cfg.AdminChatID, timeout: timeout, log: &l}, nil
}

func (n *BotNotifier) Send(ctx context.Context, chatID int64, text string) bool {
	if chatID == 0 || text == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		_, err := n.api.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			n.log.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
			return false
		}
		return true
	case <-ctx.Done():
		n.log.Warn().Err(ctx.Err()).Int64("chat_id", chatID).Msg("telegram send timed out")
		return false
	}
}

func (n *BotNotifier) SendAdmin(ctx context.Context, text string) bool {
	if n.adminChatID == 0 {
		return false
	}
	return n.Send(ctx, n.adminChatID, text)
}
