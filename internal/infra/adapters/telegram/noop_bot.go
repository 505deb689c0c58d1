package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-storefront/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier is used when no bot token is configured. It logs the message
// at debug level and reports it as not delivered.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	l := logger.With().Str("component", "noop_notifier").Logger()
	return &NoopNotifier{log: &l}
}

func (b *NoopNotifier) Send(ctx context.Context, chatID int64, text string) bool {
	b.log.Debug().Int64("chat_id", chatID).Str("text", text).Msg("notifications disabled")
	return false
}

func (b *NoopNotifier) SendAdmin(ctx context.Context, text string) bool {
	b.log.Debug().Str("text", text).Msg("admin notifications disabled")
	return false
}
