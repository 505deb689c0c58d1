package adapter

import "context"

// Notifier delivers HTML chat messages. Send never panics or returns an
// error; false means the message was not delivered or delivery is disabled.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) bool
	SendAdmin(ctx context.Context, text string) bool
}
