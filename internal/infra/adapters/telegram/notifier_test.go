//go:build !integration

package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-storefront/internal/config"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	sent     []map[string]string
	failSend bool
	delay    time.Duration
}

func (f *fakeBotAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"shop","username":"shop_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if f.delay > 0 {
				time.Sleep(f.delay)
			}
			_ = r.ParseForm()
			f.mu.Lock()
			f.sent = append(f.sent, map[string]string{
				"chat_id":    r.FormValue("chat_id"),
				"text":       r.FormValue("text"),
				"parse_mode": r.FormValue("parse_mode"),
			})
			f.mu.Unlock()
			if f.failSend {
				_, _ = io.WriteString(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
				return
			}
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestNotifier(t *testing.T, fake *fakeBotAPI, timeout time.Duration) *BotNotifier {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	logger := zerolog.New(io.Discard)
	n, err := NewBotNotifier(config.BotConfig{Token: "TOKEN", AdminChatID: -100500}, timeout, srv.URL+"/bot%s/%s", &logger)
	require.NoError(t, err)
	return n
}

func TestBotNotifier(t *testing.T) {
	t.Run("should send html message", func(t *testing.T) {
		fake := &fakeBotAPI{}
		n := newTestNotifier(t, fake, time.Second)

		ok := n.Send(context.Background(), 42, "<b>hi</b>")

		assert.True(t, ok)
		require.Len(t, fake.sent, 1)
		assert.Equal(t, "42", fake.sent[0]["chat_id"])
		assert.Equal(t, "<b>hi</b>", fake.sent[0]["text"])
		assert.Equal(t, "HTML", fake.sent[0]["parse_mode"])
	})

	t.Run("should route admin messages to admin chat", func(t *testing.T) {
		fake := &fakeBotAPI{}
		n := newTestNotifier(t, fake, time.Second)

		assert.True(t, n.SendAdmin(context.Background(), "sale"))
		require.Len(t, fake.sent, 1)
		assert.Equal(t, "-100500", fake.sent[0]["chat_id"])
	})

	t.Run("should report false when telegram rejects", func(t *testing.T) {
		fake := &fakeBotAPI{failSend: true}
		n := newTestNotifier(t, fake, time.Second)

		assert.False(t, n.Send(context.Background(), 42, "x"))
	})

	t.Run("should give up after timeout", func(t *testing.T) {
		fake := &fakeBotAPI{delay: 300 * time.Millisecond}
		n := newTestNotifier(t, fake, 50*time.Millisecond)

		assert.False(t, n.Send(context.Background(), 42, "slow"))
	})

	t.Run("should not send to empty chat", func(t *testing.T) {
		fake := &fakeBotAPI{}
		n := newTestNotifier(t, fake, time.Second)

		assert.False(t, n.Send(context.Background(), 0, "x"))
		assert.Empty(t, fake.sent)
	})
}

func TestNewBotNotifierRequiresToken(t *testing.T) {
	logger := zerolog.New(io.Discard)
	_, err := NewBotNotifier(config.BotConfig{}, time.Second, "", &logger)
	assert.Error(t, err)
}

func TestNoopNotifier(t *testing.T) {
	logger := zerolog.New(io.Discard)
	n := NewNoopNotifier(&logger)
	assert.False(t, n.Send(context.Background(), 1, "x"))
	assert.False(t, n.SendAdmin(context.Background(), "x"))
}
