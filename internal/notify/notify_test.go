package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSender_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottok-1/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok-1", "chat-9")
	s.baseURL = srv.URL
	s.client = srv.Client()

	require.NoError(t, s.Send(context.Background(), "Order executed", "long BUY BTCUSDT qty 0.5"))
	assert.Equal(t, "chat-9", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Equal(t, "<b>Order executed</b>\nlong BUY BTCUSDT qty 0.5", got["text"])
}

func TestTelegramSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "chat")
	s.baseURL = srv.URL
	s.client = srv.Client()

	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestDiscordSender_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	s.client = srv.Client()

	require.NoError(t, s.Send(context.Background(), "Order failed", "close SELL ETHUSDT: timeout"))
	assert.Equal(t, "tvrelay", got["username"])
	assert.Equal(t, "**Order failed**\nclose SELL ETHUSDT: timeout", got["content"])
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", discordContentLimit+10)
	assert.Len(t, truncate(long, discordContentLimit), discordContentLimit)
	assert.Equal(t, "short", truncate("short", discordContentLimit))
}

// fakeSender records sends and optionally fails.
type fakeSender struct {
	name  string
	sent  []string
	fail  bool
	calls int
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	f.calls++
	if f.fail {
		return io.ErrUnexpectedEOF
	}
	f.sent = append(f.sent, title)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func TestNotifier_EventFilter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{"order_failed"}, logger)

	require.NoError(t, n.Notify(context.Background(), "order_executed", "skip me", ""))
	require.NoError(t, n.Notify(context.Background(), "order_failed", "keep me", ""))
	assert.Equal(t, []string{"keep me"}, s.sent)
}

func TestNotifier_PartialFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bad := &fakeSender{name: "bad", fail: true}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, logger)

	err := n.Notify(context.Background(), "order_failed", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	// The failing sender must not block delivery to the rest.
	assert.Equal(t, 1, good.calls)
	assert.Equal(t, []string{"t"}, good.sent)
}
