package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"glycemic-guard/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testNotification(contacts ...models.EmergencyContact) models.Notification {
	tier := models.TierReminder
	if len(contacts) > 0 {
		tier = models.TierAllContacts
	}
	return models.Notification{
		AlertID:   "a1",
		UserID:    "u1",
		UserEmail: "pat@example.com",
		Tier:      tier,
		Severity:  models.SeverityEmergency,
		Message:   "EMERGENCY glucose alert for pat@example.com",
		Contacts:  contacts,
	}
}

func TestLogDispatcher(t *testing.T) {
	d := NewLogDispatcher(zap.NewNop())
	assert.Equal(t, models.NotificationSent, d.Send(context.Background(), testNotification()))
}

func TestStreamDispatcher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	d := NewStreamDispatcher(client, "", 1000, zap.NewNop())
	status := d.Send(context.Background(), testNotification(models.EmergencyContact{ID: "c1", TelegramUsername: "mum"}))
	assert.Equal(t, models.NotificationSent, status)

	msgs, err := client.XRange(context.Background(), DefaultEscalationStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got models.Notification
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got))
	assert.Equal(t, "a1", got.AlertID)
	assert.Equal(t, models.TierAllContacts, got.Tier)
	assert.Equal(t, []string{"c1"}, got.ContactIDs())
}

func TestStreamDispatcher_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	d := NewStreamDispatcher(client, "escalations", 0, zap.NewNop())
	assert.Equal(t, models.NotificationFailed, d.Send(context.Background(), testNotification()))
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	topics   []string
	payloads [][]byte
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestMQTTDispatcher(t *testing.T) {
	pub := &fakePublisher{}
	d := NewMQTTDispatcher(pub, "", zap.NewNop())

	status := d.Send(context.Background(), testNotification())
	assert.Equal(t, models.NotificationSent, status)
	require.Len(t, pub.topics, 1)
	assert.Equal(t, "glycemic/escalation/u1/reminder", pub.topics[0])
	assert.Contains(t, string(pub.payloads[0]), `"alert_id":"a1"`)

	pub.err = errors.New("not connected")
	assert.Equal(t, models.NotificationFailed, d.Send(context.Background(), testNotification()))
}

// telegramServer 模拟 Bot API，chat_id 为 @blocked 时返回错误
func telegramServer(t *testing.T, received *[]string) *httptest.Server {
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var body struct {
			ChatID string `json:"chat_id"`
			Text   string `json:"text"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		mu.Lock()
		*received = append(*received, body.ChatID)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if body.ChatID == "@blocked" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"bot was blocked by the user"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
}

func TestTelegramDispatcher(t *testing.T) {
	var received []string
	srv := telegramServer(t, &received)
	defer srv.Close()

	d := NewTelegramDispatcher(TelegramConfig{APIURL: srv.URL, BotToken: "TOKEN"}, NewLogDispatcher(zap.NewNop()), zap.NewNop())

	status := d.Send(context.Background(), testNotification(
		models.EmergencyContact{ID: "c1", TelegramUsername: "mum"},
		models.EmergencyContact{ID: "c2", TelegramUsername: "123456"},
	))
	assert.Equal(t, models.NotificationSent, status)
	assert.Equal(t, []string{"@mum", "123456"}, received)

	status = d.Send(context.Background(), testNotification(
		models.EmergencyContact{ID: "c1", TelegramUsername: "mum"},
		models.EmergencyContact{ID: "c3", TelegramUsername: "blocked"},
	))
	assert.Equal(t, models.NotificationFailed, status)
}

func TestTelegramDispatcher_ReminderUsesFallback(t *testing.T) {
	var received []string
	srv := telegramServer(t, &received)
	defer srv.Close()

	d := NewTelegramDispatcher(TelegramConfig{APIURL: srv.URL, BotToken: "TOKEN"}, NewLogDispatcher(zap.NewNop()), zap.NewNop())
	assert.Equal(t, models.NotificationSent, d.Send(context.Background(), testNotification()))
	assert.Empty(t, received)

	noFallback := NewTelegramDispatcher(TelegramConfig{APIURL: srv.URL, BotToken: "TOKEN"}, nil, zap.NewNop())
	assert.Equal(t, models.NotificationFailed, noFallback.Send(context.Background(), testNotification()))
}

type patientChats struct {
	chats map[string]string
	err   error
}

func (p patientChats) ChatID(_ context.Context, userID string) (string, error) {
	return p.chats[userID], p.err
}

func TestTelegramDispatcher_ReminderReachesPatientChat(t *testing.T) {
	var received []string
	srv := telegramServer(t, &received)
	defer srv.Close()

	d := NewTelegramDispatcher(TelegramConfig{APIURL: srv.URL, BotToken: "TOKEN"}, nil, zap.NewNop()).
		WithPatientChats(patientChats{chats: map[string]string{"u1": "987654"}})

	assert.Equal(t, models.NotificationSent, d.Send(context.Background(), testNotification()))
	assert.Equal(t, []string{"987654"}, received)
}

func TestTelegramDispatcher_ReminderPatientChatFails(t *testing.T) {
	var received []string
	srv := telegramServer(t, &received)
	defer srv.Close()

	d := NewTelegramDispatcher(TelegramConfig{APIURL: srv.URL, BotToken: "TOKEN"}, NewLogDispatcher(zap.NewNop()), zap.NewNop()).
		WithPatientChats(patientChats{chats: map[string]string{"u1": "blocked"}})

	assert.Equal(t, models.NotificationFailed, d.Send(context.Background(), testNotification()))
	assert.Equal(t, []string{"@blocked"}, received)
}

func TestTelegramDispatcher_ReminderWithoutPatientChat(t *testing.T) {
	var received []string
	srv := telegramServer(t, &received)
	defer srv.Close()

	// 未登记
	d := NewTelegramDispatcher(TelegramConfig{APIURL: srv.URL, BotToken: "TOKEN"}, NewLogDispatcher(zap.NewNop()), zap.NewNop()).
		WithPatientChats(patientChats{})
	assert.Equal(t, models.NotificationSent, d.Send(context.Background(), testNotification()))

	// 查询失败
	broken := NewTelegramDispatcher(TelegramConfig{APIURL: srv.URL, BotToken: "TOKEN"}, NewLogDispatcher(zap.NewNop()), zap.NewNop()).
		WithPatientChats(patientChats{err: errors.New("db down")})
	assert.Equal(t, models.NotificationSent, broken.Send(context.Background(), testNotification()))

	assert.Empty(t, received)
}

func TestTelegramDispatcher_Unreachable(t *testing.T) {
	d := NewTelegramDispatcher(TelegramConfig{APIURL: "http://127.0.0.1:1", BotToken: "TOKEN"}, nil, zap.NewNop())
	status := d.Send(context.Background(), testNotification(models.EmergencyContact{ID: "c1", TelegramUsername: "mum"}))
	assert.Equal(t, models.NotificationFailed, status)
}

func TestChatID(t *testing.T) {
	assert.Equal(t, "@mum", ChatID("mum"))
	assert.Equal(t, "@mum", ChatID("@mum"))
	assert.Equal(t, "987654", ChatID(" 987654 "))
	assert.Equal(t, "-100123", ChatID("-100123"))
	assert.Equal(t, "", ChatID(""))
}

func TestNew(t *testing.T) {
	logger := zap.NewNop()

	d, err := New("", Options{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &LogDispatcher{}, d)

	_, err = New(ChannelRedis, Options{}, logger)
	assert.Error(t, err)

	d, err = New("MQTT", Options{MQTT: &fakePublisher{}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MQTTDispatcher{}, d)

	_, err = New(ChannelTelegram, Options{}, logger)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bot token"))

	d, err = New(ChannelTelegram, Options{Telegram: TelegramConfig{BotToken: "x"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &TelegramDispatcher{}, d)

	_, err = New("pager", Options{}, logger)
	assert.Error(t, err)
}
