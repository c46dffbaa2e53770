package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"glycemic-guard/internal/escalation"
	"glycemic-guard/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultTelegramAPIURL Telegram Bot API 地址
const DefaultTelegramAPIURL = "https://api.telegram.org"

// TelegramConfig Telegram 发送器配置
type TelegramConfig struct {
	APIURL     string
	BotToken   string
	Timeout    time.Duration
	RetryCount int
}

// telegramResponse Bot API 通用响应
type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// PatientChatDirectory 患者本人的 chat_id 查询，未登记时返回 ""
type PatientChatDirectory interface {
	ChatID(ctx context.Context, userID string) (string, error)
}

// TelegramDispatcher 通过 Telegram Bot API 向紧急联系人发送消息。
// 没有联系人的通知（reminder）发给患者登记的 chat；未登记时交给 fallback。
type TelegramDispatcher struct {
	httpClient *resty.Client
	token      string
	patients   PatientChatDirectory
	fallback   escalation.Dispatcher
	logger     *zap.Logger
}

// NewTelegramDispatcher 创建 Telegram 发送器
func NewTelegramDispatcher(cfg TelegramConfig, fallback escalation.Dispatcher, logger *zap.Logger) *TelegramDispatcher {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultTelegramAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &TelegramDispatcher{
		httpClient: client,
		token:      cfg.BotToken,
		fallback:   fallback,
		logger:     logger,
	}
}

// WithPatientChats 设置患者 chat 查询
func (d *TelegramDispatcher) WithPatientChats(patients PatientChatDirectory) *TelegramDispatcher {
	d.patients = patients
	return d
}

// ChatID 联系人的 chat_id：纯数字直接使用，否则按 @username
func ChatID(username string) string {
	u := strings.TrimSpace(username)
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "@") || strings.HasPrefix(u, "-") {
		return u
	}
	for _, r := range u {
		if r < '0' || r > '9' {
			return "@" + u
		}
	}
	return u
}

// Send 逐个联系人发送；全部成功才返回 sent
func (d *TelegramDispatcher) Send(ctx context.Context, n models.Notification) models.NotificationStatus {
	if len(n.Contacts) == 0 {
		return d.sendToPatient(ctx, n)
	}

	failed := 0
	for _, c := range n.Contacts {
		if err := d.sendMessage(ctx, ChatID(c.TelegramUsername), n.Message); err != nil {
			failed++
			d.logger.Warn("Telegram delivery failed",
				zap.String("alert_id", n.AlertID),
				zap.String("contact_id", c.ID),
				zap.Error(err),
			)
		}
	}

	if failed > 0 {
		return models.NotificationFailed
	}
	return models.NotificationSent
}

func (d *TelegramDispatcher) sendToPatient(ctx context.Context, n models.Notification) models.NotificationStatus {
	if d.patients != nil {
		chatID, err := d.patients.ChatID(ctx, n.UserID)
		if err != nil {
			d.logger.Warn("Failed to look up patient telegram chat",
				zap.String("user_id", n.UserID),
				zap.Error(err),
			)
		}
		if chatID != "" {
			if err := d.sendMessage(ctx, ChatID(chatID), n.Message); err != nil {
				d.logger.Warn("Telegram delivery to patient failed",
					zap.String("alert_id", n.AlertID),
					zap.String("user_id", n.UserID),
					zap.Error(err),
				)
				return models.NotificationFailed
			}
			return models.NotificationSent
		}
	}

	if d.fallback == nil {
		return models.NotificationFailed
	}
	return d.fallback.Send(ctx, n)
}

func (d *TelegramDispatcher) sendMessage(ctx context.Context, chatID, text string) error {
	if chatID == "" {
		return fmt.Errorf("telegram username is required")
	}

	var result telegramResponse
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"chat_id": chatID,
			"text":    text,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + d.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("failed to call telegram api: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram api error: %s (status: %d)", result.Description, resp.StatusCode())
	}
	return nil
}
