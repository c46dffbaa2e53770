package notifier

import (
	"fmt"
	"strings"

	commonmqtt "glycemic-guard/common/mqtt"
	"glycemic-guard/internal/escalation"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 通知渠道
const (
	ChannelLog      = "log"
	ChannelRedis    = "redis"
	ChannelMQTT     = "mqtt"
	ChannelTelegram = "telegram"
)

// Options 各渠道所需的依赖和参数，只需填写所选渠道对应的字段
type Options struct {
	Redis        *redis.Client
	StreamName   string
	StreamMaxLen int64

	MQTT        commonmqtt.Publisher
	TopicPrefix string

	Telegram     TelegramConfig
	PatientChats PatientChatDirectory
}

// New 按渠道名创建通知发送器
func New(channel string, opts Options, logger *zap.Logger) (escalation.Dispatcher, error) {
	switch strings.ToLower(strings.TrimSpace(channel)) {
	case "", ChannelLog:
		return NewLogDispatcher(logger), nil
	case ChannelRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("redis client is required for channel %s", ChannelRedis)
		}
		return NewStreamDispatcher(opts.Redis, opts.StreamName, opts.StreamMaxLen, logger), nil
	case ChannelMQTT:
		if opts.MQTT == nil {
			return nil, fmt.Errorf("mqtt publisher is required for channel %s", ChannelMQTT)
		}
		return NewMQTTDispatcher(opts.MQTT, opts.TopicPrefix, logger), nil
	case ChannelTelegram:
		if opts.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram bot token is required for channel %s", ChannelTelegram)
		}
		return NewTelegramDispatcher(opts.Telegram, NewLogDispatcher(logger), logger).
			WithPatientChats(opts.PatientChats), nil
	default:
		return nil, fmt.Errorf("unknown notify channel: %s", channel)
	}
}
