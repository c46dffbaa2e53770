package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"glycemic-guard/common/config"
	"glycemic-guard/internal/decay"

	"github.com/joho/godotenv"
)

// Config 升级服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 通知渠道
	Notify struct {
		Channel      string // log | redis | mqtt | telegram
		Stream       string // redis 渠道写入的 Stream
		StreamMaxLen int64
		TopicPrefix  string // mqtt 渠道主题前缀
	}

	Telegram struct {
		APIURL     string
		BotToken   string
		RetryCount int
	}

	Escalation struct {
		DispatchTimeout time.Duration // 单次通知发送超时，默认 10 秒
	}

	// 周期扫描
	Sweep struct {
		Interval     time.Duration // 默认 60 秒
		Workers      int           // 并发用户数，默认 4
		PublishStats bool          // 每次扫描后把汇总写入 Redis
		StatsStream  string
	}

	// IoB 投影
	Projection struct {
		DefaultDIAHours float64 // 用户未配置时的 DIA，默认 4.0
		DecayModel      string  // parabolic | bilinear
		PeakMinutes     float64 // bilinear 峰值时间，默认 75 分钟
	}

	Log struct {
		Level       string
		Format      string
		ServiceName string
	}
}

// Load 加载配置：先读取当前目录的 .env（存在时），再从环境变量读取
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	cfg.Database.Driver = "postgres"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "glycemic_guard"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5
	cfg.Database.SQLitePath = "data/glycemic-guard.db"
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "glycemic-guard"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Notify.Channel = strings.ToLower(config.GetEnv("NOTIFY_CHANNEL", "log"))
	cfg.Notify.Stream = config.GetEnv("NOTIFY_STREAM", "glycemic:escalations")
	cfg.Notify.StreamMaxLen = int64(config.GetEnvInt("NOTIFY_STREAM_MAXLEN", 10000))
	cfg.Notify.TopicPrefix = config.GetEnv("NOTIFY_TOPIC_PREFIX", "glycemic/escalation")

	cfg.Telegram.APIURL = config.GetEnv("TELEGRAM_API_URL", "https://api.telegram.org")
	cfg.Telegram.BotToken = config.GetEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.Telegram.RetryCount = config.GetEnvInt("TELEGRAM_RETRY_COUNT", 2)

	cfg.Escalation.DispatchTimeout = config.GetEnvSeconds("DISPATCH_TIMEOUT_SEC", 10*time.Second)

	cfg.Sweep.Interval = config.GetEnvSeconds("SWEEP_INTERVAL_SEC", 60*time.Second)
	cfg.Sweep.Workers = config.GetEnvInt("SWEEP_WORKERS", 4)
	cfg.Sweep.PublishStats = getEnvBool("SWEEP_PUBLISH_STATS", false)
	cfg.Sweep.StatsStream = config.GetEnv("SWEEP_STATS_STREAM", "glycemic:sweep:stats")

	cfg.Projection.DefaultDIAHours = config.GetEnvFloat("DEFAULT_DIA_HOURS", decay.DefaultDIAHours)
	cfg.Projection.DecayModel = strings.ToLower(config.GetEnv("DECAY_MODEL", decay.ModelParabolic))
	cfg.Projection.PeakMinutes = config.GetEnvFloat("DECAY_PEAK_MINUTES", 75)

	cfg.Log.Level = config.GetEnv("LOG_LEVEL", "info")
	cfg.Log.Format = config.GetEnv("LOG_FORMAT", "json")
	cfg.Log.ServiceName = config.GetEnv("SERVICE_NAME", "glycemic-guard")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.Database.Driver)
	}
	switch c.Notify.Channel {
	case "log", "redis", "mqtt", "telegram":
	default:
		return fmt.Errorf("unsupported NOTIFY_CHANNEL: %s", c.Notify.Channel)
	}
	if c.Notify.Channel == "telegram" && c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when NOTIFY_CHANNEL=telegram")
	}
	if _, err := decay.NewModel(c.Projection.DecayModel, c.Projection.PeakMinutes); err != nil {
		return err
	}
	if c.Projection.DefaultDIAHours <= 0 {
		return fmt.Errorf("DEFAULT_DIA_HOURS must be positive")
	}
	if c.Sweep.Workers <= 0 {
		return fmt.Errorf("SWEEP_WORKERS must be positive")
	}
	return nil
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
