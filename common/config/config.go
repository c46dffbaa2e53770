package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string // "postgres" 或 "sqlite"
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int

	// SQLitePath 嵌入式部署时使用的数据库文件路径
	SQLitePath string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从环境变量加载数据库配置（prefix 如 "DB"）
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	c.Driver = GetEnv(prefix+"_DRIVER", c.Driver)
	c.Host = GetEnv(prefix+"_HOST", c.Host)
	c.Port = GetEnvInt(prefix+"_PORT", c.Port)
	c.User = GetEnv(prefix+"_USER", c.User)
	c.Password = GetEnv(prefix+"_PASSWORD", c.Password)
	c.Database = GetEnv(prefix+"_NAME", c.Database)
	c.SSLMode = GetEnv(prefix+"_SSLMODE", c.SSLMode)
	c.MaxConns = GetEnvInt(prefix+"_MAX_CONNS", c.MaxConns)
	c.MaxIdle = GetEnvInt(prefix+"_MAX_IDLE", c.MaxIdle)
	c.SQLitePath = GetEnv("SQLITE_PATH", c.SQLitePath)
}

// LoadFromEnv 从环境变量加载Redis配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	c.Addr = GetEnv(prefix+"_ADDR", c.Addr)
	c.Password = GetEnv(prefix+"_PASSWORD", c.Password)
	c.DB = GetEnvInt(prefix+"_DB", c.DB)
}

// LoadFromEnv 从环境变量加载MQTT配置
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	c.Broker = GetEnv(prefix+"_BROKER", c.Broker)
	c.ClientID = GetEnv(prefix+"_CLIENT_ID", c.ClientID)
	c.Username = GetEnv(prefix+"_USERNAME", c.Username)
	c.Password = GetEnv(prefix+"_PASSWORD", c.Password)
	if qos := GetEnvInt(prefix+"_QOS", int(c.QoS)); qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
}

// GetEnv 读取环境变量，不存在时返回默认值
func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetEnvInt 读取整数环境变量，解析失败时返回默认值
func GetEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// GetEnvFloat 读取浮点环境变量
func GetEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// GetEnvSeconds 读取以秒为单位的时长
func GetEnvSeconds(key string, def time.Duration) time.Duration {
	sec := GetEnvInt(key, -1)
	if sec <= 0 {
		return def
	}
	return time.Duration(sec) * time.Second
}
