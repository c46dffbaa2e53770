package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamOptions 写入 Redis Streams 的参数
type StreamOptions struct {
	Stream string
	// MaxLen > 0 时使用近似裁剪（XADD MAXLEN ~），防止流无限增长
	MaxLen int64
}

// stringify 将字段值转换为 Redis Streams 可存储的字符串
func stringify(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// PublishToStream 发布消息到 Redis Streams
func PublishToStream(ctx context.Context, client *redis.Client, opts StreamOptions, values map[string]interface{}) (string, error) {
	if opts.Stream == "" {
		return "", fmt.Errorf("stream is required")
	}

	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		s, err := stringify(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode field %s: %w", k, err)
		}
		fields[k] = s
	}

	args := &redis.XAddArgs{
		Stream: opts.Stream,
		Values: fields,
	}
	if opts.MaxLen > 0 {
		args.MaxLen = opts.MaxLen
		args.Approx = true
	}

	return client.XAdd(ctx, args).Result()
}

// PublishJSONToStream 发布 JSON 消息到 Redis Streams（data + timestamp 两个字段）
func PublishJSONToStream(ctx context.Context, client *redis.Client, opts StreamOptions, data interface{}) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream payload: %w", err)
	}
	return PublishToStream(ctx, client, opts, map[string]interface{}{
		"data":      string(b),
		"timestamp": time.Now().Unix(),
	})
}
