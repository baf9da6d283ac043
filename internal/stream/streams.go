// Package stream Redis Streams 读写（orphan 上报与对账消费）
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Message Redis Streams 消息
type Message struct {
	Stream string
	ID     string
	Values map[string]interface{}
}

// DecodeJSON 解析 PublishJSON 写入的 data 字段
func (m Message) DecodeJSON(v any) error {
	raw, ok := m.Values["data"].(string)
	if !ok {
		return fmt.Errorf("message %s has no data field", m.ID)
	}
	return json.Unmarshal([]byte(raw), v)
}

// PublishJSON 发布 JSON 消息到 Redis Streams
func PublishJSON(ctx context.Context, client *redis.Client, stream string, data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
}

// EnsureGroup 创建消费者组（stream 不存在时一并创建）；组已存在不报错
func EnsureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// ReadGroup 非阻塞读取
// start 为 ">" 时读取新消息；为 "0" 时读取本消费者尚未 ACK 的消息
func ReadGroup(ctx context.Context, client *redis.Client, stream, group, consumer, start string, count int64) ([]Message, error) {
	streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, start},
		Count:    count,
		Block:    -1, // 负值不发送 BLOCK 参数
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return []Message{}, nil
		}
		return nil, err
	}

	var messages []Message
	for _, s := range streams {
		for _, msg := range s.Messages {
			messages = append(messages, Message{
				Stream: s.Stream,
				ID:     msg.ID,
				Values: msg.Values,
			})
		}
	}
	return messages, nil
}

// Ack 确认消息
func Ack(ctx context.Context, client *redis.Client, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return client.XAck(ctx, stream, group, ids...).Err()
}

// PendingCount 消费者组中尚未 ACK 的消息数
func PendingCount(ctx context.Context, client *redis.Client, stream, group string) (int64, error) {
	p, err := client.XPending(ctx, stream, group).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return p.Count, nil
}
