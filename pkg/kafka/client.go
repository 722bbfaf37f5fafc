// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fortec-chat-go/internal/config"
	"fortec-chat-go/pkg/log"
	"fortec-chat-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 之后即使处理失败也提交 offset，避免阻塞分区。
const maxAttempts = 3

// UsageHandler 处理一条用量事件，使消费者与账本实现解耦。
type UsageHandler interface {
	Apply(ctx context.Context, event tasks.UsageEvent) error
}

// Producer 发送用量事件。
type Producer struct {
	writer *kafka.Writer
}

func brokerList(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NewProducer 初始化 Kafka 生产者。以用户邮箱为 key，同一用户的事件落在同一分区。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokerList(cfg.Brokers)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// PublishUsage 发送一条用量事件。
func (p *Producer) PublishUsage(ctx context.Context, event tasks.UsageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Email),
		Value: payload,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来把用量事件写入账本，ctx 取消时退出。
// rdb 用来统计失败次数，可以为 nil（此时失败的事件直接提交）。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, handler UsageHandler, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokerList(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}
		handleMessage(ctx, r, m, handler, rdb)
	}
}

type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

func handleMessage(ctx context.Context, r committer, m kafka.Message, handler UsageHandler, rdb *redis.Client) {
	var event tasks.UsageEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		commit(ctx, r, m)
		return
	}

	if err := handler.Apply(ctx, event); err != nil {
		log.Errorw("处理用量事件失败", "eventId", event.EventID, "kind", event.Kind, "error", err)
		if rdb == nil {
			commit(ctx, r, m)
			return
		}
		// 使用 Redis 计数失败次数，达到阈值后提交 offset 终止重试
		attemptsKey := fmt.Sprintf("kafka:attempts:%s", event.EventID)
		attempts, incErr := rdb.Incr(ctx, attemptsKey).Result()
		if incErr != nil {
			// Redis 异常时不提交 offset，让 Kafka 重试
			return
		}
		_ = rdb.Expire(ctx, attemptsKey, 24*time.Hour).Err()
		if attempts >= maxAttempts {
			log.Errorf("用量事件多次失败(>=%d)，提交 offset 终止重试: %s", maxAttempts, event.EventID)
			commit(ctx, r, m)
		}
		return
	}

	if rdb != nil {
		_ = rdb.Del(ctx, fmt.Sprintf("kafka:attempts:%s", event.EventID)).Err()
	}
	commit(ctx, r, m)
}

func commit(ctx context.Context, r committer, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
