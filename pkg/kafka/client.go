// Package kafka 负责目录事件在 Kafka 上的生产与消费。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"indi-radio-go/internal/config"
	"indi-radio-go/pkg/log"
	"indi-radio-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

const maxAttempts = 3

// EventProcessor 处理一条目录事件，消费者与具体的 pipeline 实现解耦
type EventProcessor interface {
	Process(ctx context.Context, event tasks.CatalogEvent) error
}

// Producer 将目录事件写入 Kafka
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建生产者。以 DocumentID 作为消息 key，同一文档的事件落在同一分区，保证先后顺序。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers(cfg.Brokers)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Publish 批量发送事件
func (p *Producer) Publish(ctx context.Context, events ...tasks.CatalogEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.EventID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(e.DocumentID), Value: value})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 消费目录事件直到 ctx 结束。
// 处理失败的事件在原地重试，失败次数记在 Redis 中，达到 3 次后提交 offset 放弃该事件。
// 读取消息失败时退避后继续，不会退出。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor EventProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	h := &retrier{processor: processor, attempts: NewRedisAttemptCounter(rdb), delay: retryDelay}
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	fetchFailures := 0
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			fetchFailures++
			log.Errorf("从 Kafka 读取消息失败(第 %d 次)，稍后重试: %v", fetchFailures, err)
			if !sleep(ctx, retryDelay(min(fetchFailures, 5))) {
				log.Info("Kafka 消费者已停止")
				return
			}
			continue
		}
		fetchFailures = 0

		var event tasks.CatalogEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			commit(ctx, r, m)
			continue
		}

		if err := h.handle(ctx, event); err != nil && ctx.Err() != nil {
			// 退出时未处理完的事件不提交，重启后重新投递
			log.Info("Kafka 消费者已停止")
			return
		}
		commit(ctx, r, m)
	}
}

// AttemptCounter 记录事件的失败次数，进程重启后仍然有效
type AttemptCounter interface {
	Incr(ctx context.Context, eventID string) (int64, error)
	Reset(ctx context.Context, eventID string) error
}

type redisAttemptCounter struct {
	rdb *redis.Client
}

func NewRedisAttemptCounter(rdb *redis.Client) AttemptCounter {
	return &redisAttemptCounter{rdb: rdb}
}

func attemptsKey(eventID string) string {
	return fmt.Sprintf("kafka:attempts:%s", eventID)
}

func (c *redisAttemptCounter) Incr(ctx context.Context, eventID string) (int64, error) {
	key := attemptsKey(eventID)
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = c.rdb.Expire(ctx, key, 24*time.Hour).Err()
	return n, nil
}

func (c *redisAttemptCounter) Reset(ctx context.Context, eventID string) error {
	return c.rdb.Del(ctx, attemptsKey(eventID)).Err()
}

func retryDelay(attempt int) time.Duration {
	return time.Duration(attempt) * 2 * time.Second
}

// retrier 决定一条事件是否处理完毕。handle 返回后调用方提交 offset，
// 除非 ctx 已结束。
type retrier struct {
	processor EventProcessor
	attempts  AttemptCounter
	delay     func(attempt int) time.Duration
}

// handle 处理事件直到成功或累计失败 maxAttempts 次，返回最后一次的错误
func (h *retrier) handle(ctx context.Context, event tasks.CatalogEvent) error {
	tries := 0
	for {
		err := h.processor.Process(ctx, event)
		if err == nil {
			if resetErr := h.attempts.Reset(ctx, event.EventID); resetErr != nil {
				log.Warnf("[Catalog] 清除重试计数失败: id=%s, error: %v", event.EventID, resetErr)
			}
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		tries++
		attempts := int64(tries)
		if n, incErr := h.attempts.Incr(ctx, event.EventID); incErr != nil {
			log.Warnf("[Catalog] 记录重试次数失败，使用本地计数: id=%s, error: %v", event.EventID, incErr)
		} else {
			attempts = max(n, attempts)
		}
		log.Errorf("[Catalog] 处理事件失败(第 %d 次): id=%s kind=%s, error: %v", attempts, event.EventID, event.Kind, err)

		if attempts >= maxAttempts {
			log.Errorf("[Catalog] 事件多次失败(>=%d)，提交 offset 终止重试: id=%s", maxAttempts, event.EventID)
			if resetErr := h.attempts.Reset(ctx, event.EventID); resetErr != nil {
				log.Warnf("[Catalog] 清除重试计数失败: id=%s, error: %v", event.EventID, resetErr)
			}
			return err
		}
		if !sleep(ctx, h.delay(int(attempts))) {
			return err
		}
	}
}

// sleep 等待 d，ctx 先结束时返回 false
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

func brokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
