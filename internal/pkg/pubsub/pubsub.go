package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelAnalysisCompleted = "analysis_completed"
)

// CompletedMessage 分析完成事件，推送给仪表盘
type CompletedMessage struct {
	Type       string `json:"type"`
	UserID     int64  `json:"user_id"`
	AnalysisID int64  `json:"analysis_id"`
	Score      *int   `json:"score,omitempty"`
	ModelUsed  string `json:"model_used"`
	Timestamp  string `json:"timestamp"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishCompleted 发布分析完成事件
func (p *Publisher) PublishCompleted(ctx context.Context, msg *CompletedMessage) error {
	msg.Type = "analysis_completed"

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return p.client.Publish(ctx, ChannelAnalysisCompleted, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅分析完成事件，handler 在当前 goroutine 内依次执行，
// ctx 取消后返回
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*CompletedMessage)) error {
	sub := s.client.Subscribe(ctx, ChannelAnalysisCompleted)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg CompletedMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				continue
			}
			handler(&msg)
		}
	}
}
