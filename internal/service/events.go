package service

import (
	"context"

	"indi-radio-go/pkg/log"
	"indi-radio-go/pkg/tasks"
)

// EventPublisher 发布目录事件，由 Kafka 生产者实现
type EventPublisher interface {
	Publish(ctx context.Context, events ...tasks.CatalogEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...tasks.CatalogEvent) error { return nil }

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// publish 发送事件，失败只记录日志，不影响已经提交的写入
func publish(ctx context.Context, p EventPublisher, events ...tasks.CatalogEvent) {
	if len(events) == 0 {
		return
	}
	if err := p.Publish(ctx, events...); err != nil {
		catalogPublishFailuresTotal.Add(float64(len(events)))
		log.Errorf("[Catalog] 发布 %d 条目录事件失败: %v", len(events), err)
	}
}
