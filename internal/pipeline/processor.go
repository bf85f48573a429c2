// Package pipeline 将目录事件同步到搜索索引。
package pipeline

import (
	"context"
	"fmt"

	"indi-radio-go/pkg/log"
	"indi-radio-go/pkg/tasks"
)

// CatalogIndexer 是索引的写入能力，由 es.CatalogIndex 实现
type CatalogIndexer interface {
	Index(ctx context.Context, id string, doc tasks.CatalogDocument) error
	Delete(ctx context.Context, id string) error
}

// Processor 消费目录事件并更新索引
type Processor struct {
	indexer CatalogIndexer
}

func NewProcessor(indexer CatalogIndexer) *Processor {
	return &Processor{indexer: indexer}
}

// Process 处理一条事件。创建和重命名覆盖写入文档，删除移除文档，未知类型被忽略。
func (p *Processor) Process(ctx context.Context, event tasks.CatalogEvent) error {
	if event.DocumentID == "" {
		return fmt.Errorf("event %s has no document id", event.EventID)
	}

	switch event.Kind {
	case tasks.EventClipCreated, tasks.EventClipRenamed, tasks.EventScheduleCreated:
		if event.Document == nil {
			return fmt.Errorf("event %s (%s) has no document", event.EventID, event.Kind)
		}
		if err := p.indexer.Index(ctx, event.DocumentID, *event.Document); err != nil {
			return fmt.Errorf("index %s: %w", event.DocumentID, err)
		}
		log.Infof("[Processor] 文档已索引: id=%s, kind=%s", event.DocumentID, event.Kind)
	case tasks.EventClipDeleted:
		if err := p.indexer.Delete(ctx, event.DocumentID); err != nil {
			return fmt.Errorf("remove %s: %w", event.DocumentID, err)
		}
		log.Infof("[Processor] 文档已移除: id=%s", event.DocumentID)
	default:
		log.Warnf("[Processor] 忽略未知事件类型: id=%s, kind=%s", event.EventID, event.Kind)
	}
	return nil
}
