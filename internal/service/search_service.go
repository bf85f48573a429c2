package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"indi-radio-go/pkg/es"
	"indi-radio-go/pkg/log"
)

const (
	defaultSearchSize = 20
	maxSearchSize     = 100
)

// ErrSearchUnavailable 表示未配置目录索引
var ErrSearchUnavailable = errors.New("catalog search is not enabled")

// CatalogSearcher 是目录索引的查询能力，由 es.CatalogIndex 实现
type CatalogSearcher interface {
	Search(ctx context.Context, q string, size int) ([]es.CatalogHit, error)
}

// SearchService 接口定义了跨节目和音频的全文搜索
type SearchService interface {
	Search(ctx context.Context, query string, size int) ([]es.CatalogHit, error)
}

type searchService struct {
	searcher CatalogSearcher
}

// NewSearchService 创建搜索服务，searcher 为 nil 时所有搜索返回 ErrSearchUnavailable
func NewSearchService(searcher CatalogSearcher) SearchService {
	return &searchService{searcher: searcher}
}

func (s *searchService) Search(ctx context.Context, query string, size int) ([]es.CatalogHit, error) {
	if s.searcher == nil {
		return nil, ErrSearchUnavailable
	}
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil, invalid("Query parameter q is required")
	}
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}

	hits, err := s.searcher.Search(ctx, query, size)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	log.Infof("[SearchService] 目录搜索: query='%s', hits=%d", query, len(hits))
	return hits, nil
}
