// Package es 提供目录索引在 Elasticsearch 上的读写。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"indi-radio-go/internal/config"
	"indi-radio-go/pkg/log"
	"indi-radio-go/pkg/tasks"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

const catalogMapping = `{
	"mappings": {
		"properties": {
			"kind":        { "type": "keyword" },
			"program":     { "type": "text" },
			"fileName":    { "type": "text" },
			"description": { "type": "text" },
			"channel":     { "type": "text", "fields": { "raw": { "type": "keyword" } } },
			"region":      { "type": "text", "fields": { "raw": { "type": "keyword" } } },
			"date":        { "type": "keyword" },
			"start":       { "type": "keyword" },
			"end":         { "type": "keyword" },
			"type":        { "type": "keyword" },
			"url":         { "type": "keyword", "index": false }
		}
	}
}`

// InitES 初始化 Elasticsearch 客户端并确保目录索引存在
func InitES(esCfg config.ElasticsearchConfig) error {
	client, err := NewClient(esCfg)
	if err != nil {
		return err
	}
	ESClient = client
	return NewCatalogIndex(client, esCfg.IndexName).EnsureIndex(context.Background())
}

func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: esCfg.InsecureSkipVerify},
		},
	})
}

// CatalogIndex 是目录索引的读写入口
type CatalogIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewCatalogIndex(client *elasticsearch.Client, index string) *CatalogIndex {
	return &CatalogIndex{client: client, index: index}
}

// CatalogHit 是一条搜索结果
type CatalogHit struct {
	ID       string                `json:"id"`
	Score    float64               `json:"score"`
	Document tasks.CatalogDocument `json:"document"`
}

// EnsureIndex 检查索引是否存在，不存在则按映射创建
func (c *CatalogIndex) EnsureIndex(ctx context.Context) error {
	res, err := c.client.Indices.Exists([]string{c.index}, c.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", c.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", c.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %s: unexpected status %d", c.index, res.StatusCode)
	}

	res, err = c.client.Indices.Create(
		c.index,
		c.client.Indices.Create.WithBody(strings.NewReader(catalogMapping)),
		c.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", c.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", c.index, res.String())
	}
	log.Infof("索引 '%s' 创建成功", c.index)
	return nil
}

// Index 写入或覆盖一篇文档
func (c *CatalogIndex) Index(ctx context.Context, id string, doc tasks.CatalogDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index document %s: %s", id, res.String())
	}
	return nil
}

// Delete 删除一篇文档，文档不存在视为成功
func (c *CatalogIndex) Delete(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{
		Index:      c.index,
		DocumentID: id,
		Refresh:    "true",
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete document %s: %s", id, res.String())
	}
	return nil
}

// Search 在节目名、文件名、描述、频道和地区上做 multi_match 查询
func (c *CatalogIndex) Search(ctx context.Context, q string, size int) ([]CatalogHit, error) {
	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     q,
				"fields":    []string{"program^3", "fileName^2", "description", "channel", "region"},
				"fuzziness": "AUTO",
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := c.client.Search(
		c.client.Search.WithContext(ctx),
		c.client.Search.WithIndex(c.index),
		c.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", c.index, res.String())
	}

	var payload struct {
		Hits struct {
			Hits []struct {
				ID     string                `json:"_id"`
				Score  float64               `json:"_score"`
				Source tasks.CatalogDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]CatalogHit, 0, len(payload.Hits.Hits))
	for _, h := range payload.Hits.Hits {
		hits = append(hits, CatalogHit{ID: h.ID, Score: h.Score, Document: h.Source})
	}
	return hits, nil
}
