// Package storage 封装音频文件所在的对象存储（MinIO）以及对象 key 与引用 URL 的互相转换。
package storage

import (
	"context"
	"fmt"
	"io"

	"indi-radio-go/internal/config"
	"indi-radio-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient 是全局的 MinIO 客户端实例
var MinioClient *minio.Client

// BlobStore 是摄取流程依赖的最小对象存储能力
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// InitMinIO 初始化 MinIO 客户端并确保存储桶存在
func InitMinIO(cfg config.MinIOConfig) {
	var err error
	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}
	log.Info("MinIO 客户端初始化成功")

	ctx := context.Background()
	exists, err := MinioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}
	if exists {
		log.Infof("存储桶 '%s' 已存在", cfg.BucketName)
		return
	}

	log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
	if err := MinioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
		log.Fatal("创建 MinIO 存储桶失败", err)
	}
	log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
}

// MinIOStore 在单个存储桶上实现 BlobStore
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(client *minio.Client, bucket string) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket}
}

func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}
