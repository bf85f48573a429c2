package storage

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrUnrecognizedReference 表示引用 URL 无法还原出对象 key
var ErrUnrecognizedReference = errors.New("unrecognized blob reference")

// 早期上传的对象 key 带有 "<uuid>-" 前缀，只出现在 key 或某一级路径的开头
var legacyUUIDPrefix = regexp.MustCompile(`(^|/)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}-`)

// ObjectPath 描述一个音频对象在存储桶中的位置：region/channel/type/date/fileName
type ObjectPath struct {
	Region      string
	Channel     string
	ContentType string
	Date        string
	FileName    string
}

// Key 返回未编码的对象 key，即写入存储时使用的 key
func (p ObjectPath) Key() string {
	return strings.Join([]string{p.Region, p.Channel, p.ContentType, p.Date, p.FileName}, "/")
}

// EscapedKey 返回引用 URL 中使用的编码形式，解码后与 Key 相同
func (p ObjectPath) EscapedKey() string {
	return strings.Join([]string{
		url.PathEscape(p.Region),
		url.PathEscape(p.Channel),
		url.PathEscape(p.ContentType),
		url.PathEscape(p.Date),
		url.PathEscape(p.FileName),
	}, "/")
}

// URLResolver 在对象 key 与对外暴露的引用 URL 之间转换
type URLResolver struct {
	// PublicPrefix 形如 http://minio:9000/bucket/，以 "/" 结尾
	PublicPrefix string
	Bucket       string
}

func NewURLResolver(publicPrefix, bucket string) URLResolver {
	if publicPrefix != "" && !strings.HasSuffix(publicPrefix, "/") {
		publicPrefix += "/"
	}
	return URLResolver{PublicPrefix: publicPrefix, Bucket: bucket}
}

// ReferenceURL 生成记录中保存的 blobUrl
func (r URLResolver) ReferenceURL(p ObjectPath) string {
	return r.PublicPrefix + p.EscapedKey()
}

// KeyFromReference 从 blobUrl 还原对象 key。
// 依次去掉公开前缀（或 s3://bucket/、开头的 "/"）、历史 uuid 前缀和首尾斜杠；
// 若什么都没有去掉则认为格式无法识别。
func (r URLResolver) KeyFromReference(ref string) (string, error) {
	key := ref
	switch {
	case r.PublicPrefix != "" && strings.HasPrefix(key, r.PublicPrefix):
		key = strings.TrimPrefix(key, r.PublicPrefix)
	case r.Bucket != "" && strings.HasPrefix(key, "s3://"+r.Bucket+"/"):
		key = strings.TrimPrefix(key, "s3://"+r.Bucket+"/")
	case strings.HasPrefix(key, "/"):
		key = strings.TrimPrefix(key, "/")
	}

	if loc := legacyUUIDPrefix.FindStringSubmatchIndex(key); loc != nil {
		// 保留分组匹配到的 "/"
		key = key[:loc[3]] + key[loc[1]:]
	}
	key = strings.Trim(key, "/")

	if key == "" || key == ref {
		return "", fmt.Errorf("%w: %s", ErrUnrecognizedReference, ref)
	}

	decoded, err := url.PathUnescape(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnrecognizedReference, err)
	}
	return decoded, nil
}
