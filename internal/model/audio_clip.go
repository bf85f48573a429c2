// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"fmt"
	"time"
)

const (
	ClipTypeAds   = "ads"
	ClipTypeSongs = "songs"
)

// UnknownUploader 是无法解析上传者时写入的用户名
const UnknownUploader = "Unknown"

// AudioClip 对应 audio_clips 表，记录一个已上传的音频文件。
// (file_name, date, content_type, channel, region) 唯一，重复插入由唯一索引拦截。
type AudioClip struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileName           string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_audio_clip_identity,priority:1" json:"fileName"`
	BlobURL            string    `gorm:"type:varchar(1024);not null" json:"blobUrl"`
	ContentType        string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_audio_clip_identity,priority:3" json:"type"`
	Channel            string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_audio_clip_identity,priority:4" json:"channel"`
	Region             string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_audio_clip_identity,priority:5" json:"region"`
	Date               string    `gorm:"type:char(10);not null;uniqueIndex:idx_audio_clip_identity,priority:2" json:"date"`
	UploadedBy         uint      `gorm:"index" json:"uploadedBy"`
	UploadedByUsername *string   `gorm:"type:varchar(255);default:'Unknown'" json:"uploadedByUsername"`
	UploadedAt         time.Time `gorm:"autoCreateTime" json:"uploadedAt"`
}

func (AudioClip) TableName() string {
	return "audio_clips"
}

// Identity 返回用于去重的五元组
func (c AudioClip) Identity() ClipIdentity {
	return ClipIdentity{
		FileName:    c.FileName,
		Date:        c.Date,
		ContentType: c.ContentType,
		Channel:     c.Channel,
		Region:      c.Region,
	}
}

// CatalogID 是该记录在目录索引中的文档 id
func (c AudioClip) CatalogID() string {
	return fmt.Sprintf("clip-%d", c.ID)
}

// ClipIdentity 是音频记录的业务唯一键，可直接作为 map 的 key
type ClipIdentity struct {
	FileName    string
	Date        string
	ContentType string
	Channel     string
	Region      string
}
