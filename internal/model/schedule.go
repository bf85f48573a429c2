package model

import (
	"fmt"
	"time"
)

// ScheduleRecord 对应 radio_data 表，是一条节目排期。
// 批量导入的记录由外部 id 唯一标识；EPG 直接写入的记录 ExternalID 为空，按 (date, channel, start) 定位。
type ScheduleRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"recordId"`
	ExternalID  *string   `gorm:"column:external_id;type:varchar(191);uniqueIndex:idx_radio_data_external_id" json:"id"`
	Program     string    `gorm:"type:varchar(255);not null" json:"program"`
	Channel     string    `gorm:"type:varchar(128);not null;index:idx_radio_data_slot,priority:2" json:"channel"`
	Date        string    `gorm:"type:char(10);not null;index:idx_radio_data_slot,priority:1" json:"date"`
	Start       string    `gorm:"column:start_time;type:varchar(8);not null;index:idx_radio_data_slot,priority:3" json:"start"`
	End         string    `gorm:"column:end_time;type:varchar(8);not null" json:"end"`
	ContentType string    `gorm:"column:content_type;type:varchar(64)" json:"type"`
	Audio       string    `gorm:"type:varchar(1024)" json:"audio"`
	Region      string    `gorm:"type:varchar(128)" json:"region"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (ScheduleRecord) TableName() string {
	return "radio_data"
}

// CatalogID 是该记录在目录索引中的文档 id。有外部 id 时使用外部 id，重复导入不会产生新文档。
func (r ScheduleRecord) CatalogID() string {
	if r.ExternalID != nil && *r.ExternalID != "" {
		return "schedule-ext-" + *r.ExternalID
	}
	return fmt.Sprintf("schedule-%d", r.ID)
}
