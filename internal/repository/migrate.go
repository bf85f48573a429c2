package repository

import (
	"indi-radio-go/internal/model"

	"gorm.io/gorm"
)

// AutoMigrate 创建或更新服务使用的表和索引
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.AudioClip{},
		&model.ScheduleRecord{},
	)
}
