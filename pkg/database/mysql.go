package database

import (
	"time"

	"indi-radio-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// PoolConfig 控制连接池大小与连接寿命
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Open 打开一个 MySQL 连接。TranslateError 打开后，唯一索引冲突会被翻译为 gorm.ErrDuplicatedKey。
func Open(dsn string, pool PoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 10
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 100
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = time.Hour
	}
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	return db, nil
}

// InitMySQL 初始化全局 MySQL 连接，失败时直接退出
func InitMySQL(dsn string, pool PoolConfig) {
	var err error
	DB, err = Open(dsn, pool)
	if err != nil {
		log.Fatal("failed to connect database", err)
	}
	log.Info("MySQL database connected successfully")
}
