// Package database 负责初始化 MySQL 与 Redis 连接。
package database

import (
	"fmt"
	"time"

	"fortec-chat-go/internal/model"
	"fortec-chat-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接，并迁移用量账本相关的表。
func InitMySQL(dsn string) error {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间

	if err := Migrate(db); err != nil {
		return err
	}

	DB = db
	log.Info("MySQL database connected successfully")
	return nil
}

// Migrate 创建或更新用量账本相关的表。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.UsageCounter{},
		&model.ModelUsageStat{},
		&model.ChatHistory{},
		&model.SearchHistory{},
	); err != nil {
		return fmt.Errorf("failed to migrate ledger tables: %w", err)
	}
	return nil
}
