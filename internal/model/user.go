package model

import "time"

// User 是用户资料行，在第一次记账时懒创建。
type User struct {
	ID             string    `gorm:"type:varchar(64);primaryKey" json:"uid"`
	Email          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name           string    `gorm:"type:varchar(255)" json:"name"`
	Plan           string    `gorm:"type:varchar(32);default:'free'" json:"plan"`
	LastPlanChange time.Time `json:"lastPlanChange"`
	TotalPayments  float64   `json:"totalPayments"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// UsageCounter 是 usage_records 表中每个用户的一行汇总计数。
type UsageCounter struct {
	UserID             string    `gorm:"type:varchar(64);primaryKey"`
	TotalRequests      int64     `gorm:"not null;default:0"`
	SuccessfulRequests int64     `gorm:"not null;default:0"`
	FailedRequests     int64     `gorm:"not null;default:0"`
	InputTokens        int64     `gorm:"not null;default:0"`
	OutputTokens       int64     `gorm:"not null;default:0"`
	ImagesGenerated    int64     `gorm:"not null;default:0"`
	EstimatedCost      float64   `gorm:"not null;default:0"`
	LastUpdated        time.Time `gorm:"not null"`
}

func (UsageCounter) TableName() string {
	return "usage_records"
}

// ModelUsageStat 是 model_usages 表中按 (用户, 模型展示名) 聚合的一行。
type ModelUsageStat struct {
	ID           uint    `gorm:"primaryKey"`
	UserID       string  `gorm:"type:varchar(64);uniqueIndex:idx_user_model;not null"`
	ModelName    string  `gorm:"type:varchar(128);uniqueIndex:idx_user_model;not null"`
	Requests     int64   `gorm:"not null;default:0"`
	InputTokens  int64   `gorm:"not null;default:0"`
	OutputTokens int64   `gorm:"not null;default:0"`
	Cost         float64 `gorm:"not null;default:0"`
}

func (ModelUsageStat) TableName() string {
	return "model_usages"
}
