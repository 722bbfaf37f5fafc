package model

import "time"

// ChatHistory 是一次补全调用的不可变记录，按用户追加写入。
type ChatHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(64);index;not null" json:"userId"`
	ModelID      string    `gorm:"type:varchar(128);not null" json:"modelId"`
	ModelName    string    `gorm:"type:varchar(128);not null" json:"modelName"`
	InputText    string    `gorm:"type:text" json:"inputText"`
	OutputText   string    `gorm:"type:mediumtext" json:"outputText"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	Cost         float64   `json:"cost"`
	IsSuccessful bool      `json:"isSuccessful"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

func (ChatHistory) TableName() string {
	return "chat_histories"
}

// SearchHistory 是一次网页搜索的不可变记录。
type SearchHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(64);index;not null" json:"userId"`
	Query        string    `gorm:"type:text;not null" json:"query"`
	IsSuccessful bool      `json:"isSuccessful"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

func (SearchHistory) TableName() string {
	return "search_histories"
}
