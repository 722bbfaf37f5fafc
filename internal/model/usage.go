package model

import "time"

// UsageEstimate 是一次 Track 调用算出的 token 与费用。
type UsageEstimate struct {
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	Cost         float64 `json:"cost"`
}

// ModelUsage 是单个模型（按展示名）的累计用量。
type ModelUsage struct {
	Requests     int64   `json:"requests"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	Cost         float64 `json:"cost"`
}

// UsageRecord 是单个用户的用量累加器。
// 不变量：TotalRequests == SuccessfulRequests + FailedRequests，且只做增量更新。
type UsageRecord struct {
	TotalRequests      int64                 `json:"totalRequests"`
	SuccessfulRequests int64                 `json:"successfulRequests"`
	FailedRequests     int64                 `json:"failedRequests"`
	InputTokens        int64                 `json:"inputTokens"`
	OutputTokens       int64                 `json:"outputTokens"`
	ImagesGenerated    int64                 `json:"imagesGenerated"`
	EstimatedCost      float64               `json:"estimatedCost"`
	ModelUsage         map[string]ModelUsage `json:"modelUsage"`
	LastUpdated        time.Time             `json:"lastUpdated"`
}

// UserProfile 是看板上展示的用户资料。
type UserProfile struct {
	UID            string
	Email          string
	Name           string
	Plan           string
	CreatedAt      time.Time
	LastPlanChange time.Time
	TotalPayments  float64
}

// DashboardView 是 GET /api/dashboard 的返回结构。
type DashboardView struct {
	User       DashboardUser   `json:"user"`
	Usage      DashboardUsage  `json:"usage"`
	ModelUsage []ModelUsageRow `json:"modelUsage"`
}

// DashboardUser 是看板中的用户部分。
type DashboardUser struct {
	UID            string  `json:"uid"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	MemberSince    string  `json:"memberSince"`
	Plan           string  `json:"plan"`
	LastPlanChange string  `json:"lastPlanChange"`
	TotalPayments  float64 `json:"totalPayments"`
}

// DashboardUsage 是看板中的汇总用量。费用以两位小数的字符串返回。
type DashboardUsage struct {
	TotalRequests   int64  `json:"totalRequests"`
	ImagesGenerated int64  `json:"imagesGenerated"`
	InputTokens     int64  `json:"inputTokens"`
	OutputTokens    int64  `json:"outputTokens"`
	TotalTokens     int64  `json:"totalTokens"`
	SuccessRate     int    `json:"successRate"`
	EstimatedCost   string `json:"estimatedCost"`
	LastUpdated     string `json:"lastUpdated"`
}

// ModelUsageRow 是看板中的单个模型行。
type ModelUsageRow struct {
	Name         string `json:"name"`
	Requests     int64  `json:"requests"`
	InputTokens  int64  `json:"inputTokens"`
	OutputTokens int64  `json:"outputTokens"`
	TotalTokens  int64  `json:"totalTokens"`
	Cost         string `json:"cost"`
	Percentage   int    `json:"percentage"`
}
