// Package service 包含了用量账本、看板、搜索网关和补全网关的业务逻辑。
package service

import (
	"context"

	"fortec-chat-go/internal/model"
	"fortec-chat-go/pkg/cost"
)

// UsageLedger 是按用户累计用量的账本。调用方只关心结果，失败一律在内部记录日志后吞掉。
// 用户以邮箱标识，行键由 identity.UserID 派生。
type UsageLedger interface {
	Track(ctx context.Context, email, modelID, input, output string, succeeded bool) model.UsageEstimate
	TrackSearch(ctx context.Context, email, query string, succeeded bool)
	// DashboardSnapshot 总是返回一个完整的快照；读取失败或超时时返回全零快照且 ok 为 false。
	DashboardSnapshot(ctx context.Context, email string) (view *model.DashboardView, ok bool)
}

// UsageRecorder 是账本的严格写入接口，把存储错误返回给调用方（Kafka 消费者据此决定是否重试）。
type UsageRecorder interface {
	RecordChat(ctx context.Context, email, modelID, input, output string, succeeded bool) (model.UsageEstimate, error)
	RecordSearch(ctx context.Context, email, query string, succeeded bool) error
}

// ResolveModelName 把模型 ID 解析为计费展示名：目录 ID → 别名 → 展示名，找不到时原样返回。
func ResolveModelName(modelID string) string {
	if cfg, ok := model.LookupModel(modelID); ok {
		return cost.DisplayName(cfg.Alias)
	}
	return cost.DisplayName(modelID)
}

func estimate(modelName, input, output string) model.UsageEstimate {
	r := cost.Estimate(modelName, input, output)
	return model.UsageEstimate{InputTokens: r.InputTokens, OutputTokens: r.OutputTokens, Cost: r.Cost}
}
