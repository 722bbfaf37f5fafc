package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"fortec-chat-go/internal/model"
	"fortec-chat-go/internal/repository"
	"fortec-chat-go/pkg/identity"
	"fortec-chat-go/pkg/log"
)

// 没有任何模型用量时展示的占位行。
var placeholderModels = []string{"Mistral Small 3.1 24B", "LLaMA-3 70B", "OpenAI GPT-4.1"}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatCost(c float64) string {
	return fmt.Sprintf("%.2f", c)
}

// successRate 在没有请求时为 100。
func successRate(rec *model.UsageRecord) int {
	if rec.TotalRequests == 0 {
		return 100
	}
	return int(math.Round(100 * float64(rec.SuccessfulRequests) / float64(rec.TotalRequests)))
}

// percentages 按最大余数法分配百分比，非零时总和恰好为 100，全零时都为 0。
func percentages(requests []int64) []int {
	out := make([]int, len(requests))
	var sum int64
	for _, r := range requests {
		sum += r
	}
	if sum == 0 {
		return out
	}

	type remainder struct {
		idx  int
		frac float64
	}
	rems := make([]remainder, len(requests))
	assigned := 0
	for i, r := range requests {
		exact := 100 * float64(r) / float64(sum)
		out[i] = int(math.Floor(exact))
		assigned += out[i]
		rems[i] = remainder{idx: i, frac: exact - math.Floor(exact)}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for i := 0; assigned < 100 && i < len(rems); i++ {
		out[rems[i].idx]++
		assigned++
	}
	return out
}

// buildSnapshot 把用量记录展开成看板结构。
func buildSnapshot(uid, email string, user *model.UserProfile, rec *model.UsageRecord) *model.DashboardView {
	view := &model.DashboardView{
		User: model.DashboardUser{UID: uid, Email: email, Name: identity.DisplayName(email), Plan: "free"},
	}
	if user != nil {
		view.User.Name = user.Name
		view.User.Plan = user.Plan
		view.User.MemberSince = formatTime(user.CreatedAt)
		view.User.LastPlanChange = formatTime(user.LastPlanChange)
		view.User.TotalPayments = user.TotalPayments
	}
	if rec == nil {
		rec = &model.UsageRecord{}
	}

	view.Usage = model.DashboardUsage{
		TotalRequests:   rec.TotalRequests,
		ImagesGenerated: rec.ImagesGenerated,
		InputTokens:     rec.InputTokens,
		OutputTokens:    rec.OutputTokens,
		TotalTokens:     rec.InputTokens + rec.OutputTokens,
		SuccessRate:     successRate(rec),
		EstimatedCost:   formatCost(rec.EstimatedCost),
		LastUpdated:     formatTime(rec.LastUpdated),
	}

	if len(rec.ModelUsage) == 0 {
		view.ModelUsage = make([]model.ModelUsageRow, 0, len(placeholderModels))
		for _, name := range placeholderModels {
			view.ModelUsage = append(view.ModelUsage, model.ModelUsageRow{Name: name, Cost: formatCost(0)})
		}
		return view
	}

	rows := make([]model.ModelUsageRow, 0, len(rec.ModelUsage))
	for name, mu := range rec.ModelUsage {
		rows = append(rows, model.ModelUsageRow{
			Name:         name,
			Requests:     mu.Requests,
			InputTokens:  mu.InputTokens,
			OutputTokens: mu.OutputTokens,
			TotalTokens:  mu.InputTokens + mu.OutputTokens,
			Cost:         formatCost(mu.Cost),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Requests != rows[j].Requests {
			return rows[i].Requests > rows[j].Requests
		}
		return rows[i].Name < rows[j].Name
	})
	requests := make([]int64, len(rows))
	for i, r := range rows {
		requests[i] = r.Requests
	}
	for i, p := range percentages(requests) {
		rows[i].Percentage = p
	}
	view.ModelUsage = rows
	return view
}

// zeroSnapshot 是读取失败时返回的快照。
func zeroSnapshot(uid, email string) *model.DashboardView {
	return buildSnapshot(uid, email, nil, nil)
}

// DashboardService 在账本前加了一层按用户的短时缓存。
type DashboardService interface {
	// Snapshot 返回用户的看板；force 为 true 时跳过缓存并刷新。
	Snapshot(ctx context.Context, email string, force bool) *model.DashboardView
}

type dashboardService struct {
	ledger UsageLedger
	cache  repository.SnapshotCache
}

// NewDashboardService 创建一个新的 DashboardService 实例。
func NewDashboardService(ledger UsageLedger, cache repository.SnapshotCache) DashboardService {
	return &dashboardService{ledger: ledger, cache: cache}
}

func (s *dashboardService) Snapshot(ctx context.Context, email string, force bool) *model.DashboardView {
	uid := identity.UserID(email)
	if !force {
		if view, ok := s.cache.Get(ctx, uid); ok {
			return view
		}
	}
	view, ok := s.ledger.DashboardSnapshot(ctx, email)
	if !ok {
		// 默认快照不进缓存，存储恢复后下一次读取即可看到真实数据
		return view
	}
	if err := s.cache.Set(ctx, uid, view); err != nil {
		log.Warnw("[DashboardService] 写入看板缓存失败", "uid", uid, "error", err)
	}
	return view
}
