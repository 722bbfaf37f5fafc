package service

import (
	"context"
	"sync"
	"time"

	"fortec-chat-go/internal/model"
	"fortec-chat-go/pkg/identity"
)

type memoryAccount struct {
	profile  model.UserProfile
	record   model.UsageRecord
	chats    []model.ChatHistory
	searches []model.SearchHistory
}

// MemoryLedger 是进程内的账本，进程启动时显式创建并注入；每个实例相互独立。
type MemoryLedger struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]*memoryAccount
}

// NewMemoryLedger 创建一个空的内存账本。
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{now: time.Now, accounts: make(map[string]*memoryAccount)}
}

// account 懒创建用户记录，调用方必须持有锁。
func (l *MemoryLedger) account(email string) *memoryAccount {
	uid := identity.UserID(email)
	acc, ok := l.accounts[uid]
	if !ok {
		now := l.now()
		acc = &memoryAccount{
			profile: model.UserProfile{
				UID:            uid,
				Email:          identity.Normalize(email),
				Name:           identity.DisplayName(identity.Normalize(email)),
				Plan:           "free",
				CreatedAt:      now,
				LastPlanChange: now,
			},
			record: model.UsageRecord{ModelUsage: make(map[string]model.ModelUsage)},
		}
		l.accounts[uid] = acc
	}
	return acc
}

func countOutcome(rec *model.UsageRecord, succeeded bool) {
	rec.TotalRequests++
	if succeeded {
		rec.SuccessfulRequests++
	} else {
		rec.FailedRequests++
	}
}

// RecordChat 实现 UsageRecorder，内存账本不会失败。
func (l *MemoryLedger) RecordChat(_ context.Context, email, modelID, input, output string, succeeded bool) (model.UsageEstimate, error) {
	name := ResolveModelName(modelID)
	est := estimate(name, input, output)

	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.account(email)
	rec := &acc.record
	countOutcome(rec, succeeded)
	rec.InputTokens += int64(est.InputTokens)
	rec.OutputTokens += int64(est.OutputTokens)
	rec.EstimatedCost += est.Cost
	usage := rec.ModelUsage[name]
	usage.Requests++
	usage.InputTokens += int64(est.InputTokens)
	usage.OutputTokens += int64(est.OutputTokens)
	usage.Cost += est.Cost
	rec.ModelUsage[name] = usage
	now := l.now()
	rec.LastUpdated = now

	acc.chats = append(acc.chats, model.ChatHistory{
		UserID:       acc.profile.UID,
		ModelID:      modelID,
		ModelName:    name,
		InputText:    input,
		OutputText:   output,
		InputTokens:  est.InputTokens,
		OutputTokens: est.OutputTokens,
		Cost:         est.Cost,
		IsSuccessful: succeeded,
		CreatedAt:    now,
	})
	return est, nil
}

// RecordSearch 实现 UsageRecorder。
func (l *MemoryLedger) RecordSearch(_ context.Context, email, query string, succeeded bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.account(email)
	countOutcome(&acc.record, succeeded)
	now := l.now()
	acc.record.LastUpdated = now
	acc.searches = append(acc.searches, model.SearchHistory{
		UserID:       acc.profile.UID,
		Query:        query,
		IsSuccessful: succeeded,
		CreatedAt:    now,
	})
	return nil
}

func (l *MemoryLedger) Track(ctx context.Context, email, modelID, input, output string, succeeded bool) model.UsageEstimate {
	est, _ := l.RecordChat(ctx, email, modelID, input, output, succeeded)
	return est
}

func (l *MemoryLedger) TrackSearch(ctx context.Context, email, query string, succeeded bool) {
	_ = l.RecordSearch(ctx, email, query, succeeded)
}

// DashboardSnapshot 对未知用户返回全零快照，不会创建记录。
func (l *MemoryLedger) DashboardSnapshot(_ context.Context, email string) (*model.DashboardView, bool) {
	uid := identity.UserID(email)

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[uid]
	if !ok {
		return zeroSnapshot(uid, identity.Normalize(email)), true
	}
	profile := acc.profile
	rec := acc.record
	rec.ModelUsage = make(map[string]model.ModelUsage, len(acc.record.ModelUsage))
	for k, v := range acc.record.ModelUsage {
		rec.ModelUsage[k] = v
	}
	return buildSnapshot(uid, profile.Email, &profile, &rec), true
}

// ChatHistory 返回用户的聊天历史副本。
func (l *MemoryLedger) ChatHistory(email string) []model.ChatHistory {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[identity.UserID(email)]
	if !ok {
		return nil
	}
	return append([]model.ChatHistory(nil), acc.chats...)
}

// SearchHistory 返回用户的搜索历史副本。
func (l *MemoryLedger) SearchHistory(email string) []model.SearchHistory {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[identity.UserID(email)]
	if !ok {
		return nil
	}
	return append([]model.SearchHistory(nil), acc.searches...)
}
