package service

import (
	"context"
	"errors"
	"time"

	"fortec-chat-go/internal/model"
	"fortec-chat-go/internal/repository"
	"fortec-chat-go/pkg/identity"
	"fortec-chat-go/pkg/log"

	"gorm.io/gorm"
)

// DurableLedger 是基于 MySQL 的账本，所有计数都由数据库原子自增完成。
type DurableLedger struct {
	repo            repository.UsageRepository
	readTimeout     time.Duration
	snapshotTimeout time.Duration
}

// NewDurableLedger 创建一个新的 DurableLedger。readTimeout 作用于每次写入，snapshotTimeout 作用于看板读取。
func NewDurableLedger(repo repository.UsageRepository, readTimeout, snapshotTimeout time.Duration) *DurableLedger {
	return &DurableLedger{repo: repo, readTimeout: readTimeout, snapshotTimeout: snapshotTimeout}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// RecordChat 实现 UsageRecorder。即使写入失败，也返回算好的 token 和费用。
func (l *DurableLedger) RecordChat(ctx context.Context, email, modelID, input, output string, succeeded bool) (model.UsageEstimate, error) {
	name := ResolveModelName(modelID)
	est := estimate(name, input, output)

	ctx, cancel := withTimeout(ctx, l.readTimeout)
	defer cancel()
	err := l.repo.RecordChat(ctx, repository.ChatUsage{
		UserID:       identity.UserID(email),
		Email:        identity.Normalize(email),
		ModelID:      modelID,
		ModelName:    name,
		InputText:    input,
		OutputText:   output,
		InputTokens:  est.InputTokens,
		OutputTokens: est.OutputTokens,
		Cost:         est.Cost,
		Succeeded:    succeeded,
	})
	return est, err
}

// RecordSearch 实现 UsageRecorder。
func (l *DurableLedger) RecordSearch(ctx context.Context, email, query string, succeeded bool) error {
	ctx, cancel := withTimeout(ctx, l.readTimeout)
	defer cancel()
	return l.repo.RecordSearch(ctx, identity.UserID(email), identity.Normalize(email), query, succeeded)
}

func (l *DurableLedger) Track(ctx context.Context, email, modelID, input, output string, succeeded bool) model.UsageEstimate {
	est, err := l.RecordChat(ctx, email, modelID, input, output, succeeded)
	if err != nil {
		log.Errorw("[UsageLedger] 记录聊天用量失败", "model", modelID, "succeeded", succeeded, "error", err)
	}
	return est
}

func (l *DurableLedger) TrackSearch(ctx context.Context, email, query string, succeeded bool) {
	if err := l.RecordSearch(ctx, email, query, succeeded); err != nil {
		log.Errorw("[UsageLedger] 记录搜索用量失败", "succeeded", succeeded, "error", err)
	}
}

type loadResult struct {
	user *model.User
	rec  *model.UsageRecord
	err  error
}

// DashboardSnapshot 在 snapshotTimeout 内读取；超时、记录不存在或读取出错都返回全零快照。
// 记录不存在是一次成功的读取；超时和读取出错时 ok 为 false。
func (l *DurableLedger) DashboardSnapshot(ctx context.Context, email string) (*model.DashboardView, bool) {
	uid := identity.UserID(email)
	normalized := identity.Normalize(email)

	ctx, cancel := withTimeout(ctx, l.snapshotTimeout)
	defer cancel()

	done := make(chan loadResult, 1)
	go func() {
		user, rec, err := l.repo.Load(ctx, uid)
		done <- loadResult{user: user, rec: rec, err: err}
	}()

	select {
	case <-ctx.Done():
		log.Warnw("[UsageLedger] 读取看板超时，返回默认快照", "uid", uid, "error", ctx.Err())
		return zeroSnapshot(uid, normalized), false
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, gorm.ErrRecordNotFound) {
				return zeroSnapshot(uid, normalized), true
			}
			log.Errorw("[UsageLedger] 读取看板失败，返回默认快照", "uid", uid, "error", res.err)
			return zeroSnapshot(uid, normalized), false
		}
		profile := &model.UserProfile{
			UID:            res.user.ID,
			Email:          res.user.Email,
			Name:           res.user.Name,
			Plan:           res.user.Plan,
			CreatedAt:      res.user.CreatedAt,
			LastPlanChange: res.user.LastPlanChange,
			TotalPayments:  res.user.TotalPayments,
		}
		return buildSnapshot(uid, res.user.Email, profile, res.rec), true
	}
}
