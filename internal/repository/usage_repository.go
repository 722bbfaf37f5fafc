package repository

import (
	"context"
	"time"

	"fortec-chat-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatUsage 描述一次需要记账的补全调用。
type ChatUsage struct {
	UserID       string
	Email        string
	ModelID      string
	ModelName    string
	InputText    string
	OutputText   string
	InputTokens  int
	OutputTokens int
	Cost         float64
	Succeeded    bool
}

// UsageRepository 定义了用量账本的持久化操作。所有计数都是原子自增。
type UsageRepository interface {
	RecordChat(ctx context.Context, u ChatUsage) error
	RecordSearch(ctx context.Context, uid, email, query string, succeeded bool) error
	// Load 读取用户资料和用量汇总；用户不存在时返回 gorm.ErrRecordNotFound。
	Load(ctx context.Context, uid string) (*model.User, *model.UsageRecord, error)
}

type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository 创建一个新的 UsageRepository 实例。
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func successColumn(succeeded bool) string {
	if succeeded {
		return "successful_requests"
	}
	return "failed_requests"
}

// RecordChat 在一个事务内更新汇总行、按模型行，并追加一条聊天历史。
func (r *usageRepository) RecordChat(ctx context.Context, u ChatUsage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 懒创建用户和汇总行
		if err := ensureUser(tx, u.UserID, u.Email); err != nil {
			return err
		}

		// 2. 汇总计数自增
		outcome := successColumn(u.Succeeded)
		err := tx.Model(&model.UsageCounter{}).Where("user_id = ?", u.UserID).Updates(map[string]interface{}{
			"total_requests": gorm.Expr("total_requests + ?", 1),
			outcome:          gorm.Expr(outcome+" + ?", 1),
			"input_tokens":   gorm.Expr("input_tokens + ?", u.InputTokens),
			"output_tokens":  gorm.Expr("output_tokens + ?", u.OutputTokens),
			"estimated_cost": gorm.Expr("estimated_cost + ?", u.Cost),
			"last_updated":   time.Now(),
		}).Error
		if err != nil {
			return err
		}

		// 3. 按模型的行：不存在则插入，存在则自增
		stat := model.ModelUsageStat{
			UserID:       u.UserID,
			ModelName:    u.ModelName,
			Requests:     1,
			InputTokens:  int64(u.InputTokens),
			OutputTokens: int64(u.OutputTokens),
			Cost:         u.Cost,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "model_name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"requests":      gorm.Expr("requests + ?", 1),
				"input_tokens":  gorm.Expr("input_tokens + ?", u.InputTokens),
				"output_tokens": gorm.Expr("output_tokens + ?", u.OutputTokens),
				"cost":          gorm.Expr("cost + ?", u.Cost),
			}),
		}).Create(&stat).Error
		if err != nil {
			return err
		}

		// 4. 追加聊天历史
		return tx.Create(&model.ChatHistory{
			UserID:       u.UserID,
			ModelID:      u.ModelID,
			ModelName:    u.ModelName,
			InputText:    u.InputText,
			OutputText:   u.OutputText,
			InputTokens:  u.InputTokens,
			OutputTokens: u.OutputTokens,
			Cost:         u.Cost,
			IsSuccessful: u.Succeeded,
		}).Error
	})
}

// RecordSearch 只更新请求计数（搜索不计费），并追加一条搜索历史。
func (r *usageRepository) RecordSearch(ctx context.Context, uid, email, query string, succeeded bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, uid, email); err != nil {
			return err
		}
		outcome := successColumn(succeeded)
		err := tx.Model(&model.UsageCounter{}).Where("user_id = ?", uid).Updates(map[string]interface{}{
			"total_requests": gorm.Expr("total_requests + ?", 1),
			outcome:          gorm.Expr(outcome+" + ?", 1),
			"last_updated":   time.Now(),
		}).Error
		if err != nil {
			return err
		}
		return tx.Create(&model.SearchHistory{UserID: uid, Query: query, IsSuccessful: succeeded}).Error
	})
}

// Load 读取资料、汇总行和所有按模型行。
func (r *usageRepository) Load(ctx context.Context, uid string) (*model.User, *model.UsageRecord, error) {
	db := r.db.WithContext(ctx)

	var user model.User
	if err := db.First(&user, "id = ?", uid).Error; err != nil {
		return nil, nil, err
	}
	var counter model.UsageCounter
	if err := db.First(&counter, "user_id = ?", uid).Error; err != nil {
		return nil, nil, err
	}
	var stats []model.ModelUsageStat
	if err := db.Where("user_id = ?", uid).Find(&stats).Error; err != nil {
		return nil, nil, err
	}

	record := &model.UsageRecord{
		TotalRequests:      counter.TotalRequests,
		SuccessfulRequests: counter.SuccessfulRequests,
		FailedRequests:     counter.FailedRequests,
		InputTokens:        counter.InputTokens,
		OutputTokens:       counter.OutputTokens,
		ImagesGenerated:    counter.ImagesGenerated,
		EstimatedCost:      counter.EstimatedCost,
		ModelUsage:         make(map[string]model.ModelUsage, len(stats)),
		LastUpdated:        counter.LastUpdated,
	}
	for _, s := range stats {
		record.ModelUsage[s.ModelName] = model.ModelUsage{
			Requests:     s.Requests,
			InputTokens:  s.InputTokens,
			OutputTokens: s.OutputTokens,
			Cost:         s.Cost,
		}
	}
	return &user, record, nil
}
