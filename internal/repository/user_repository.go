// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"time"

	"fortec-chat-go/internal/model"
	"fortec-chat-go/pkg/identity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository 接口定义了用户资料的持久化操作。
type UserRepository interface {
	// Ensure 在用户不存在时创建资料行，已存在则不做任何修改。
	Ensure(ctx context.Context, uid, email string) error
	FindByID(ctx context.Context, uid string) (*model.User, error)
}

// userRepository 是 UserRepository 接口的 GORM 实现。
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Ensure 懒创建用户资料。
func (r *userRepository) Ensure(ctx context.Context, uid, email string) error {
	return ensureUser(r.db.WithContext(ctx), uid, email)
}

// FindByID 根据用户 ID 查找资料，不存在时返回 gorm.ErrRecordNotFound。
func (r *userRepository) FindByID(ctx context.Context, uid string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", uid).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ensureUser 同时保证 users 与 usage_records 两行存在；可在事务中调用。
func ensureUser(tx *gorm.DB, uid, email string) error {
	now := time.Now()
	user := model.User{
		ID:             uid,
		Email:          email,
		Name:           identity.DisplayName(email),
		Plan:           "free",
		LastPlanChange: now,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
		return err
	}
	counter := model.UsageCounter{UserID: uid, LastUpdated: now}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error
}
