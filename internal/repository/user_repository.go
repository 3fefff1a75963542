package repository

import (
	"github.com/mautops/docflow-gin/internal/model"
	"gorm.io/gorm"
)

// UserDirectory 用户目录, 由宿主系统维护
type UserDirectory interface {
	ListUsers() ([]*model.UserModel, error)
	GetUser(id string) (*model.UserModel, error)
}

// SessionStore 会话存储, 提供每个用户累计会话时长
type SessionStore interface {
	// TotalDurationByUser 返回 userID -> 累计秒数
	TotalDurationByUser() (map[string]int64, error)
}

// userRepository 用户目录实现
type userRepository struct {
	db *gorm.DB
}

// NewUserDirectory 创建用户目录
func NewUserDirectory(db *gorm.DB) UserDirectory {
	return &userRepository{db: db}
}

// ListUsers 按 ID 升序返回全部用户
func (r *userRepository) ListUsers() ([]*model.UserModel, error) {
	var users []*model.UserModel
	err := r.db.Order("id ASC").Find(&users).Error
	return users, err
}

// GetUser 根据 ID 查找用户
func (r *userRepository) GetUser(id string) (*model.UserModel, error) {
	var user model.UserModel
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// sessionRepository 会话存储实现
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionStore 创建会话存储
func NewSessionStore(db *gorm.DB) SessionStore {
	return &sessionRepository{db: db}
}

// TotalDurationByUser 聚合每个用户的会话时长
func (r *sessionRepository) TotalDurationByUser() (map[string]int64, error) {
	var rows []struct {
		UserID string
		Total  int64
	}
	err := r.db.Model(&model.UserSessionModel{}).
		Select("user_id, COALESCE(SUM(duration), 0) AS total").
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.UserID] = row.Total
	}
	return totals, nil
}
