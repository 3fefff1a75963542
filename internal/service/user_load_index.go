package service

import (
	"errors"
	"fmt"

	"github.com/mautops/docflow-gin/internal/assignment"
	"github.com/mautops/docflow-gin/internal/model"
	"github.com/mautops/docflow-gin/internal/repository"
	"gorm.io/gorm"
)

// UserLoadSnapshot 用户负载快照, 实时计算不持久化
type UserLoadSnapshot struct {
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	TotalDuration int64  `json:"total_duration"` // 秒
}

// UserLoadIndex 用户负载索引
type UserLoadIndex interface {
	Snapshots() ([]UserLoadSnapshot, error)
	Candidates() ([]assignment.Candidate, error)
	GetUser(id string) (*model.UserModel, error)
}

// userLoadIndex 用户负载索引实现
type userLoadIndex struct {
	users    repository.UserDirectory
	sessions repository.SessionStore
}

// NewUserLoadIndex 创建用户负载索引
func NewUserLoadIndex(users repository.UserDirectory, sessions repository.SessionStore) UserLoadIndex {
	return &userLoadIndex{users: users, sessions: sessions}
}

// Snapshots 汇总每个用户的累计会话时长
func (i *userLoadIndex) Snapshots() ([]UserLoadSnapshot, error) {
	users, err := i.users.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	durations, err := i.sessions.TotalDurationByUser()
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate session durations: %w", err)
	}

	snapshots := make([]UserLoadSnapshot, 0, len(users))
	for _, u := range users {
		snapshots = append(snapshots, UserLoadSnapshot{
			UserID:        u.ID,
			Name:          u.Name,
			Role:          u.Role,
			TotalDuration: durations[u.ID],
		})
	}
	return snapshots, nil
}

// Candidates 返回用于指派的候选人列表
func (i *userLoadIndex) Candidates() ([]assignment.Candidate, error) {
	snapshots, err := i.Snapshots()
	if err != nil {
		return nil, err
	}
	candidates := make([]assignment.Candidate, 0, len(snapshots))
	for _, s := range snapshots {
		candidates = append(candidates, assignment.Candidate{
			UserID: s.UserID,
			Name:   s.Name,
			Role:   s.Role,
			Load:   s.TotalDuration,
		})
	}
	return candidates, nil
}

// GetUser 查询用户, 不存在时返回 ErrAssigneeNotFound
func (i *userLoadIndex) GetUser(id string) (*model.UserModel, error) {
	user, err := i.users.GetUser(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, withDetail(ErrAssigneeNotFound, "%s", id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
