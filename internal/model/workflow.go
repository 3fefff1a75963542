package model

import (
	"errors"
	"time"
)

// WorkflowModel 工作流数据模型
type WorkflowModel struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)"`
	Name        string     `gorm:"type:varchar(255);not null"`
	Description string     `gorm:"type:text"`
	DueDate     *time.Time `gorm:"index"`
	Status      string     `gorm:"type:varchar(32);not null;default:'pending';index"` // pending/in_progress/completed/cancelled
	Priority    string     `gorm:"type:varchar(16);not null;default:'medium'"`
	CreatedBy   string     `gorm:"type:varchar(64);index"`
	DocumentID  string     `gorm:"type:varchar(64);index"` // 关联文档 ID, 可为空
	CreatedAt   time.Time  `gorm:"not null;index"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

// TableName 指定表名
func (WorkflowModel) TableName() string {
	return "workflows"
}

// Validate 验证工作流模型
func (wm *WorkflowModel) Validate() error {
	if wm.ID == "" {
		return errors.New("workflow ID is required")
	}
	if wm.Name == "" {
		return errors.New("workflow name is required")
	}
	if wm.Status == "" {
		return errors.New("workflow status is required")
	}
	return nil
}
