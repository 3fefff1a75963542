package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskModel 任务数据模型
type TaskModel struct {
	ID             string                      `gorm:"primaryKey;type:varchar(64)"`
	Title          string                      `gorm:"type:varchar(255);not null"`
	Description    string                      `gorm:"type:text"`
	DueDate        *time.Time                  `gorm:"index"`
	Priority       string                      `gorm:"type:varchar(16);not null;default:'medium'"` // high/medium/low
	Status         string                      `gorm:"type:varchar(32);not null;default:'pending';index"`
	Type           string                      `gorm:"type:varchar(32);not null;default:'operation'"` // operation/validation/management
	WorkflowID     *string                     `gorm:"type:varchar(64);index"`                        // 为空表示独立任务
	AssignedTo     datatypes.JSONSlice[string] `gorm:"not null"`                                      // 指派用户集合
	CreatedBy      string                      `gorm:"type:varchar(64);index"`
	AssignmentNote string                      `gorm:"type:text"`
	FileID         string                      `gorm:"type:varchar(64)"` // 附件引用
	Version        int                         `gorm:"not null;default:1"`
	CreatedAt      time.Time                   `gorm:"not null;index"`
	UpdatedAt      time.Time                   `gorm:"not null;index"`
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "tasks"
}

// Validate 验证任务模型
func (tm *TaskModel) Validate() error {
	if tm.ID == "" {
		return errors.New("task ID is required")
	}
	if tm.Title == "" {
		return errors.New("task title is required")
	}
	if tm.Status == "" {
		return errors.New("task status is required")
	}
	if tm.Status == "assigned" && len(tm.AssignedTo) == 0 {
		return errors.New("assigned task must have at least one assignee")
	}
	return nil
}

// BeforeSave 保证 assigned_to 始终写入 JSON 数组
func (tm *TaskModel) BeforeSave(tx *gorm.DB) error {
	if tm.AssignedTo == nil {
		tm.AssignedTo = datatypes.JSONSlice[string]{}
	}
	return nil
}

// IsUnassigned 判断任务是否尚未指派
func (tm *TaskModel) IsUnassigned() bool {
	return len(tm.AssignedTo) == 0
}

// BelongsTo 判断任务是否属于指定工作流
func (tm *TaskModel) BelongsTo(workflowID string) bool {
	return tm.WorkflowID != nil && *tm.WorkflowID == workflowID
}
