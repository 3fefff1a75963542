package statemachine

import (
	"errors"
	"fmt"
)

// WorkflowStatus 工作流状态
type WorkflowStatus string

const (
	WorkflowPending    WorkflowStatus = "pending"
	WorkflowInProgress WorkflowStatus = "in_progress"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowCancelled  WorkflowStatus = "cancelled"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// TaskType 任务类型
type TaskType string

const (
	TaskTypeOperation  TaskType = "operation"
	TaskTypeValidation TaskType = "validation"
	TaskTypeManagement TaskType = "management"
)

// Priority 优先级
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var (
	// ErrInvalidStatus 状态值不在枚举范围内
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidTransition 状态迁移不被允许
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ParseWorkflowStatus 解析工作流状态
func ParseWorkflowStatus(s string) (WorkflowStatus, error) {
	switch WorkflowStatus(s) {
	case WorkflowPending, WorkflowInProgress, WorkflowCompleted, WorkflowCancelled:
		return WorkflowStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ParseTaskStatus 解析任务状态
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case TaskPending, TaskAssigned, TaskInProgress, TaskCompleted, TaskCancelled:
		return TaskStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ParseTaskType 解析任务类型
func ParseTaskType(s string) (TaskType, bool) {
	switch TaskType(s) {
	case TaskTypeOperation, TaskTypeValidation, TaskTypeManagement:
		return TaskType(s), true
	}
	return "", false
}

// ParsePriority 解析优先级, 空值视为 medium
func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case "":
		return PriorityMedium, true
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), true
	}
	return "", false
}

// IsTerminal 判断工作流状态是否为终态
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowCompleted || s == WorkflowCancelled
}

// IsTerminal 判断任务状态是否为终态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}
