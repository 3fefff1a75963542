package assignment

import (
	"strings"

	"github.com/mautops/docflow-gin/internal/statemachine"
)

// Target 任务应当指派到的角色池
type Target int

const (
	TargetEmployee Target = iota
	TargetDirector
	TargetManager
)

// String 返回角色池名称, 用于日志和指标标签
func (t Target) String() string {
	switch t {
	case TargetDirector:
		return "director"
	case TargetManager:
		return "manager"
	default:
		return "employee"
	}
}

// ClassifyTitle 根据标题推断任务类型
func ClassifyTitle(title string) statemachine.TaskType {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "validation"):
		return statemachine.TaskTypeValidation
	case strings.Contains(lower, "gestion"):
		return statemachine.TaskTypeManagement
	default:
		return statemachine.TaskTypeOperation
	}
}

// TargetFor 根据标题和类型确定角色池, 标题规则优先
func TargetFor(title string, taskType statemachine.TaskType) Target {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "validation") || taskType == statemachine.TaskTypeValidation:
		return TargetDirector
	case strings.Contains(lower, "gestion") || taskType == statemachine.TaskTypeManagement:
		return TargetManager
	default:
		return TargetEmployee
	}
}
