package statemachine

import "fmt"

// taskTransitions 任务状态迁移表
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskAssigned, TaskCancelled},
	TaskAssigned:   {TaskInProgress, TaskPending, TaskCancelled},
	TaskInProgress: {TaskCompleted, TaskCancelled},
}

// ValidateWorkflowTransition 校验工作流显式状态设置
// 非终态可被设置为任意合法状态, 终态不可再变更, 相同状态视为无操作
func ValidateWorkflowTransition(from, to WorkflowStatus) error {
	if from == to {
		return nil
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: workflow is %s", ErrInvalidTransition, from)
	}
	return nil
}

// ValidateTaskTransition 校验任务状态迁移
func ValidateTaskTransition(from, to TaskStatus) error {
	if from == to {
		return nil
	}
	for _, allowed := range taskTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: task %s -> %s", ErrInvalidTransition, from, to)
}

// AllowedTaskTransitions 返回任务当前状态可迁移到的状态
func AllowedTaskTransitions(from TaskStatus) []TaskStatus {
	next := taskTransitions[from]
	out := make([]TaskStatus, len(next))
	copy(out, next)
	return out
}
