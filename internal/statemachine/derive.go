package statemachine

// DerivedStatus 根据任务状态推导的工作流展示状态, 不持久化
// 取值可能为 assigned, 该值不属于工作流持久化状态枚举
type DerivedStatus string

// DeriveWorkflowStatus 根据子任务状态推导工作流状态
// 全部完成为 completed; 否则依次检查 pending, assigned, in_progress;
// 没有任务或只剩已取消任务时返回持久化状态
func DeriveWorkflowStatus(persisted WorkflowStatus, tasks []TaskStatus) DerivedStatus {
	if len(tasks) == 0 {
		return DerivedStatus(persisted)
	}

	counts := make(map[TaskStatus]int, 5)
	for _, s := range tasks {
		counts[s]++
	}

	if counts[TaskCompleted] == len(tasks) {
		return DerivedStatus(WorkflowCompleted)
	}
	for _, s := range []TaskStatus{TaskPending, TaskAssigned, TaskInProgress} {
		if counts[s] > 0 {
			return DerivedStatus(s)
		}
	}
	return DerivedStatus(persisted)
}

// StatusView 同时暴露持久化状态与推导状态, 调用方需显式选择
type StatusView struct {
	persisted WorkflowStatus
	derived   DerivedStatus
}

// NewStatusView 创建状态视图
func NewStatusView(persisted WorkflowStatus, tasks []TaskStatus) StatusView {
	return StatusView{
		persisted: persisted,
		derived:   DeriveWorkflowStatus(persisted, tasks),
	}
}

// PersistedStatus 返回持久化的工作流状态
func (v StatusView) PersistedStatus() WorkflowStatus {
	return v.persisted
}

// DerivedStatus 返回根据任务推导的状态
func (v StatusView) DerivedStatus() DerivedStatus {
	return v.derived
}

// Consistent 判断两种状态是否一致
func (v StatusView) Consistent() bool {
	return string(v.persisted) == string(v.derived)
}
