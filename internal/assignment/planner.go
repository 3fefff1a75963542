package assignment

import (
	"errors"

	"github.com/mautops/docflow-gin/internal/statemachine"
)

// ErrNoEligibleAssignees 存在待指派任务但没有任何可用的候选人
var ErrNoEligibleAssignees = errors.New("no eligible assignees")

// PendingTask 待指派任务
type PendingTask struct {
	ID    string
	Title string
	Type  statemachine.TaskType
}

// Decision 单个任务的指派决定
type Decision struct {
	TaskID    string
	Assignee  Candidate
	Target    Target
	Rotatable bool // 员工任务在写入成功后需要轮转
}

// Planner 指派规划器
// 每次 Decide 返回一个决定, 调用方在写入成功后调用 Commit 推进轮转
type Planner struct {
	pools Pools
}

// NewPlanner 创建指派规划器
func NewPlanner(pools Pools) *Planner {
	return &Planner{pools: pools}
}

// Decide 为单个任务选择指派人, 没有匹配的候选人时返回 false
func (p *Planner) Decide(task PendingTask) (Decision, bool) {
	target := TargetFor(task.Title, task.Type)
	switch target {
	case TargetDirector:
		c, ok := p.pools.Director()
		if !ok {
			return Decision{}, false
		}
		return Decision{TaskID: task.ID, Assignee: c, Target: target}, true
	case TargetManager:
		c, ok := p.pools.Manager()
		if !ok {
			return Decision{}, false
		}
		return Decision{TaskID: task.ID, Assignee: c, Target: target}, true
	default:
		c, ok := p.pools.Employees.Peek()
		if !ok {
			return Decision{}, false
		}
		return Decision{TaskID: task.ID, Assignee: c, Target: target, Rotatable: true}, true
	}
}

// Commit 确认决定已经写入, 员工轮转到队尾
func (p *Planner) Commit(d Decision) {
	if d.Rotatable {
		p.pools.Employees.Rotate()
	}
}

// CheckEligible 判断批次是否完全没有可用的候选人
// 待指派任务非空, 员工池为空, 且没有任务能匹配主管或经理规则时返回 ErrNoEligibleAssignees
func CheckEligible(pools Pools, tasks []PendingTask) error {
	if len(tasks) == 0 || pools.Employees.Len() > 0 {
		return nil
	}
	for _, t := range tasks {
		switch TargetFor(t.Title, t.Type) {
		case TargetDirector:
			if _, ok := pools.Director(); ok {
				return nil
			}
		case TargetManager:
			if _, ok := pools.Manager(); ok {
				return nil
			}
		}
	}
	return ErrNoEligibleAssignees
}

// Plan 一次性规划全部任务, 假设每次写入都成功
func Plan(pools Pools, tasks []PendingTask) ([]Decision, error) {
	if err := CheckEligible(pools, tasks); err != nil {
		return nil, err
	}
	planner := NewPlanner(pools)
	decisions := make([]Decision, 0, len(tasks))
	for _, t := range tasks {
		d, ok := planner.Decide(t)
		if !ok {
			continue
		}
		planner.Commit(d)
		decisions = append(decisions, d)
	}
	return decisions, nil
}
