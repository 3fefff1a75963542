package diagram

import (
	"errors"
	"sort"
	"time"

	"github.com/mautops/docflow-gin/internal/statemachine"
)

// ErrNoTasksToRender 任务列表为空
var ErrNoTasksToRender = errors.New("no tasks to render")

// NodeKind 节点类型
type NodeKind string

const (
	NodeStart   NodeKind = "start"
	NodeTask    NodeKind = "task"
	NodeGateway NodeKind = "gateway"
	NodeEnd     NodeKind = "end"
)

// 分支条件
const (
	ConditionApproved  = "approved"
	ConditionRejected  = "rejected"
	ConditionCancelled = "cancelled"
)

// 布局参数
const (
	originX       = 150
	baselineY     = 120
	eventSize     = 36
	taskWidth     = 100
	taskHeight    = 80
	gatewaySize   = 50
	horizontalGap = 50
	reassignDropY = 140
)

// TaskInput 参与绘制的任务
type TaskInput struct {
	ID      string
	Title   string
	Type    statemachine.TaskType
	Status  statemachine.TaskStatus
	DueDate *time.Time
}

// Bounds 节点坐标和尺寸
type Bounds struct {
	X      int
	Y      int
	Width  int
	Height int
}

// CenterY 返回节点中线纵坐标
func (b Bounds) CenterY() int {
	return b.Y + b.Height/2
}

// Node 图节点
type Node struct {
	ID       string
	Kind     NodeKind
	Name     string
	TaskType statemachine.TaskType // 仅任务节点
	Bounds   Bounds
}

// Edge 顺序流
type Edge struct {
	ID        string
	Source    string
	Target    string
	Condition string // 为空表示无条件
	Default   bool
}

// Graph 流程图
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Node 根据 ID 查找节点
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Outgoing 返回节点的出边
func (g *Graph) Outgoing(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// Incoming 返回节点的入边
func (g *Graph) Incoming(id string) []Edge {
	var in []Edge
	for _, e := range g.Edges {
		if e.Target == id {
			in = append(in, e)
		}
	}
	return in
}

// CountKind 统计某类节点数量
func (g *Graph) CountKind(kind NodeKind) int {
	n := 0
	for _, node := range g.Nodes {
		if node.Kind == kind {
			n++
		}
	}
	return n
}

// OrderByDueDate 按截止时间稳定排序, 没有截止时间的任务排在最后
func OrderByDueDate(tasks []TaskInput) []TaskInput {
	ordered := make([]TaskInput, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].DueDate, ordered[j].DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return ordered
}
