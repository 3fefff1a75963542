package diagram

import (
	"fmt"

	"github.com/mautops/docflow-gin/internal/statemachine"
)

const (
	startEventID = "StartEvent_1"
	endEventID   = "EndEvent_1"
)

// needsGateway 校验任务和已取消任务带有网关
func needsGateway(t TaskInput) bool {
	return t.Type == statemachine.TaskTypeValidation || t.Status == statemachine.TaskCancelled
}

func taskNodeID(t TaskInput) string {
	return "Task_" + t.ID
}

func gatewayNodeID(t TaskInput) string {
	return "Gateway_" + t.ID
}

func reassignNodeID(t TaskInput) string {
	return "Reassign_" + t.ID
}

// builder 逐步生成节点和边
type builder struct {
	graph Graph
	x     int
	flows int
}

func (b *builder) addNode(id string, kind NodeKind, name string, taskType statemachine.TaskType, width, height int) {
	b.graph.Nodes = append(b.graph.Nodes, Node{
		ID:       id,
		Kind:     kind,
		Name:     name,
		TaskType: taskType,
		Bounds: Bounds{
			X:      b.x,
			Y:      baselineY + (taskHeight-height)/2,
			Width:  width,
			Height: height,
		},
	})
	b.x += width + horizontalGap
}

func (b *builder) addEdge(source, target, condition string, isDefault bool) {
	b.flows++
	b.graph.Edges = append(b.graph.Edges, Edge{
		ID:        fmt.Sprintf("Flow_%d", b.flows),
		Source:    source,
		Target:    target,
		Condition: condition,
		Default:   isDefault,
	})
}

// Synthesize 根据任务列表生成流程图
// 任务按截止时间排序后从左到右排列, 校验任务之后紧跟网关:
// approved 分支继续主链, rejected 分支作为默认流指向结束事件;
// 已取消任务的网关额外有 cancelled 分支指向重新指派任务, 该任务再流回原任务
func Synthesize(tasks []TaskInput) (*Graph, error) {
	if len(tasks) == 0 {
		return nil, ErrNoTasksToRender
	}
	ordered := OrderByDueDate(tasks)

	b := &builder{x: originX}
	b.addNode(startEventID, NodeStart, "Start", "", eventSize, eventSize)

	// 主链节点
	for _, t := range ordered {
		b.addNode(taskNodeID(t), NodeTask, t.Title, t.Type, taskWidth, taskHeight)
		if needsGateway(t) {
			b.addNode(gatewayNodeID(t), NodeGateway, gatewayName(t), "", gatewaySize, gatewaySize)
		}
	}
	b.addNode(endEventID, NodeEnd, "End", "", eventSize, eventSize)

	// 重新指派任务放在对应网关下方
	for _, t := range ordered {
		if t.Status != statemachine.TaskCancelled {
			continue
		}
		gw, _ := b.graph.Node(gatewayNodeID(t))
		b.graph.Nodes = append(b.graph.Nodes, Node{
			ID:       reassignNodeID(t),
			Kind:     NodeTask,
			Name:     "Reassign: " + t.Title,
			TaskType: statemachine.TaskTypeManagement,
			Bounds: Bounds{
				X:      gw.Bounds.X + gw.Bounds.Width/2 - taskWidth/2,
				Y:      baselineY + reassignDropY,
				Width:  taskWidth,
				Height: taskHeight,
			},
		})
	}

	b.addEdge(startEventID, taskNodeID(ordered[0]), "", false)
	for i, t := range ordered {
		next := endEventID
		if i+1 < len(ordered) {
			next = taskNodeID(ordered[i+1])
		}

		if !needsGateway(t) {
			b.addEdge(taskNodeID(t), next, "", false)
			continue
		}

		b.addEdge(taskNodeID(t), gatewayNodeID(t), "", false)
		b.addEdge(gatewayNodeID(t), next, ConditionApproved, false)
		if t.Status == statemachine.TaskCancelled {
			b.addEdge(gatewayNodeID(t), reassignNodeID(t), ConditionCancelled, false)
			b.addEdge(reassignNodeID(t), taskNodeID(t), "", false)
		}
		if t.Type == statemachine.TaskTypeValidation {
			b.addEdge(gatewayNodeID(t), endEventID, ConditionRejected, true)
		}
	}

	return &b.graph, nil
}

func gatewayName(t TaskInput) string {
	if t.Type == statemachine.TaskTypeValidation {
		return "Approved?"
	}
	return "Cancelled?"
}
