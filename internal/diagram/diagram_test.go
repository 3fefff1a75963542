package diagram_test

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/mautops/docflow-gin/internal/diagram"
	"github.com/mautops/docflow-gin/internal/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func op(id string) diagram.TaskInput {
	return diagram.TaskInput{ID: id, Title: "Task " + id, Type: statemachine.TaskTypeOperation, Status: statemachine.TaskPending}
}

func validation(id string) diagram.TaskInput {
	return diagram.TaskInput{ID: id, Title: "Validation " + id, Type: statemachine.TaskTypeValidation, Status: statemachine.TaskPending}
}

// reachableAvoiding 判断从 start 出发且不经过 skip 边能否到达 target
func reachableAvoiding(g *diagram.Graph, start, target, skipEdge string) bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			return true
		}
		for _, e := range g.Outgoing(cur) {
			if e.ID == skipEdge || seen[e.Target] {
				continue
			}
			seen[e.Target] = true
			queue = append(queue, e.Target)
		}
	}
	return false
}

func TestSynthesize_EmptyList(t *testing.T) {
	_, err := diagram.Synthesize(nil)
	assert.ErrorIs(t, err, diagram.ErrNoTasksToRender)
}

func TestSynthesize_SingleTask(t *testing.T) {
	g, err := diagram.Synthesize([]diagram.TaskInput{op("t1")})
	require.NoError(t, err)

	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Edges, 2)
	assert.Equal(t, "StartEvent_1", g.Edges[0].Source)
	assert.Equal(t, "Task_t1", g.Edges[0].Target)
	assert.Equal(t, "Task_t1", g.Edges[1].Source)
	assert.Equal(t, "EndEvent_1", g.Edges[1].Target)
}

func TestSynthesize_ValidationGateway(t *testing.T) {
	g, err := diagram.Synthesize([]diagram.TaskInput{op("t1"), validation("t2"), op("t3")})
	require.NoError(t, err)

	assert.Equal(t, 1, g.CountKind(diagram.NodeGateway))
	gw, ok := g.Node("Gateway_t2")
	require.True(t, ok)
	assert.Equal(t, diagram.NodeGateway, gw.Kind)

	out := g.Outgoing("Gateway_t2")
	require.Len(t, out, 2)
	var approved diagram.Edge
	for _, e := range out {
		assert.NotEmpty(t, e.Condition)
		if e.Condition == diagram.ConditionApproved {
			approved = e
		}
	}
	assert.Equal(t, "Task_t3", approved.Target)

	// T3 只能经由 approved 边到达
	in := g.Incoming("Task_t3")
	require.Len(t, in, 1)
	assert.Equal(t, approved.ID, in[0].ID)
	assert.True(t, reachableAvoiding(g, "StartEvent_1", "Task_t3", ""))
	assert.False(t, reachableAvoiding(g, "StartEvent_1", "Task_t3", approved.ID))

	// 驳回分支为默认流, 指向结束事件
	for _, e := range out {
		if e.Condition == diagram.ConditionRejected {
			assert.True(t, e.Default)
			assert.Equal(t, "EndEvent_1", e.Target)
		}
	}
}

func TestSynthesize_CancelledTask(t *testing.T) {
	cancelled := op("t1")
	cancelled.Status = statemachine.TaskCancelled
	g, err := diagram.Synthesize([]diagram.TaskInput{cancelled, op("t2")})
	require.NoError(t, err)

	out := g.Outgoing("Gateway_t1")
	require.Len(t, out, 2)
	targets := map[string]string{}
	for _, e := range out {
		targets[e.Condition] = e.Target
	}
	assert.Equal(t, "Task_t2", targets[diagram.ConditionApproved])
	assert.Equal(t, "Reassign_t1", targets[diagram.ConditionCancelled])

	back := g.Outgoing("Reassign_t1")
	require.Len(t, back, 1)
	assert.Equal(t, "Task_t1", back[0].Target)
}

func TestSynthesize_CancelledValidationHasThreeBranches(t *testing.T) {
	task := validation("t1")
	task.Status = statemachine.TaskCancelled
	g, err := diagram.Synthesize([]diagram.TaskInput{task})
	require.NoError(t, err)
	assert.Len(t, g.Outgoing("Gateway_t1"), 3)
}

func TestSynthesize_LastTaskReachesEnd(t *testing.T) {
	for _, tasks := range [][]diagram.TaskInput{
		{op("a"), op("b")},
		{op("a"), validation("b")},
	} {
		g, err := diagram.Synthesize(tasks)
		require.NoError(t, err)
		assert.True(t, reachableAvoiding(g, "Task_b", "EndEvent_1", ""))
	}
}

func TestSynthesize_LayoutByDueDate(t *testing.T) {
	now := time.Now()
	later := now.Add(48 * time.Hour)
	a := op("a")
	a.DueDate = &later
	b := validation("b")
	b.DueDate = &now
	c := op("c")

	g, err := diagram.Synthesize([]diagram.TaskInput{c, a, b})
	require.NoError(t, err)

	nb, _ := g.Node("Task_b")
	gw, _ := g.Node("Gateway_b")
	na, _ := g.Node("Task_a")
	nc, _ := g.Node("Task_c")
	assert.Less(t, nb.Bounds.X, gw.Bounds.X)
	assert.Less(t, gw.Bounds.X, na.Bounds.X)
	assert.Less(t, na.Bounds.X, nc.Bounds.X)
	assert.Equal(t, "Task_b", g.Edges[0].Target)
}

func TestSynthesize_IsDeterministic(t *testing.T) {
	tasks := []diagram.TaskInput{op("t1"), validation("t2"), op("t3")}
	g1, err := diagram.Synthesize(tasks)
	require.NoError(t, err)
	g2, err := diagram.Synthesize(tasks)
	require.NoError(t, err)
	assert.Equal(t, g1, g2)
}

func TestEncodeBPMN(t *testing.T) {
	g, err := diagram.Synthesize([]diagram.TaskInput{op("t1"), validation("t2"), op("t3")})
	require.NoError(t, err)

	out, err := diagram.EncodeBPMN(g, "wf-1", "Budget approval")
	require.NoError(t, err)
	doc := string(out)

	assert.True(t, strings.HasPrefix(doc, "<?xml"))
	assert.Contains(t, doc, `<bpmn:process id="Process_wf-1" name="Budget approval"`)
	assert.Equal(t, 1, strings.Count(doc, "<bpmn:exclusiveGateway "))
	assert.Equal(t, 2, strings.Count(doc, "<bpmn:task "))
	assert.Equal(t, 1, strings.Count(doc, "<bpmn:userTask "))
	assert.Equal(t, len(g.Edges), strings.Count(doc, "<bpmn:sequenceFlow "))
	assert.Equal(t, len(g.Nodes), strings.Count(doc, "<bpmndi:BPMNShape "))
	assert.Contains(t, doc, "${decision == &#39;approved&#39;}")
	assert.Contains(t, doc, `<dc:Bounds x=`)

	// 输出必须是格式良好的 XML
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if err != nil {
			assert.Equal(t, "EOF", err.Error())
			break
		}
	}
}

func TestEncodeBPMN_EmptyGraph(t *testing.T) {
	_, err := diagram.EncodeBPMN(&diagram.Graph{}, "wf", "")
	assert.ErrorIs(t, err, diagram.ErrNoTasksToRender)
}
