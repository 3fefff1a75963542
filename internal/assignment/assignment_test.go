package assignment_test

import (
	"fmt"
	"testing"

	"github.com/mautops/docflow-gin/internal/assignment"
	"github.com/mautops/docflow-gin/internal/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roster() []assignment.Candidate {
	return []assignment.Candidate{
		{UserID: "E1", Name: "Emp One", Role: "employee", Load: 10},
		{UserID: "E2", Name: "Emp Two", Role: "employee", Load: 5},
		{UserID: "D", Name: "Director", Role: "director", Load: 100},
	}
}

func TestBuildPools_SortsByLoad(t *testing.T) {
	pools := assignment.BuildPools(append(roster(),
		assignment.Candidate{UserID: "M2", Role: "manager", Load: 3},
		assignment.Candidate{UserID: "M1", Role: "Manager", Load: 3},
		assignment.Candidate{UserID: "X", Role: "admin", Load: 0},
	), assignment.DefaultRoleNames())

	employees := pools.Employees.Snapshot()
	require.Len(t, employees, 2)
	assert.Equal(t, "E2", employees[0].UserID)
	assert.Equal(t, "E1", employees[1].UserID)

	m, ok := pools.Manager()
	require.True(t, ok)
	assert.Equal(t, "M1", m.UserID)

	d, ok := pools.Director()
	require.True(t, ok)
	assert.Equal(t, "D", d.UserID)
}

func TestRing_Rotate(t *testing.T) {
	ring := assignment.NewRing([]assignment.Candidate{{UserID: "a"}, {UserID: "b"}, {UserID: "c"}})
	var seen []string
	for i := 0; i < 5; i++ {
		c, ok := ring.Peek()
		require.True(t, ok)
		seen = append(seen, c.UserID)
		ring.Rotate()
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b"}, seen)

	empty := assignment.NewRing(nil)
	_, ok := empty.Peek()
	assert.False(t, ok)
	empty.Rotate()
}

func TestClassifyTitle(t *testing.T) {
	assert.Equal(t, statemachine.TaskTypeValidation, assignment.ClassifyTitle("VALIDATION du budget"))
	assert.Equal(t, statemachine.TaskTypeManagement, assignment.ClassifyTitle("Gestion des risques"))
	assert.Equal(t, statemachine.TaskTypeOperation, assignment.ClassifyTitle("Préparer rapport"))
}

func TestPlan_ConcreteScenario(t *testing.T) {
	pools := assignment.BuildPools(roster(), assignment.DefaultRoleNames())
	decisions, err := assignment.Plan(pools, []assignment.PendingTask{
		{ID: "t1", Title: "Validation budget", Type: statemachine.TaskTypeValidation},
		{ID: "t2", Title: "Préparer rapport", Type: statemachine.TaskTypeOperation},
	})
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, "D", decisions[0].Assignee.UserID)
	assert.Equal(t, assignment.TargetDirector, decisions[0].Target)
	assert.Equal(t, "E2", decisions[1].Assignee.UserID)
}

func TestPlan_RoundRobinFairness(t *testing.T) {
	employees := []assignment.Candidate{
		{UserID: "e1", Role: "employee", Load: 1},
		{UserID: "e2", Role: "employee", Load: 2},
		{UserID: "e3", Role: "employee", Load: 3},
	}

	for n := 1; n <= 10; n++ {
		pools := assignment.BuildPools(employees, assignment.DefaultRoleNames())
		tasks := make([]assignment.PendingTask, n)
		for i := range tasks {
			tasks[i] = assignment.PendingTask{ID: fmt.Sprintf("t%d", i), Title: "Op", Type: statemachine.TaskTypeOperation}
		}

		decisions, err := assignment.Plan(pools, tasks)
		require.NoError(t, err)
		require.Len(t, decisions, n)

		counts := map[string]int{}
		for i, d := range decisions {
			counts[d.Assignee.UserID]++
			// 任何人拿到第 k+1 个任务前, 其他人都已拿到 k 个
			for _, e := range employees {
				assert.LessOrEqual(t, counts[d.Assignee.UserID]-counts[e.UserID], 1, "n=%d step=%d", n, i)
			}
		}
		limit := (n + len(employees) - 1) / len(employees)
		for _, c := range counts {
			assert.LessOrEqual(t, c, limit)
		}
	}
}

func TestPlan_SkipsUnmatchedTasks(t *testing.T) {
	pools := assignment.BuildPools([]assignment.Candidate{
		{UserID: "e1", Role: "employee"},
	}, assignment.DefaultRoleNames())

	decisions, err := assignment.Plan(pools, []assignment.PendingTask{
		{ID: "t1", Title: "Validation finale"},
		{ID: "t2", Title: "Gestion projet"},
		{ID: "t3", Title: "Relecture"},
	})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "t3", decisions[0].TaskID)
}

func TestPlan_ManagersAreNotRotated(t *testing.T) {
	pools := assignment.BuildPools([]assignment.Candidate{
		{UserID: "m1", Role: "manager", Load: 1},
		{UserID: "m2", Role: "manager", Load: 2},
	}, assignment.DefaultRoleNames())

	decisions, err := assignment.Plan(pools, []assignment.PendingTask{
		{ID: "t1", Title: "Gestion A"},
		{ID: "t2", Title: "Suivi", Type: statemachine.TaskTypeManagement},
	})
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, "m1", decisions[0].Assignee.UserID)
	assert.Equal(t, "m1", decisions[1].Assignee.UserID)
}

func TestCheckEligible(t *testing.T) {
	empty := assignment.BuildPools(nil, assignment.DefaultRoleNames())
	assert.NoError(t, assignment.CheckEligible(empty, nil))
	assert.ErrorIs(t, assignment.CheckEligible(empty, []assignment.PendingTask{{ID: "t1", Title: "Op"}}), assignment.ErrNoEligibleAssignees)

	directorOnly := assignment.BuildPools([]assignment.Candidate{{UserID: "d", Role: "director"}}, assignment.DefaultRoleNames())
	assert.NoError(t, assignment.CheckEligible(directorOnly, []assignment.PendingTask{
		{ID: "t1", Title: "Op"},
		{ID: "t2", Title: "Validation"},
	}))
	assert.ErrorIs(t, assignment.CheckEligible(directorOnly, []assignment.PendingTask{{ID: "t1", Title: "Gestion"}}), assignment.ErrNoEligibleAssignees)
}

func TestPlanner_CommitOnlyAfterSuccess(t *testing.T) {
	pools := assignment.BuildPools([]assignment.Candidate{
		{UserID: "e1", Role: "employee", Load: 1},
		{UserID: "e2", Role: "employee", Load: 2},
	}, assignment.DefaultRoleNames())
	planner := assignment.NewPlanner(pools)

	d, ok := planner.Decide(assignment.PendingTask{ID: "t1", Title: "Op"})
	require.True(t, ok)
	assert.Equal(t, "e1", d.Assignee.UserID)

	// 写入失败时不提交, 下一个任务仍指派给同一员工
	d, ok = planner.Decide(assignment.PendingTask{ID: "t2", Title: "Op"})
	require.True(t, ok)
	assert.Equal(t, "e1", d.Assignee.UserID)
	planner.Commit(d)

	d, ok = planner.Decide(assignment.PendingTask{ID: "t3", Title: "Op"})
	require.True(t, ok)
	assert.Equal(t, "e2", d.Assignee.UserID)
}
