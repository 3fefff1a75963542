package repository_test

import (
	"testing"
	"time"

	"github.com/mautops/docflow-gin/internal/database"
	"github.com/mautops/docflow-gin/internal/model"
	"github.com/mautops/docflow-gin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), database.NewGormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

func strPtr(s string) *string {
	return &s
}

func newTask(id, workflowID string, createdAt time.Time, assignees ...string) *model.TaskModel {
	task := &model.TaskModel{
		ID:         id,
		Title:      "Task " + id,
		Priority:   "medium",
		Status:     "pending",
		Type:       "operation",
		AssignedTo: datatypes.JSONSlice[string](assignees),
		Version:    1,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	if workflowID != "" {
		task.WorkflowID = strPtr(workflowID)
	}
	if len(assignees) > 0 {
		task.Status = "assigned"
	}
	return task
}

// TestWorkflowRepository_CRUD 测试工作流增删改查
func TestWorkflowRepository_CRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewWorkflowRepository(db)
	now := time.Now()

	wf := &model.WorkflowModel{ID: "wf-1", Name: "Budget", Status: "pending", Priority: "high", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(wf))

	found, err := repo.FindByID("wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Budget", found.Name)

	require.NoError(t, repo.UpdateStatus("wf-1", "in_progress"))
	found, err = repo.FindByID("wf-1")
	require.NoError(t, err)
	assert.Equal(t, "in_progress", found.Status)

	assert.ErrorIs(t, repo.UpdateStatus("missing", "completed"), gorm.ErrRecordNotFound)

	require.NoError(t, repo.Delete("wf-1"))
	_, err = repo.FindByID("wf-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.Delete("wf-1"), gorm.ErrRecordNotFound)
}

// TestWorkflowRepository_FindByFilter 测试工作流过滤与统计
func TestWorkflowRepository_FindByFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewWorkflowRepository(db)
	now := time.Now()

	for i, status := range []string{"pending", "pending", "completed"} {
		wf := &model.WorkflowModel{
			ID:        "wf-" + string(rune('a'+i)),
			Name:      "WF",
			Status:    status,
			Priority:  "medium",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
			UpdatedAt: now,
		}
		require.NoError(t, repo.Create(wf))
	}

	list, total, err := repo.FindByFilter(&repository.WorkflowFilter{Status: strPtr("pending")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)
	assert.Equal(t, "wf-b", list[0].ID)

	list, total, err = repo.FindByFilter(&repository.WorkflowFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 1)

	counts, err := repo.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["pending"])
	assert.Equal(t, int64(1), counts["completed"])
}

// TestTaskRepository_FindByFilter 测试任务过滤条件
func TestTaskRepository_FindByFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTaskRepository(db)
	base := time.Now().Add(-time.Hour)

	require.NoError(t, repo.CreateBatch([]*model.TaskModel{
		newTask("t1", "wf-1", base),
		newTask("t2", "wf-1", base.Add(time.Minute), "u-1"),
		newTask("t3", "wf-2", base.Add(2*time.Minute), "u-2", "u-1"),
		newTask("t4", "", base.Add(3*time.Minute)),
	}))

	tasks, total, err := repo.FindByFilter(&repository.TaskFilter{WorkflowID: strPtr("wf-1")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, tasks, 2)

	tasks, _, err = repo.FindByFilter(&repository.TaskFilter{Assignee: strPtr("u-1"), SortBy: "created_at", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t2", tasks[0].ID)
	assert.Equal(t, "t3", tasks[1].ID)

	tasks, _, err = repo.FindByFilter(&repository.TaskFilter{UnassignedOnly: true})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, _, err = repo.FindByFilter(&repository.TaskFilter{StandaloneOnly: true})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t4", tasks[0].ID)

	// 非法排序字段回退为 created_at
	tasks, _, err = repo.FindByFilter(&repository.TaskFilter{SortBy: "id; DROP TABLE tasks"})
	require.NoError(t, err)
	assert.Len(t, tasks, 4)
}

// TestTaskRepository_FindByFilter_AssigneeIsLiteral 测试指派人过滤按字面值匹配
func TestTaskRepository_FindByFilter_AssigneeIsLiteral(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTaskRepository(db)
	base := time.Now().Add(-time.Hour)

	require.NoError(t, repo.CreateBatch([]*model.TaskModel{
		newTask("t1", "wf-1", base, "alice"),
		newTask("t2", "wf-1", base.Add(time.Minute), "bob"),
		newTask("t3", "wf-1", base.Add(2*time.Minute), "a_b"),
	}))

	for _, pattern := range []string{"%", "_lice", "a%", `\`} {
		tasks, total, err := repo.FindByFilter(&repository.TaskFilter{Assignee: strPtr(pattern)})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total, pattern)
		assert.Empty(t, tasks, pattern)
	}

	tasks, total, err := repo.FindByFilter(&repository.TaskFilter{Assignee: strPtr("alice")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)

	// 下划线按字面值匹配
	tasks, _, err = repo.FindByFilter(&repository.TaskFilter{Assignee: strPtr("a_b")})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t3", tasks[0].ID)
}

// TestTaskRepository_FindUnassignedByWorkflow 测试待指派任务的顺序
func TestTaskRepository_FindUnassignedByWorkflow(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTaskRepository(db)
	base := time.Now().Add(-time.Hour)

	done := newTask("t0", "wf-1", base)
	done.Status = "completed"
	require.NoError(t, repo.CreateBatch([]*model.TaskModel{
		done,
		newTask("t2", "wf-1", base.Add(2*time.Minute)),
		newTask("t1", "wf-1", base.Add(time.Minute)),
		newTask("t3", "wf-1", base.Add(3*time.Minute), "u-1"),
	}))

	tasks, err := repo.FindUnassignedByWorkflow("wf-1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t1", tasks[0].ID)
	assert.Equal(t, "t2", tasks[1].ID)

	total, completed, err := repo.CountByWorkflow("wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, int64(1), completed)
}

// TestTaskRepository_ClaimAssignment 测试指派的比较交换语义
func TestTaskRepository_ClaimAssignment(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTaskRepository(db)
	require.NoError(t, repo.Create(newTask("t1", "wf-1", time.Now())))

	ok, err := repo.ClaimAssignment("t1", 1, []string{"u-1"}, "assigned")
	require.NoError(t, err)
	assert.True(t, ok)

	// 版本号已变化, 第二次写入不生效
	ok, err = repo.ClaimAssignment("t1", 1, []string{"u-2"}, "assigned")
	require.NoError(t, err)
	assert.False(t, ok)

	task, err := repo.FindByID("t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1"}, []string(task.AssignedTo))
	assert.Equal(t, "assigned", task.Status)
	assert.Equal(t, 2, task.Version)
}

// TestArchiveRepository 测试归档仓储
func TestArchiveRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewArchiveRepository(db)
	now := time.Now()

	exists, err := repo.ExistsByWorkflowID("wf-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Create(&model.WorkflowArchiveModel{
		ID: "a1", WorkflowID: "wf-1", Name: "WF", WorkflowCreatedAt: now, CompletedAt: now,
	}))

	exists, err = repo.ExistsByWorkflowID("wf-1")
	require.NoError(t, err)
	assert.True(t, exists)

	err = repo.Create(&model.WorkflowArchiveModel{
		ID: "a2", WorkflowID: "wf-1", Name: "WF", WorkflowCreatedAt: now, CompletedAt: now,
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	all, err := repo.FindAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// TestWorkflowLogRepository_Order 测试日志按时间倒序返回
func TestWorkflowLogRepository_Order(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewWorkflowLogRepository(db)
	now := time.Now()

	require.NoError(t, repo.Append(&model.WorkflowLogModel{WorkflowID: "wf-1", Message: "first", CreatedAt: now}))
	require.NoError(t, repo.Append(&model.WorkflowLogModel{WorkflowID: "wf-1", Message: "second", CreatedAt: now}))
	require.NoError(t, repo.Append(&model.WorkflowLogModel{WorkflowID: "wf-2", Message: "other", CreatedAt: now}))

	logs, err := repo.FindByWorkflowID("wf-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "second", logs[0].Message)
	assert.Equal(t, "first", logs[1].Message)

	count, err := repo.CountByWorkflowID("wf-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// TestUserDirectoryAndSessions 测试用户目录与会话聚合
func TestUserDirectoryAndSessions(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	require.NoError(t, db.Create(&[]model.UserModel{
		{ID: "u-2", Name: "Bob", Role: "employee", CreatedAt: now},
		{ID: "u-1", Name: "Alice", Role: "director", CreatedAt: now},
	}).Error)
	require.NoError(t, db.Create(&[]model.UserSessionModel{
		{ID: "s1", UserID: "u-2", StartedAt: now, Duration: 30},
		{ID: "s2", UserID: "u-2", StartedAt: now, Duration: 12},
	}).Error)

	users, err := repository.NewUserDirectory(db).ListUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u-1", users[0].ID)

	_, err = repository.NewUserDirectory(db).GetUser("nobody")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	totals, err := repository.NewSessionStore(db).TotalDurationByUser()
	require.NoError(t, err)
	assert.Equal(t, int64(42), totals["u-2"])
	_, ok := totals["u-1"]
	assert.False(t, ok)
}

// TestDocumentStore_MarkArchived 测试文档归档标记
func TestDocumentStore_MarkArchived(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	require.NoError(t, db.Create(&model.DocumentModel{ID: "doc-1", Title: "Contract", CreatedAt: now, UpdatedAt: now}).Error)

	store := repository.NewDocumentStore(db)
	require.NoError(t, store.MarkArchived("doc-1", now))
	doc, err := store.FindByID("doc-1")
	require.NoError(t, err)
	assert.True(t, doc.Archived)
	assert.NotNil(t, doc.ArchivedAt)

	assert.ErrorIs(t, store.MarkArchived("doc-missing", now), gorm.ErrRecordNotFound)
}
