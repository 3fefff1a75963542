//go:build integration

package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mautops/docflow-gin/internal/database"
	"github.com/mautops/docflow-gin/internal/model"
	"github.com/mautops/docflow-gin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgres 启动 PostgreSQL 容器并执行迁移
func setupPostgres(t *testing.T) *gorm.DB {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("docflow"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(pgdriver.Open(connStr), database.NewGormConfig())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestPostgresArchiveUniqueConstraint(t *testing.T) {
	db := setupPostgres(t)
	repo := repository.NewArchiveRepository(db)

	now := time.Now()
	archive := func(id string) *model.WorkflowArchiveModel {
		return &model.WorkflowArchiveModel{
			ID:                id,
			WorkflowID:        "wf-1",
			Name:              "Quarterly review",
			WorkflowCreatedAt: now,
			CompletedAt:       now,
		}
	}

	require.NoError(t, repo.Create(archive("a-1")))
	err := repo.Create(archive("a-2"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))

	exists, err := repo.ExistsByWorkflowID("wf-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostgresRowLockSerializesWriters(t *testing.T) {
	db := setupPostgres(t)
	workflowRepo := repository.NewWorkflowRepository(db)

	now := time.Now()
	require.NoError(t, workflowRepo.Create(&model.WorkflowModel{
		ID:        "wf-lock",
		Name:      "Locked",
		Status:    "pending",
		Priority:  "medium",
		CreatedAt: now,
		UpdatedAt: now,
	}))

	locked := make(chan struct{})
	release := make(chan struct{})
	var secondAcquired time.Time
	var firstReleased time.Time
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = db.Transaction(func(tx *gorm.DB) error {
			_, err := workflowRepo.WithTx(tx).FindByIDForUpdate("wf-lock")
			if err != nil {
				return err
			}
			close(locked)
			<-release
			firstReleased = time.Now()
			return nil
		})
	}()
	go func() {
		defer wg.Done()
		<-locked
		_ = db.Transaction(func(tx *gorm.DB) error {
			_, err := workflowRepo.WithTx(tx).FindByIDForUpdate("wf-lock")
			secondAcquired = time.Now()
			return err
		})
	}()

	<-locked
	time.Sleep(200 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.False(t, secondAcquired.Before(firstReleased), "second lock acquired before the first transaction finished")
}

func TestPostgresClaimAssignmentCAS(t *testing.T) {
	db := setupPostgres(t)
	taskRepo := repository.NewTaskRepository(db)

	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, taskRepo.Create(newTask("t-1", "wf-1", created)))

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := taskRepo.ClaimAssignment("t-1", 1, []string{"user-" + string(rune('a'+i))}, "assigned")
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	claimed := 0
	for _, ok := range results {
		if ok {
			claimed++
		}
	}
	assert.Equal(t, 1, claimed)

	task, err := taskRepo.FindByID("t-1")
	require.NoError(t, err)
	assert.Len(t, task.AssignedTo, 1)
	assert.Equal(t, 2, task.Version)

	unassigned, err := taskRepo.FindUnassignedByWorkflow("wf-1")
	require.NoError(t, err)
	assert.Empty(t, unassigned)
}
