package service

import (
	"fmt"

	"github.com/mautops/docflow-gin/internal/model"
	"gorm.io/gorm"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	GetOverview() (*Overview, error)
	GetUserLoads() ([]UserLoadSnapshot, error)
}

// Overview 工作流和任务概览
type Overview struct {
	WorkflowsByStatus map[string]int64 `json:"workflows_by_status"`
	TasksByStatus     map[string]int64 `json:"tasks_by_status"`
	TasksByType       map[string]int64 `json:"tasks_by_type"`
	UnassignedTasks   int64            `json:"unassigned_tasks"`
	Archives          int64            `json:"archives"`
}

// statisticsService 统计服务实现
type statisticsService struct {
	db        *gorm.DB
	loadIndex UserLoadIndex
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB, loadIndex UserLoadIndex) StatisticsService {
	return &statisticsService{db: db, loadIndex: loadIndex}
}

// groupCount 按列分组计数
func (s *statisticsService) groupCount(m interface{}, column string) (map[string]int64, error) {
	var rows []struct {
		GroupKey string
		Count    int64
	}
	err := s.db.Model(m).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.GroupKey] = r.Count
	}
	return counts, nil
}

// GetOverview 统计工作流和任务分布
func (s *statisticsService) GetOverview() (*Overview, error) {
	workflows, err := s.groupCount(&model.WorkflowModel{}, "status")
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows by status: %w", err)
	}
	tasksByStatus, err := s.groupCount(&model.TaskModel{}, "status")
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	tasksByType, err := s.groupCount(&model.TaskModel{}, "type")
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by type: %w", err)
	}

	overview := &Overview{
		WorkflowsByStatus: workflows,
		TasksByStatus:     tasksByStatus,
		TasksByType:       tasksByType,
	}
	if err := s.db.Model(&model.TaskModel{}).
		Where("(assigned_to IS NULL OR CAST(assigned_to AS TEXT) IN ('[]', 'null', ''))").
		Where("status NOT IN ?", []string{"completed", "cancelled"}).
		Count(&overview.UnassignedTasks).Error; err != nil {
		return nil, fmt.Errorf("failed to count unassigned tasks: %w", err)
	}
	if err := s.db.Model(&model.WorkflowArchiveModel{}).Count(&overview.Archives).Error; err != nil {
		return nil, fmt.Errorf("failed to count archives: %w", err)
	}
	return overview, nil
}

// GetUserLoads 返回用户负载快照
func (s *statisticsService) GetUserLoads() ([]UserLoadSnapshot, error) {
	return s.loadIndex.Snapshots()
}
