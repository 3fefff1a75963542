package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/docflow-gin/internal/auth"
	"github.com/mautops/docflow-gin/internal/integration"
	"github.com/mautops/docflow-gin/internal/metrics"
	"github.com/mautops/docflow-gin/internal/model"
	"github.com/mautops/docflow-gin/internal/repository"
	"github.com/mautops/docflow-gin/internal/statemachine"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ReportWorkflowPlaceholder 默认报告模板中的工作流名称占位符
const ReportWorkflowPlaceholder = "{workflow}"

// DefaultReportTemplate 默认归档报告模板
const DefaultReportTemplate = `Workflow "` + ReportWorkflowPlaceholder + `" completed; archived automatically.`

// 归档触发方式
const (
	archiveTriggerManual = "manual"
	archiveTriggerAuto   = "auto"
)

// ArchiveService 归档服务接口
type ArchiveService interface {
	Archive(ctx context.Context, workflowID string, req *ArchiveRequest) (*model.WorkflowArchiveModel, error)
	// AutoArchive 状态迁移到 completed 时调用, 报告为空时使用默认报告
	AutoArchive(ctx context.Context, workflowID string) (*model.WorkflowArchiveModel, error)
	ListArchives() ([]*ArchiveSummary, error)
}

// ArchiveRequest 归档请求
type ArchiveRequest struct {
	ValidationReport string `json:"validation_report"`
}

// ArchiveSummary 归档摘要
type ArchiveSummary struct {
	*model.WorkflowArchiveModel
	CompletionRate float64 `json:"completion_rate"` // 百分比
	DurationDays   int     `json:"duration_days"`
}

// archiveService 归档服务实现
type archiveService struct {
	db            *gorm.DB
	workflowRepo  repository.WorkflowRepository
	taskRepo      repository.TaskRepository
	archiveRepo   repository.ArchiveRepository
	documents     repository.DocumentStore
	logRecorder   WorkflowLogRecorder
	notifier      integration.NotificationDispatcher
	defaultReport string
	logger        logrus.FieldLogger
}

// NewArchiveService 创建归档服务
func NewArchiveService(
	db *gorm.DB,
	workflowRepo repository.WorkflowRepository,
	taskRepo repository.TaskRepository,
	archiveRepo repository.ArchiveRepository,
	documents repository.DocumentStore,
	logRecorder WorkflowLogRecorder,
	notifier integration.NotificationDispatcher,
	defaultReport string,
	logger logrus.FieldLogger,
) ArchiveService {
	if defaultReport == "" {
		defaultReport = DefaultReportTemplate
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &archiveService{
		db:            db,
		workflowRepo:  workflowRepo,
		taskRepo:      taskRepo,
		archiveRepo:   archiveRepo,
		documents:     documents,
		logRecorder:   logRecorder,
		notifier:      notifier,
		defaultReport: defaultReport,
		logger:        logger,
	}
}

// Archive 手动归档已完成的工作流
func (s *archiveService) Archive(ctx context.Context, workflowID string, req *ArchiveRequest) (*model.WorkflowArchiveModel, error) {
	if _, err := requireCapability(ctx, auth.CapArchive); err != nil {
		return nil, err
	}
	report := ""
	if req != nil {
		report = req.ValidationReport
	}
	return s.archive(ctx, workflowID, report, archiveTriggerManual)
}

// AutoArchive 自动归档
func (s *archiveService) AutoArchive(ctx context.Context, workflowID string) (*model.WorkflowArchiveModel, error) {
	return s.archive(ctx, workflowID, "", archiveTriggerAuto)
}

func (s *archiveService) archive(ctx context.Context, workflowID, report, trigger string) (archive *model.WorkflowArchiveModel, err error) {
	ctx, span := startSpan(ctx, "ArchiveService.Archive")
	span.SetAttributes(attribute.String("workflow.id", workflowID), attribute.String("archive.trigger", trigger))
	defer func() { endSpan(span, err) }()

	var wf *model.WorkflowModel
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 1. 锁定工作流行, 防止并发归档或并发状态迁移交错
		locked, err := s.workflowRepo.WithTx(tx).FindByIDForUpdate(workflowID)
		if err != nil {
			return notFoundOr(err, ErrWorkflowNotFound, "failed to lock workflow")
		}
		wf = locked

		// 2. 检查前置条件
		if statemachine.WorkflowStatus(wf.Status) != statemachine.WorkflowCompleted {
			return withDetail(ErrWorkflowNotCompleted, "status is %s", wf.Status)
		}
		exists, err := s.archiveRepo.WithTx(tx).ExistsByWorkflowID(workflowID)
		if err != nil {
			return fmt.Errorf("failed to check archive: %w", err)
		}
		if exists {
			return ErrAlreadyArchived
		}

		// 3. 统计任务
		total, completed, err := s.taskRepo.WithTx(tx).CountByWorkflow(workflowID)
		if err != nil {
			return fmt.Errorf("failed to count tasks: %w", err)
		}

		if report == "" && trigger == archiveTriggerAuto {
			report = strings.ReplaceAll(s.defaultReport, ReportWorkflowPlaceholder, wf.Name)
		}

		// 4. 写入归档, 唯一索引兜底并发插入
		now := time.Now()
		archive = &model.WorkflowArchiveModel{
			ID:                uuid.New().String(),
			WorkflowID:        wf.ID,
			Name:              wf.Name,
			Description:       wf.Description,
			DocumentID:        wf.DocumentID,
			CreatedBy:         wf.CreatedBy,
			TotalTasks:        int(total),
			CompletedTasks:    int(completed),
			ValidationReport:  report,
			WorkflowCreatedAt: wf.CreatedAt,
			CompletedAt:       now,
		}
		if err := archive.Validate(); err != nil {
			return invalidInput("%v", err)
		}
		if err := s.archiveRepo.WithTx(tx).Create(archive); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyArchived
			}
			return fmt.Errorf("failed to create archive: %w", err)
		}

		// 5. 标记关联文档已归档
		if wf.DocumentID != "" {
			if err := s.documents.WithTx(tx).MarkArchived(wf.DocumentID, now); err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("failed to mark document archived: %w", err)
				}
				s.logger.WithFields(logrus.Fields{
					"workflow_id": wf.ID,
					"document_id": wf.DocumentID,
				}).Warn("linked document not found, skip marking archived")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordArchiveCreated(trigger)
	s.logRecorder.Record(ctx, workflowID, fmt.Sprintf("Workflow archived (%s): %d/%d tasks completed", trigger, archive.CompletedTasks, archive.TotalTasks))
	if wf.CreatedBy != "" {
		notify(ctx, s.notifier, []string{wf.CreatedBy}, integration.Notification{
			Kind:       "archive",
			WorkflowID: workflowID,
			Message:    fmt.Sprintf("Workflow %q has been archived", wf.Name),
		})
	}
	return archive, nil
}

// ListArchives 列出归档及完成率和耗时
func (s *archiveService) ListArchives() ([]*ArchiveSummary, error) {
	archives, err := s.archiveRepo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	summaries := make([]*ArchiveSummary, 0, len(archives))
	for _, a := range archives {
		summaries = append(summaries, summarizeArchive(a))
	}
	return summaries, nil
}

// summarizeArchive 计算完成率和耗时天数
// 没有任务时完成率为 0
func summarizeArchive(a *model.WorkflowArchiveModel) *ArchiveSummary {
	rate := 0.0
	if a.TotalTasks > 0 {
		rate = math.Round(float64(a.CompletedTasks)/float64(a.TotalTasks)*10000) / 100
	}
	days := 0
	if a.CompletedAt.After(a.WorkflowCreatedAt) {
		days = int(a.CompletedAt.Sub(a.WorkflowCreatedAt).Hours() / 24)
	}
	return &ArchiveSummary{
		WorkflowArchiveModel: a,
		CompletionRate:       rate,
		DurationDays:         days,
	}
}
