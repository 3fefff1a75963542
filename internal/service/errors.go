package service

import (
	"errors"
	"fmt"

	"github.com/mautops/docflow-gin/internal/assignment"
	"github.com/mautops/docflow-gin/internal/diagram"
	"github.com/mautops/docflow-gin/internal/statemachine"
	"gorm.io/gorm"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindNotFound        ErrorKind = "not_found"
	KindInvalidInput    ErrorKind = "invalid_input"
	KindPermission      ErrorKind = "permission_denied"
	KindConflict        ErrorKind = "conflict"
	KindExternalFailure ErrorKind = "external_failure"
	KindInternal        ErrorKind = "internal"
)

// ServiceError 业务错误
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
	cause   error
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap 返回底层错误
func (e *ServiceError) Unwrap() error {
	return e.cause
}

// Is 按 Code 比较, 便于 errors.Is 匹配包装后的哨兵错误
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(kind ErrorKind, code, message string, cause error) *ServiceError {
	return &ServiceError{Kind: kind, Code: code, Message: message, cause: cause}
}

var (
	ErrWorkflowNotFound         = newError(KindNotFound, "WORKFLOW_NOT_FOUND", "workflow not found", nil)
	ErrTaskNotFound             = newError(KindNotFound, "TASK_NOT_FOUND", "task not found", nil)
	ErrAssigneeNotFound         = newError(KindNotFound, "ASSIGNEE_NOT_FOUND", "assignee not found", nil)
	ErrInvalidStatus            = newError(KindInvalidInput, "INVALID_STATUS", "invalid status", statemachine.ErrInvalidStatus)
	ErrInvalidTransition        = newError(KindConflict, "INVALID_TRANSITION", "invalid status transition", statemachine.ErrInvalidTransition)
	ErrInvalidInput             = newError(KindInvalidInput, "INVALID_INPUT", "invalid input", nil)
	ErrPermissionDenied         = newError(KindPermission, "PERMISSION_DENIED", "permission denied", nil)
	ErrAlreadyArchived          = newError(KindConflict, "ALREADY_ARCHIVED", "workflow already archived", nil)
	ErrWorkflowNotCompleted     = newError(KindConflict, "WORKFLOW_NOT_COMPLETED", "workflow is not completed", nil)
	ErrNoEligibleAssignees      = newError(KindConflict, "NO_ELIGIBLE_ASSIGNEES", "no eligible assignees", assignment.ErrNoEligibleAssignees)
	ErrGenerationFailed         = newError(KindExternalFailure, "GENERATION_FAILED", "task generation failed", nil)
	ErrMalformedGeneratorOutput = newError(KindExternalFailure, "MALFORMED_GENERATOR_OUTPUT", "malformed generator output", nil)
	ErrNoTasksToRender          = newError(KindInvalidInput, "NO_TASKS_TO_RENDER", "no tasks to render", diagram.ErrNoTasksToRender)
)

// withDetail 基于哨兵错误生成带详情的错误, errors.Is 仍然匹配哨兵
func withDetail(sentinel *ServiceError, format string, args ...interface{}) *ServiceError {
	return &ServiceError{
		Kind:    sentinel.Kind,
		Code:    sentinel.Code,
		Message: fmt.Sprintf("%s: %s", sentinel.Message, fmt.Sprintf(format, args...)),
		cause:   sentinel.cause,
	}
}

// invalidInput 参数错误
func invalidInput(format string, args ...interface{}) *ServiceError {
	return withDetail(ErrInvalidInput, format, args...)
}

// KindOf 返回错误分类, 非业务错误返回 KindInternal
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// notFoundOr 将 gorm.ErrRecordNotFound 转换为指定的哨兵错误
func notFoundOr(err error, sentinel *ServiceError, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}
