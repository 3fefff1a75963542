package utils

import (
	"regexp"
	"strings"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateName 验证工作流名称或任务标题
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrEmptyName
	}
	if len(trimmed) > 255 {
		return ErrNameTooLong
	}
	if containsDangerousChars(trimmed) {
		return ErrDangerousChars
	}
	return nil
}

// ValidateID 验证实体 ID 格式
func ValidateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if !idPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}
	if len(id) > 64 {
		return ErrIDTooLong
	}
	return nil
}

// ValidateIDs 验证 ID 列表, 列表不能为空且不能有重复
func ValidateIDs(ids []string) error {
	if len(ids) == 0 {
		return ErrEmptyIDList
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if err := ValidateID(id); err != nil {
			return err
		}
		if _, ok := seen[id]; ok {
			return ErrDuplicateID
		}
		seen[id] = struct{}{}
	}
	return nil
}

// containsDangerousChars 检查字符串是否包含 XSS 或 SQL 注入片段
func containsDangerousChars(s string) bool {
	dangerousPatterns := []string{
		"<script",
		"</script>",
		"javascript:",
		"onerror=",
		"onload=",
		"';",
		"--",
		"/*",
	}

	lower := strings.ToLower(s)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// 错误定义
var (
	ErrEmptyName       = &ValidationError{Code: "EMPTY_NAME", Message: "name cannot be empty"}
	ErrNameTooLong     = &ValidationError{Code: "NAME_TOO_LONG", Message: "name exceeds maximum length"}
	ErrDangerousChars  = &ValidationError{Code: "DANGEROUS_CHARS", Message: "name contains dangerous characters"}
	ErrEmptyID         = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong       = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrEmptyIDList     = &ValidationError{Code: "EMPTY_ID_LIST", Message: "id list cannot be empty"}
	ErrDuplicateID     = &ValidationError{Code: "DUPLICATE_ID", Message: "id list contains duplicates"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
