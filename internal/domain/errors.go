package domain

import (
	"errors"
	"fmt"
)

// ErrIssueNotFound 问题记录未找到错误
var ErrIssueNotFound = errors.New("issue not found")

// ValidationError 表示输入校验失败，携带字段名与原因。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError 创建校验错误
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError 判断错误是否为校验错误。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
