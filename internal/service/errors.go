// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"
	"strings"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrClipNotFound     = errors.New("audio clip not found")
	ErrInvalidReference = errors.New("invalid blob reference")
	ErrDuplicateClip    = errors.New("audio clip with the same name, date, type, channel and region already exists")

	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError 表示请求在产生任何副作用之前被拒绝。
// Message 直接返回给调用方，Details 携带逐条的原因（如批量导入中每个条目的问题）。
type ValidationError struct {
	Message string
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Details, "; ")
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}
