package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind 编辑失败的分类，整个系统只认这一套分类
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindSoftFailure ErrorKind = "soft_failure"
	KindQuota       ErrorKind = "quota"
	KindNotFound    ErrorKind = "not_found"
	KindPermission  ErrorKind = "permission"
	KindSynthesis   ErrorKind = "synthesis"
)

// EditError 编辑请求的类型化错误
type EditError struct {
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
	// Model 产生该错误的模型，校验错误为空
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// Status 后端返回的 HTTP 状态码，未知为 0
	Status int   `json:"status,omitempty" yaml:"status,omitempty"`
	Err    error `json:"-" yaml:"-"`
}

func (e *EditError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s error from %s: %s", e.Kind, e.Model, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *EditError) Unwrap() error {
	return e.Err
}

// Retryable 是否允许切换到备用模型重试一次
func (e *EditError) Retryable() bool {
	switch e.Kind {
	case KindQuota, KindNotFound, KindSoftFailure:
		return true
	case KindSynthesis:
		return e.Status == http.StatusBadRequest
	}
	return false
}

// OfferProjectSwitch 是否需要提示用户切换 API 项目/Key
func (e *EditError) OfferProjectSwitch() bool {
	switch e.Kind {
	case KindQuota, KindNotFound, KindPermission:
		return true
	}
	return false
}

// RemediationLabel 切换项目按钮的文案，不需要时为空
func (e *EditError) RemediationLabel() string {
	switch e.Kind {
	case KindQuota:
		return "Switch to Paid Project"
	case KindNotFound, KindPermission:
		return "Select New Project"
	}
	return ""
}

// Notice 展示给用户的提示文案
func (e *EditError) Notice() string {
	switch e.Kind {
	case KindSoftFailure:
		return "Engine was unable to generate an image for this request. Try adjusting your parameters or picking a different area."
	case KindNotFound:
		return "API Entity mismatch. Your current project may not have access to these vision models."
	case KindQuota:
		return "Vision Lab Quota Exceeded. Please try again in a moment or switch to a paid API key for higher throughput."
	case KindPermission:
		return "Permission Denied. Ensure your API project has Billing enabled for these specific models."
	case KindValidation:
		return e.Message
	}
	if e.Message != "" {
		return e.Message
	}
	return "Neural Synthesis encountered an unexpected error."
}

// NewValidationError 构造校验错误（不会触达后端）
func NewValidationError(format string, args ...interface{}) *EditError {
	return &EditError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// AsEditError 从错误链中提取 EditError
func AsEditError(err error) (*EditError, bool) {
	var editErr *EditError
	if errors.As(err, &editErr) {
		return editErr, true
	}
	return nil, false
}
