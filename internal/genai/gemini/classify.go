package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Devifyo/lumina/internal/domain"

	"google.golang.org/genai"
)

// Classify 把后端返回的错误归类为 *domain.EditError。
// 优先看 APIError 的状态码和状态名，拿不到时再匹配错误信息中的关键字。
func Classify(model string, err error) *domain.EditError {
	if err == nil {
		return nil
	}
	if editErr, ok := domain.AsEditError(err); ok {
		return editErr
	}

	code, status, message := apiErrorFields(err)
	kind := domain.KindSynthesis

	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		kind = domain.KindQuota
	case code == http.StatusNotFound || status == "NOT_FOUND":
		kind = domain.KindNotFound
	case code == http.StatusForbidden || status == "PERMISSION_DENIED":
		kind = domain.KindPermission
	case code == http.StatusBadRequest:
		// 400 保持 synthesis，由 Status 决定是否可重试
	case code == 0:
		kind, code = classifyMessage(message)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind, code = domain.KindSynthesis, 0
	}

	return &domain.EditError{
		Kind:    kind,
		Message: message,
		Model:   model,
		Status:  code,
		Err:     err,
	}
}

// apiErrorFields 从错误链中取出 genai.APIError 的字段
func apiErrorFields(err error) (int, string, string) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, strings.ToUpper(apiErr.Status), apiErr.Message
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, strings.ToUpper(apiErrPtr.Status), apiErrPtr.Message
	}
	return 0, "", err.Error()
}

// classifyMessage 没有结构化状态时按错误文本归类
func classifyMessage(message string) (domain.ErrorKind, int) {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "429") || strings.Contains(lower, "resource_exhausted") ||
		strings.Contains(lower, "quota") || strings.Contains(lower, "limit"):
		return domain.KindQuota, http.StatusTooManyRequests
	case strings.Contains(lower, "404") || strings.Contains(lower, "not_found") ||
		strings.Contains(lower, "requested entity was not found"):
		return domain.KindNotFound, http.StatusNotFound
	case strings.Contains(lower, "403") || strings.Contains(lower, "permission_denied") ||
		strings.Contains(lower, "permission denied"):
		return domain.KindPermission, http.StatusForbidden
	case strings.Contains(lower, "400") || strings.Contains(lower, "invalid_argument"):
		return domain.KindSynthesis, http.StatusBadRequest
	}
	return domain.KindSynthesis, 0
}
