package httpapi

import "wisefido-casebook/internal/domain"

// Result 统一响应信封
// - code: 2000 成功，-1 失败
// - type: 'success' | 'error'
// - reason: 失败分类（UNAUTHENTICATED / FORBIDDEN / ...），成功时省略
// - errors: 字段级校验错误
type Result[T any] struct {
	Code    int                 `json:"code"`
	Type    string              `json:"type"`
	Message string              `json:"message"`
	Result  T                   `json:"result"`
	Reason  string              `json:"reason,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

// 失败分类
const (
	ReasonUnauthenticated     = "UNAUTHENTICATED"
	ReasonInvalidCredentials  = "INVALID_CREDENTIALS"
	ReasonForbidden           = "FORBIDDEN"
	ReasonNotFound            = "NOT_FOUND"
	ReasonValidationFailed    = "VALIDATION_FAILED"
	ReasonDuplicateEmail      = "DUPLICATE_EMAIL"
	ReasonNoProviderAvailable = "NO_PROVIDER_AVAILABLE"
	ReasonInternalFailure     = "INTERNAL_FAILURE"
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(reason, message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Reason: reason}
}
