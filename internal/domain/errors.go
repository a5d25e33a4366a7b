package domain

import "errors"

// Определение ошибок пайплайна
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidName        = errors.New("invalid name")
	ErrQuotaExceeded      = errors.New("storage quota exceeded")
	ErrCompressionFailed  = errors.New("compression failed")
	ErrSecurityViolation  = errors.New("path outside storage sandbox")
	ErrStorageUnavailable = errors.New("storage backend unavailable")
	ErrVerificationFailed = errors.New("post-write verification failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
)

// ErrorKind классифицирует ошибку для слоя представления
type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "invalid_input"
	KindInvalidName        ErrorKind = "invalid_name"
	KindQuotaExceeded      ErrorKind = "quota_exceeded"
	KindCompressionFailed  ErrorKind = "compression_failed"
	KindSecurityViolation  ErrorKind = "security_violation"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	KindVerificationFailed ErrorKind = "verification_failed"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindNotFound           ErrorKind = "not_found"
	KindInternal           ErrorKind = "internal"
)

// Categorize определяет вид ошибки. Бизнес-логика возвращает обычные
// ошибки, а сопоставление с ответом пользователю происходит здесь.
func Categorize(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidName):
		return KindInvalidName
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrCompressionFailed):
		return KindCompressionFailed
	case errors.Is(err, ErrSecurityViolation):
		return KindSecurityViolation
	case errors.Is(err, ErrStorageUnavailable):
		return KindStorageUnavailable
	case errors.Is(err, ErrVerificationFailed):
		return KindVerificationFailed
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
