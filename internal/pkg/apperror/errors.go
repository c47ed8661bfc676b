package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

var (
	ErrReportNotFound     = New(ErrCodeNotFound, "сообщение о пожаре не найдено")
	ErrInvalidStatus      = New(ErrCodeValidation, "неизвестный статус сообщения")
	ErrInvalidTransition  = New(ErrCodeValidation, "недопустимый переход статуса")
	ErrStatusConflict     = New(ErrCodeValidation, "статус сообщения изменён параллельно, повторите попытку")
	ErrInvalidUrgency     = New(ErrCodeValidation, "неизвестный уровень срочности")
	ErrInvalidLocation    = New(ErrCodeValidation, "координаты вне допустимого диапазона")
	ErrInvalidAttachment  = New(ErrCodeValidation, "недопустимый файл фотографии")
	ErrDescriptionTooLong = New(ErrCodeValidation, "описание превышает 500 символов")
	ErrAdminForbidden     = New(ErrCodeForbidden, "неверный пароль администратора")
)
