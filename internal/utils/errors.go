// internal/utils/errors.go
package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stockpics/backend/internal/i18n"
)

// Error codes surfaced in APIError.Code.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeInvalidEvent    = "INVALID_EVENT"
	CodeUpstreamFailure = "UPSTREAM_FAILURE"
	CodeConflict        = "CONFLICT"
	CodeInternal        = "INTERNAL_ERROR"
)

// AppError carries an API error code, its HTTP status, and an i18n message key.
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(code string, status int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

func NewUnauthenticated(message string, err error) *AppError {
	return newAppError(CodeUnauthenticated, http.StatusUnauthorized, message, err)
}

func NewForbidden(message string) *AppError {
	return newAppError(CodeForbidden, http.StatusForbidden, message, nil)
}

func NewNotFound(message string) *AppError {
	return newAppError(CodeNotFound, http.StatusNotFound, message, nil)
}

func NewInvalidInput(message string, err error) *AppError {
	return newAppError(CodeInvalidInput, http.StatusBadRequest, message, err)
}

func NewInvalidEvent(message string, err error) *AppError {
	return newAppError(CodeInvalidEvent, http.StatusBadRequest, message, err)
}

func NewUpstreamFailure(message string, err error) *AppError {
	return newAppError(CodeUpstreamFailure, http.StatusBadGateway, message, err)
}

func NewConflict(message string) *AppError {
	return newAppError(CodeConflict, http.StatusConflict, message, nil)
}

func NewInternal(err error) *AppError {
	return newAppError(CodeInternal, http.StatusInternalServerError, i18n.KeyInternalError, err)
}

// ErrorCode returns the AppError code of err, or CodeInternal for anything else.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// HandleError renders err in the standard envelope. Messages are treated as
// i18n keys and translated for the request language.
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = NewInternal(err)
	}

	entry := logrus.WithFields(logrus.Fields{
		"code":   appErr.Code,
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	})
	if appErr.Err != nil {
		entry = entry.WithError(appErr.Err)
	}
	if appErr.Status >= http.StatusInternalServerError {
		entry.Error(appErr.Message)
	} else {
		entry.Debug(appErr.Message)
	}

	lang := GetLangFromContext(c)
	ErrorResponse(c, appErr.Status, appErr.Code, i18n.T(lang, appErr.Message), nil)
}
