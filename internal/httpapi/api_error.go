package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/John-Robertt/rulesync/internal/fetch"
	"github.com/John-Robertt/rulesync/internal/metrics"
	"github.com/John-Robertt/rulesync/internal/model"
	"github.com/John-Robertt/rulesync/internal/render"
)

// APIError is used by the HTTP layer for request validation and a few
// HTTP-specific errors.
type APIError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

func apiError(status int, app model.AppError, cause error) error {
	return &APIError{Status: status, AppError: app, Cause: cause}
}

func requestError(code, message, hint string) error {
	return apiError(http.StatusBadRequest, model.AppError{
		Code:    code,
		Message: message,
		Stage:   "validate_request",
		Hint:    hint,
	}, nil)
}

// errorStatus maps an error to its HTTP status and payload.
func errorStatus(err error) (int, model.AppError) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status, ae.AppError
	}

	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return fe.Status, fe.AppError
	}

	if errors.Is(err, render.ErrNothingToEmit) {
		return http.StatusUnprocessableEntity, model.AppError{
			Code:    "NO_OUTPUT",
			Message: "输入中没有可转换的规则",
			Stage:   "render",
		}
	}

	// Render errors are user content errors => 422.
	var re *render.RenderError
	if errors.As(err, &re) {
		return http.StatusUnprocessableEntity, re.AppError
	}

	// Fallback: internal bug.
	return http.StatusInternalServerError, model.AppError{
		Code:    "INTERNAL_ERROR",
		Message: "服务端内部错误",
		Stage:   "internal",
		Hint:    err.Error(),
	}
}

func writeErrorFromErr(w http.ResponseWriter, m *metrics.Collector, err error) {
	if err == nil {
		return
	}
	status, app := errorStatus(err)
	if m != nil {
		m.IncAppError(app.Stage, app.Code)
	}
	WriteError(w, status, app)
}
