package projects

import (
	"errors"
	"net/http"
)

// Domain errors for project operations. ErrNotFound covers both absent
// rows and rows owned by another user so existence is never leaked.
var (
	ErrNotFound    = errors.New("project not found")
	ErrDuplicate   = errors.New("project already exists")
	ErrValidation  = errors.New("validation failed")
	ErrNotTemplate = errors.New("project is not a template")
)

// MapHTTPStatus maps project domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotTemplate) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
