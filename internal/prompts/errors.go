package prompts

import (
	"errors"
	"net/http"
)

// Domain errors for prompt operations. ErrNotFound covers both absent rows
// and rows reachable only through another user's project.
var (
	ErrNotFound   = errors.New("prompt not found")
	ErrDuplicate  = errors.New("prompt already exists")
	ErrValidation = errors.New("validation failed")
)

// MapHTTPStatus maps prompt domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
