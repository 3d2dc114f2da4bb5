package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrInvalidEvidence      = errors.New("invalid evidence")
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrInferenceUnavailable = errors.New("inference unavailable")
	ErrRateLimited          = errors.New("rate limited")
	ErrFetchTimeout         = errors.New("fetch timeout")
	ErrFetchFailed          = errors.New("fetch failed")
	ErrPersistence          = errors.New("persistence failure")
	ErrMalformedResponse    = errors.New("malformed response")
	ErrConfiguration        = errors.New("configuration error")
	ErrNotFound             = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrInferenceUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetriable reports whether the caller may retry the failed operation later.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrInferenceUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrFetchTimeout)
}

// IsInputError reports whether err was caused by the caller's evidence.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidEvidence) || errors.Is(err, ErrUnsupportedFormat)
}

// HTTPStatus maps a pipeline error to the status code returned to clients.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrInvalidEvidence):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInferenceUnavailable), errors.Is(err, ErrFetchTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a short machine-readable code for err, used in response warnings.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidEvidence):
		return "invalid_evidence"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInferenceUnavailable):
		return "inference_unavailable"
	case errors.Is(err, ErrFetchTimeout):
		return "fetch_timeout"
	case errors.Is(err, ErrFetchFailed):
		return "fetch_failed"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
