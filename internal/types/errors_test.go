package types

import (
	"errors"
	"net/http"
	"testing"
)

func TestErrorCode_HTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeValidationMissingField:  http.StatusBadRequest,
		ErrCodeValidationInvalidCond:   http.StatusBadRequest,
		ErrCodeNotFoundAlert:           http.StatusNotFound,
		ErrCodeConflictStatus:          http.StatusConflict,
		ErrCodeUpstreamWeather:         http.StatusBadGateway,
		ErrCodeUpstreamRateLimit:       http.StatusTooManyRequests,
		ErrCodeInternalDB:              http.StatusInternalServerError,
		ErrCodeTaskRetryable:           http.StatusInternalServerError,
		ErrorCode("something_unknown"): http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%s: got %d want %d", code, got, want)
		}
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewAppError(ErrCodeInternalDB, "query failed", inner)

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}

	var appErr *AppError
	if !errors.As(error(err), &appErr) {
		t.Fatal("errors.As should extract *AppError")
	}
	if appErr.Code != ErrCodeInternalDB {
		t.Errorf("unexpected code: %s", appErr.Code)
	}
}

func TestAppError_WithDetails(t *testing.T) {
	base := NewAppErrorWithDetails(ErrCodeNotFoundAlert, "alert not found", nil,
		map[string]any{"alert_id": "alr_1"})
	enriched := base.WithDetails(map[string]any{"query": "due"})

	if len(base.Details) != 1 {
		t.Error("WithDetails must not mutate the original error")
	}
	if enriched.Details["alert_id"] != "alr_1" || enriched.Details["query"] != "due" {
		t.Errorf("merged details incomplete: %v", enriched.Details)
	}
}
