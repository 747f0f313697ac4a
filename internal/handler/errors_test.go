package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/travelplanner/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *model.APIError
		want int
	}{
		{"validation", model.NewValidationError("x"), http.StatusBadRequest},
		{"invalid request", model.NewInvalidRequestError(), http.StatusBadRequest},
		{"duplicate email", model.NewDuplicateEmailError(), http.StatusBadRequest},
		{"invalid credentials", model.NewInvalidCredentialsError(), http.StatusBadRequest},
		{"session expired", model.NewSessionExpiredError(), http.StatusBadRequest},
		{"unauthorized", model.NewUnauthorizedError(), http.StatusUnauthorized},
		{"forbidden", model.NewForbiddenError(), http.StatusUnauthorized},
		{"not found", model.NewNotFoundError(), http.StatusNotFound},
		{"itinerary not found", model.NewItineraryNotFoundError("x"), http.StatusNotFound},
		{"city not found", model.NewCityNotFoundError("x"), http.StatusNotFound},
		{"upstream", model.NewUpstreamError("OpenAI", "x"), http.StatusBadGateway},
		{"routing", model.NewRoutingError("x"), http.StatusBadGateway},
		{"auth exchange", model.NewAuthExchangeError("x"), http.StatusBadGateway},
		{"delivery", model.NewDeliveryError("x"), http.StatusBadGateway},
		{"rate limit", model.NewRateLimitError(), http.StatusTooManyRequests},
		{"internal", model.NewInternalError(), http.StatusInternalServerError},
		{"unknown", &model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, fmt.Errorf("wrapped: %w", model.NewCityNotFoundError("Atlantis")))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeCityNotFound || body.Category != "route" || body.Action == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestHandleServiceError_PlainError(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if body.Message == "pq: connection refused" {
		t.Error("内部エラーの詳細を返してはならない")
	}
}

func TestRequireUserID_Missing(t *testing.T) {
	w := httptest.NewRecorder()
	_, ok := requireUserID(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if ok {
		t.Fatal("ユーザーIDがない場合はfalseを返すべき")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
