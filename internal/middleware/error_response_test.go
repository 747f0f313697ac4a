package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/travelplanner/internal/model"
)

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		apiErr *model.APIError
	}{
		{"未認証", http.StatusUnauthorized, model.NewUnauthorizedError()},
		{"レート制限", http.StatusTooManyRequests, model.NewRateLimitError()},
		{"内部エラー", http.StatusInternalServerError, model.NewInternalError()},
		{"任意のエラー", http.StatusBadRequest, &model.APIError{
			Code:     "TEST_ERROR",
			Message:  "テストエラーです。",
			Category: "validation",
			Action:   "正しい値を入力してください。",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErrorResponse(w, tt.status, tt.apiErr)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("レスポンスボディのデコードに失敗: %v", err)
			}
			want := ErrorResponseBody{
				Code:     tt.apiErr.Code,
				Message:  tt.apiErr.Message,
				Category: tt.apiErr.Category,
				Action:   tt.apiErr.Action,
			}
			if body != want {
				t.Errorf("body = %+v, want %+v", body, want)
			}
		})
	}
}

// エラーボディはcode, message, category, actionの4キーだけを持つ。
func TestWriteErrorResponse_BodyKeys(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())

	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("JSONのパースに失敗: %v", err)
	}
	if len(raw) != 4 {
		t.Errorf("キー数 = %d, want 4: %v", len(raw), raw)
	}
	for _, key := range []string{"code", "message", "category", "action"} {
		if v, ok := raw[key].(string); !ok || v == "" {
			t.Errorf("%s が空または欠落: %v", key, raw)
		}
	}
}

func TestWriteInternalServerError_HidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != model.ErrCodeInternal || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}
