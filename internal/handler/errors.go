package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/travelplanner/internal/middleware"
	"github.com/hitoshi/travelplanner/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。会話履歴を含むため大きめに取る。
const maxRequestBodyBytes = 2 << 20

// apiErrorResponse は統一エラーフォーマットのレスポンス。
// 認証やレート制限のミドルウェアが返すエラーと同じ形にする。
type apiErrorResponse = middleware.ErrorResponseBody

// messageResponse は処理結果のメッセージだけを返すレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをデコードする。未知のフィールドは無視する。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// requireUserID は認証ミドルウェアが注入したユーザーIDを取得する。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode >= http.StatusInternalServerError {
			slog.Warn("upstream failure", slog.String("error_code", apiErr.Code), slog.String("error", apiErr.Message))
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
// 他ユーザーの行程へのアクセスは既存クライアントとの互換のため401で返す。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidRequest,
		model.ErrCodeDuplicateEmail, model.ErrCodeInvalidCredentials,
		model.ErrCodeSessionExpired:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeForbidden:
		return http.StatusUnauthorized
	case model.ErrCodeNotFound, model.ErrCodeItineraryNotFound, model.ErrCodeCityNotFound:
		return http.StatusNotFound
	case model.ErrCodeUpstream, model.ErrCodeRouting,
		model.ErrCodeAuthExchange, model.ErrCodeDelivery:
		return http.StatusBadGateway
	case model.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
