package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/travelplanner/internal/calendarsync"
	"github.com/hitoshi/travelplanner/internal/model"
)

// SyncServiceInterface はカレンダー同期ハンドラーが必要とするサービスインターフェース。
type SyncServiceInterface interface {
	Prepare(ctx context.Context, userID, sessionID string, in calendarsync.PrepareInput) (*calendarsync.PrepareResult, error)
	Callback(ctx context.Context, sessionID string, in calendarsync.CallbackInput) (string, error)
}

// SyncHandlerConfig はカレンダー同期ハンドラーの設定。
type SyncHandlerConfig struct {
	CookieSecure bool
	CookieMaxAge int // セッションCookieの有効期間（秒）
}

// SyncHandler はカレンダー同期の2段階OAuthフローのHTTPハンドラー。
type SyncHandler struct {
	service SyncServiceInterface
	config  SyncHandlerConfig
}

// NewSyncHandler はSyncHandlerを生成する。
func NewSyncHandler(service SyncServiceInterface, config SyncHandlerConfig) *SyncHandler {
	return &SyncHandler{service: service, config: config}
}

type prepareSyncRequest struct {
	ItineraryID string `json:"itineraryId"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

type prepareSyncResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
}

// Prepare は同期パラメータを保存し、認可URLを返す。
// リダイレクトはせず、画面遷移は呼び出し側が行う。
// POST /api/google/prepare-sync
func (h *SyncHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req prepareSyncRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var sessionID string
	if c, err := r.Cookie(calendarsync.SessionCookieName); err == nil {
		sessionID = c.Value
	}

	result, err := h.service.Prepare(r.Context(), userID, sessionID, calendarsync.PrepareInput{
		ItineraryID: req.ItineraryID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(result.SessionID))
	writeJSON(w, http.StatusOK, prepareSyncResponse{AuthorizationURL: result.AuthorizationURL})
}

// Callback は認可サーバーからのリダイレクトを処理する。
// ブラウザが直接開くURLのため、エラーはプレーンテキストで返す。
// GET /api/google/callback?code=xxx&state=yyy
func (h *SyncHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var sessionID string
	if c, err := r.Cookie(calendarsync.SessionCookieName); err == nil {
		sessionID = c.Value
	}

	q := r.URL.Query()
	redirectURL, err := h.service.Callback(r.Context(), sessionID, calendarsync.CallbackInput{
		Code:  q.Get("code"),
		State: q.Get("state"),
		Error: q.Get("error"),
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			slog.Warn("calendar sync callback failed",
				slog.String("error_code", apiErr.Code),
				slog.String("error", apiErr.Message),
			)
			http.Error(w, apiErr.Message+"\n"+apiErr.Action, mapAPIErrorToHTTPStatus(apiErr))
			return
		}
		slog.Error("calendar sync callback failed", slog.String("error", err.Error()))
		http.Error(w, model.NewInternalError().Message, http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// sessionCookie は同期セッションCookieを組み立てる。
// 認可サーバーからのトップレベル遷移でも送信されるよう、HTTPSではSameSite=Noneとする。
func (h *SyncHandler) sessionCookie(sessionID string) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if h.config.CookieSecure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     calendarsync.SessionCookieName,
		Value:    sessionID,
		Path:     "/api/google",
		MaxAge:   h.config.CookieMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: sameSite,
	}
}
