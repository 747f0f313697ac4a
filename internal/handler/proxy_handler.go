package handler

import (
	"context"
	"encoding/json"
	"net/http"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	Reply(ctx context.Context, message string) (string, error)
}

// RouteServiceInterface はルートハンドラーが必要とするサービスインターフェース。
type RouteServiceInterface interface {
	Plan(ctx context.Context, startCity, endCity string) (*routeResponse, error)
}

// ExportServiceInterface はエクスポートハンドラーが必要とするサービスインターフェース。
type ExportServiceInterface interface {
	EmailHandbook(ctx context.Context, email string, history []turnPayload) error
}

// ProxyHandler は外部サービスを呼び出すステートレスなHTTPハンドラー。
type ProxyHandler struct {
	chat   ChatServiceInterface
	route  RouteServiceInterface
	export ExportServiceInterface
}

// NewProxyHandler はProxyHandlerを生成する。
func NewProxyHandler(chat ChatServiceInterface, route RouteServiceInterface, export ExportServiceInterface) *ProxyHandler {
	return &ProxyHandler{chat: chat, route: route, export: export}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type routeRequest struct {
	StartCity string `json:"startCity"`
	EndCity   string `json:"endCity"`
}

// routeResponse はルート計画のAPIレスポンス。
// routeはGeoJSONのLineString、distanceはメートル、durationは秒。
type routeResponse struct {
	Route    json.RawMessage `json:"route"`
	Distance float64         `json:"distance"`
	Duration float64         `json:"duration"`
}

type exportRequest struct {
	Email   string        `json:"email"`
	History []turnPayload `json:"history"`
}

// Chat はメッセージを言語モデルに転送し、応答を返す。
// POST /api/chat
func (h *ProxyHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := h.chat.Reply(r.Context(), req.Message)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// Route は2都市間の車のルートを返す。
// POST /api/route
func (h *ProxyHandler) Route(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.route.Plan(r.Context(), req.StartCity, req.EndCity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ExportEmail は会話履歴をハンドブックとしてメール送信する。
// POST /api/export/email
func (h *ProxyHandler) ExportEmail(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.export.EmailHandbook(r.Context(), req.Email, req.History); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "旅行ハンドブックをメールで送信しました。"})
}
