package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ItineraryServiceInterface は行程ハンドラーが必要とするサービスインターフェース。
type ItineraryServiceInterface interface {
	Create(ctx context.Context, userID string, req createItineraryRequest) (*itineraryResponse, error)
	List(ctx context.Context, userID string) ([]itineraryResponse, error)
	Get(ctx context.Context, userID, itineraryID string) (*itineraryResponse, error)
	UpdateTitle(ctx context.Context, userID, itineraryID, title string) (*itineraryResponse, error)
	Delete(ctx context.Context, userID, itineraryID string) error
}

// ItineraryHandler は行程管理のHTTPハンドラー。
type ItineraryHandler struct {
	service ItineraryServiceInterface
}

// NewItineraryHandler はItineraryHandlerを生成する。
func NewItineraryHandler(service ItineraryServiceInterface) *ItineraryHandler {
	return &ItineraryHandler{service: service}
}

// turnPayload は会話の1ターンのJSON表現。
type turnPayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// routePayload は出発地と目的地のJSON表現。
type routePayload struct {
	StartCity string `json:"startCity"`
	EndCity   string `json:"endCity"`
}

// createItineraryRequest は行程作成リクエストのボディ。
type createItineraryRequest struct {
	Title        string        `json:"title"`
	Conversation []turnPayload `json:"conversation"`
	Route        routePayload  `json:"route"`
}

// updateItineraryRequest は行程タイトル更新リクエストのボディ。
type updateItineraryRequest struct {
	Title string `json:"title"`
}

// itineraryResponse は行程のAPIレスポンス。
type itineraryResponse struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Conversation []turnPayload `json:"conversation"`
	Route        routePayload  `json:"route"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Create は行程を作成する。
// POST /api/itineraries
func (h *ItineraryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createItineraryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	it, err := h.service.Create(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, it)
}

// List は認証ユーザーの行程一覧を新しい順に返す。
// GET /api/itineraries
func (h *ItineraryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	list, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// Get は行程を1件返す。
// GET /api/itineraries/{id}
func (h *ItineraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	it, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, it)
}

// Update は行程のタイトルを更新する。
// PUT /api/itineraries/{id}
func (h *ItineraryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateItineraryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	it, err := h.service.UpdateTitle(r.Context(), userID, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, it)
}

// Delete は行程を削除する。
// DELETE /api/itineraries/{id}
func (h *ItineraryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "行程を削除しました。"})
}
