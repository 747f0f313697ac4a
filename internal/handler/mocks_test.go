package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/travelplanner/internal/calendarsync"
	"github.com/hitoshi/travelplanner/internal/middleware"
	"github.com/hitoshi/travelplanner/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn       func(ctx context.Context, email, password string) (*model.User, error)
	loginFn          func(ctx context.Context, email, password string) (string, error)
	getCurrentUserFn func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password)
	}
	return &model.User{ID: "user-1", Email: email}, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (string, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return "token", nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, userID)
	}
	return &model.User{ID: userID, Email: "user@example.com"}, nil
}

type mockItineraryService struct {
	createFn      func(ctx context.Context, userID string, req createItineraryRequest) (*itineraryResponse, error)
	listFn        func(ctx context.Context, userID string) ([]itineraryResponse, error)
	getFn         func(ctx context.Context, userID, itineraryID string) (*itineraryResponse, error)
	updateTitleFn func(ctx context.Context, userID, itineraryID, title string) (*itineraryResponse, error)
	deleteFn      func(ctx context.Context, userID, itineraryID string) error
}

func (m *mockItineraryService) Create(ctx context.Context, userID string, req createItineraryRequest) (*itineraryResponse, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, req)
	}
	return &itineraryResponse{ID: "it-1", Title: req.Title}, nil
}

func (m *mockItineraryService) List(ctx context.Context, userID string) ([]itineraryResponse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return []itineraryResponse{}, nil
}

func (m *mockItineraryService) Get(ctx context.Context, userID, itineraryID string) (*itineraryResponse, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, itineraryID)
	}
	return &itineraryResponse{ID: itineraryID}, nil
}

func (m *mockItineraryService) UpdateTitle(ctx context.Context, userID, itineraryID, title string) (*itineraryResponse, error) {
	if m.updateTitleFn != nil {
		return m.updateTitleFn(ctx, userID, itineraryID, title)
	}
	return &itineraryResponse{ID: itineraryID, Title: title}, nil
}

func (m *mockItineraryService) Delete(ctx context.Context, userID, itineraryID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, itineraryID)
	}
	return nil
}

type mockChatService struct {
	replyFn func(ctx context.Context, message string) (string, error)
}

func (m *mockChatService) Reply(ctx context.Context, message string) (string, error) {
	if m.replyFn != nil {
		return m.replyFn(ctx, message)
	}
	return "reply: " + message, nil
}

type mockRouteService struct {
	planFn func(ctx context.Context, startCity, endCity string) (*routeResponse, error)
}

func (m *mockRouteService) Plan(ctx context.Context, startCity, endCity string) (*routeResponse, error) {
	if m.planFn != nil {
		return m.planFn(ctx, startCity, endCity)
	}
	return &routeResponse{Route: json.RawMessage(`{"type":"LineString","coordinates":[]}`)}, nil
}

type mockExportService struct {
	emailFn func(ctx context.Context, email string, history []turnPayload) error
}

func (m *mockExportService) EmailHandbook(ctx context.Context, email string, history []turnPayload) error {
	if m.emailFn != nil {
		return m.emailFn(ctx, email, history)
	}
	return nil
}

type mockSyncService struct {
	prepareFn  func(ctx context.Context, userID, sessionID string, in calendarsync.PrepareInput) (*calendarsync.PrepareResult, error)
	callbackFn func(ctx context.Context, sessionID string, in calendarsync.CallbackInput) (string, error)
}

func (m *mockSyncService) Prepare(ctx context.Context, userID, sessionID string, in calendarsync.PrepareInput) (*calendarsync.PrepareResult, error) {
	if m.prepareFn != nil {
		return m.prepareFn(ctx, userID, sessionID, in)
	}
	return &calendarsync.PrepareResult{AuthorizationURL: "https://accounts.google.com/o/oauth2/auth", SessionID: strings.Repeat("a", 64)}, nil
}

func (m *mockSyncService) Callback(ctx context.Context, sessionID string, in calendarsync.CallbackInput) (string, error) {
	if m.callbackFn != nil {
		return m.callbackFn(ctx, sessionID, in)
	}
	return "http://localhost:5173/?sync_success=true", nil
}

// mockVerifier は固定のトークン表で検証するTokenVerifier。
type mockVerifier struct {
	tokens map[string]string
}

func (m *mockVerifier) Verify(token string) (string, error) {
	if userID, ok := m.tokens[token]; ok {
		return userID, nil
	}
	return "", model.NewUnauthorizedError()
}

// --- テストヘルパー ---

// authedRequest はユーザーIDをコンテキストに注入したリクエストを生成する。
func authedRequest(method, target, body, userID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

// decodeErrorBody はエラーレスポンスのボディをデコードする。
func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) apiErrorResponse {
	t.Helper()
	var body apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v (raw: %s)", err, w.Body.String())
	}
	return body
}
