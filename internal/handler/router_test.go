package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/travelplanner/internal/metrics"
	"github.com/hitoshi/travelplanner/internal/middleware"
)

const testOrigin = "http://localhost:5173"

type stubHealthChecker struct {
	err error
}

func (s *stubHealthChecker) PingContext(ctx context.Context) error {
	return s.err
}

// newTestRouterDeps はモックサービスで構成したRouterDepsを返す。
// トークン "valid-token" は user-1 として認証される。
func newTestRouterDeps(t *testing.T, rlConfig middleware.RateLimiterConfig) *RouterDeps {
	t.Helper()
	rl := middleware.NewRateLimiter(rlConfig)
	t.Cleanup(rl.Stop)

	return &RouterDeps{
		TokenVerifier:     &mockVerifier{tokens: map[string]string{"valid-token": "user-1"}},
		CORSAllowedOrigin: testOrigin,
		RateLimiter:       rl,
		HealthChecker:     &stubHealthChecker{},
		AuthService:       &mockAuthService{},
		ItineraryService:  &mockItineraryService{},
		ChatService:       &mockChatService{},
		RouteService:      &mockRouteService{},
		ExportService:     &mockExportService{},
		SyncService:       &mockSyncService{},
		SyncConfig:        SyncHandlerConfig{CookieMaxAge: 600},
	}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicRoutes(t *testing.T) {
	router := NewRouter(newTestRouterDeps(t, middleware.DefaultRateLimiterConfig()))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"welcome", http.MethodGet, "/", "", http.StatusOK},
		{"register", http.MethodPost, "/api/auth/register", `{"email":"a@example.com","password":"secret1"}`, http.StatusCreated},
		{"login", http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"secret1"}`, http.StatusOK},
		{"chat", http.MethodPost, "/api/chat", `{"message":"hi"}`, http.StatusOK},
		{"route", http.MethodPost, "/api/route", `{"startCity":"Paris","endCity":"Lyon"}`, http.StatusOK},
		{"export", http.MethodPost, "/api/export/email", `{"email":"a@example.com","history":[]}`, http.StatusOK},
		{"callback", http.MethodGet, "/api/google/callback?code=c&state=s", "", http.StatusFound},
		{"unknown", http.MethodGet, "/api/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := serve(router, req)
			if w.Code != tt.want {
				t.Errorf("%s %s: status = %d, want %d (body: %s)", tt.method, tt.path, w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router := NewRouter(newTestRouterDeps(t, middleware.DefaultRateLimiterConfig()))

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/itineraries"},
		{http.MethodPost, "/api/itineraries"},
		{http.MethodGet, "/api/itineraries/it-1"},
		{http.MethodPut, "/api/itineraries/it-1"},
		{http.MethodDelete, "/api/itineraries/it-1"},
		{http.MethodPost, "/api/google/prepare-sync"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := serve(router, httptest.NewRequest(rt.method, rt.path, strings.NewReader(`{}`)))
			if w.Code != http.StatusUnauthorized {
				t.Errorf("トークンなし: status = %d, want %d", w.Code, http.StatusUnauthorized)
			}

			req := httptest.NewRequest(rt.method, rt.path, strings.NewReader(`{}`))
			req.Header.Set("Authorization", "Bearer wrong-token")
			w = serve(router, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("不正なトークン: status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRouter_ProtectedRouteWithValidToken(t *testing.T) {
	deps := newTestRouterDeps(t, middleware.DefaultRateLimiterConfig())
	var gotUserID string
	deps.ItineraryService = &mockItineraryService{
		listFn: func(ctx context.Context, userID string) ([]itineraryResponse, error) {
			gotUserID = userID
			return []itineraryResponse{{ID: "it-1"}}, nil
		},
	}
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/itineraries", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := serve(router, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUserID != "user-1" {
		t.Errorf("userID = %q, want user-1", gotUserID)
	}
}

func TestRouter_PreflightSkipsAuth(t *testing.T) {
	router := NewRouter(newTestRouterDeps(t, middleware.DefaultRateLimiterConfig()))

	req := httptest.NewRequest(http.MethodOptions, "/api/itineraries", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(router, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, testOrigin)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q", got)
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router := NewRouter(newTestRouterDeps(t, middleware.DefaultRateLimiterConfig()))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestRouter_Health(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		router := NewRouter(newTestRouterDeps(t, middleware.DefaultRateLimiterConfig()))
		w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("db unavailable", func(t *testing.T) {
		deps := newTestRouterDeps(t, middleware.DefaultRateLimiterConfig())
		deps.HealthChecker = &stubHealthChecker{err: errors.New("connection refused")}
		router := NewRouter(deps)
		w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
		if !strings.Contains(w.Body.String(), "unavailable") {
			t.Errorf("body = %q", w.Body.String())
		}
	})
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	deps := newTestRouterDeps(t, middleware.DefaultRateLimiterConfig())
	deps.MetricsCollector = metrics.NewCollector(reg)
	deps.MetricsHandler = metrics.Handler(reg)
	router := NewRouter(deps)

	serve(router, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `travelplanner_http_status_total{status_code="401"} 1`) {
		t.Errorf("401のステータスが記録されていない:\n%s", w.Body.String())
	}
}

func TestRouter_MetricsDisabled(t *testing.T) {
	router := NewRouter(newTestRouterDeps(t, middleware.DefaultRateLimiterConfig()))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRouter_GeneralRateLimit(t *testing.T) {
	router := NewRouter(newTestRouterDeps(t, middleware.PerMinuteRateLimiterConfig(2, 100)))

	for i := 0; i < 2; i++ {
		w := serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`)))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}

	w := serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`)))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーがない")
	}

	// 運用エンドポイントは制限しない
	if w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil)); w.Code != http.StatusOK {
		t.Errorf("health: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_UpstreamRateLimitOnlyAffectsProxies(t *testing.T) {
	router := NewRouter(newTestRouterDeps(t, middleware.PerMinuteRateLimiterConfig(100, 1)))

	if w := serve(router, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"a"}`))); w.Code != http.StatusOK {
		t.Fatalf("first chat: status = %d", w.Code)
	}
	if w := serve(router, httptest.NewRequest(http.MethodPost, "/api/route", strings.NewReader(`{"startCity":"a","endCity":"b"}`))); w.Code != http.StatusTooManyRequests {
		t.Errorf("second proxy call: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w := serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))); w.Code != http.StatusOK {
		t.Errorf("login: status = %d, want %d", w.Code, http.StatusOK)
	}
}
