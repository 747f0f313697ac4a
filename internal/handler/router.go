package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"github.com/hitoshi/travelplanner/internal/metrics"
	"github.com/hitoshi/travelplanner/internal/middleware"
	"github.com/hitoshi/travelplanner/internal/model"
)

// HealthChecker はヘルスチェックで疎通を確認する依存のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 運用
	HealthChecker    HealthChecker
	MetricsCollector metrics.MetricsCollector // nilの場合は記録しない
	MetricsHandler   http.Handler             // nilの場合は/metricsを公開しない

	// 認証・行程
	AuthService      AuthServiceInterface
	ItineraryService ItineraryServiceInterface

	// 外部サービスのプロキシ
	ChatService   ChatServiceInterface
	RouteService  RouteServiceInterface
	ExportService ExportServiceInterface

	// カレンダー同期
	SyncService SyncServiceInterface
	SyncConfig  SyncHandlerConfig
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したハンドラーを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Gzip → Logging → Metrics → Recovery → SecurityHeaders → CORS → RateLimit(General)
//	  → Auth（認証が必要なルートのみ） / RateLimit(Upstream)（プロキシのみ）
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.MetricsCollector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.MetricsCollector))
	}
	// panicも500としてログとメトリクスに残すため、その内側で回復する
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	itineraryHandler := NewItineraryHandler(deps.ItineraryService)
	proxyHandler := NewProxyHandler(deps.ChatService, deps.RouteService, deps.ExportService)
	syncHandler := NewSyncHandler(deps.SyncService, deps.SyncConfig)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
	})

	// --- 運用エンドポイント（レート制限なし） ---
	r.Get("/", welcome)
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// --- 認証不要のルート ---
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)

		// ブラウザが認可サーバーから戻ってくるため、ベアラートークンは持たない
		r.Get("/api/google/callback", syncHandler.Callback)

		// 外部サービスを呼ぶプロキシは専用のレート制限を追加
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.UpstreamMiddleware())
			r.Post("/api/chat", proxyHandler.Chat)
			r.Post("/api/route", proxyHandler.Route)
			r.Post("/api/export/email", proxyHandler.ExportEmail)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))

			r.Get("/api/auth/me", authHandler.Me)

			r.Route("/api/itineraries", func(r chi.Router) {
				r.Post("/", itineraryHandler.Create)
				r.Get("/", itineraryHandler.List)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", itineraryHandler.Get)
					r.Put("/", itineraryHandler.Update)
					r.Delete("/", itineraryHandler.Delete)
				})
			})

			r.Post("/api/google/prepare-sync", syncHandler.Prepare)
		})
	})

	return gzhttp.GzipHandler(r)
}

// welcome はサービスの案内を返す。
func welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "travelplanner API"})
}

// healthHandler はDBへの疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
