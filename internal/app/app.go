// Package app はプロセスの起動とサブコマンドごとの依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/travelplanner/internal/auth"
	"github.com/hitoshi/travelplanner/internal/calendarsync"
	"github.com/hitoshi/travelplanner/internal/chat"
	"github.com/hitoshi/travelplanner/internal/config"
	"github.com/hitoshi/travelplanner/internal/database"
	"github.com/hitoshi/travelplanner/internal/export"
	"github.com/hitoshi/travelplanner/internal/handler"
	"github.com/hitoshi/travelplanner/internal/itinerary"
	"github.com/hitoshi/travelplanner/internal/logger"
	"github.com/hitoshi/travelplanner/internal/metrics"
	"github.com/hitoshi/travelplanner/internal/middleware"
	"github.com/hitoshi/travelplanner/internal/repository"
	"github.com/hitoshi/travelplanner/internal/route"
	"github.com/hitoshi/travelplanner/internal/security"
	"github.com/hitoshi/travelplanner/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数を読み込み、ログレベルを反映する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("ignoring LOG_LEVEL", slog.String("error", err.Error()))
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsの先頭のサブコマンドに対応するモードで起動する。
func Run(w io.Writer, args []string) error {
	cmd, rest, err := ParseCommand(args)
	if err != nil {
		return err
	}

	var migrateDir MigrateDirection
	var migrateSteps int
	if cmd == CommandMigrate {
		if migrateDir, migrateSteps, err = parseMigrateArgs(rest); err != nil {
			return err
		}
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, migrateDir, migrateSteps)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// newRegistry はアプリケーションのメトリクスとGo/プロセスの標準メトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newUpstreamClient はbaseURLsへの呼び出しに使うHTTPクライアントを返す。
// すべてが公開ホストの80/443番ポートであればSSRF防止クライアントを使い、
// 自前でホストした内部インスタンスを含む場合は通常のクライアントを使う。
func newUpstreamClient(guard security.SSRFGuardService, cfg *config.Config, baseURLs ...string) *http.Client {
	for _, u := range baseURLs {
		if err := guard.ValidateURL(u); err != nil {
			slog.Info("using unrestricted client for internal upstream",
				slog.String("url", u),
				slog.String("reason", err.Error()),
			)
			return &http.Client{Timeout: cfg.UpstreamTimeout}
		}
	}
	return guard.NewSafeClient(cfg.UpstreamTimeout)
}

// newRouteClient はNominatimとOSRMのクライアントを設定から組み立てる。
// レスポンスボディの上限はUPSTREAM_MAX_SIZEに従う。
func newRouteClient(guard security.SSRFGuardService, collector *metrics.Collector, cfg *config.Config) *route.Client {
	return route.NewClient(
		metrics.InstrumentClient(collector, "osm", newUpstreamClient(guard, cfg, cfg.NominatimURL, cfg.OSRMURL)),
		slog.Default(),
		cfg.NominatimURL,
		cfg.OSRMURL,
		cfg.UpstreamMaxSize,
	)
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	itineraryRepo := repository.NewPostgresItineraryRepo(db)
	pendingRepo := repository.NewPostgresPendingSyncRepo(db)

	// 3. メトリクスとセキュリティ
	reg, collector := newRegistry()
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 4. ドメインサービスの初期化
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(userRepo, tokens, auth.ServiceConfig{})
	itineraryService := itinerary.NewService(itineraryRepo)

	chatService := chat.NewService(chat.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		HTTPClient: metrics.InstrumentClient(collector, "openai", &http.Client{Timeout: cfg.UpstreamTimeout}),
	})

	routeService := route.NewService(newRouteClient(ssrfGuard, collector, cfg))

	pdfRenderer, err := export.NewPDFRenderer(cfg.PDFFontPath)
	if err != nil {
		return fmt.Errorf("failed to initialize PDF renderer: %w", err)
	}
	exportService := export.NewService(
		pdfRenderer,
		export.NewHTMLRenderer(sanitizer),
		export.NewMailer(
			export.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailUser, cfg.EmailPass),
			cfg.EmailUser,
		),
	)

	sessionKeys, err := calendarsync.NewSessionKeys(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("failed to derive session keys: %w", err)
	}
	syncService := calendarsync.NewService(
		pendingRepo,
		itineraryRepo,
		calendarsync.NewGoogleProvider(calendarsync.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			HTTPClient:   metrics.InstrumentClient(collector, "google", &http.Client{Timeout: cfg.UpstreamTimeout}),
		}),
		sessionKeys,
		calendarsync.Config{
			RequestTTL:  cfg.SyncRequestTTL,
			FrontendURL: cfg.FrontendURL,
		},
	)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitUpstream),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		TokenVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		HealthChecker:    db,
		MetricsCollector: collector,
		MetricsHandler:   metrics.Handler(reg),

		AuthService:      authService,
		ItineraryService: handler.NewItineraryServiceAdapter(itineraryService),

		ChatService:   chatService,
		RouteService:  handler.NewRouteServiceAdapter(routeService),
		ExportService: handler.NewExportServiceAdapter(exportService),

		SyncService: syncService,
		SyncConfig: handler.SyncHandlerConfig{
			CookieSecure: cfg.CookieSecure,
			CookieMaxAge: int(cfg.SyncRequestTTL.Seconds()),
		},
	}

	// 6. HTTPサーバーの起動
	// チャットとメール送信は外部サービスの応答を待つため、WriteTimeoutは上流タイムアウトより長く取る
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, "API server")
}

// serveUntilSignal はサーバーを起動し、SIGINTまたはSIGTERMを受信するとグレースフルシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err, ok := <-listenErr:
		if ok {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-stop:
	}

	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れの保留同期リクエストを定期的に削除し、/metricsを公開する。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg, collector := newRegistry()

	cleanupJob := cleanup.NewCleanupJob(
		repository.NewPostgresPendingSyncRepo(db),
		slog.Default(),
		collector,
	)
	cleanupJob.Interval = cfg.SyncCleanupInterval

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go cleanupJob.Start(ctx)

	metricsServer := &http.Server{
		Addr:              net.JoinHostPort("", cfg.MetricsPort),
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return serveUntilSignal(metricsServer, "worker metrics server")
}

// runMigrate はデータベースマイグレーションを実行する。
// upの場合は未適用のものをすべて適用し、downの場合はsteps段戻す。
func runMigrate(cfg *config.Config, dir MigrateDirection, steps int) error {
	slog.Info("running database migrations",
		slog.String("direction", string(dir)),
		slog.Int("steps", steps),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	var err error
	if dir == MigrateDown {
		err = database.RollbackMigrations(cfg.DatabaseURL, steps)
	} else {
		err = database.RunMigrations(cfg.DatabaseURL)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	u.RawQuery = ""
	return u.String()
}
