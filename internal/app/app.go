// Package app はアプリケーションの初期化・依存関係のワイヤリング・起動を行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/gakuen/internal/admin"
	"github.com/hitoshi/gakuen/internal/announcement"
	"github.com/hitoshi/gakuen/internal/audit"
	"github.com/hitoshi/gakuen/internal/auth"
	"github.com/hitoshi/gakuen/internal/class"
	"github.com/hitoshi/gakuen/internal/config"
	"github.com/hitoshi/gakuen/internal/dashboard"
	"github.com/hitoshi/gakuen/internal/database"
	"github.com/hitoshi/gakuen/internal/export"
	"github.com/hitoshi/gakuen/internal/handler"
	"github.com/hitoshi/gakuen/internal/logger"
	"github.com/hitoshi/gakuen/internal/mail"
	"github.com/hitoshi/gakuen/internal/metrics"
	"github.com/hitoshi/gakuen/internal/middleware"
	"github.com/hitoshi/gakuen/internal/ratelimit"
	"github.com/hitoshi/gakuen/internal/repository"
	"github.com/hitoshi/gakuen/internal/student"
	"github.com/hitoshi/gakuen/internal/timetable"
	"github.com/hitoshi/gakuen/internal/token"
	"github.com/hitoshi/gakuen/internal/twofactor"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 設定読み込み前でもログを使えるようにデフォルトレベルで初期化する
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
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
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	refreshTokenRepo := repository.NewPostgresRefreshTokenRepo(db)
	resetTokenRepo := repository.NewPostgresPasswordResetTokenRepo(db)
	twoFactorRepo := repository.NewPostgresTwoFactorRepo(db)
	auditRepo := repository.NewPostgresAuditLogRepo(db)
	studentRepo := repository.NewPostgresStudentRepo(db)
	classRepo := repository.NewPostgresClassRepo(db)
	timetableRepo := repository.NewPostgresTimetableRepo(db)
	announcementRepo := repository.NewPostgresAnnouncementRepo(db)

	// 3. メトリクスと監査ログディスパッチャの初期化
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	recorder := audit.NewRecorder(auditRepo, cfg.AuditBufferSize, collector)
	defer recorder.Close()

	// 4. レート制限カウンタストアの初期化
	// REDIS_URLが設定されている場合は共有ストア、未設定の場合はプロセス内ストア
	var store ratelimit.CounterStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		store = ratelimit.NewRedisStore(client)
		slog.Info("rate limit counter store: redis")
	} else {
		memStore := ratelimit.NewMemoryStore()
		defer memStore.Stop()
		store = memStore
		slog.Info("rate limit counter store: in-memory")
	}

	bucketLimiter := ratelimit.NewLimiter(store, []ratelimit.Bucket{
		{Name: ratelimit.BucketLogin, Quota: int64(cfg.RateLimitLogin), Window: time.Minute},
		{Name: ratelimit.BucketReset, Quota: int64(cfg.RateLimitReset), Window: 15 * time.Minute},
		{Name: ratelimit.BucketMutation, Quota: int64(cfg.RateLimitMutation), Window: time.Minute},
		{Name: ratelimit.BucketExport, Quota: int64(cfg.RateLimitExport), Window: 5 * time.Minute},
	})

	generalLimiter := middleware.NewGeneralRateLimiter(cfg.RateLimitGeneral)
	defer generalLimiter.Stop()

	// 5. ドメインサービスの初期化
	tokens := token.NewManager(cfg.SessionSecret, cfg.AccessTokenTTL)

	twoFactorService := twofactor.NewService(twoFactorRepo, recorder, cfg.TOTPIssuer)

	authService := auth.NewService(
		userRepo, refreshTokenRepo, resetTokenRepo,
		tokens, twoFactorService, mail.NewLogMailer(), recorder, collector,
		cfg.RefreshTokenTTL, cfg.ResetTokenTTL, cfg.BaseURL,
	)

	studentService := student.NewService(studentRepo, classRepo, recorder)
	classService := class.NewService(classRepo, userRepo, studentRepo, recorder)
	timetableService := timetable.NewService(timetableRepo, classRepo, recorder)
	announcementService := announcement.NewService(announcementRepo, recorder)
	exportService := export.NewService(
		studentRepo, classRepo, timetableRepo, recorder,
		export.NewPDFWriter(cfg.PDFFontPath),
	)
	adminService := admin.NewService(userRepo, refreshTokenRepo, auditRepo, recorder)
	dashboardService := dashboard.NewService(userRepo, studentRepo, classRepo, timetableRepo, auditRepo, announcementService)

	// 6. ルーターの構築
	csrfConfig := middleware.CSRFConfig{
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	}

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		TokenParser:       tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		Collector:         collector,
		MetricsHandler:    metrics.Handler(prometheus.DefaultGatherer),
		BucketLimiter:     bucketLimiter,
		GeneralLimiter:    generalLimiter,
		CSRFConfig:        csrfConfig,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
			CookieSecure:    cfg.CookieSecure,
			CookieDomain:    cfg.CookieDomain,
		},

		TwoFactorService:    twoFactorService,
		StudentService:      studentService,
		ClassService:        classService,
		TimetableService:    timetableService,
		AnnouncementService: announcementService,
		ExportService:       exportService,
		AdminService:        adminService,
		DashboardService:    dashboardService,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
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
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
