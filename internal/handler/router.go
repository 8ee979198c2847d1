package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gakuen/internal/metrics"
	"github.com/hitoshi/gakuen/internal/middleware"
	"github.com/hitoshi/gakuen/internal/model"
	"github.com/hitoshi/gakuen/internal/ratelimit"
)

// HealthChecker はヘルスチェックに必要なインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	TokenParser       middleware.TokenParser
	CORSAllowedOrigin string
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	MetricsHandler    http.Handler
	BucketLimiter     *ratelimit.Limiter
	GeneralLimiter    *middleware.GeneralRateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 二要素認証
	TwoFactorService TwoFactorServiceInterface

	// 学校管理
	StudentService      StudentServiceInterface
	ClassService        ClassServiceInterface
	TimetableService    TimetableServiceInterface
	AnnouncementService AnnouncementServiceInterface

	// エクスポート
	ExportService ExportServiceInterface

	// 管理者
	AdminService AdminServiceInterface

	// ダッシュボード
	DashboardService DashboardServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging
//	（認証ルートグループではさらに Auth → RateLimit(General) → CSRF）
//
// 認証ルート（/auth/*）・/health・/metricsは認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	twoFactorHandler := NewTwoFactorHandler(deps.TwoFactorService)
	studentHandler := NewStudentHandler(deps.StudentService)
	classHandler := NewClassHandler(deps.ClassService, deps.StudentService)
	timetableHandler := NewTimetableHandler(deps.TimetableService)
	announcementHandler := NewAnnouncementHandler(deps.AnnouncementService)
	exportHandler := NewExportHandler(deps.ExportService)
	adminHandler := NewAdminHandler(deps.AdminService)
	dashboardHandler := NewDashboardHandler(deps.DashboardService)

	// ルート別レート制限。ログイン・リセットはIP単位、認証後はユーザー単位
	loginLimit := middleware.NewBucketLimitMiddleware(deps.BucketLimiter, ratelimit.BucketLogin, middleware.KeyByIP, deps.Collector)
	resetLimit := middleware.NewBucketLimitMiddleware(deps.BucketLimiter, ratelimit.BucketReset, middleware.KeyByIP, deps.Collector)
	mutationLimit := middleware.NewBucketLimitMiddleware(deps.BucketLimiter, ratelimit.BucketMutation, middleware.KeyByUser, deps.Collector)
	exportLimit := middleware.NewBucketLimitMiddleware(deps.BucketLimiter, ratelimit.BucketExport, middleware.KeyByUser, deps.Collector)

	staffOnly := middleware.RequireRoles(model.RoleAdmin, model.RoleTeacher)
	adminOnly := middleware.RequireRoles(model.RoleAdmin)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))
	r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.With(loginLimit).Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.With(resetLimit).Post("/forgot-password", authHandler.ForgotPassword)
		r.With(resetLimit).Post("/reset-password", authHandler.ResetPassword)
	})

	// CSRFトークンの払い出し（SPAの初期化時に取得する）
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenParser))
		r.Use(deps.GeneralLimiter.Middleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/api/me", authHandler.Me)
		r.Post("/api/auth/change-password", authHandler.ChangePassword)
		r.Get("/api/dashboard", dashboardHandler.Summary)

		// 二要素認証の設定
		r.Route("/api/2fa", func(r chi.Router) {
			r.Get("/", twoFactorHandler.Status)
			r.Post("/setup", twoFactorHandler.Setup)
			r.Post("/confirm", twoFactorHandler.Confirm)
			r.Post("/disable", twoFactorHandler.Disable)
		})

		// 生徒管理。閲覧は管理者・教員、変更は管理者のみ
		r.Route("/api/students", func(r chi.Router) {
			r.With(staffOnly).Get("/", studentHandler.List)
			r.With(staffOnly).Get("/{id}", studentHandler.Get)
			r.With(adminOnly, mutationLimit).Post("/", studentHandler.Create)
			r.With(adminOnly, mutationLimit).Put("/{id}", studentHandler.Update)
			r.With(adminOnly, mutationLimit).Delete("/{id}", studentHandler.Delete)
		})

		// クラス・時間割管理
		r.Route("/api/classes", func(r chi.Router) {
			r.Get("/", classHandler.List)
			r.With(staffOnly, mutationLimit).Post("/", classHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", classHandler.Get)
				r.With(staffOnly, mutationLimit).Put("/", classHandler.Update)
				r.With(staffOnly, mutationLimit).Delete("/", classHandler.Delete)

				r.With(staffOnly).Get("/students", classHandler.ListStudents)
				r.Get("/timetable", timetableHandler.Get)
				r.With(staffOnly, mutationLimit).Put("/timetable", timetableHandler.Replace)
			})
		})

		// お知らせ。閲覧はロール別に絞り込み、投稿は管理者・教員のみ
		r.Route("/api/announcements", func(r chi.Router) {
			r.Get("/", announcementHandler.List)
			r.Get("/{id}", announcementHandler.Get)
			r.With(staffOnly, mutationLimit).Post("/", announcementHandler.Create)
			r.With(staffOnly, mutationLimit).Put("/{id}", announcementHandler.Update)
			r.With(staffOnly, mutationLimit).Delete("/{id}", announcementHandler.Delete)
		})

		// エクスポート。管理者・教員のみ
		r.Route("/api/export", func(r chi.Router) {
			r.Use(staffOnly)
			r.With(exportLimit).Get("/students.csv", exportHandler.StudentsCSV)
			r.With(exportLimit).Get("/classes/{id}/timetable.pdf", exportHandler.TimetablePDF)
		})

		// 管理者専用
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(adminOnly)
			r.With(mutationLimit).Put("/users/{id}/role", adminHandler.ChangeRole)
			r.With(mutationLimit).Put("/users/{id}/status", adminHandler.ChangeStatus)
			r.Get("/audit-logs", adminHandler.ListAuditLogs)
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checker.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
