package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fastrack/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通確認する依存先。*sql.DB が実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, config AuthHandlerConfig) http.Handler {
	r := chi.NewRouter()
	mountAuthRoutes(r, NewAuthHandler(service, config), true)
	return r
}

// mountAuthRoutes は/auth配下のルートを登録する。googleEnabled がfalseの場合はOAuthフローを登録しない。
func mountAuthRoutes(r chi.Router, h *AuthHandler, googleEnabled bool) {
	r.Route("/auth", func(r chi.Router) {
		// メールアドレス認証
		r.Post("/register", h.Register)
		r.Post("/login", h.PasswordLogin)
		r.Post("/token", h.Token)

		// OAuthフロー
		if googleEnabled {
			r.Get("/google/login", h.Login)
			r.Get("/google/callback", h.Callback)
		}

		// セッション管理
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.HTTPStatusRecorder

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService        AuthServiceInterface
	AuthConfig         AuthHandlerConfig
	GoogleOAuthEnabled bool

	// ユーザー・プロフィール
	UserService    UserServiceInterface
	ProfileService ProfileServiceInterface

	// 記録
	FastingService  FastingServiceInterface
	WeightService   WeightServiceInterface
	MetricService   MetricServiceInterface
	FoodItemService FoodItemServiceInterface
	FoodParser      FoodParseServiceInterface
	MealService     MealServiceInterface

	// 予定・通知
	ScheduleService ScheduleServiceInterface
	ReminderService ReminderServiceInterface

	// 集計
	AnalyticsService AnalyticsServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  └ /api/*: Auth → CSRF → RateLimit(General)
//
// 認証ルート（/auth/*）、/health、/metrics は認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	profileHandler := NewProfileHandler(deps.ProfileService)
	fastingHandler := NewFastingHandler(deps.FastingService)
	weightHandler := NewWeightHandler(deps.WeightService)
	metricHandler := NewMetricHandler(deps.MetricService)
	foodHandler := NewFoodHandler(deps.FoodItemService, deps.FoodParser)
	mealHandler := NewMealHandler(deps.MealService)
	scheduleHandler := NewScheduleHandler(deps.ScheduleService)
	reminderHandler := NewReminderHandler(deps.ReminderService)
	analyticsHandler := NewAnalyticsHandler(deps.AnalyticsService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	mountAuthRoutes(r, authHandler, deps.GoogleOAuthEnabled)

	// CSRFトークンの発行
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.SessionFinder, deps.TokenVerifier))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Delete("/me", userHandler.Withdraw)
		})

		// プロフィール
		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.Get)
			r.Put("/", profileHandler.Update)
		})

		// ファスティング
		r.Route("/api/fasts", func(r chi.Router) {
			r.Post("/", fastingHandler.Start)
			r.Get("/", fastingHandler.List)
			r.Get("/active", fastingHandler.Active)
			r.Get("/stats", fastingHandler.Stats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", fastingHandler.Get)
				r.Patch("/", fastingHandler.Update)
				r.Delete("/", fastingHandler.Delete)
				r.Post("/end", fastingHandler.End)
				r.Post("/cancel", fastingHandler.Cancel)
			})
		})

		// 体重
		r.Route("/api/weights", func(r chi.Router) {
			r.Post("/", weightHandler.Create)
			r.Get("/", weightHandler.List)
			r.Get("/trend", weightHandler.Trend)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", weightHandler.Get)
				r.Patch("/", weightHandler.Update)
				r.Delete("/", weightHandler.Delete)
			})
		})

		// 健康指標
		r.Route("/api/metrics", func(r chi.Router) {
			r.Post("/", metricHandler.Create)
			r.Get("/", metricHandler.List)
			r.Get("/summary", metricHandler.Summary)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", metricHandler.Get)
				r.Patch("/", metricHandler.Update)
				r.Delete("/", metricHandler.Delete)
			})
		})

		// 食品ライブラリ
		r.Route("/api/foods", func(r chi.Router) {
			r.Post("/", foodHandler.Create)
			r.Get("/", foodHandler.Search)

			// POST /api/foods/parse - AI解析（専用レート制限を追加）
			r.With(deps.RateLimiter.AIParseMiddleware()).Post("/parse", foodHandler.Parse)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", foodHandler.Get)
				r.Patch("/", foodHandler.Update)
				r.Delete("/", foodHandler.Delete)
			})
		})

		// 食事
		r.Route("/api/meals", func(r chi.Router) {
			r.Post("/", mealHandler.Create)
			r.Get("/", mealHandler.List)
			r.Get("/daily", mealHandler.Daily)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", mealHandler.Get)
				r.Put("/", mealHandler.Update)
				r.Delete("/", mealHandler.Delete)
			})
		})

		// 予定ファスティング
		r.Route("/api/schedules", func(r chi.Router) {
			r.Post("/", scheduleHandler.Create)
			r.Get("/", scheduleHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", scheduleHandler.Get)
				r.Patch("/", scheduleHandler.Update)
				r.Delete("/", scheduleHandler.Delete)
				r.Post("/generate", scheduleHandler.Generate)
				r.Post("/start", scheduleHandler.Start)
				r.Post("/skip", scheduleHandler.Skip)
			})
		})

		// リマインダー
		r.Route("/api/reminders", func(r chi.Router) {
			r.Post("/", reminderHandler.Create)
			r.Get("/", reminderHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", reminderHandler.Get)
				r.Patch("/", reminderHandler.Update)
				r.Delete("/", reminderHandler.Delete)
			})
		})

		// 集計
		r.Route("/api/analytics", func(r chi.Router) {
			r.Get("/dashboard", analyticsHandler.Dashboard)
			r.Get("/fasting", analyticsHandler.Fasting)
			r.Get("/nutrition", analyticsHandler.Nutrition)
		})
	})

	return r
}

// healthHandler はDBへの疎通を確認するハンドラーを返す。checker がnilの場合は常に200を返す。
// GET /health
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
