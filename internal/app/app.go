package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/fastrack/internal/analytics"
	"github.com/hitoshi/fastrack/internal/auth"
	"github.com/hitoshi/fastrack/internal/config"
	"github.com/hitoshi/fastrack/internal/database"
	"github.com/hitoshi/fastrack/internal/fasting"
	"github.com/hitoshi/fastrack/internal/foodai"
	"github.com/hitoshi/fastrack/internal/handler"
	"github.com/hitoshi/fastrack/internal/healthmetric"
	"github.com/hitoshi/fastrack/internal/logger"
	"github.com/hitoshi/fastrack/internal/meal"
	"github.com/hitoshi/fastrack/internal/metrics"
	"github.com/hitoshi/fastrack/internal/middleware"
	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/profile"
	"github.com/hitoshi/fastrack/internal/reminder"
	"github.com/hitoshi/fastrack/internal/repository"
	"github.com/hitoshi/fastrack/internal/schedule"
	"github.com/hitoshi/fastrack/internal/security"
	"github.com/hitoshi/fastrack/internal/user"
	"github.com/hitoshi/fastrack/internal/weight"
	"github.com/hitoshi/fastrack/internal/worker/cleanup"
	"github.com/hitoshi/fastrack/internal/worker/dispatch"
	"github.com/hitoshi/fastrack/internal/worker/scheduler"
)

// 期限切れセッションの削除間隔
const cleanupInterval = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// .envでLOG_LEVELが指定された場合に備えて設定値で作り直す
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(logger.Setup(w, logger.ParseLevel(cfg.LogLevel)))

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
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// services はAPIサーバーとワーカーで共有するドメインサービス群。
type services struct {
	sessionRepo  repository.SessionRepository
	reminderRepo repository.ReminderRepository

	guard security.WebhookGuardService

	auth      *auth.Service
	user      *user.Service
	profile   *profile.Service
	fasting   *fasting.Service
	weight    *weight.Service
	metric    *healthmetric.Service
	foodItem  *meal.FoodItemService
	meal      *meal.Service
	schedule  *schedule.Service
	reminder  *reminder.Service
	analytics *analytics.Service
}

// newServices はリポジトリとドメインサービスを初期化する。
func newServices(db *sql.DB, cfg *config.Config, mc metrics.MetricsCollector, clk clock.Clock) *services {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	fastRepo := repository.NewPostgresFastingRepo(db)
	weightRepo := repository.NewPostgresWeightRepo(db)
	metricRepo := repository.NewPostgresHealthMetricRepo(db)
	foodRepo := repository.NewPostgresFoodItemRepo(db)
	mealRepo := repository.NewPostgresMealRepo(db)
	scheduleRepo := repository.NewPostgresScheduleRepo(db)
	reminderRepo := repository.NewPostgresReminderRepo(db)

	// 2. セキュリティサービスの初期化
	sanitizer := security.NewTextSanitizer()
	guard := security.NewWebhookGuard()
	tokens := auth.NewTokenIssuer(cfg.SessionSecret, cfg.JWTTTL, clk)

	// 3. ドメインサービスの初期化
	var oauthProvider auth.OAuthProvider
	if cfg.GoogleOAuthEnabled() {
		oauthProvider = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	}
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo, tokens, clk,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	userService := user.NewService(userRepo, sessionRepo)
	profileService := profile.NewService(profileRepo, clk)

	fastingService := fasting.NewService(fastRepo, scheduleRepo, profileService, sanitizer, mc, clk)
	weightService := weight.NewService(weightRepo, profileService, sanitizer, clk)
	metricService := healthmetric.NewService(metricRepo, sanitizer, clk)
	foodItemService := meal.NewFoodItemService(foodRepo, sanitizer, clk)
	mealService := meal.NewService(mealRepo, foodRepo, profileService, sanitizer, clk)
	scheduleService := schedule.NewService(
		scheduleRepo, profileService, fastingService, sanitizer, mc, clk, slog.Default(),
		schedule.Config{Horizon: time.Duration(cfg.ScheduleHorizonDays) * 24 * time.Hour},
	)
	reminderService := reminder.NewService(reminderRepo, scheduleRepo, guard, sanitizer, clk)
	analyticsService := analytics.NewService(
		fastingService, weightService, mealService, metricService, scheduleService, profileService, clk,
	)

	return &services{
		sessionRepo:  sessionRepo,
		reminderRepo: reminderRepo,
		guard:        guard,
		auth:         authService,
		user:         userService,
		profile:      profileService,
		fasting:      fastingService,
		weight:       weightService,
		metric:       metricService,
		foodItem:     foodItemService,
		meal:         mealService,
		schedule:     scheduleService,
		reminder:     reminderService,
		analytics:    analyticsService,
	}
}

// newFoodParser は食事テキスト解析器を構築する。
// GEMINI_API_KEY が未設定の場合はフォールバック辞書のみで解析する。
func newFoodParser(ctx context.Context, cfg *config.Config, mc metrics.MetricsCollector, clk clock.Clock) (*foodai.Parser, error) {
	var completer foodai.Completer
	if cfg.AIEnabled() {
		client, err := foodai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		completer = client
		slog.Info("AI food parsing enabled", slog.String("model", cfg.GeminiModel))
	} else {
		slog.Warn("GEMINI_API_KEY is not set; AI food parsing is limited to the fallback dictionary")
	}
	return foodai.NewParser(completer, mc, clk, cfg.AITimeout), nil
}

// newRegistry はアプリケーションメトリクスとランタイムメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. メトリクスとドメインサービスの初期化
	clk := clock.WallClock
	reg, collector := newRegistry()
	svc := newServices(db, cfg, collector, clk)

	parser, err := newFoodParser(context.Background(), cfg, collector, clk)
	if err != nil {
		return fmt.Errorf("failed to initialize food parser: %w", err)
	}

	// 3. ハンドラーアダプタの構築
	userServiceAdapter := handler.NewUserServiceAdapter(svc.auth, svc.user)
	foodParseAdapter := handler.NewFoodParseAdapter(parser, svc.meal)

	// 4. ルーターの構築
	// configのレート制限はreq/min単位
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAI),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     svc.sessionRepo,
		TokenVerifier:     svc.auth,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:    rateLimiter,
		StatusRecorder: collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: svc.auth,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		GoogleOAuthEnabled: cfg.GoogleOAuthEnabled(),

		UserService:    userServiceAdapter,
		ProfileService: svc.profile,

		FastingService:  svc.fasting,
		WeightService:   svc.weight,
		MetricService:   svc.metric,
		FoodItemService: svc.foodItem,
		FoodParser:      foodParseAdapter,
		MealService:     svc.meal,

		ScheduleService: svc.schedule,
		ReminderService: svc.reminder,

		AnalyticsService: svc.analytics,
	}

	router := handler.NewRouter(deps)

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Bool("google_oauth", cfg.GoogleOAuthEnabled()),
			slog.Bool("ai_enabled", cfg.AIEnabled()),
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

// newWorkerScheduler はワーカーのジョブを登録したスケジューラを構築する。
// リマインダー配信、繰り返し予定のインスタンス生成、期限切れセッション削除を登録する。
func newWorkerScheduler(cfg *config.Config, svc *services, mc metrics.MetricsCollector, clk clock.Clock) *scheduler.Scheduler {
	senders := map[string]dispatch.Sender{
		model.ReminderChannelLog:     dispatch.NewLogSender(slog.Default()),
		model.ReminderChannelWebhook: dispatch.NewWebhookSender(svc.guard, cfg.ReminderWebhookTimeout),
	}
	dispatcher := dispatch.NewDispatcher(
		svc.reminderRepo, senders, mc, clk, slog.Default(), cfg.ReminderBatchSize, 0,
	)
	cleanupJob := cleanup.NewCleanupJob(svc.sessionRepo, slog.Default())

	s := scheduler.NewScheduler(clk, slog.Default())
	s.Register("reminder_dispatch", dispatcher, cfg.ReminderPollInterval)
	s.Register("schedule_generate", svc.schedule, cfg.ScheduleGenerateInterval)
	s.Register("session_cleanup", cleanupJob, cleanupInterval)
	return s
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、バックグラウンドジョブのスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. サービスとジョブの初期化
	clk := clock.WallClock
	_, collector := newRegistry()
	svc := newServices(db, cfg, collector, clk)
	jobs := newWorkerScheduler(cfg, svc, collector, clk)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("reminder_poll_interval", cfg.ReminderPollInterval),
		slog.Duration("schedule_generate_interval", cfg.ScheduleGenerateInterval),
		slog.Int("reminder_batch_size", cfg.ReminderBatchSize),
	)

	// 全ジョブをメインgoroutineで実行（ブロッキング）
	jobs.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
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
