package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"bloodlink/config"
	"bloodlink/internal/init/cache"
	"bloodlink/internal/init/database"
	"bloodlink/internal/kvstore"
	"bloodlink/internal/kvstore/dbstore"
	"bloodlink/internal/kvstore/redisstore"

	userdataC "bloodlink/internal/modules/userdata/controller"
	userdataRp "bloodlink/internal/modules/userdata/repo"
	userdataUC "bloodlink/internal/modules/userdata/usecase"

	authC "bloodlink/internal/modules/user/auth/controller"
	authRp "bloodlink/internal/modules/user/auth/repo"
	authUC "bloodlink/internal/modules/user/auth/usecase"

	profileC "bloodlink/internal/modules/user/profile/controller"
	profileUC "bloodlink/internal/modules/user/profile/usecase"

	calendarC "bloodlink/internal/modules/calendar/controller"
	calendarUC "bloodlink/internal/modules/calendar/usecase"

	donationC "bloodlink/internal/modules/donation/controller"
	donationRp "bloodlink/internal/modules/donation/repo"
	donationUC "bloodlink/internal/modules/donation/usecase"

	notificationC "bloodlink/internal/modules/notification/controller"
	"bloodlink/internal/modules/notification/delivery"
	"bloodlink/internal/modules/notification/dispatcher"
	notificationUC "bloodlink/internal/modules/notification/usecase"

	chatC "bloodlink/internal/modules/chat/controller"
	chatUC "bloodlink/internal/modules/chat/usecase"
	"bloodlink/internal/modules/chat/ws"

	"bloodlink/pkg/lib/AvailabilityService"
	"bloodlink/pkg/lib/clock"
	"bloodlink/pkg/lib/datecalc"
	"bloodlink/pkg/lib/emailsender"
	"bloodlink/pkg/lib/jwt"
	"bloodlink/pkg/lib/pushsender/fcm"
	appMiddleware "bloodlink/pkg/middleware/jwt"
	"bloodlink/pkg/middleware/logger"
)

type App struct {
	Storage  *database.Storage
	Cache    *cache.Cache
	KV       kvstore.Store
	Bus      *dispatcher.Bus
	Hub      *ws.Hub
	JWT      *jwt.Manager
	Cooldown datecalc.Cooldown
	Clock    clock.Clock
	Router   chi.Router
	Log      *slog.Logger
	Cfg      *config.Config
	Cron     *cron.Cron

	stopHub context.CancelFunc
}

func NewApp(cfg *config.Config, log *slog.Logger) (*App, error) {
	app := &App{
		Router: chi.NewRouter(),
		Log:    log,
		Cfg:    cfg,
		Clock:  clock.System{},
		Bus:    dispatcher.New(log),
	}

	if err := app.initStorage(); err != nil {
		return nil, err
	}

	manager, err := jwt.NewManager(os.Getenv("JWT_SECRET"), cfg.JWTConfig.AccessExpire, cfg.JWTConfig.RefreshExpire)
	if err != nil {
		return nil, fmt.Errorf("jwt init failed: %w", err)
	}
	app.JWT = manager

	cooldown, err := newCooldown(cfg.Eligibility)
	if err != nil {
		return nil, fmt.Errorf("eligibility config invalid: %w", err)
	}
	app.Cooldown = cooldown

	return app, nil
}

func (app *App) initStorage() error {
	prefix := app.Cfg.StorageConfig.KeyPrefix
	switch app.Cfg.StorageConfig.Driver {
	case "redis":
		appCache, err := cache.NewCache(app.Cfg.CacheConfig)
		if err != nil {
			return fmt.Errorf("cache init failed: %w", err)
		}
		app.Cache = appCache
		app.KV = redisstore.NewRedisStore(appCache, prefix, app.Log)
	case "postgres", "sqlite":
		storage, err := database.NewStorage(app.Cfg.StorageConfig, app.Cfg.DbConfig)
		if err != nil {
			return fmt.Errorf("db init failed: %w", err)
		}
		app.Storage = storage
		app.KV = dbstore.NewDbStore(storage, prefix, app.Log)
	default:
		return fmt.Errorf("unknown storage driver %q", app.Cfg.StorageConfig.Driver)
	}
	app.Log.Info("storage initialized", slog.String("driver", app.Cfg.StorageConfig.Driver))
	return nil
}

func newCooldown(cfg config.EligibilityConfig) (datecalc.Cooldown, error) {
	rule, err := datecalc.ParseOverflowRule(cfg.MonthOverflow)
	if err != nil {
		return datecalc.Cooldown{}, err
	}
	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return datecalc.Cooldown{}, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
		}
	}
	return datecalc.NewCooldown(cfg.CooldownMonths, rule, loc), nil
}

func (app *App) Start() error {
	srv := &http.Server{
		Addr:        app.Cfg.HttpServerConfig.Address,
		Handler:     app.Router,
		ReadTimeout: app.Cfg.HttpServerConfig.Timeout,
		// Websocket connections outlive any write timeout, the pumps set their own deadlines.
		IdleTimeout: app.Cfg.HttpServerConfig.IdleTimeout,
	}

	serverShutdown := make(chan error, 1)
	go func() {
		var err error
		serverType := "HTTP"
		addr := app.Cfg.HttpServerConfig.Address

		if app.Cfg.HttpServerConfig.TLS.Enabled {
			serverType = "HTTPS"
			certFile := app.Cfg.HttpServerConfig.TLS.CertFile
			keyFile := app.Cfg.HttpServerConfig.TLS.KeyFile
			for _, f := range []string{certFile, keyFile} {
				if _, errStat := os.Stat(f); os.IsNotExist(errStat) {
					serverShutdown <- fmt.Errorf("TLS file not found: %s", f)
					return
				}
			}
			app.Log.Info(fmt.Sprintf("%s server starting", serverType), slog.String("address", addr))
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			app.Log.Info(fmt.Sprintf("%s server starting", serverType), slog.String("address", addr))
			err = srv.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Log.Error(fmt.Sprintf("%s server run failed", serverType), slog.String("error", err.Error()))
			serverShutdown <- err
		} else {
			app.Log.Info(fmt.Sprintf("%s server closed", serverType))
			serverShutdown <- nil
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-serverShutdown:
		if err != nil {
			runErr = fmt.Errorf("server runtime error: %w", err)
		}
	case sig := <-quit:
		app.Log.Info("received OS signal, initiating graceful shutdown", slog.String("signal", sig.String()))
	}

	if app.Cron != nil {
		cronCtx := app.Cron.Stop()
		select {
		case <-cronCtx.Done():
			app.Log.Info("cron scheduler stopped")
		case <-time.After(3 * time.Second):
			app.Log.Warn("cron scheduler stop timed out")
		}
	}

	if app.stopHub != nil {
		app.stopHub()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("server shutdown failed: %w", err)
	}

	app.closeStorage()
	if runErr == nil {
		app.Log.Info("server stopped gracefully")
	}
	return runErr
}

func (app *App) closeStorage() {
	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			app.Log.Warn("failed to close redis client", "error", err)
		}
	}
	if app.Storage != nil {
		if err := app.Storage.Close(); err != nil {
			app.Log.Warn("failed to close database", "error", err)
		}
	}
}

// SetupServices builds every module, the event subscribers and the scheduler, and mounts the routes.
func (app *App) SetupServices() error {
	app.Router.Use(
		middleware.Recoverer,
		middleware.RequestID,
		logger.New(app.Log),
		cors.Handler(cors.Options{
			AllowedOrigins:   app.Cfg.HttpServerConfig.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Cookie"},
			ExposedHeaders:   []string{"Link", "Set-Cookie"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	apiVersion := "/v1"

	// --- User data store ---
	userDataRepoImpl := userdataRp.NewRepo(app.KV, app.Log)
	userDataUseCaseImpl := userdataUC.NewUserDataUseCase(userDataRepoImpl, app.Bus, appMiddleware.Session{}, app.Log)

	authRepoImpl := authRp.NewRepo(app.KV, app.Log)
	authUseCaseImpl := authUC.NewAuthUseCase(app.Log, authRepoImpl, userDataUseCaseImpl, app.JWT, app.Clock)
	AuthUserMiddleware := appMiddleware.NewUserAuth(app.JWT, authUseCaseImpl, app.Log)

	userDataCtrl := userdataC.NewUserDataController(app.Log, userDataUseCaseImpl)

	app.Router.Route(apiVersion+"/me/record", func(r chi.Router) {
		r.Use(AuthUserMiddleware)
		r.Get("/", userDataCtrl.GetRecord)
		r.Put("/", userDataCtrl.SaveRecord)
		r.Patch("/{section}", userDataCtrl.UpdateSection)
	})

	// --- Auth Module ---
	authCtrl := authC.NewAuthController(app.Log, authUseCaseImpl, app.Cfg.JWTConfig, app.Cfg.HttpServerConfig.TLS.Enabled)

	app.Router.Route(apiVersion+"/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(10, 1*time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
			r.Post("/sign-up", authCtrl.SignUp)
			r.Post("/sign-in", authCtrl.SignIn)
		})
		r.Post("/refresh", authCtrl.RefreshToken)
		r.With(AuthUserMiddleware).Delete("/account", authCtrl.DeleteAccount)
	})

	// --- Profile Module ---
	profileUseCaseImpl := profileUC.NewProfileUseCase(app.Log, userDataUseCaseImpl)
	profileCtrl := profileC.NewProfileController(app.Log, profileUseCaseImpl)

	app.Router.Route(apiVersion+"/profile", func(r chi.Router) {
		r.Use(AuthUserMiddleware)
		r.Patch("/", profileCtrl.UpdateProfile)
		r.Patch("/preferences", profileCtrl.UpdatePreferences)
		r.Post("/device-tokens", profileCtrl.RegisterDeviceToken)
		r.Delete("/device-tokens", profileCtrl.UnregisterDeviceToken)
	})

	// --- Notification Module ---
	notificationUseCaseImpl := notificationUC.NewNotificationUseCase(userDataUseCaseImpl, app.Bus, app.Cooldown, app.Clock, app.Log)
	notificationCtrl := notificationC.NewNotificationController(app.Log, notificationUseCaseImpl)

	app.Router.Route(apiVersion+"/notifications", func(r chi.Router) {
		r.Use(AuthUserMiddleware)
		r.Get("/", notificationCtrl.GetNotifications)
		r.Get("/unread-count", notificationCtrl.UnreadCount)
		r.Put("/read-all", notificationCtrl.MarkAllAsRead)
		r.Put("/preferences", notificationCtrl.UpdatePreferences)
		r.Put("/{id}/read", notificationCtrl.MarkAsRead)
		r.Delete("/{id}", notificationCtrl.Remove)
		r.Get("/trash", notificationCtrl.Trash)
		r.Post("/trash/{id}/restore", notificationCtrl.Restore)
		r.Delete("/trash", notificationCtrl.EmptyTrash)
	})

	app.setupDelivery(userDataUseCaseImpl)

	// --- Calendar Module ---
	calendarUseCaseImpl := calendarUC.NewCalendarUseCase(userDataUseCaseImpl, app.Cooldown, app.Clock, app.Log)
	calendarCtrl := calendarC.NewCalendarController(app.Log, calendarUseCaseImpl)

	app.Router.Route(apiVersion+"/calendar", func(r chi.Router) {
		r.Use(AuthUserMiddleware)
		r.Get("/events", calendarCtrl.ListEvents)
		r.Post("/appointments", calendarCtrl.AddAppointment)
		r.Delete("/events/{eventID}", calendarCtrl.RemoveEvent)
	})

	// --- Donation Module ---
	codeLedgerImpl := donationRp.NewCodeLedger(app.KV, app.Log)
	donationUseCaseImpl := donationUC.NewDonationUseCase(
		userDataUseCaseImpl,
		calendarUseCaseImpl,
		notificationUseCaseImpl,
		codeLedgerImpl,
		app.Cooldown,
		app.Clock,
		app.Log,
	)
	donationCtrl := donationC.NewDonationController(app.Log, donationUseCaseImpl)

	app.Router.Route(apiVersion+"/donations", func(r chi.Router) {
		r.Use(AuthUserMiddleware)
		r.Get("/", donationCtrl.List)
		r.Post("/", donationCtrl.Record)
		r.Get("/eligibility", donationCtrl.Eligibility)
		r.With(httprate.Limit(5, 1*time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).Post("/code", donationCtrl.RedeemCode)
	})

	// --- Chat Module and realtime hub ---
	chatUseCaseImpl := chatUC.NewChatUseCase(userDataUseCaseImpl, app.Bus, app.Clock, app.Log)
	app.Hub = ws.NewHub(app.Log, chatUseCaseImpl, notificationUseCaseImpl)
	app.Hub.Subscribe(app.Bus)
	hubCtx, stopHub := context.WithCancel(context.Background())
	app.stopHub = stopHub
	go app.Hub.Run(hubCtx)
	chatCtrl := chatC.NewController(app.Log, chatUseCaseImpl, app.Hub, app.Cfg.HttpServerConfig.AllowedOrigins)

	app.Router.Route(apiVersion+"/chats", func(r chi.Router) {
		r.Use(AuthUserMiddleware)
		r.Get("/contacts", chatCtrl.ListContacts)
		r.Post("/contacts", chatCtrl.AddContact)
		r.Delete("/contacts/{contactID}", chatCtrl.RemoveContact)
		r.Get("/{contactID}/messages", chatCtrl.GetConversation)
		r.Post("/{contactID}/messages", chatCtrl.SendMessage)
		r.Put("/{contactID}/read", chatCtrl.MarkConversationRead)
	})
	app.Router.With(AuthUserMiddleware).Get(apiVersion+"/ws", chatCtrl.ServeWs)

	// --- Scheduler ---
	if app.Cfg.Scheduler.Enabled {
		availabilityService := AvailabilityService.NewAvailabilityService(
			userDataUseCaseImpl,
			notificationUseCaseImpl,
			app.KV,
			app.Cooldown,
			app.Clock,
			app.Log.With(slog.String("service", "AvailabilityService")),
		)
		app.Cron = cron.New(cron.WithLocation(app.Cooldown.Location))
		if _, err := app.Cron.AddFunc(app.Cfg.Scheduler.AvailabilityCheckSpec, availabilityService.Run); err != nil {
			return fmt.Errorf("cron init failed: %w", err)
		}
		app.Cron.Start()
		app.Log.Info("availability sweep scheduled", slog.String("spec", app.Cfg.Scheduler.AvailabilityCheckSpec))
	}

	return nil
}

// setupDelivery registers push and e-mail subscribers when their providers are configured.
func (app *App) setupDelivery(store *userdataUC.UserDataUseCase) {
	fcmCfg := app.Cfg.FCMConfig
	if fcmCfg.ProjectID != "" || fcmCfg.ServiceAccountKeyJSONPath != "" {
		sender, err := fcm.NewFCMSender(context.Background(), fcmCfg, app.Log)
		if err != nil {
			app.Log.Warn("push delivery disabled", "error", err)
		} else {
			delivery.NewPushSubscriber(sender, store, app.Log, true).Register(app.Bus)
			app.Log.Info("push delivery enabled")
		}
	}

	if app.Cfg.SMTPConfig.Host != "" {
		mailer, err := emailsender.New(app.Cfg.SMTPConfig)
		if err != nil {
			app.Log.Warn("e-mail delivery disabled", "error", err)
		} else {
			delivery.NewEmailSubscriber(mailer, store, app.Log, true).Register(app.Bus)
			app.Log.Info("e-mail delivery enabled")
		}
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", slog.String("error", err.Error()))
	}

	cfg := config.MustLoad()
	log := SetupLogger(cfg.Env)
	slog.SetDefault(log)

	app, err := NewApp(cfg, log)
	if err != nil {
		log.Error("app init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := app.SetupServices(); err != nil {
		log.Error("service setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		log.Error("application terminated with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func SetupLogger(env string) *slog.Logger {
	var log *slog.Logger
	level := slog.LevelInfo
	switch strings.ToLower(env) {
	case "local", "dev", "development":
		level = slog.LevelDebug
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: true}))
	case "prod", "production":
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: true}))
	default:
		level = slog.LevelDebug
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: true}))
		log.Warn("unknown environment in SetupLogger, defaulting to text debug logger", slog.String("env", env))
	}
	return log
}
