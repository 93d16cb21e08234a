package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/fablab-reservation/internal/cache"
	"github.com/iliyamo/fablab-reservation/internal/config"
	"github.com/iliyamo/fablab-reservation/internal/database"
	"github.com/iliyamo/fablab-reservation/internal/handler"
	"github.com/iliyamo/fablab-reservation/internal/identity"
	"github.com/iliyamo/fablab-reservation/internal/logging"
	"github.com/iliyamo/fablab-reservation/internal/metrics"
	"github.com/iliyamo/fablab-reservation/internal/middleware"
	"github.com/iliyamo/fablab-reservation/internal/notify"
	"github.com/iliyamo/fablab-reservation/internal/queue"
	"github.com/iliyamo/fablab-reservation/internal/repository"
	"github.com/iliyamo/fablab-reservation/internal/router"
	"github.com/iliyamo/fablab-reservation/internal/service"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine; the environment wins
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	zerolog.DefaultContextLogger = &logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		logger.Warn().Msg("redis unavailable: using in-process rate limiter and memory cache")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	store := cache.New(cacheCfg.Backend, rdb)
	metrics.Register()

	// Notifications: through RabbitMQ when enabled, in-process otherwise.
	var sender notify.Sender = notify.LogSender{Log: logger}
	if cfg.Mail.Enabled() {
		sender = notify.NewSMTPSender(cfg.Mail)
	}
	mailer := notify.NewMailer(sender)
	var notifier notify.Notifier
	if cfg.AMQP.Enabled {
		notifier = notify.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
		go func() {
			err := queue.StartNotificationConsumer(ctx, cfg.AMQP.URL, cfg.AMQP.Queue, mailer, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("notification consumer stopped")
			}
		}()
	} else {
		direct := notify.NewDirect(mailer, logger)
		defer direct.Wait()
		notifier = direct
	}

	idp := identity.NewHTTPProvider(cfg.Identity, nil)
	loc := cfg.Facility.Location()

	// Repositories
	accountRepo := repository.NewAccountRepo(db)
	catalogRepo := repository.NewCatalogRepo(db)
	reservationRepo := repository.NewReservationRepo(db)
	evcRepo := repository.NewEVCRepo(db)
	teacherRepo := repository.NewTeacherEmailRepo(db)

	// Services
	avail := service.NewAvailabilityService(repository.NewBlockedDateRepo(db), catalogRepo, reservationRepo, loc)
	accounts := service.NewAccountService(accountRepo, repository.NewProfileRepo(db), teacherRepo, idp,
		cfg.Facility.StudentEmailDomain, logger)
	catalog := service.NewCatalogService(catalogRepo)
	reservations := service.NewReservationService(reservationRepo, catalogRepo, accountRepo, avail, notifier, logger)
	evcs := service.NewEVCService(evcRepo, repository.NewApprovalTokenRepo(db), teacherRepo, accountRepo, avail,
		notifier, logger, cfg.BaseURL, cfg.Facility.ApprovalTokenTTL)
	surveys := service.NewSurveyService(repository.NewSurveyRepo(db), reservationRepo, evcRepo, logger)
	exports := service.NewExportService(reservationRepo, accountRepo, cfg.Facility.ReceiptSigningKey, loc)

	// Handlers
	authH := handler.NewAuthHandler(cfg, idp, accounts, accountRepo, repository.NewTokenRepo(db))
	accountH := handler.NewAccountHandler(accounts)
	catalogH := handler.NewCatalogHandler(catalog)
	availH := handler.NewAvailabilityHandler(avail)
	resH := handler.NewReservationHandler(reservations, surveys, exports, avail)
	evcH := handler.NewEVCHandler(evcs, surveys, avail)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(logging.RequestLogger(logger))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, catalogH, availH, evcH, middleware.NewResponseCache(cacheCfg, store))
	router.RegisterMember(e, accountH, resH, evcH, cfg.JWTSecret)
	router.RegisterCashier(e, resH, cfg.JWTSecret)
	router.RegisterAdmin(e, router.AdminHandlers{
		Accounts:     accountH,
		Catalog:      catalogH,
		Availability: availH,
		Reservations: resH,
		EVC:          evcH,
	}, cfg.JWTSecret, middleware.PurgeOnWrite(cacheCfg, store))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("stopped")
}
