package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"

	"github.com/iliyamo/venue-reservation/internal/config"
	"github.com/iliyamo/venue-reservation/internal/database"
	"github.com/iliyamo/venue-reservation/internal/handler"
	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/queue"
	"github.com/iliyamo/venue-reservation/internal/repository"
	"github.com/iliyamo/venue-reservation/internal/router"
	"github.com/iliyamo/venue-reservation/internal/service"
	"github.com/iliyamo/venue-reservation/internal/store"
)

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.Load()

	st, db, closeStore := openStore(cfg)
	defer closeStore()

	var events service.EventPublisher
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.Events.Enabled {
		events = queue.NewPublisher(cfg.Events.URL)
		if cfg.Events.ConsumerEnabled {
			go func() {
				if err := queue.NewConsumer(cfg.Events.URL, cfg.Events.LogDir).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("reservation-consumer stopped: %v", err)
				}
			}()
		}
	}

	auth := service.NewAuthService(st, service.TokenSettings{
		Secret:         cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	})
	if cfg.AdminEmail != "" {
		created, err := auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
		if created {
			log.Printf("bootstrap admin %s created", cfg.AdminEmail)
		}
	}

	reservations := service.NewReservationService(st, events, service.OpeningHours{
		Location: cfg.VenueLocation,
		Open:     cfg.VenueOpenHour,
		Close:    cfg.VenueCloseHour,
	})
	payments := service.NewPaymentService(st, events, service.SimulatedGateway{Delay: cfg.GatewayDelay}, cfg.DefaultCurrency)
	quotes := service.NewQuoteService(st, cfg.DefaultCurrency)
	users := service.NewUserService(st, cfg.BcryptCost)

	e := echo.New()
	e.HideBanner = true
	if cfg.Env == "dev" {
		e.Logger.SetLevel(glog.DEBUG)
	} else {
		e.Logger.SetLevel(glog.INFO)
	}
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				c.Logger().Errorf("%s %s %d %s id=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			c.Logger().Infof("%s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))

	router.Register(e, router.Handlers{
		Auth:         handler.NewAuthHandler(auth, cfg.JWTSecret),
		Reservations: handler.NewReservationHandler(reservations),
		Payments:     handler.NewPaymentHandler(payments),
		Quotes:       handler.NewQuoteHandler(quotes),
		Users:        handler.NewUserHandler(users),
		DB:           db,
		RateLimit:    middleware.NewTokenBucket(config.LoadRateLimitConfig(), config.NewRedisClient()),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		e.Logger.Infof("listening on %s (env=%s, storage=%s)", addr, cfg.Env, cfg.StorageDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Errorf("shutdown: %v", err)
	}
}

// openStore returns the configured store, a pinger for /healthz (nil for
// the memory store) and a close function.
func openStore(cfg config.Config) (store.Store, handler.Pinger, func()) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Printf("using in-memory storage; data is lost on exit")
		return store.NewMemoryStore(), nil, func() {}
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	return repository.NewStore(db), db, func() { _ = db.Close() }
}
