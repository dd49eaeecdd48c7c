package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/serenispa/booking-engine/internal/booking"
	"github.com/serenispa/booking-engine/internal/calendar"
	"github.com/serenispa/booking-engine/internal/config"
	"github.com/serenispa/booking-engine/internal/handler"
	"github.com/serenispa/booking-engine/internal/ledger"
	"github.com/serenispa/booking-engine/internal/limiter"
	"github.com/serenispa/booking-engine/internal/notify"
	"github.com/serenispa/booking-engine/internal/otp"
	"github.com/serenispa/booking-engine/internal/reconcile"
	"github.com/serenispa/booking-engine/internal/router"
	"github.com/serenispa/booking-engine/internal/watch"
)

func main() {
	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()
	cfg := config.Load()
	loc := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, using in-process rate limiting and code storage")
	}

	// External systems.
	ledgerClient := ledger.NewClient(cfg.LedgerAPIURL, cfg.LedgerBaseID, cfg.LedgerAPIKey, cfg.LedgerTimeout)
	bookingRepo := ledger.NewBookingRepo(ledgerClient, "Bookings")
	blockRepo := ledger.NewBlockRepo(ledgerClient, "Blocks")

	cal := calendar.NewClient(calendar.Config{
		APIURL:       cfg.CalAPIURL,
		TokenURL:     cfg.CalTokenURL,
		ClientID:     cfg.CalClientID,
		ClientSecret: cfg.CalClientSecret,
		RefreshToken: cfg.CalRefreshToken,
		CalendarID:   cfg.CalendarID,
		Timezone:     cfg.Timezone,
		Timeout:      cfg.CalTimeout,
	})

	mail := notify.NewMailClient(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom, cfg.MailTimeout)
	dispatcher := notify.NewDispatcher(cfg.AMQPURL, mail)

	// Core services.
	hours := booking.Hours{
		Open:        cfg.OpenTime,
		Close:       cfg.CloseTime,
		Granularity: cfg.Granularity,
		Buffer:      cfg.Buffer,
	}
	bookings := booking.NewService(bookingRepo, blockRepo, cal, dispatcher, hours, loc)
	engine := reconcile.NewEngine(bookingRepo, blockRepo, cal, hours, loc)

	var otpStore otp.Store
	var rateStore limiter.Store
	if rdb != nil {
		otpStore = otp.NewRedisStore(rdb)
		if cfg.RateLimit.Enabled {
			rateStore = limiter.NewRedisStore(limiterConfig(cfg), rdb)
		}
	} else {
		memStore := otp.NewMemoryStore()
		go memStore.Run(ctx, time.Minute)
		otpStore = memStore
		if cfg.RateLimit.Enabled {
			memRate := limiter.NewMemoryStore(limiterConfig(cfg))
			go memRate.Run(ctx, time.Minute)
			rateStore = memRate
		}
	}
	codes := otp.NewService(otpStore, dispatcher, time.Duration(cfg.OTPTTLMin)*time.Minute)

	// Background workers.
	var renewer *watch.Renewer
	if cfg.WebhookAddress != "" && cal.Configured() {
		renewer = watch.NewRenewer(cal, cfg.WebhookAddress, cfg.WebhookToken, cfg.WatchInterval)
		go renewer.Run(ctx)
	} else {
		log.Printf("calendar push notifications disabled, relying on manual sync")
	}
	if cfg.AMQPURL != "" {
		go notify.StartConsumer(ctx, cfg.AMQPURL, mail)
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Slots:    handler.NewSlotsHandler(bookings),
		Bookings: handler.NewBookingHandler(bookings),
		Verify:   handler.NewVerifyHandler(bookings, codes, cfg.JWTSecret, time.Duration(cfg.ManageTTLMin)*time.Minute),
		Sync:     handler.NewSyncHandler(engine, renewer, cfg.WebhookToken),
		Blocks:   handler.NewBlockHandler(blockRepo, cal, hours, loc),
	}, cfg, rateStore, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s tz=%s)", addr, cfg.Env, cfg.Timezone)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func limiterConfig(cfg config.Config) limiter.Config {
	return limiter.Config{
		Capacity:       cfg.RateLimit.Capacity,
		RefillTokens:   cfg.RateLimit.RefillTokens,
		RefillInterval: cfg.RateLimit.RefillInterval,
		TTL:            cfg.RateLimit.TTL,
	}
}
