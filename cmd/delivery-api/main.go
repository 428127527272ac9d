// README: Entry point; loads config, wires services, starts the HTTP and realtime server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fastdelivery/internal/config"
	"fastdelivery/internal/geo"
	httptransport "fastdelivery/internal/http"
	"fastdelivery/internal/infra"
	"fastdelivery/internal/modules/driver"
	"fastdelivery/internal/modules/order"
	"fastdelivery/internal/modules/store"
	"fastdelivery/internal/notify"
	"fastdelivery/internal/realtime"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Error("DELIVERY_FIREBASE_PROJECT_ID is required")
		os.Exit(1)
	}
	fb, err := infra.NewFirebase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Error("firebase init", "err", err)
		os.Exit(1)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Error("database init", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	registry := realtime.NewRegistry()
	positions := realtime.NewPositionCache(redisClient)
	hub := realtime.NewHub(registry, positions, log)

	driverStore := driver.NewPgStore(dbPool)
	driverSvc := driver.NewService(driverStore, hub)

	storeRepo := store.NewPgRepo(dbPool)

	tokens := notify.NewRedisTokenStore(redisClient)
	notifier := notify.NewService(tokens,
		notify.NewExpoSender(cfg.Push.ExpoURL),
		notify.NewFCMSender(fb.Messaging),
		log)

	var geocoder order.Geocoder
	if cfg.Maps.APIKey != "" {
		gc, err := geo.NewClient(cfg.Maps.APIKey)
		if err != nil {
			log.Error("maps init", "err", err)
			os.Exit(1)
		}
		geocoder = gc
	} else {
		log.Warn("DELIVERY_MAPS_API_KEY not set, orders will be created without coordinates")
	}

	orderStore := order.NewPgStore(dbPool)
	orderSvc := order.NewService(orderStore, order.Deps{
		Seq:       order.NewRedisSequencer(redisClient),
		Guard:     driver.NewGuard(driverSvc),
		Geo:       geocoder,
		Broadcast: hub,
		Notify:    notifier,
		Log:       log,
	})

	srv := httptransport.NewServer(httptransport.ServerDeps{
		Orders:       orderSvc,
		Drivers:      driverSvc,
		Stores:       storeRepo,
		Tokens:       tokens,
		Hub:          hub,
		Verifier:     fb.Verifier(),
		Log:          log,
		WSSendBuffer: cfg.Realtime.SendBuffer,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: srv.Routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server", "err", err)
		os.Exit(1)
	}
}
