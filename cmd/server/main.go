package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hitcklife/yoryor-last-sub008/internal/adapters/http/auth"
	httpHandlers "github.com/hitcklife/yoryor-last-sub008/internal/adapters/http/handlers"
	httpMiddleware "github.com/hitcklife/yoryor-last-sub008/internal/adapters/http/middleware"
	"github.com/hitcklife/yoryor-last-sub008/internal/adapters/metrics"
	memorystorage "github.com/hitcklife/yoryor-last-sub008/internal/adapters/storage/memory"
	redisstorage "github.com/hitcklife/yoryor-last-sub008/internal/adapters/storage/redis"
	"github.com/hitcklife/yoryor-last-sub008/internal/config"
	"github.com/hitcklife/yoryor-last-sub008/internal/core/domain"
	"github.com/hitcklife/yoryor-last-sub008/internal/core/ports"
	"github.com/hitcklife/yoryor-last-sub008/internal/core/services"
	"github.com/hitcklife/yoryor-last-sub008/internal/logger"
)

const janitorInterval = time.Minute

type registries struct {
	api, chat, auth, path domain.Registry
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, closeFn, err := initStorage(ctx, cfg.Storage, lg)
	if err != nil {
		lg.Fatal("failed to init storage", zap.Error(err))
	}
	defer closeFn()

	regs, err := loadRegistries(cfg.RateLimiter.Overrides)
	if err != nil {
		lg.Fatal("invalid rate limit rules", zap.Error(err))
	}

	ordering := services.OrderingIncrementFirst
	if cfg.RateLimiter.Strict {
		ordering = services.OrderingCheckThenIncrement
	}
	limiter, err := services.NewRateLimiterService(storage, services.Config{
		Ordering: ordering,
		Logger:   lg,
	})
	if err != nil {
		lg.Fatal("failed to create limiter", zap.Error(err))
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewMetrics("yoryor", promRegistry)
	if err != nil {
		lg.Fatal("failed to register metrics", zap.Error(err))
	}

	opts := httpMiddleware.Options{
		Limiter:           limiter,
		Logger:            lg,
		Recorder:          recorder,
		Identity:          auth.UserID,
		TrustProxyHeaders: cfg.RateLimiter.TrustProxyHeaders,
		FailOpen:          cfg.RateLimiter.FailOpen,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID, chimiddleware.Recoverer)
	r.Get("/healthz", httpHandlers.Health)
	r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if cfg.Auth.JWTSecret != "" {
			r.Use(auth.Authenticate(auth.NewValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)))
		} else {
			lg.Warn("JWT_SECRET not set, every request is treated as unauthenticated")
		}
		mountRoutes(r, opts, regs)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("server listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Type), zap.Stringer("ordering", ordering))
		err := srv.ListenAndServe()
		if err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		lg.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}

func mountRoutes(r chi.Router, opts httpMiddleware.Options, regs registries) {
	apiLimit := httpMiddleware.APIRateLimit(opts, regs.api)
	chatLimit := httpMiddleware.ChatRateLimit(opts, regs.chat)
	authLimit := httpMiddleware.AuthRateLimit(opts, regs.auth)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(authLimit(httpMiddleware.AuthLogin)).Post("/login", httpHandlers.Credentials)
		r.With(authLimit(httpMiddleware.AuthOTP)).Post("/otp", httpHandlers.Credentials)
		r.With(apiLimit("auth_action")).Post("/refresh", httpHandlers.Action("auth_action"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		apiRoutes := []struct {
			method, pattern, operation string
		}{
			{http.MethodPost, "/likes/{userId}", "like_action"},
			{http.MethodGet, "/matches", "match_discovery"},
			{http.MethodPut, "/profile/{profile}", "profile_update"},
			{http.MethodPost, "/photos", "photo_upload"},
			{http.MethodPost, "/stories", "story_action"},
			{http.MethodPost, "/calls", "call_action"},
			{http.MethodPost, "/account/two-factor", "sensitive_action"},
			{http.MethodPost, "/blocks/{userId}", "block_action"},
			{http.MethodPost, "/verification", "verification_submit"},
			{http.MethodPost, "/emergency/panic", "panic_activation"},
			{http.MethodPost, "/reports", "report_action"},
			{http.MethodPut, "/location", "location_update"},
			{http.MethodPut, "/account/password", "password_change"},
			{http.MethodPut, "/account/email", "email_change"},
			{http.MethodDelete, "/account", "account_deletion"},
			{http.MethodPost, "/account/export", "data_export"},
		}
		for _, route := range apiRoutes {
			r.With(apiLimit(route.operation)).Method(route.method, route.pattern, httpHandlers.Action(route.operation))
		}

		r.Route("/chats", func(r chi.Router) {
			r.With(chatLimit("create_chat")).Post("/", httpHandlers.Action("create_chat"))
			r.With(chatLimit("send_message")).Post("/{id}/messages", httpHandlers.Action("send_message"))
			r.With(chatLimit("edit_message")).Put("/{id}/messages/{message_id}", httpHandlers.Action("edit_message"))
			r.With(chatLimit("delete_message")).Delete("/{id}/messages/{message_id}", httpHandlers.Action("delete_message"))
			r.With(chatLimit("mark_read")).Post("/{id}/read", httpHandlers.Action("mark_read"))
		})
	})

	// Rotas sem limiter próprio caem no limiter por caminho: api/user/*, api/* e web.
	pathLimit := httpMiddleware.PathRateLimit(opts, regs.path, domain.DefaultPathRoutes())
	r.With(pathLimit).HandleFunc("/*", httpHandlers.Action("path"))
}

func loadRegistries(overrides config.Overrides) (registries, error) {
	var regs registries
	var err error

	if regs.api, err = domain.APIRegistry().WithOverrides(overrides.For(domain.ContextAPI)); err != nil {
		return registries{}, err
	}
	if regs.chat, err = domain.ChatRegistry().WithOverrides(overrides.For(domain.ContextChat)); err != nil {
		return registries{}, err
	}
	if regs.auth, err = domain.AuthRegistry().WithOverrides(overrides.For(domain.ContextAuth)); err != nil {
		return registries{}, err
	}
	if regs.path, err = domain.PathRegistry().WithOverrides(overrides.For(domain.ContextPath)); err != nil {
		return registries{}, err
	}

	for name := range overrides {
		switch name {
		case domain.ContextAPI, domain.ContextChat, domain.ContextAuth, domain.ContextPath:
		default:
			return registries{}, fmt.Errorf("unknown rate limit context %q", name)
		}
	}

	return regs, nil
}

func initStorage(ctx context.Context, cfg config.StorageConfig, lg *zap.Logger) (ports.CounterStore, func(), error) {
	switch cfg.Type {
	case "redis":
		redisCfg := redisstorage.Config{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		storage, err := redisstorage.New(redisCfg, lg)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {
			if err := storage.Close(); err != nil {
				lg.Error("failed to close redis storage", zap.Error(err))
			}
		}, nil
	case "memory":
		lg.Warn("memory storage keeps counters per process, limits are not shared between instances")
		storage := memorystorage.New()
		stopJanitor := storage.StartJanitor(ctx, janitorInterval)
		return storage, stopJanitor, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
