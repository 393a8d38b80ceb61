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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/api/handler"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/api/server"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/api/service"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/engine"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/firewall"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra/auth"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/notify"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// Контекст жизненного цикла фоновых горутин. SIGTERM отменяет его.
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := infra.SetupTracing(appCtx, cfg.Tracing)
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}

	// 2. Хранилища
	db, err := postgres.Open(cfg.Database)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(appCtx, 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		logger.Fatal("database unreachable", zap.Error(err))
	}
	cancel()

	if cfg.Database.MigrateOnStart {
		if err := postgres.MigrateUp(db.DB); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// 3. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewMetrics(reg)

	// 4. Авторизация: список выключенных features из Redis, изменения по pub/sub
	authz := policy.NewFeatureAuthorizer(rdb, logger)
	if err := authz.Refresh(appCtx); err != nil {
		logger.Warn("disabled features not loaded, starting with none", zap.Error(err))
	}
	go authz.StartListener(appCtx)

	var validator auth.TokenValidator
	if len(cfg.Auth.PublicKey) > 0 {
		pub, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			logger.Fatal("auth public key invalid", zap.Error(err))
		}
		validator = auth.NewBaseValidator(pub)
	} else {
		logger.Warn("auth public key not configured, all requests are anonymous")
	}

	// 5. Уведомления: best-effort пачки поверх надежного транспорта
	transport, err := notify.NewTransport(cfg.Notifier, rdb, logger, metrics)
	if err != nil {
		logger.Fatal("notifier init failed", zap.Error(err))
	}
	dispatcher := notify.NewDispatcher(transport, cfg.Notifier.QueueSize, cfg.Notifier.Timeout, logger, metrics)
	dispatcher.Start()

	// 6. Ядро
	guard := firewall.NewGuard(db, firewall.NewRegistry(cfg.Firewall), authz, dispatcher,
		cfg.Firewall.SideEffectTimeout, logger, metrics)
	ledger := engine.New(db, authz, engine.Config{Ledger: cfg.Ledger, Sponsorship: cfg.Sponsorship}, logger, metrics)

	contents := service.NewContentService(db, guard, authz, logger)
	users := service.NewUserService(db, guard, logger)
	events := service.NewEventService(db, authz)

	// /metrics на отдельном порту, если он задан, иначе рядом с API
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	var apiMetrics http.Handler = metricsHandler
	if cfg.Server.MetricsAddr != "" {
		apiMetrics = nil
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metricsHandler)
			logger.Info("metrics endpoint started", zap.String("addr", cfg.Server.MetricsAddr))
			if err := http.ListenAndServe(cfg.Server.MetricsAddr, mux); err != nil {
				logger.Error("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	api := server.New(logger, metrics, validator, server.Handlers{
		Ledger:   handler.NewLedgerHandler(ledger, contents, logger),
		Content:  handler.NewContentHandler(contents, logger),
		User:     handler.NewUserHandler(users, logger),
		Firewall: handler.NewFirewallHandler(events, guard, logger),
	}, apiMetrics, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}, server.WithTrustedProxy(cfg.Server.TrustProxy))

	// 7. HTTP
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("ledger API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 8. Graceful Shutdown
	<-appCtx.Done()
	logger.Info("ledger API stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	// После остановки HTTP новых пачек нет, досылаем очередь
	dispatcher.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown failed", zap.Error(err))
	}
	logger.Info("ledger API exited properly")
}
