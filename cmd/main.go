package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"google.golang.org/grpc"

	"github.com/listen-party/sync-service/config"
	"github.com/listen-party/sync-service/internal/playback"
	"github.com/listen-party/sync-service/internal/registry"
	"github.com/listen-party/sync-service/internal/service"
	grpcx "github.com/listen-party/sync-service/internal/transport/grpc"
	httpx "github.com/listen-party/sync-service/internal/transport/http"
	"github.com/listen-party/sync-service/internal/transport/ws"
	"github.com/listen-party/sync-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting sync-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- state (всё эфемерно, by design) ---
	clock := clockwork.NewRealClock()
	reg := registry.New(clock, cfg.Chat.HistoryLimit)
	sessions := registry.NewSessionStore(clock)
	engine := playback.NewEngine(clock, playback.Delays{
		Start:  time.Duration(cfg.Sync.StartDelayMs) * time.Millisecond,
		Resync: time.Duration(cfg.Sync.ResyncDelayMs) * time.Millisecond,
		Join:   time.Duration(cfg.Sync.JoinDelayMs) * time.Millisecond,
	})

	// --- services ---
	syncSvc := service.NewSyncService(reg, engine, clock)
	chatSvc := service.NewChatService(reg, clock, cfg.Chat.MaxLen)

	// --- WS Hub & Server ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, syncSvc, chatSvc, sessions, clock, cfg.PingEvery())

	// --- HTTP ---
	handler := httpx.NewHandler(syncSvc, chatSvc, sessions)
	router := httpx.NewRouter(handler, sessions, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- gRPC (ops: health) ---
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcx.StreamServerInterceptor()),
	)
	health := grpcx.Register(grpcServer)

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health.Shutdown()
	grpcServer.GracefulStop()
	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
