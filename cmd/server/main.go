package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sketchroom/internal/api"
	"sketchroom/internal/board"
	"sketchroom/internal/config"
	"sketchroom/internal/gateway"
	"sketchroom/internal/telemetry"
)

func main() {
	log.Println("🚀 Starting sketchroom collaborative canvas server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Tracing first so everything downstream is traced; a missing
	// collector degrades to a no-op rather than blocking startup.
	jaegerShutdown, err := telemetry.InitJaeger("sketchroom", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	// Room directory: rooms are created lazily on first join and, unless
	// ROOM_IDLE_TTL is set, live for the process lifetime.
	directory := board.NewDirectory(cfg.RoomIdleTTL, cfg.RoomSweepInterval)
	directory.Start()
	if cfg.RoomIdleTTL > 0 {
		log.Printf("✓ Idle-room eviction enabled (ttl=%s, sweep=%s)", cfg.RoomIdleTTL, cfg.RoomSweepInterval)
	}

	gw := gateway.New(directory)
	wsHandler := gateway.NewHandler(gw)

	router := api.SetupRoutes(wsHandler, cfg.StaticDir)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://%s", cfg.Addr())
		log.Printf("   WebSocket endpoint: ws://%s/ws", cfg.Addr())
		log.Printf("   Drawing client:     http://%s/", cfg.Addr())

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	gw.Shutdown()
	directory.Stop()

	log.Println("✓ Server shutdown complete")
}
