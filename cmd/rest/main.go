package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-interview-be/internal/bootstrap"
	"ai-interview-be/internal/config"
	"ai-interview-be/internal/server"
	"ai-interview-be/internal/tracer"
	"ai-interview-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Otel)
	defer shutdownTracer(context.Background())

	// 3. Initialize Database
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		var err error
		gormDB, err = database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
	}

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()

	// 5. Start Background Services
	if err := container.QuizWorker.Consume(context.Background()); err != nil {
		log.Fatalf("Failed to start quiz worker: %v", err)
	}
	if container.NotificationService != nil {
		if err := container.NotificationService.Start(); err != nil {
			log.Printf("Notification service not started: %v", err)
		}
	}

	// 6. Run Server
	srv := server.New(cfg, container)
	go func() {
		if err := srv.Run(); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
