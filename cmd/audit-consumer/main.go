// Command audit-consumer appends the audit events published by the API to
// a log file, one line per event.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iliyamo/resource-api/internal/config"
	"github.com/iliyamo/resource-api/internal/logging"
	"github.com/iliyamo/resource-api/internal/queue"
)

func main() {
	_ = godotenv.Load()
	events := config.LoadEventsConfig()
	logger := logging.New(os.Getenv("LOG_LEVEL"))

	path := os.Getenv("AUDIT_LOG_PATH")
	if path == "" {
		path = filepath.Join("logs", "audit.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Fatalf("audit log dir: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("audit log open: %v", err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{URL: events.URL, Queue: events.Queue, Out: f, Logger: logger}
	logger.Info("audit_consumer_started", "queue", events.Queue, "file", path)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("audit_consumer_stopped", "error", err)
		os.Exit(1)
	}
}
