/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp Exchange Engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Open the SQLite archive (optional) and attach it to the event bus
  3. Build the in-memory repository, seed demo fixtures
  4. Connect the realtime manager and start the SLA monitor
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port                HTTP server port (default: 8080)
  -db                  SQLite archive path, empty disables the archive.
                       Use ":memory:" for an in-memory archive.
  -latency             Artificial repository latency (default: 0)
  -synthetic-interval  Synthetic event tick interval (default: 5s)
  -seed                Load demo fixtures (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the SLA monitor and close the realtime transport
  4. Close the archive
  5. Exit

EXAMPLES:
  # Run with a durable archive and simulated network latency
  ./server -db="./data/exchange.db" -latency=300ms

  # Run without the archive, fast synthetic ticks
  ./server -synthetic-interval=1s

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/archive.go: Durable event/audit archive
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/exchange-engine/api"
	"github.com/warp/exchange-engine/events"
	"github.com/warp/exchange-engine/realtime"
	"github.com/warp/exchange-engine/store"
	"github.com/warp/exchange-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite archive path (empty disables the archive)")
	latency := flag.Duration("latency", 0, "artificial repository latency")
	syntheticInterval := flag.Duration("synthetic-interval", 5*time.Second, "synthetic event tick interval")
	seed := flag.Bool("seed", true, "load demo fixtures")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	bus := events.NewBus(log)

	// Durable archive (optional)
	var archive *sqlite.Archive
	if *dbPath != "" {
		var err error
		archive, err = sqlite.Open(*dbPath)
		if err != nil {
			log.WithError(err).Fatal("failed to open archive")
		}
		defer archive.Close()
		detach := archive.Attach(bus)
		defer detach()
	}

	// Repository
	storeOpts := []store.Option{
		store.WithLogger(log),
		store.WithLatency(*latency),
	}
	if archive != nil {
		storeOpts = append(storeOpts, store.WithAuditSink(archive))
	}
	repo := store.New(bus, storeOpts...)
	if *seed {
		repo.Seed()
	}

	// Realtime transport (synthetic in this build)
	source := realtime.NewSyntheticSource(log)
	source.Interval = *syntheticInterval
	manager := realtime.NewManager(bus, source, realtime.Config{}, log)
	if err := manager.Connect(); err != nil {
		log.WithError(err).Warn("realtime transport failed to connect; reconnect scheduled")
	}
	defer manager.Close()

	// SLA monitor
	monitor := realtime.NewSLAMonitor(repo, bus, log)
	monitor.Start()
	defer monitor.Stop()

	// Router + server
	handler := api.NewHandler(repo, bus, manager, archive, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", *port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /api/events/stream holds its connection open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}
