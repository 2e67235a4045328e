/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the points ledger engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Seed the points policy if the store has none
  4. Build the points engine and API handler
  5. Start the allowance scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: points.db)
           Use ":memory:" for an in-memory database
  -config  Optional JSON policy file to load at startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/points.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Load a custom policy at startup
  ./server -config=./policy.json

ENVIRONMENT:
  No environment variables currently. All config via flags.
  Future: DATABASE_URL, PORT, LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/points-engine/api"
	"github.com/warp/points-engine/factory"
	"github.com/warp/points-engine/points"
	"github.com/warp/points-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "points.db", "SQLite database path")
	configPath := flag.String("config", "", "JSON points policy file (optional)")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Seed or load the points policy
	if err := ensureConfig(store, *configPath); err != nil {
		log.Fatalf("Failed to load points policy: %v", err)
	}

	// Build engine and handler
	provider := points.NewStoreConfig(store, time.Minute)
	engine := points.NewEngine(store, provider)
	handler := api.NewHandler(engine, store, provider)

	// Background allowance refresh
	scheduler := api.NewAllowanceScheduler(engine)
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// ensureConfig loads the policy file if given, otherwise seeds the
// standard policy when the store has none.
func ensureConfig(store *sqlite.Store, configPath string) error {
	ctx := context.Background()
	f := factory.NewConfigFactory()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", configPath, err)
		}
		cfg, err := f.ParseConfig(string(data))
		if err != nil {
			return err
		}
		return store.SaveConfig(ctx, cfg)
	}

	existing, err := store.GetConfig(ctx)
	if err != nil {
		return err
	}
	if !existing.MonthlyAllowanceBase.IsZero() {
		return nil // already configured
	}

	cfg, err := f.ParseConfig(factory.StandardConfigJSON())
	if err != nil {
		return err
	}
	log.Println("No points policy found, seeding the standard policy")
	return store.SaveConfig(ctx, cfg)
}
