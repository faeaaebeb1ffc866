// main.go - HTTP server application
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vistrail/internal"
	"vistrail/internal/seeder"
)

const defaultShutdownTimeout = 30 * time.Second

func main() {
	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	log.Println("Running database migrations...")
	if err := app.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed")

	if app.Config.SeedPath != "" {
		log.Printf("Seeding from %s...", app.Config.SeedPath)
		if err := seeder.Run(app.DB.GetConnection(), app.Logger, app.Config.SeedPath); err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
	}

	log.Println("Starting application...")
	app.StartAsync()

	waitForShutdownSignal(app)
}

// waitForShutdownSignal blocks until a termination signal and then drains
// the application.
func waitForShutdownSignal(app *internal.Application) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigChan
	log.Printf("Received signal: %v", sig)

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}
	log.Println("Server shutdown complete")
}
