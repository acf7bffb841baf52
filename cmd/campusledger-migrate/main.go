// Command campusledger-migrate applies the embedded schema migrations and
// seed data to the configured database.
package main

import (
	"os"

	"campusledger/internal/config"
	"campusledger/internal/log"
	"campusledger/internal/storage"
)

func main() {
	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Applying migrations")
	if err := storage.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Error("Migration failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Migrations applied")
}
