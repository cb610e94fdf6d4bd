// hazard-admin bootstraps a user account straight against the store, for
// first-run provisioning and local development.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/mkhall/go-hazard-alerts/internal/auth"
	"github.com/mkhall/go-hazard-alerts/internal/config"
	"github.com/mkhall/go-hazard-alerts/internal/logging"
	"github.com/mkhall/go-hazard-alerts/internal/models"
	"github.com/mkhall/go-hazard-alerts/internal/repository"
)

func main() {
	username := flag.String("username", "", "username for the new account")
	password := flag.String("password", "", "password for the new account (min 8 characters)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	if *username == "" || len(*password) < 8 {
		logging.Fatalf("both -username and a -password of at least 8 characters are required")
	}

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		logging.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     *username,
		PasswordHash: hash,
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			logging.Fatalf("username %q is already taken", *username)
		}
		logging.Fatalf("Failed to create user: %v", err)
	}

	slog.Info("user created", "id", user.ID, "username", user.Username)
}
