// Command devtoken prints a bearer token for a local user, creating the
// user when needed. It refuses to run against production configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"agora/internal/auth"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/repository"
	"agora/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	username := flag.String("user", "", "Username to issue a token for (required)")
	displayName := flag.String("name", "", "Display name used when the user is created")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *username == "" {
		return fmt.Errorf("usage: devtoken -user <username> [-name <display name>] [-ttl 24h]")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.IsProduction() {
		return fmt.Errorf("devtoken is disabled in %s", cfg.Env)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	users := service.NewUserService(repository.NewUserRepository(db))
	user, err := users.EnsureUser(context.Background(), *username, *displayName)
	if err != nil {
		return err
	}

	token, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, *ttl).Issue(user.ID)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Println(token)
	return nil
}
