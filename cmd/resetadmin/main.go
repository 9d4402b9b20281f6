// Command resetadmin creates an admin account, or promotes an existing one
// and resets its password.
//
//	resetadmin <email> <password>
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/iliyamo/cliora-storefront/internal/database"
	"github.com/iliyamo/cliora-storefront/internal/repository"
	"github.com/iliyamo/cliora-storefront/internal/utils"
)

type env struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	BcryptCost  int    `envconfig:"BCRYPT_COST" default:"10"`
}

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: resetadmin <email> <password>")
		os.Exit(2)
	}
	email, password := os.Args[1], os.Args[2]

	_ = godotenv.Load()
	var cfg env
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	hash, err := utils.HashPassword(password, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	u, err := repository.NewUserRepo(db).UpsertAdmin(ctx, "Admin", email, hash)
	if err != nil {
		log.Fatalf("reset admin: %v", err)
	}
	fmt.Printf("admin ready: id=%d email=%s\n", u.ID, u.Email)
}
