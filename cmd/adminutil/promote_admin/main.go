package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/gruzztop/gruzztop/internal/auth"
	"github.com/gruzztop/gruzztop/internal/config"
	"github.com/gruzztop/gruzztop/internal/db"
	"github.com/gruzztop/gruzztop/internal/logger"
)

func main() {
	email := flag.String("email", "", "Email of the user to promote to admin")
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	log := logger.Setup(cfg.Env)

	if *email == "" {
		log.Fatal("usage: promote_admin -email user@example.com")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.WithError(errors.Wrap(err, "connect database")).Fatal("promote failed")
	}
	defer pool.Close()

	if err := auth.NewPostgresStore(pool).PromoteToAdmin(ctx, *email); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			log.WithField("email", *email).Fatal("no user with this email")
		}
		log.WithError(errors.Wrap(err, "promote user")).Fatal("promote failed")
	}

	fmt.Printf("User %s promoted to admin. Existing tokens keep the old role until the next login.\n", *email)
}
