package main

import (
	"flag"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/gruzztop/gruzztop/internal/config"
	"github.com/gruzztop/gruzztop/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	down := flag.Bool("down", false, "roll back the last migration instead of applying")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	log := logger.Setup(cfg.Env)

	m, err := migrate.New("file://"+cfg.Migrations.Path, cfg.Database.DSN())
	if err != nil {
		log.WithError(errors.Wrap(err, "open migrations")).Fatal("migrator failed")
	}
	defer m.Close()

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return
		}
		log.WithError(errors.Wrap(err, "apply migrations")).Fatal("migrator failed")
	}

	version, dirty, _ := m.Version()
	log.WithField("version", version).WithField("dirty", dirty).Info("migrations applied")
}
