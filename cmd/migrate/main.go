package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"ms-preorder/internal/config"
	"ms-preorder/internal/database/migrations"
	"ms-preorder/internal/logger"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun/driver/pgdriver"
)

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	_ = godotenv.Load()
	cfg := config.Load()

	dir := flag.String("dir", cfg.Database.MigrationsDir, "migrations directory")
	seed := flag.Bool("seed", cfg.Database.SeedData, "also apply demo data migrations")
	to := flag.Uint("to", 0, "migrate up or down to this version")
	flag.Parse()

	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN)))
	defer sqldb.Close()
	if err := sqldb.Ping(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to database: %v", err))
	}

	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{MigrationsDir: *dir, SeedData: *seed}, logger)
	defer runner.Close()

	var err error
	switch cmd {
	case "up":
		if *to > 0 {
			err = runner.MigrateTo(*to)
		} else {
			err = runner.RunMigrations()
		}
	case "down":
		err = runner.MigrateDown()
	case "version":
		v, dirty, verr := runner.Version()
		if verr == nil {
			fmt.Printf("version=%d dirty=%t\n", v, dirty)
		}
		err = verr
	default:
		fmt.Fprintf(os.Stderr, "usage: migrate [-dir DIR] [-seed] [-to N] up|down|version\n")
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ migrate %s done", cmd))
}
