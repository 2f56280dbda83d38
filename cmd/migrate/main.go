package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/erp/directdebit/internal/infrastructure/config"
	"github.com/erp/directdebit/internal/infrastructure/logger"
	"github.com/erp/directdebit/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

func main() {
	var (
		migrationsPath string
		configPath     string
		logLevel       string
		confirm        bool
	)
	flag.StringVar(&migrationsPath, "path", defaultMigrationsPath, "Path to the migrations directory")
	flag.StringVar(&configPath, "config", "", "Config file (default: config.toml lookup)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&confirm, "confirm", false, "Confirm a destructive command (down, force)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	command := args[0]
	confirm = confirm || slices.Contains(args[1:], "-confirm") || slices.Contains(args[1:], "--confirm")

	log := logger.New(logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	defer func() { _ = log.Sync() }()

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		log.Fatal("Invalid migrations path", zap.Error(err))
	}

	// commands working on the files only
	switch command {
	case "create":
		if len(args) < 2 {
			log.Fatal("Migration name required. Usage: migrate create <name> [description]")
		}
		mf, err := migration.CreateMigration(absPath, args[1], strings.Join(args[2:], " "), time.Now())
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created",
			zap.Uint("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath))
		return
	case "list":
		files, err := migration.ListMigrations(absPath)
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		for _, f := range files {
			fmt.Println(f.Base())
		}
		if err := migration.CheckPairs(files); err != nil {
			log.Fatal("Incomplete migrations", zap.Error(err))
		}
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatal("SQL migrations target postgres only, sqlite databases are created by the server",
			zap.String("driver", cfg.Database.Driver))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, absPath, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
	case "down":
		if !confirm {
			log.Fatal("Rolling back every migration drops all direct debit data. Use -confirm to proceed.")
		}
		err = m.Down()
	case "step":
		var n int
		n, err = strconv.Atoi(argAt(args, 1, log, "Step count required. Usage: migrate step <n>"))
		if err == nil {
			err = m.Steps(n)
		}
	case "goto":
		var version uint64
		version, err = strconv.ParseUint(argAt(args, 1, log, "Version required. Usage: migrate goto <version>"), 10, 64)
		if err == nil {
			err = m.GoTo(uint(version))
		}
	case "force":
		if !confirm {
			log.Fatal("Forcing a version skips migrations. Use -confirm to proceed.")
		}
		var version int
		version, err = strconv.Atoi(argAt(args, 1, log, "Version required. Usage: migrate force <version>"))
		if err == nil {
			err = m.Force(version)
		}
	case "status":
		var st migration.Status
		st, err = m.Status()
		if err == nil {
			log.Info("Migration status",
				zap.Uint("version", st.Version),
				zap.Bool("dirty", st.Dirty),
				zap.Int("pending", len(st.Pending)))
			for _, f := range st.Pending {
				fmt.Println("pending:", f.Base())
			}
		}
	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func argAt(args []string, i int, log *zap.Logger, usage string) string {
	if len(args) <= i {
		log.Fatal(usage)
	}
	return args[i]
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Direct debit database migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down -confirm         Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  goto <version>        Migrate to a specific version
  status                Show the applied version and pending migrations
  force <version>       Record a version without running it (needs -confirm)
  create <name> [desc]  Create a new migration file pair
  list                  List migrations and check they are paired

Flags:
  -path string          Migrations directory (default: ./migrations)
  -config string        Config file (default: config.toml lookup)
  -log-level string     Log level (default: info)

The database is read from the [database] section or SDD_DATABASE_* variables.`)
}
