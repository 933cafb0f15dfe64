package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/evertodo/internal/cli"
	"github.com/julianstephens/evertodo/internal/config"
	"github.com/julianstephens/evertodo/internal/constants"
	"github.com/julianstephens/evertodo/internal/engine"
	apperrors "github.com/julianstephens/evertodo/internal/errors"
	"github.com/julianstephens/evertodo/internal/keyring"
	"github.com/julianstephens/evertodo/internal/logger"
	"github.com/julianstephens/evertodo/internal/storage"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"path"`
	Debug   bool   `help:"Enable debug logging."`

	Init     cli.InitCmd     `cmd:"" help:"Initialize evertodo config and storage."`
	Add      cli.AddCmd      `cmd:"" help:"Add a new todo."`
	List     cli.ListCmd     `cmd:"" help:"List all todos."`
	Toggle   cli.ToggleCmd   `cmd:"" help:"Toggle a todo or one of its occurrences."`
	Today    cli.TodayCmd    `cmd:"" help:"Show today's occurrences." default:"1"`
	Upcoming cli.UpcomingCmd `cmd:"" help:"Show the next week of occurrences."`
	Overdue  cli.OverdueCmd  `cmd:"" help:"Show past-due entries."`
	Schedule cli.ScheduleCmd `cmd:"" help:"Attach, replace, or clear a recurring pattern."`
	Delete   cli.DeleteCmd   `cmd:"" help:"Delete a todo and its completion history."`
	Watch    cli.WatchCmd    `cmd:"" help:"Follow change notifications."`
	Keyring  struct {
		Set    cli.KeyringSetCmd    `cmd:"" help:"Store the database connection string."`
		Show   cli.KeyringShowCmd   `cmd:"" help:"Show whether a connection string is stored."`
		Delete cli.KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
	} `cmd:"" help:"Manage database credentials in the OS keyring."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Personal task manager with a recurring schedule engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	configPath := CLI.Config
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		apperrors.Fatal(err)
	}
	if CLI.Debug {
		cfg.Debug = true
	}

	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: config.ConfigDir()}); err != nil {
		apperrors.Fatal(fmt.Errorf("initializing logger: %w", err))
	}

	store, err := buildStore(cfg)
	if err != nil {
		apperrors.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		apperrors.Fatal(err)
	}
	defer store.Close()

	eng := engine.New(store, cfg.Owner)
	eng.SetWindows(cfg.Views.UpcomingDays, cfg.Views.OverdueDays)

	appCtx := &cli.Context{
		Store:   store,
		Session: engine.NewSession(store, cfg.Owner),
		Engine:  eng,
		Config:  cfg,
	}

	if err := kctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", apperrors.Format(err))
		os.Exit(1)
	}
}

// buildStore selects the backend once. Postgres connection strings must not
// embed credentials; the keyring supplies the DSN when the config leaves it
// blank.
func buildStore(cfg *config.Config) (storage.Provider, error) {
	if cfg.Storage.Backend != "postgres" {
		return storage.NewSQLiteStore(cfg.Storage.Path), nil
	}

	dsn := cfg.Storage.DSN
	if dsn == "" {
		stored, err := keyring.GetConnectionString()
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil, errors.New("no connection string configured; set storage.dsn or run 'evertodo keyring set'")
			}
			return nil, err
		}
		return storage.NewPostgresStore(stored), nil
	}

	if isPostgresURL(dsn) && storage.HasEmbeddedCredentials(dsn) {
		return nil, errors.New("connection strings with embedded credentials are not allowed in config; use 'evertodo keyring set' or .pgpass")
	}
	return storage.NewPostgresStore(dsn), nil
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
