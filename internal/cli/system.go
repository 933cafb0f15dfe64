package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/evertodo/internal/config"
	"github.com/julianstephens/evertodo/internal/keyring"
	"github.com/julianstephens/evertodo/internal/storage"
)

// InitCmd writes a default config file and prepares the storage backend.
type InitCmd struct {
	Force bool `help:"Overwrite an existing config file."`
}

func (c *InitCmd) Run(ctx *Context) error {
	path := config.DefaultConfigPath()
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	if err := config.Save(path, ctx.Config); err != nil {
		return err
	}
	fmt.Printf("Wrote config to %s\n", path)
	fmt.Printf("Storage backend: %s\n", ctx.Config.Storage.Backend)
	if ctx.Config.Storage.Backend == "sqlite" {
		fmt.Printf("Database: %s\n", ctx.Config.Storage.Path)
	}
	return nil
}

type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string."`
}

func (c *KeyringSetCmd) Run(ctx *Context) error {
	if storage.HasEmbeddedCredentials(c.ConnectionString) {
		// The keyring itself is the credential store; the DSN inside it may
		// carry the password, but warn when it will also end up in shell
		// history.
		fmt.Fprintln(os.Stderr, "Warning: connection string contains an inline password; consider .pgpass instead.")
	}
	if err := keyring.SetConnectionString(c.ConnectionString); err != nil {
		return err
	}
	fmt.Println("Connection string stored in OS keyring.")
	return nil
}

type KeyringShowCmd struct{}

func (c *KeyringShowCmd) Run(ctx *Context) error {
	_, err := keyring.GetConnectionString()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			fmt.Println("No connection string stored. Use 'evertodo keyring set' to store one.")
			return nil
		}
		return err
	}
	fmt.Println("A connection string is stored in the OS keyring.")
	return nil
}

type KeyringDeleteCmd struct{}

func (c *KeyringDeleteCmd) Run(ctx *Context) error {
	if err := keyring.DeleteConnectionString(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			fmt.Println("No connection string stored.")
			return nil
		}
		return err
	}
	fmt.Println("Connection string removed from OS keyring.")
	return nil
}

// WatchCmd follows the change channel and reports mutations until
// interrupted. Useful for verifying cross-device propagation.
type WatchCmd struct{}

func (c *WatchCmd) Run(ctx *Context) error {
	bg, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cancel, err := ctx.Store.Subscribe(ctx.Config.Owner, func(ev storage.ChangeEvent) {
		fmt.Printf("change: %s (owner %s)\n", ev.Kind, ev.Owner)
	})
	if err != nil {
		return err
	}
	defer cancel()

	fmt.Printf("Watching changes for owner %q. Press Ctrl-C to stop.\n", ctx.Config.Owner)
	<-bg.Done()
	return nil
}
