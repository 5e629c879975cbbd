package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ericfisherdev/artsengine/internal/adapter/driven/filelock"
	sqliteadapter "github.com/ericfisherdev/artsengine/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/artsengine/internal/application"
	"github.com/ericfisherdev/artsengine/internal/config"
	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
	"github.com/ericfisherdev/artsengine/internal/logging"
)

type globalFlags struct {
	dbPath  string
	apiBase string
	verbose bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads configuration once, applies flag overrides and installs
// a stderr logger that stays quiet unless --verbose is set.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		if v := strings.TrimSpace(c.flags.dbPath); v != "" {
			cfg.DBPath = v
		}
		if v := strings.TrimSpace(c.flags.apiBase); v != "" {
			cfg.APIBase = strings.TrimRight(v, "/")
		}

		level := "warn"
		if c.flags.verbose {
			level = "debug"
		}
		if _, err := logging.Setup(logging.Config{Level: level, Format: "console"}); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the database, applies migrations and hands fn the secret
// store the server would use for the same configuration.
func (c *commandContext) withStore(ctx context.Context, fn func(cfg *config.Config, store driven.KVStore) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	defer db.Close()

	if _, err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	store, err := sqliteadapter.NewSecretStore(ctx, db, cfg.SecretKey)
	if err != nil {
		return err
	}
	return fn(cfg, store)
}

// withVault runs fn with a Vault that shares the server's cross-process lock.
func (c *commandContext) withVault(ctx context.Context, fn func(v *application.Vault) error) error {
	return c.withStore(ctx, func(cfg *config.Config, store driven.KVStore) error {
		return fn(application.NewVault(store, application.WithLocker(filelock.ForDatabase(cfg.DBPath))))
	})
}
