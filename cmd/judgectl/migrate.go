package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/kv"
)

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// migrateCmd upgrades the local store's schema explicitly. The serve
// command runs the same migration lazily on first repository access;
// this exists for upgrading a database without starting the server.
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade the local database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Database.PostgresURL != "" {
				fmt.Println("Postgres storage has no legacy records to migrate.")
				return nil
			}

			if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
				return fmt.Errorf("creating data directory: %w", err)
			}
			substrate, err := kv.OpenSQLite(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
			}
			defer substrate.Close()

			if err := kv.Migrate(cmd.Context(), substrate, utcClock{}); err != nil {
				return err
			}
			fmt.Println("Database schema is up to date.")
			return nil
		},
	}
}
