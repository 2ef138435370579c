package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dan-robinson-ai/judge-training-ground/internal/config"
)

var cfg *config.Config

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "judgectl",
		Short: "Judge Training Ground - build and refine LLM judges",
		Long: `Judge Training Ground manages versioned judge datasets: generate
labeled test cases, evaluate prompt versions against them, and optimize
prompts from evaluation failures.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		datasetsCmd(),
		migrateCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows current configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Current configuration:")
			fmt.Println()

			fmt.Println("Evaluation service:")
			fmt.Printf("  URL:     %s\n", cfg.Eval.URL)
			fmt.Printf("  Model:   %s\n", cfg.Eval.Model)
			fmt.Printf("  Timeout: %s\n", cfg.EvalTimeout())
			fmt.Println()

			fmt.Println("Database:")
			if cfg.Database.PostgresURL != "" {
				fmt.Printf("  Postgres: %s\n", cfg.Database.PostgresURL)
			} else {
				fmt.Printf("  SQLite:   %s\n", cfg.Database.Path)
			}
			fmt.Println()

			fmt.Println("Server:")
			fmt.Printf("  Host: %s\n", cfg.Server.Host)
			fmt.Printf("  Port: %d\n", cfg.Server.Port)
			fmt.Println()

			fmt.Println("Store:")
			fmt.Printf("  Debounce: %s\n", cfg.DebounceInterval())

			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("judgectl %s\n", version)
		},
	}
}
