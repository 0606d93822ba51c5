package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/documentum/pkg/documentum"
	"github.com/tendant/documentum/pkg/documentum/config"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "documentum-admin",
		Short: "Administration tool for the documentum content store",
		Long: `Administration tool for the documentum content store.

Configuration is read from DOCUMENTUM_* environment variables (a .env file in
the current directory is loaded first) and optionally from a YAML file.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().String("actor", "admin", "identity recorded in the audit log")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON")

	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewVersionsCommand())
	rootCmd.AddCommand(NewTemplateCommand())
	rootCmd.AddCommand(NewTaxonomyCommand())

	return rootCmd
}

// loadConfig reads the configuration named by the --config flag and the environment.
func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	opts := []config.Option{config.WithMetrics(false, nil), config.WithEventLogging(false)}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		opts = append(opts, config.WithFile(path))
	}
	opts = append(opts, config.WithEnv())
	return config.Load(opts...)
}

// withService builds the configured service and runs fn with an actor-scoped context.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc documentum.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, cleanup, err := cfg.BuildService(ctx, cfg.NewLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer cleanup()

	actor, _ := cmd.Flags().GetString("actor")
	return fn(documentum.WithActor(ctx, actor), svc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func useJSON(cmd *cobra.Command) bool {
	b, _ := cmd.Flags().GetBool("json")
	return b
}
