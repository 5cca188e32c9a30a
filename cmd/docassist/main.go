package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docassist/docassist/config"
	srv "github.com/docassist/docassist/internal/server"
	"github.com/docassist/docassist/internal/vector"
)

func main() {
	var root = &cobra.Command{Use: "docassist"}

	var cfgPath string
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path")

	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			return srv.Run(cfg)
		},
	}

	var migDir string
	var direction string
	var steps int
	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			return srv.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrateCmd.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrateCmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrateCmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	var initCollection = &cobra.Command{
		Use:   "init-collection",
		Short: "Create the qdrant collection if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			client, err := vector.Dial(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.EnsureCollection(context.Background(), cfg.Embedding.Dim); err != nil {
				return err
			}
			fmt.Printf("collection %s ready (dim %d)\n", cfg.Qdrant.Collection, cfg.Embedding.Dim)
			return nil
		},
	}

	root.AddCommand(serve, migrateCmd, initCollection)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
