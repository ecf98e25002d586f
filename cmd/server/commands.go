package main

import (
	"github.com/spf13/cobra"
)

var (
	envFile     string
	skipMigrate bool

	rootCmd = &cobra.Command{
		Use:   "feedback-hub",
		Short: "Project feedback API with LLM-generated summaries",
		Long: `feedback-hub stores client projects, their feedback comments and
uploaded files, and turns the comments into prioritized summaries
through an OpenAI-compatible gateway.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bootstrap()
		},
		// serve is the default action
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"Optional dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false,
		"Do not migrate the schema on startup (also SKIP_MIGRATE=1)")

	rootCmd.AddCommand(migrateCmd)
}
