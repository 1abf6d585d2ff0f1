// Package cmd holds the relaybot command tree.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-relay-bot/internal/app"
	"github.com/tbourn/go-relay-bot/internal/config"
	"github.com/tbourn/go-relay-bot/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:           "relaybot",
	Short:         "Marketplace bot: proxy chat, request lifecycle, payment SLAs",
	Long:          `Runs the chat-platform bot, the SLA sweepers and the ops HTTP API. Commands: serve, migrate, role.`,
	RunE:          runServe, // default: same as "relaybot serve"
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, sweepers and HTTP API until interrupted",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the relational schema and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := load()
		if err != nil {
			return err
		}
		return app.Migrate(cfg)
	},
}

var roleCmd = &cobra.Command{
	Use:     "role <tg_id> <client|performer|admin>",
	Short:   "Assign a role to a chat user",
	Example: "  relaybot role 123456789 performer",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tg, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("tg_id: %w", err)
		}
		cfg, err := load()
		if err != nil {
			return err
		}
		return app.SetRole(cmd.Context(), cfg, tg, domain.Role(strings.ToUpper(args[1])))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, roleCmd)
	rootCmd.Version = app.Version
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

func load() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	app.ConfigureLogging(cfg)
	return cfg, nil
}

// executeContext is Execute with an explicit context; used by tests.
func executeContext(ctx context.Context, args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
