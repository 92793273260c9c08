package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "anidao",
		Short:         "ANI DAO anime streaming catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSignLoginCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the admin bot and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newSignLoginCmd() *cobra.Command {
	var (
		telegramID int64
		firstName  string
		username   string
	)
	cmd := &cobra.Command{
		Use:   "sign-login",
		Short: "Print a login payload signed with the configured bot token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignLogin(cmd.OutOrStdout(), telegramID, firstName, username)
		},
	}
	cmd.Flags().Int64Var(&telegramID, "id", 0, "Telegram user id (defaults to ADMIN_TELEGRAM_ID)")
	cmd.Flags().StringVar(&firstName, "first-name", "Admin", "first name")
	cmd.Flags().StringVar(&username, "username", "", "Telegram username")
	return cmd
}
