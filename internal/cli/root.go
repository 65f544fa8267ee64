// Package cli implements the mrilo terminal client. It plays the part of the
// browser: it owns the local storage bundle and talks to the server over HTTP.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	verbose   bool
	serverURL string
	dataPath  string
	logDir    string
	version   = "dev"
)

// app is the session opened for the running command
var app *session

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mrilo",
	Short: "Chat with Mrilo from the terminal",
	Long: `A terminal client for the Mrilo chat service.

Chats are kept per signed-in user in a local database and mirrored to the
server when you are logged in.

Quick Start:
  mrilo send "What is a goroutine?"      # Ask in the active chat
  mrilo list                             # List your chats
  mrilo show                             # Show the active chat
  mrilo login --email you@example.com    # Keep history for this user`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		app = s
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		err := app.Close()
		app = nil
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("Error:"), err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("MRILO_SERVER", "http://localhost:8080"), "Mrilo server URL")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", os.Getenv("MRILO_DATA"), "Local database file (default ~/.mrilo/local.db)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", os.Getenv("MRILO_LOG_DIR"), "Write logs to rotated files in this directory")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ctxOf returns the command context, which is nil when run without one
func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
