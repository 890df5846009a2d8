package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gurkanbulca/tasktracker/internal/config"
)

var (
	cfg     *config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "tasktracker",
	Short:         "Personal task tracker",
	Long:          "Manage your tasks, priorities and daily recurring tasks from the terminal.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if server, _ := cmd.Flags().GetString("server"); server != "" {
			loaded.Client.ServerAddr = server
		}
		if file, _ := cmd.Flags().GetString("session"); file != "" {
			loaded.Client.SessionFile = file
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "server address (default $TASKTRACKER_SERVER or localhost:50051)")
	rootCmd.PersistentFlags().String("session", "", "session file (default $TASKTRACKER_SESSION_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log background activity to stderr")
}

func logger() *log.Logger {
	if verbose {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// withApp opens the backend connection for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, logger())
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errorColor.Fprintf(os.Stderr, "❌ %v\n", err)
		stop()
		os.Exit(1)
	}
}
