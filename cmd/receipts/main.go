package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type rootFlags struct {
	configPath string
	dsn        string
	logLevel   string
	userID     int64
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "receipts",
		Short:         "Extract structured transactions from receipt images, PDFs and text files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", os.Getenv("RECEIPTS_CONFIG"), "YAML config file")
	root.PersistentFlags().StringVar(&flags.dsn, "db", "", "database DSN (sqlite path or postgres:// URL); overrides config")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error; overrides config")
	root.PersistentFlags().Int64Var(&flags.userID, "user", 0, "owner user id (0 = none)")

	root.AddCommand(
		newProcessCmd(flags),
		newIngestDirCmd(flags),
		newWatchCmd(flags),
		newListCmd(flags),
		newShowCmd(flags),
		newReviewCmd(flags),
		newDeleteCmd(flags),
		newExportCmd(flags),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
}
