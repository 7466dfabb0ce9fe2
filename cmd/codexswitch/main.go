package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codexswitch/internal/config"
	"github.com/janekbaraniewski/codexswitch/internal/version"
)

func main() {
	if os.Getenv("CODEXSWITCH_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Config path: %s\n", config.ConfigPath())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(cfg)
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCommand(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "codexswitch",
		Short:        "Switch between saved Codex logins and track their usage limits.",
		SilenceUsage: true,
		Version:      version.String(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, statusOptions{})
		},
	}

	root.AddCommand(newStatusCommand(cfg))
	root.AddCommand(newRefreshCommand(cfg))
	root.AddCommand(newCacheCommand(cfg))
	root.AddCommand(newRenameCommand(cfg))
	root.AddCommand(newRemoveCommand(cfg))
	root.AddCommand(newHistoryCommand(cfg))
	root.AddCommand(newWatchCommand(cfg))
	root.AddCommand(newConfigCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "codexswitch "+version.String())
		},
	})
	return root
}
