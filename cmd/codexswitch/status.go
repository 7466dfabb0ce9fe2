package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codexswitch/internal/config"
	"github.com/janekbaraniewski/codexswitch/internal/core"
	"github.com/janekbaraniewski/codexswitch/internal/usagecache"
)

type statusOptions struct {
	refresh bool
	force   bool
	json    bool
}

func newStatusCommand(cfg config.Config) *cobra.Command {
	var opts statusOptions

	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"ls"},
		Short:   "Show cached usage for every profile",
		Long:    "Show the cached usage summary of every saved profile. Use --refresh to fetch stale entries first.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.refresh, "refresh", "r", false, "fetch usage for profiles whose cache entry is missing or stale")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "fetch usage for every profile, ignoring the cache TTL")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print machine-readable JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, cfg config.Config, opts statusOptions) error {
	a := newApp(cfg)
	defer a.Close()

	list, err := a.profiles.List()
	if err != nil {
		return err
	}

	if opts.refresh || opts.force {
		err := a.coord.RefreshAccounts(cmd.Context(), list, usagecache.RefreshOptions{
			Force:        opts.force,
			PruneMissing: true,
		})
		if err != nil {
			return fmt.Errorf("refreshing usage: %w", err)
		}
	}

	return printProfiles(cmd, a, list, opts.json)
}

func printProfiles(cmd *cobra.Command, a *app, list []core.Profile, asJSON bool) error {
	out := cmd.OutOrStdout()
	active, _ := a.profiles.Active(a.codexHome)
	rows := buildStatusRows(list, a.coord.GetAllSummaries(list), active)

	if asJSON {
		return writeJSON(out, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintf(out, "No profiles found in %s\n", a.profiles.Dir())
		return nil
	}
	newTableRenderer(out).render(out, rows)
	return nil
}
