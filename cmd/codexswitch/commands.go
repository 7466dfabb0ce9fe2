package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codexswitch/internal/config"
	"github.com/janekbaraniewski/codexswitch/internal/core"
	"github.com/janekbaraniewski/codexswitch/internal/history"
	"github.com/janekbaraniewski/codexswitch/internal/usagecache"
)

func newRefreshCommand(cfg config.Config) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh [profile...]",
		Short: "Fetch usage now",
		Long:  "Fetch usage for the named profiles, or for every profile when none are given. Entries younger than the cache TTL are kept unless --force is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			list, prune, err := selectProfiles(a, args)
			if err != nil {
				return err
			}
			if err := a.coord.RefreshAccounts(cmd.Context(), list, usagecache.RefreshOptions{
				Force:        force,
				PruneMissing: prune,
			}); err != nil {
				return fmt.Errorf("refreshing usage: %w", err)
			}
			return printProfiles(cmd, a, list, false)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore the cache TTL")
	return cmd
}

// selectProfiles resolves names to profiles. With no names it returns every
// profile and asks the caller to prune entries for deleted ones.
func selectProfiles(a *app, names []string) ([]core.Profile, bool, error) {
	if len(names) == 0 {
		list, err := a.profiles.List()
		return list, true, err
	}
	list := make([]core.Profile, 0, len(names))
	for _, name := range lo.Uniq(names) {
		p, err := a.profiles.Get(name)
		if err != nil {
			return nil, false, err
		}
		list = append(list, p)
	}
	return list, false, nil
}

func newCacheCommand(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the usage cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached usage summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := newApp(cfg)
			defer a.Close()

			a.coord.InvalidateCache()
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared usage cache at %s\n", cfg.ResolvedCachePath())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the cache file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), cfg.ResolvedCachePath())
		},
	})
	return cmd
}

func newRenameCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a profile, keeping its cached usage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			if err := a.profiles.Rename(args[0], args[1]); err != nil {
				return fmt.Errorf("rename %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newRemoveCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <profile>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved profile and its cached usage",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			if err := a.profiles.Remove(args[0]); err != nil {
				return fmt.Errorf("remove %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

var errHistoryDisabled = errors.New("usage history is disabled; set history.enabled in " + config.ConfigPath())

func newHistoryCommand(cfg config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <profile>",
		Short: "Show recorded usage snapshots for a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			if a.history == nil {
				return errHistoryDisabled
			}
			rows, err := a.history.Recent(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No snapshots recorded for %s\n", args[0])
				return nil
			}
			writeHistory(cmd, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of snapshots to show")
	return cmd
}

func writeHistory(cmd *cobra.Command, rows []history.Row) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FETCHED\tSTATUS\tPLAN\tPRIMARY\tSECONDARY\tCREDITS\tMESSAGE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.FetchedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			orDash(r.PlanType),
			formatPercent(r.PrimaryUsedPercent),
			formatPercent(r.SecondaryUsedPercent),
			orDash(r.CreditsBalance),
			r.Message,
		)
	}
	w.Flush()
}

func formatPercent(v *float64) string {
	if v == nil {
		return emptyCell
	}
	return fmt.Sprintf("%.0f%%", *v)
}

func orDash(s string) string {
	if s == "" {
		return emptyCell
	}
	return s
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.ConfigPath())
		},
	})

	var overwrite bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.ConfigPath()
			if _, err := os.Stat(path); err == nil && !overwrite {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := config.Save(config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&overwrite, "force", "f", false, "overwrite an existing settings file")
	cmd.AddCommand(initCmd)
	return cmd
}
