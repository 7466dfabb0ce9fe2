package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/janekbaraniewski/codexswitch/internal/config"
	"github.com/janekbaraniewski/codexswitch/internal/usagecache"
	"github.com/janekbaraniewski/codexswitch/internal/watch"
)

func newWatchCommand(cfg config.Config) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep usage fresh and print updates",
		Long:  "Refresh usage on a fixed interval and whenever profiles are added, removed or logged in again, printing the table after every update.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("interval must be positive, got %s", interval)
			}

			a := newApp(cfg)
			defer a.Close()

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			printTable := func() {
				mu.Lock()
				defer mu.Unlock()
				printUpdate(out, a)
			}
			unsubscribe := a.coord.OnUpdate(printTable)
			defer unsubscribe()
			printTable()

			ctx := cmd.Context()
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return watch.New(a.profiles.Dir(), a.profiles, a.coord).Run(gctx)
			})
			g.Go(func() error {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					refreshAll(gctx, a)
					select {
					case <-gctx.Done():
						return nil
					case <-ticker.C:
					}
				}
			})
			return g.Wait()
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", cfg.TTL(), "how often to refresh usage")
	return cmd
}

func refreshAll(ctx context.Context, a *app) {
	list, err := a.profiles.List()
	if err != nil {
		log.Printf("watch: listing profiles: %v", err)
		return
	}
	if err := a.coord.RefreshAccounts(ctx, list, usagecache.RefreshOptions{PruneMissing: true}); err != nil && ctx.Err() == nil {
		log.Printf("watch: refresh: %v", err)
	}
}

func printUpdate(out io.Writer, a *app) {
	list := a.listProfiles()
	active, _ := a.profiles.Active(a.codexHome)
	rows := buildStatusRows(list, a.coord.GetAllSummaries(list), active)

	fmt.Fprintf(out, "\n%s\n", time.Now().Format("15:04:05"))
	if len(rows) == 0 {
		fmt.Fprintf(out, "No profiles found in %s\n", a.profiles.Dir())
		return
	}
	newTableRenderer(out).render(out, rows)
}
