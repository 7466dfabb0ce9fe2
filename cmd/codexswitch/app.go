package main

import (
	"context"
	"log"
	"strings"

	"github.com/janekbaraniewski/codexswitch/internal/config"
	"github.com/janekbaraniewski/codexswitch/internal/core"
	"github.com/janekbaraniewski/codexswitch/internal/history"
	"github.com/janekbaraniewski/codexswitch/internal/profiles"
	"github.com/janekbaraniewski/codexswitch/internal/providers/codex"
	"github.com/janekbaraniewski/codexswitch/internal/usagecache"
)

// app holds the components every command shares.
type app struct {
	cfg       config.Config
	codexHome string
	coord     *usagecache.Coordinator
	profiles  *profiles.Manager
	history   *history.Recorder

	unsubscribe func()
}

func newApp(cfg config.Config) *app {
	codexHome := strings.TrimSpace(config.ExpandHome(cfg.CodexHome))
	if codexHome == "" {
		codexHome = codex.DefaultHome()
	}

	client := codex.NewClient(
		codex.ResolveUsageURL(cfg.Usage.BaseURL, codexHome),
		codex.UserAgent(codexHome),
		cfg.RequestTimeout(),
	)
	coord := usagecache.NewCoordinator(
		usagecache.NewStore(cfg.ResolvedCachePath()),
		codex.NewSnapshotter(client),
		usagecache.Options{TTL: cfg.TTL(), FetchDelay: cfg.FetchDelay()},
	)

	a := &app{
		cfg:       cfg,
		codexHome: codexHome,
		coord:     coord,
		profiles:  profiles.NewManager(cfg.ResolvedProfilesDir(), coord),
	}
	if cfg.History.Enabled {
		a.openHistory()
	}
	return a
}

// openHistory attaches the snapshot recorder. History is best effort: a
// broken database only disables it.
func (a *app) openHistory() {
	rec, err := history.Open(a.cfg.ResolvedHistoryPath())
	if err != nil {
		log.Printf("history disabled: %v", err)
		return
	}
	if retention := a.cfg.HistoryRetention(); retention > 0 {
		if n, err := rec.Prune(context.Background(), retention); err != nil {
			log.Printf("history: %v", err)
		} else if n > 0 {
			log.Printf("history: pruned %d old snapshot(s)", n)
		}
	}
	a.history = rec
	a.unsubscribe = rec.Subscribe(a.coord, a.listProfiles)
}

func (a *app) listProfiles() []core.Profile {
	list, err := a.profiles.List()
	if err != nil {
		log.Printf("listing profiles: %v", err)
		return nil
	}
	return list
}

func (a *app) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if err := a.history.Close(); err != nil {
		log.Printf("history: close: %v", err)
	}
}
