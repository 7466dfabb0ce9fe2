// Package watch keeps the usage cache in step with the profiles directory.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"

	"github.com/janekbaraniewski/codexswitch/internal/core"
	"github.com/janekbaraniewski/codexswitch/internal/usagecache"
)

const DefaultDebounce = 500 * time.Millisecond

type Lister interface {
	List() ([]core.Profile, error)
}

type Refresher interface {
	RefreshAccounts(ctx context.Context, profiles []core.Profile, opts usagecache.RefreshOptions) error
}

type Watcher struct {
	dir       string
	lister    Lister
	refresher Refresher
	debounce  time.Duration
}

func New(dir string, lister Lister, refresher Refresher) *Watcher {
	return &Watcher{dir: dir, lister: lister, refresher: refresher, debounce: DefaultDebounce}
}

// Run blocks until ctx is cancelled. Profiles appearing or disappearing
// trigger a pruning refresh; a rewritten auth.json forces a refetch of that
// profile.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("watch: creating profiles dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: adding %s: %w", w.dir, err)
	}
	w.addProfileDirs(fw)

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		changed = map[string]struct{}{}
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(fw, ev, changed) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)
		case <-timerC:
			timerC = nil
			names := lo.Keys(changed)
			changed = map[string]struct{}{}
			go w.sync(ctx, names)
		}
	}
}

// handleEvent reports whether ev is relevant and records the profile whose
// credentials changed.
func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event, changed map[string]struct{}) bool {
	rel, err := filepath.Rel(w.dir, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if strings.HasPrefix(parts[0], ".") {
		return false
	}

	if len(parts) == 1 {
		if ev.Has(fsnotify.Create) {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				if err := fw.Add(ev.Name); err != nil {
					log.Printf("watch: adding %s: %v", ev.Name, err)
				}
			}
		}
		return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
	}

	if len(parts) == 2 && parts[1] == "auth.json" &&
		(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename)) {
		changed[parts[0]] = struct{}{}
		return true
	}
	return false
}

func (w *Watcher) addProfileDirs(fw *fsnotify.Watcher) {
	list, err := w.lister.List()
	if err != nil {
		log.Printf("watch: %v", err)
		return
	}
	for _, p := range list {
		if err := fw.Add(filepath.Dir(p.CredentialPath)); err != nil {
			log.Printf("watch: adding %s: %v", p.Name, err)
		}
	}
}

func (w *Watcher) sync(ctx context.Context, changed []string) {
	list, err := w.lister.List()
	if err != nil {
		log.Printf("watch: listing profiles: %v", err)
		return
	}
	if err := w.refresher.RefreshAccounts(ctx, list, usagecache.RefreshOptions{PruneMissing: true}); err != nil && ctx.Err() == nil {
		log.Printf("watch: refresh: %v", err)
	}

	forced := lo.Filter(list, func(p core.Profile, _ int) bool {
		return lo.Contains(changed, p.Name)
	})
	if len(forced) == 0 {
		return
	}
	if err := w.refresher.RefreshAccounts(ctx, forced, usagecache.RefreshOptions{Force: true}); err != nil && ctx.Err() == nil {
		log.Printf("watch: refresh: %v", err)
	}
}
