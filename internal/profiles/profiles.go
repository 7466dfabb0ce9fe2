// Package profiles maps the profiles directory (one sub-directory per saved
// codex login) onto core.Profile values and keeps the usage cache in step
// when profiles are renamed or removed.
package profiles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/codexswitch/internal/core"
	"github.com/janekbaraniewski/codexswitch/internal/providers/codex"
)

const credentialFile = "auth.json"

var (
	ErrNotFound    = errors.New("profile not found")
	ErrExists      = errors.New("profile already exists")
	ErrInvalidName = errors.New("invalid profile name")
)

// CacheSync is the part of the usage cache that must follow profile renames
// and removals.
type CacheSync interface {
	RenameAccount(oldName, newName string)
	RemoveAccount(name string)
}

type Manager struct {
	dir   string
	cache CacheSync
}

func NewManager(dir string, cache CacheSync) *Manager {
	return &Manager{dir: dir, cache: cache}
}

func (m *Manager) Dir() string { return m.dir }

// List returns every profile in the directory, sorted by name. A missing
// directory is an empty list.
func (m *Manager) List() ([]core.Profile, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading profiles dir: %w", err)
	}

	dirs := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		return e.IsDir() && !strings.HasPrefix(e.Name(), ".")
	})
	// os.ReadDir already sorts by filename.
	return lo.Map(dirs, func(e os.DirEntry, _ int) core.Profile {
		return m.profile(e.Name())
	}), nil
}

func (m *Manager) Get(name string) (core.Profile, error) {
	if err := validateName(name); err != nil {
		return core.Profile{}, err
	}
	info, err := os.Stat(filepath.Join(m.dir, name))
	if err != nil || !info.IsDir() {
		return core.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return m.profile(name), nil
}

func (m *Manager) Rename(oldName, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	if _, err := m.Get(oldName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	if _, err := os.Stat(filepath.Join(m.dir, newName)); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, newName)
	}
	if err := os.Rename(filepath.Join(m.dir, oldName), filepath.Join(m.dir, newName)); err != nil {
		return fmt.Errorf("renaming profile: %w", err)
	}
	if m.cache != nil {
		m.cache.RenameAccount(oldName, newName)
	}
	return nil
}

func (m *Manager) Remove(name string) error {
	if _, err := m.Get(name); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(m.dir, name)); err != nil {
		return fmt.Errorf("removing profile: %w", err)
	}
	if m.cache != nil {
		m.cache.RemoveAccount(name)
	}
	return nil
}

// Active reports which profile holds the same login as codexHome/auth.json.
func (m *Manager) Active(codexHome string) (string, bool) {
	live := codex.ReadToken(filepath.Join(codexHome, credentialFile))
	if live.Status != codex.TokenOK {
		return "", false
	}
	list, err := m.List()
	if err != nil {
		return "", false
	}
	match, ok := lo.Find(list, func(p core.Profile) bool {
		state := codex.ReadToken(p.CredentialPath)
		return state.Status == codex.TokenOK &&
			state.AccountID == live.AccountID &&
			state.AccessToken == live.AccessToken
	})
	return match.Name, ok
}

func (m *Manager) profile(name string) core.Profile {
	return core.Profile{Name: name, CredentialPath: filepath.Join(m.dir, name, credentialFile)}
}

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "", name == ".", name == "..",
		strings.ContainsAny(name, `/\`), strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
