package usagecache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/janekbaraniewski/codexswitch/internal/core"
)

const CacheVersion = 1

// CacheFile is the on-disk shape of the usage cache.
type CacheFile struct {
	Version int                         `json:"version"`
	Entries map[string]core.CachedEntry `json:"entries"`
}

func NewCacheFile() *CacheFile {
	return &CacheFile{Version: CacheVersion, Entries: make(map[string]core.CachedEntry)}
}

// Store reads and writes the whole cache file. A nil *Store, or one with an
// empty path, keeps everything in memory.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Load never fails: a missing, unreadable, malformed or foreign-version file
// yields an empty cache.
func (s *Store) Load() *CacheFile {
	if s == nil || s.path == "" {
		return NewCacheFile()
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("usagecache: reading %s: %v", s.path, err)
		}
		return NewCacheFile()
	}

	var cf CacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		log.Printf("usagecache: parsing %s: %v", s.path, err)
		return NewCacheFile()
	}
	if cf.Version != CacheVersion {
		log.Printf("usagecache: ignoring %s with version %d", s.path, cf.Version)
		return NewCacheFile()
	}

	out := NewCacheFile()
	for name, entry := range cf.Entries {
		if name == "" || !entry.Summary.Valid() {
			continue
		}
		entry.ProfileName = name
		out.Entries[name] = entry
	}
	return out
}

// Save writes cf synchronously. Failures are logged and dropped; the caller's
// in-memory copy stays authoritative.
func (s *Store) Save(cf *CacheFile) {
	if s == nil || s.path == "" || cf == nil {
		return
	}
	if err := s.write(cf); err != nil {
		log.Printf("usagecache: %v", err)
	}
}

func (s *Store) write(cf *CacheFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing cache: %w", err)
	}
	return nil
}
