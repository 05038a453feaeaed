// Package filestore keeps streamer overrides in a single JSON document that
// operators can also edit by hand.
package filestore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
)

// fileEntry is the on-disk shape, keyed by player name:
//
//	{"ImperialHal": {"twitch_link": "https://twitch.tv/tsm_imperialhal", "known_names": ["TSM_Hal"]}}
type fileEntry struct {
	TwitchLink  string     `json:"twitch_link"`
	DisplayName string     `json:"display_name,omitempty"`
	KnownNames  []string   `json:"known_names,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type OverrideRepository struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]override.Entry
	modTime time.Time
	size    int64
	loaded  bool
}

func NewOverrideRepository(path string) *OverrideRepository {
	return &OverrideRepository{
		path:    path,
		now:     time.Now,
		entries: map[string]override.Entry{},
	}
}

func (r *OverrideRepository) Get(_ context.Context, playerName string) (override.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refreshLocked(); err != nil {
		return override.Entry{}, false, err
	}
	entry, ok := r.entries[override.NormalizeKey(playerName)]
	return entry, ok, nil
}

func (r *OverrideRepository) List(_ context.Context) ([]override.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refreshLocked(); err != nil {
		return nil, err
	}
	out := make([]override.Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (r *OverrideRepository) Put(_ context.Context, entry override.Entry) (override.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refreshLocked(); err != nil {
		return override.Entry{}, err
	}

	key := entry.Key()
	now := r.now().UTC().Truncate(time.Second)
	entry.CreatedAt = now
	if existing, ok := r.entries[key]; ok && !existing.CreatedAt.IsZero() {
		entry.CreatedAt = existing.CreatedAt
	}
	entry.UpdatedAt = now

	next := cloneEntries(r.entries)
	next[key] = entry
	if err := r.writeLocked(next); err != nil {
		return override.Entry{}, err
	}
	return entry, nil
}

func (r *OverrideRepository) Delete(_ context.Context, playerName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refreshLocked(); err != nil {
		return false, err
	}
	key := override.NormalizeKey(playerName)
	if _, ok := r.entries[key]; !ok {
		return false, nil
	}

	next := cloneEntries(r.entries)
	delete(next, key)
	if err := r.writeLocked(next); err != nil {
		return false, err
	}
	return true, nil
}

// refreshLocked reloads the document when its size or mtime moved. A missing
// file is an empty store.
func (r *OverrideRepository) refreshLocked() error {
	info, err := os.Stat(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		r.entries = map[string]override.Entry{}
		r.modTime, r.size, r.loaded = time.Time{}, 0, true
		return nil
	}
	if err != nil {
		return crerr.Wrapf(err, "stat overrides file %s", r.path)
	}
	if r.loaded && info.ModTime().Equal(r.modTime) && info.Size() == r.size {
		return nil
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return crerr.Wrapf(err, "read overrides file %s", r.path)
	}
	entries, err := decodeDocument(raw)
	if err != nil {
		return crerr.Wrapf(err, "decode overrides file %s", r.path)
	}

	r.entries = entries
	r.modTime, r.size, r.loaded = info.ModTime(), info.Size(), true
	return nil
}

func (r *OverrideRepository) writeLocked(entries map[string]override.Entry) error {
	raw, err := encodeDocument(entries)
	if err != nil {
		return crerr.Wrap(err, "encode overrides document")
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return crerr.Wrapf(err, "create overrides dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".overrides-*.json")
	if err != nil {
		return crerr.Wrap(err, "create temp overrides file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return crerr.Wrap(err, "write temp overrides file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return crerr.Wrap(err, "sync temp overrides file")
	}
	if err := tmp.Close(); err != nil {
		return crerr.Wrap(err, "close temp overrides file")
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return crerr.Wrapf(err, "replace overrides file %s", r.path)
	}

	r.entries = entries
	if info, err := os.Stat(r.path); err == nil {
		r.modTime, r.size, r.loaded = info.ModTime(), info.Size(), true
	} else {
		r.loaded = false
	}
	return nil
}

// decodeDocument folds names that differ only by case, keeping the most
// recently updated entry.
func decodeDocument(raw []byte) (map[string]override.Entry, error) {
	out := map[string]override.Entry{}
	if len(raw) == 0 {
		return out, nil
	}

	var doc map[string]fileEntry
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		item := doc[name]
		entry := override.Entry{
			PlayerName:  name,
			Identity:    item.TwitchLink,
			DisplayName: item.DisplayName,
			Aliases:     override.NormalizeAliases(name, item.KnownNames),
		}
		if item.CreatedAt != nil {
			entry.CreatedAt = *item.CreatedAt
		}
		if item.UpdatedAt != nil {
			entry.UpdatedAt = *item.UpdatedAt
		}

		key := entry.Key()
		if key == "" {
			continue
		}
		if current, ok := out[key]; ok && current.UpdatedAt.After(entry.UpdatedAt) {
			continue
		}
		out[key] = entry
	}
	return out, nil
}

func encodeDocument(entries map[string]override.Entry) ([]byte, error) {
	doc := make(map[string]fileEntry, len(entries))
	for _, entry := range entries {
		item := fileEntry{
			TwitchLink:  entry.Identity,
			DisplayName: entry.DisplayName,
			KnownNames:  entry.Aliases,
		}
		if !entry.CreatedAt.IsZero() {
			createdAt := entry.CreatedAt
			item.CreatedAt = &createdAt
		}
		if !entry.UpdatedAt.IsZero() {
			updatedAt := entry.UpdatedAt
			item.UpdatedAt = &updatedAt
		}
		doc[entry.PlayerName] = item
	}
	return sonic.ConfigStd.MarshalIndent(doc, "", "    ")
}

func cloneEntries(in map[string]override.Entry) map[string]override.Entry {
	out := make(map[string]override.Entry, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
