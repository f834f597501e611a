package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/opsforge/opsforge/domain/settings"
	"github.com/opsforge/opsforge/infrastructure/logging"
)

// Watcher re-merges an installer profile into the settings store whenever the
// file changes on disk. Merge is best-effort: a key that fails to upsert is
// logged and skipped, the rest of the profile still applies.
type Watcher struct {
	loader *Loader
	store  settings.Store
	path   string
	agent  string
}

// NewWatcher creates a watcher for a profile file.
func NewWatcher(loader *Loader, store settings.Store, path, agent string) (*Watcher, error) {
	if loader == nil {
		loader = NewLoader()
	}
	if store == nil {
		return nil, fmt.Errorf("config: store cannot be nil")
	}
	if agent == "" {
		return nil, settings.ErrEmptyAgent
	}
	if _, err := FormatForPath(path); err != nil {
		return nil, err
	}

	return &Watcher{
		loader: loader,
		store:  store,
		path:   path,
		agent:  agent,
	}, nil
}

// Run watches the profile file until the context is cancelled. Editors often
// replace files via rename, so the parent directory is watched and events are
// filtered by name.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.merge(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.Error().
				Add(logging.Component("config_watcher")).
				Add(logging.ErrorField(err)).
				Msg("watch error")
		}
	}
}

// merge loads the profile and upserts its entries.
func (w *Watcher) merge(ctx context.Context) {
	profile, err := w.loader.LoadFile(w.path)
	if err != nil {
		logging.Warn().
			Add(logging.Component("config_watcher")).
			Add(logging.Str("path", w.path)).
			Add(logging.ErrorField(err)).
			Msg("profile reload failed")
		return
	}

	applied := 0
	for _, entry := range profile.Entries(w.agent) {
		if err := w.store.Upsert(ctx, entry.Key, entry.Value, entry.Agent); err != nil {
			logging.Warn().
				Add(logging.Component("config_watcher")).
				Add(logging.Str("key", entry.Key)).
				Add(logging.Agent(w.agent)).
				Add(logging.ErrorField(err)).
				Msg("setting skipped")
			continue
		}
		applied++
	}

	logging.Info().
		Add(logging.Component("config_watcher")).
		Add(logging.Agent(w.agent)).
		Add(logging.Count(applied)).
		Msg("profile re-merged")
}
