package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watch reloads the cache when a data file is changed by something other
// than this store, such as a hand edit or a restored backup. It returns once
// the watcher is running; the watch stops when ctx is cancelled. onChange,
// if not nil, is called with the new revision after each effective reload.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onChange func(rev uint64)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: atomic replacement swaps the file's inode.
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	s.log.Info().Str("dir", s.dir).Msg("watching data files")
	go s.watchLoop(ctx, watcher, debounce, onChange)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration, onChange func(uint64)) {
	defer watcher.Close()

	var pending *time.Timer
	var fire <-chan time.Time
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isDataFile(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			s.log.Debug().Str("file", filepath.Base(event.Name)).Str("op", event.Op.String()).Msg("data file changed")
			if pending != nil {
				pending.Stop()
			}
			pending = time.NewTimer(debounce)
			fire = pending.C

		case <-fire:
			fire = nil
			pending = nil
			changed, err := s.Reload()
			if err != nil {
				s.log.Error().Err(err).Msg("reload failed, keeping cached data")
				continue
			}
			if changed {
				rev := s.Revision()
				s.log.Info().Uint64("revision", rev).Msg("data reloaded from disk")
				if onChange != nil {
					onChange(rev)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Error().Err(err).Msg("watcher error")
		}
	}
}

func isDataFile(name string) bool {
	switch filepath.Base(name) {
	case EventsFile, AnnouncementsFile, SettingsFile:
		return true
	}
	return false
}
