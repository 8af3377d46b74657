// Package store persists events, announcements and settings as JSON files
// in a data directory. Reads are served from an in-memory cache; every
// write replaces the file atomically.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sweeney/community-signage/internal/content"
)

// File names inside the data directory.
const (
	EventsFile        = "events.json"
	AnnouncementsFile = "announcements.json"
	SettingsFile      = "settings.json"
	CSVFile           = "events.csv"
)

var (
	// ErrNotFound is returned for an index outside the list.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when a record fails validation.
	ErrInvalid = errors.New("invalid record")
)

// Export is the backup document: events and settings.
type Export struct {
	Events   []content.Event `json:"events"`
	Settings map[string]any  `json:"settings"`
}

// Store is safe for concurrent use.
type Store struct {
	dir string
	log zerolog.Logger

	mu            sync.RWMutex
	events        []content.Event
	announcements []content.Announcement
	settings      map[string]any
	revision      uint64
}

// Open loads the data directory, creating it and seeding sample content
// for any missing file.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{dir: dir, log: log}

	if err := s.seed(); err != nil {
		return nil, err
	}

	events, anns, settings, err := s.readAll()
	if err != nil {
		return nil, err
	}
	s.events, s.announcements, s.settings = events, anns, settings
	s.revision = 1

	if err := s.writeCSV(s.events); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// CSVPath returns the path of the events CSV export.
func (s *Store) CSVPath() string {
	return s.path(CSVFile)
}

// Revision increases whenever stored content changes.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Events returns all events in stored order.
func (s *Store) Events() []content.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]content.Event{}, s.events...)
}

// AddEvent appends an event.
func (s *Store) AddEvent(e content.Event) (content.Event, error) {
	if err := validateEvent(e); err != nil {
		return content.Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(append([]content.Event{}, s.events...), e)
	if err := s.commitEvents(next); err != nil {
		return content.Event{}, err
	}
	return e, nil
}

// UpdateEvent replaces the event at index.
func (s *Store) UpdateEvent(index int, e content.Event) (content.Event, error) {
	if err := validateEvent(e); err != nil {
		return content.Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.events) {
		return content.Event{}, fmt.Errorf("event %d: %w", index, ErrNotFound)
	}
	next := append([]content.Event{}, s.events...)
	next[index] = e
	if err := s.commitEvents(next); err != nil {
		return content.Event{}, err
	}
	return e, nil
}

// DeleteEvent removes the event at index.
func (s *Store) DeleteEvent(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.events) {
		return fmt.Errorf("event %d: %w", index, ErrNotFound)
	}
	next := make([]content.Event, 0, len(s.events)-1)
	next = append(next, s.events[:index]...)
	next = append(next, s.events[index+1:]...)
	return s.commitEvents(next)
}

// ClearEvents removes every event.
func (s *Store) ClearEvents() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitEvents([]content.Event{})
}

// Announcements returns all announcements, active or not.
func (s *Store) Announcements() []content.Announcement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]content.Announcement{}, s.announcements...)
}

// AddAnnouncement appends an announcement.
func (s *Store) AddAnnouncement(a content.Announcement) (content.Announcement, error) {
	if err := validateAnnouncement(a); err != nil {
		return content.Announcement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(append([]content.Announcement{}, s.announcements...), a)
	if err := s.commitAnnouncements(next); err != nil {
		return content.Announcement{}, err
	}
	return a, nil
}

// UpdateAnnouncement replaces the announcement at index.
func (s *Store) UpdateAnnouncement(index int, a content.Announcement) (content.Announcement, error) {
	if err := validateAnnouncement(a); err != nil {
		return content.Announcement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.announcements) {
		return content.Announcement{}, fmt.Errorf("announcement %d: %w", index, ErrNotFound)
	}
	next := append([]content.Announcement{}, s.announcements...)
	next[index] = a
	if err := s.commitAnnouncements(next); err != nil {
		return content.Announcement{}, err
	}
	return a, nil
}

// DeleteAnnouncement removes the announcement at index.
func (s *Store) DeleteAnnouncement(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.announcements) {
		return fmt.Errorf("announcement %d: %w", index, ErrNotFound)
	}
	next := make([]content.Announcement, 0, len(s.announcements)-1)
	next = append(next, s.announcements[:index]...)
	next = append(next, s.announcements[index+1:]...)
	return s.commitAnnouncements(next)
}

// Settings returns the raw settings document. A missing or legacy logo URL
// is migrated and persisted first.
func (s *Store) Settings() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if logo, _ := s.settings["logoUrl"].(string); logo == "" || logo == legacyLogoURL {
		next := cloneMap(s.settings)
		next["logoUrl"] = content.DefaultLogoURL
		if err := s.commitSettings(next); err != nil {
			return nil, err
		}
		s.log.Info().Str("from", logo).Msg("migrated logo url")
	}
	return cloneMap(s.settings), nil
}

// PutSettings replaces the settings document wholesale.
func (s *Store) PutSettings(settings map[string]any) error {
	if settings == nil {
		return fmt.Errorf("settings must be an object: %w", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitSettings(cloneMap(settings))
}

// Export returns events and settings for backup.
func (s *Store) Export() Export {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Export{
		Events:   append([]content.Event{}, s.events...),
		Settings: cloneMap(s.settings),
	}
}

// Import replaces whichever parts of the export are present. Events are
// validated as AddEvent does; one bad event rejects the whole import.
func (s *Store) Import(x Export) error {
	for i, e := range x.Events {
		if err := validateEvent(e); err != nil {
			return fmt.Errorf("import event %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if x.Events != nil {
		if err := s.commitEvents(append([]content.Event{}, x.Events...)); err != nil {
			return err
		}
	}
	if x.Settings != nil {
		if err := s.commitSettings(cloneMap(x.Settings)); err != nil {
			return err
		}
	}
	return nil
}

const legacyLogoURL = "/assets/logo/logo.png"

// commit* write the file, then the cache. Callers hold s.mu.

func (s *Store) commitEvents(events []content.Event) error {
	if err := s.writeJSON(EventsFile, events); err != nil {
		return err
	}
	s.events = events
	s.revision++
	if err := s.writeCSV(events); err != nil {
		s.log.Error().Err(err).Msg("csv export failed")
	}
	return nil
}

func (s *Store) commitAnnouncements(anns []content.Announcement) error {
	if err := s.writeJSON(AnnouncementsFile, anns); err != nil {
		return err
	}
	s.announcements = anns
	s.revision++
	return nil
}

func (s *Store) commitSettings(settings map[string]any) error {
	if err := s.writeJSON(SettingsFile, settings); err != nil {
		return err
	}
	s.settings = settings
	s.revision++
	return nil
}

// Reload re-reads every file and replaces the cache if anything changed.
// A file that fails to parse leaves the cache untouched. The files are read
// under the lock so a concurrent commit cannot be overwritten by older data.
func (s *Store) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, anns, settings, err := s.readAll()
	if err != nil {
		return false, err
	}

	eventsChanged := !reflect.DeepEqual(events, s.events)
	changed := eventsChanged ||
		!reflect.DeepEqual(anns, s.announcements) ||
		!reflect.DeepEqual(settings, s.settings)
	if !changed {
		return false, nil
	}

	s.events, s.announcements, s.settings = events, anns, settings
	s.revision++
	if eventsChanged {
		if err := s.writeCSV(events); err != nil {
			s.log.Error().Err(err).Msg("csv export failed")
		}
	}
	return true, nil
}

func (s *Store) readAll() ([]content.Event, []content.Announcement, map[string]any, error) {
	events := []content.Event{}
	if err := s.readJSON(EventsFile, &events); err != nil {
		return nil, nil, nil, err
	}
	anns := []content.Announcement{}
	if err := s.readJSON(AnnouncementsFile, &anns); err != nil {
		return nil, nil, nil, err
	}
	settings := map[string]any{}
	if err := s.readJSON(SettingsFile, &settings); err != nil {
		return nil, nil, nil, err
	}
	if events == nil {
		events = []content.Event{}
	}
	if anns == nil {
		anns = []content.Announcement{}
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return events, anns, settings, nil
}

func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func validateEvent(e content.Event) error {
	if e.Title == "" {
		return fmt.Errorf("event title is required: %w", ErrInvalid)
	}
	if e.Date == "" {
		return fmt.Errorf("event date is required: %w", ErrInvalid)
	}
	return nil
}

func validateAnnouncement(a content.Announcement) error {
	if a.Headline == "" {
		return fmt.Errorf("announcement headline is required: %w", ErrInvalid)
	}
	return nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
