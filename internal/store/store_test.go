package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sweeney/community-signage/internal/content"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestOpenSeeds(t *testing.T) {
	s := openTemp(t)

	assert.Len(t, s.Events(), len(sampleEvents))
	assert.Len(t, s.Announcements(), len(sampleAnnouncements))
	assert.Equal(t, uint64(1), s.Revision())

	for _, name := range []string{EventsFile, AnnouncementsFile, SettingsFile, CSVFile} {
		_, err := os.Stat(filepath.Join(s.Dir(), name))
		assert.NoError(t, err, name)
	}

	settings, err := s.Settings()
	require.NoError(t, err)
	assert.Equal(t, content.DefaultLogoURL, settings["logoUrl"])
	assert.Equal(t, float64(3), settings["eventCycles"])
	assert.Equal(t, true, settings["autoStart"])

	raw, err := json.Marshal(settings)
	require.NoError(t, err)
	decoded, err := content.DecodeSettings(raw)
	require.NoError(t, err)
	assert.Equal(t, content.DefaultSettings(), decoded)
}

func TestOpenKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, EventsFile, []content.Event{{Date: "2026-03-01", Title: "ONLY ONE"}})

	s, err := Open(dir, zerolog.Nop())
	require.NoError(t, err)

	events := s.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "ONLY ONE", events[0].Title)
	assert.Len(t, s.Announcements(), len(sampleAnnouncements), "missing files are still seeded")
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFile), []byte("{not json"), 0o644))

	_, err := Open(dir, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), SettingsFile)
}

func TestEventCRUD(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.ClearEvents())
	assert.Empty(t, s.Events())

	a := content.Event{Date: "2026-05-01", Title: "PARADE", Time: "10:00 AM", Location: "MAIN ST"}
	b := content.Event{Date: "2026-05-02", Title: "CONCERT", Time: "7:00 PM", Location: "PARK"}
	_, err := s.AddEvent(a)
	require.NoError(t, err)
	_, err = s.AddEvent(b)
	require.NoError(t, err)

	b.Location = "BANDSTAND"
	_, err = s.UpdateEvent(1, b)
	require.NoError(t, err)

	require.NoError(t, s.DeleteEvent(0))
	want := []content.Event{b}
	if diff := cmp.Diff(want, s.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	// What is on disk matches the cache.
	reopened, err := Open(s.Dir(), zerolog.Nop())
	require.NoError(t, err)
	if diff := cmp.Diff(want, reopened.Events()); diff != "" {
		t.Errorf("persisted events mismatch (-want +got):\n%s", diff)
	}
}

func TestEventIndexOutOfRange(t *testing.T) {
	s := openTemp(t)
	n := len(s.Events())

	_, err := s.UpdateEvent(n, content.Event{Date: "2026-01-01", Title: "X"})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.DeleteEvent(-1), ErrNotFound))
	assert.True(t, errors.Is(s.DeleteEvent(n), ErrNotFound))
	assert.Len(t, s.Events(), n)
}

func TestValidation(t *testing.T) {
	s := openTemp(t)
	rev := s.Revision()

	_, err := s.AddEvent(content.Event{Date: "2026-01-01"})
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = s.AddAnnouncement(content.Announcement{BodyText: "no headline"})
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.True(t, errors.Is(s.PutSettings(nil), ErrInvalid))

	assert.Equal(t, rev, s.Revision(), "rejected writes do not change the revision")
}

func TestAnnouncementCRUD(t *testing.T) {
	s := openTemp(t)
	n := len(s.Announcements())

	ann := content.Announcement{Headline: "ROAD CLOSED", StartDate: "2026-06-01", EndDate: "2026-06-05"}
	_, err := s.AddAnnouncement(ann)
	require.NoError(t, err)
	require.Len(t, s.Announcements(), n+1)

	ann.BodyText = "Detour via Elm St"
	_, err = s.UpdateAnnouncement(n, ann)
	require.NoError(t, err)
	assert.Equal(t, "Detour via Elm St", s.Announcements()[n].BodyText)

	_, err = s.UpdateAnnouncement(n+1, ann)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.DeleteAnnouncement(n))
	assert.Len(t, s.Announcements(), n)
}

func TestRevisionIncreasesOnWrite(t *testing.T) {
	s := openTemp(t)
	rev := s.Revision()

	_, err := s.AddEvent(content.Event{Date: "2026-01-01", Title: "X"})
	require.NoError(t, err)
	assert.Greater(t, s.Revision(), rev)
}

func TestSettingsLogoMigration(t *testing.T) {
	for _, logo := range []any{legacyLogoURL, "", nil} {
		dir := t.TempDir()
		doc := map[string]any{"eventCycles": 4}
		if logo != nil {
			doc["logoUrl"] = logo
		}
		writeFile(t, dir, SettingsFile, doc)

		s, err := Open(dir, zerolog.Nop())
		require.NoError(t, err)

		settings, err := s.Settings()
		require.NoError(t, err)
		assert.Equal(t, content.DefaultLogoURL, settings["logoUrl"])
		assert.Equal(t, float64(4), settings["eventCycles"])

		onDisk := map[string]any{}
		data, err := os.ReadFile(filepath.Join(dir, SettingsFile))
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &onDisk))
		assert.Equal(t, content.DefaultLogoURL, onDisk["logoUrl"], "migration is persisted")
	}
}

func TestSettingsReturnsCopy(t *testing.T) {
	s := openTemp(t)
	settings, err := s.Settings()
	require.NoError(t, err)
	settings["eventCycles"] = 99.0

	again, err := s.Settings()
	require.NoError(t, err)
	assert.Equal(t, float64(3), again["eventCycles"])
}

func TestExportImport(t *testing.T) {
	src := openTemp(t)
	require.NoError(t, src.PutSettings(map[string]any{"channelName": "KCAT", "logoUrl": "/assets/logo/logo.png"}))
	x := src.Export()

	dst := openTemp(t)
	annsBefore := dst.Announcements()
	require.NoError(t, dst.Import(x))

	if diff := cmp.Diff(src.Events(), dst.Events()); diff != "" {
		t.Errorf("events mismatch (-src +dst):\n%s", diff)
	}
	assert.Equal(t, "KCAT", dst.Export().Settings["channelName"])
	assert.Equal(t, annsBefore, dst.Announcements(), "announcements are not part of an export")

	// Partial import only touches what is present.
	require.NoError(t, dst.Import(Export{Events: []content.Event{}}))
	assert.Empty(t, dst.Events())
	assert.Equal(t, "KCAT", dst.Export().Settings["channelName"])
}

func TestImportRejectsInvalidEvents(t *testing.T) {
	s := openTemp(t)
	before := s.Events()
	rev := s.Revision()

	err := s.Import(Export{
		Events: []content.Event{
			{Date: "2026-11-01", Title: "CRAFT FAIR"},
			{Date: "2026-11-02"},
		},
		Settings: map[string]any{"channelName": "KCAT"},
	})
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "event 1")

	assert.Equal(t, before, s.Events())
	assert.Equal(t, rev, s.Revision())
	assert.NotEqual(t, "KCAT", s.Export().Settings["channelName"], "nothing is committed")
}

func TestCSVExport(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.ClearEvents())
	_, err := s.AddEvent(content.Event{
		Date:        "2026-07-04",
		Title:       `PARADE, "BIG" ONE`,
		Time:        "10:00 AM",
		Location:    "MAIN ST",
		Description: "Bring chairs\nand water",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(s.CSVPath())
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Date", "Title", "Time", "Location", "Description"}, rows[0])
	assert.Equal(t, []string{"2026-07-04", `PARADE, "BIG" ONE`, "10:00 AM", "MAIN ST", "Bring chairs\nand water"}, rows[1])
}

func TestReloadDetectsChanges(t *testing.T) {
	s := openTemp(t)

	changed, err := s.Reload()
	require.NoError(t, err)
	assert.False(t, changed, "own writes are already cached")

	rev := s.Revision()
	writeFile(t, s.Dir(), EventsFile, []content.Event{{Date: "2026-09-09", Title: "HAND EDIT"}})
	changed, err = s.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Greater(t, s.Revision(), rev)
	assert.Equal(t, "HAND EDIT", s.Events()[0].Title)

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), EventsFile), []byte("[{"), 0o644))
	_, err = s.Reload()
	require.Error(t, err)
	assert.Equal(t, "HAND EDIT", s.Events()[0].Title, "broken file leaves cache alone")
}

func TestReloadNeverDropsConcurrentCommits(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.ClearEvents())

	const n = 50
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			_, err := s.AddEvent(content.Event{Date: "2026-12-01", Title: fmt.Sprintf("EVENT %d", i)})
			assert.NoError(t, err)
		}
	}()

	for reloading := true; reloading; {
		select {
		case <-done:
			reloading = false
		default:
			_, err := s.Reload()
			require.NoError(t, err)
		}
	}

	assert.Len(t, s.Events(), n)
	changed, err := s.Reload()
	require.NoError(t, err)
	assert.False(t, changed, "cache matches the files")
}

func TestWatchReloadsExternalEdits(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	require.NoError(t, s.Watch(ctx, 20*time.Millisecond, func(uint64) { changes.Add(1) }))

	// Writes through the store do not count as external changes.
	_, err := s.AddEvent(content.Event{Date: "2026-01-01", Title: "OWN"})
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, changes.Load())

	writeFile(t, s.Dir(), AnnouncementsFile, []content.Announcement{{Headline: "FROM BACKUP"}})
	require.Eventually(t, func() bool {
		anns := s.Announcements()
		return len(anns) == 1 && anns[0].Headline == "FROM BACKUP"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return changes.Load() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	time.Sleep(50 * time.Millisecond)
}
