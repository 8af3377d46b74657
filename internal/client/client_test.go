package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/community-signage/internal/content"
)

type fakeServer struct {
	settings string
	events   []content.Event
	anns     []content.Announcement
	revision uint64
	fail     string
}

func (f *fakeServer) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	send := func(path string, body func(w http.ResponseWriter)) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == f.fail {
				http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			body(w)
		})
	}
	send("/api/settings", func(w http.ResponseWriter) { _, _ = w.Write([]byte(f.settings)) })
	send("/api/events", func(w http.ResponseWriter) { _ = json.NewEncoder(w).Encode(f.events) })
	send("/api/announcements", func(w http.ResponseWriter) { _ = json.NewEncoder(w).Encode(f.anns) })
	send("/api/revision", func(w http.ResponseWriter) {
		_ = json.NewEncoder(w).Encode(map[string]uint64{"revision": f.revision})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

var today = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return today }

func TestFetchBuildsSnapshot(t *testing.T) {
	f := &fakeServer{
		settings: `{"eventCycles": 2, "weatherEnabled": true}`,
		events:   []content.Event{{Date: "2026-10-20", Title: "BAKE SALE"}},
		anns: []content.Announcement{
			{Headline: "CURRENT", StartDate: "2026-10-01", EndDate: "2026-10-31"},
			{Headline: "EXPIRED", StartDate: "2026-09-01", EndDate: "2026-09-30"},
			{Headline: "STARTS TODAY", StartDate: "2026-10-17", EndDate: "2026-10-17"},
		},
		revision: 7,
	}
	ts := f.start(t)

	c := New(ts.URL+"/", zerolog.Nop(), WithClock(fixedClock))
	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(7), snap.Revision)
	assert.Equal(t, today, snap.FetchedAt)
	assert.Equal(t, 2, snap.Settings.EventCycles)
	assert.True(t, snap.Settings.WeatherEnabled)
	assert.Equal(t, f.events, snap.Events)

	var headlines []string
	for _, a := range snap.Announcements {
		headlines = append(headlines, a.Headline)
	}
	assert.Equal(t, []string{"CURRENT", "STARTS TODAY"}, headlines)
}

func TestFetchToleratesBadSettingFields(t *testing.T) {
	f := &fakeServer{settings: `{"eventCycles": "lots", "scrollSpeed": 30}`}
	ts := f.start(t)

	snap, err := New(ts.URL, zerolog.Nop(), WithClock(fixedClock)).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, content.DefaultEventCycles, snap.Settings.EventCycles)
	assert.Equal(t, 30.0, snap.Settings.ScrollSpeed)
	assert.NotNil(t, snap.Events)
}

func TestFetchFailsOnAnyEndpoint(t *testing.T) {
	for _, path := range []string{"/api/settings", "/api/events", "/api/announcements", "/api/revision"} {
		t.Run(path, func(t *testing.T) {
			f := &fakeServer{settings: `{}`, fail: path}
			ts := f.start(t)

			_, err := New(ts.URL, zerolog.Nop()).Fetch(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestFetchHonoursContext(t *testing.T) {
	block := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(ts.URL, zerolog.Nop()).Fetch(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRevision(t *testing.T) {
	f := &fakeServer{revision: 42}
	ts := f.start(t)

	rev, err := New(ts.URL, zerolog.Nop()).Revision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), rev)
}
