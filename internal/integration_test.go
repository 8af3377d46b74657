package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/community-signage/internal/api"
	"github.com/sweeney/community-signage/internal/client"
	"github.com/sweeney/community-signage/internal/content"
	"github.com/sweeney/community-signage/internal/display"
	"github.com/sweeney/community-signage/internal/mqtt"
	"github.com/sweeney/community-signage/internal/music"
	"github.com/sweeney/community-signage/internal/rotation"
	"github.com/sweeney/community-signage/internal/status"
	"github.com/sweeney/community-signage/internal/store"
	"github.com/sweeney/community-signage/internal/timer"
	"github.com/sweeney/community-signage/internal/web"
)

var today = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

// startServer runs the content API on a fresh data directory with the
// seeded announcements removed.
func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	for len(st.Announcements()) > 0 {
		if err := st.DeleteAnnouncement(0); err != nil {
			t.Fatalf("clear announcements: %v", err)
		}
	}
	ts := httptest.NewServer(api.New(st, api.Options{Logger: zerolog.Nop()}).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, method, url string, body any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status %d: %s", method, url, resp.StatusCode, msg)
	}
}

// rig is a display wired the way the display command wires it, on a
// virtual clock.
type rig struct {
	fake    *timer.Fake
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	driver  *display.Driver
	client  *client.Client
}

func newRig(serverURL string) *rig {
	r := &rig{
		fake:    timer.NewFake(),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(today, status.Config{Name: "lobby"}),
		client:  client.New(serverURL, zerolog.Nop(), client.WithClock(func() time.Time { return today })),
	}
	r.driver = display.NewDriver(display.Options{
		Timer:    r.fake,
		Renderer: display.Renderers{r.tracker, r.pub},
		Tracks:   music.NewSelector(music.Players{r.tracker, r.pub}, zerolog.Nop()),
		Observer: r.tracker,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return today.Add(r.fake.Elapsed()) },
	})
	return r
}

func (r *rig) step(t *testing.T) {
	t.Helper()
	seq, ok := r.fake.Fire()
	if !ok {
		t.Fatal("no timer pending")
	}
	r.driver.Fire(context.Background(), seq)
}

func rotatingSettings() map[string]any {
	return map[string]any{
		"rotationOrder":           []string{"events", "weather", "announcements"},
		"eventsEnabled":           true,
		"weatherEnabled":          true,
		"announcementsEnabled":    true,
		"eventCycles":             1,
		"weatherCycles":           1,
		"announcementCycles":      1,
		"scrollSpeed":             6,  // 10s per events pass
		"announcementScrollSpeed": 12, // 5s per announcement
		"screenDuration":          5,
		"weatherScreens":          []string{"radar"},
		"musicEnabled":            true,
		"playlist":                []string{"calm.mp3"},
	}
}

// TestIntegrationServerToDisplay drives a full rotation from content
// entered through the API to frames published over MQTT.
func TestIntegrationServerToDisplay(t *testing.T) {
	ts := startServer(t)
	call(t, http.MethodPut, ts.URL+"/api/settings", rotatingSettings())
	call(t, http.MethodDelete, ts.URL+"/api/events", nil)
	call(t, http.MethodPost, ts.URL+"/api/events", content.Event{Date: "2026-10-20", Title: "TOWN COUNCIL MEETING", Time: "7:00 PM"})
	call(t, http.MethodPost, ts.URL+"/api/announcements", content.Announcement{Headline: "EXPIRED", StartDate: "2026-09-01", EndDate: "2026-09-30"})
	call(t, http.MethodPost, ts.URL+"/api/announcements", content.Announcement{Headline: "LEAF PICKUP", StartDate: "2026-10-01", EndDate: "2026-10-31"})

	r := newRig(ts.URL)
	snap, err := r.client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snap.Announcements) != 1 {
		t.Fatalf("expected only the active announcement, got %d", len(snap.Announcements))
	}

	r.driver.Start(context.Background(), snap)
	for i := 0; i < 3; i++ {
		r.step(t)
	}

	type shown struct {
		mode     rotation.Mode
		headline string
		at       time.Duration
	}
	want := []shown{
		{rotation.ModeEvents, "TOWN COUNCIL MEETING", 0},
		{rotation.ModeWeather, "radar", 10 * time.Second},
		{rotation.ModeAnnouncements, "LEAF PICKUP", 15 * time.Second},
		{rotation.ModeEvents, "TOWN COUNCIL MEETING", 20 * time.Second},
	}
	frames := r.pub.Frames
	if len(frames) != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), len(frames))
	}
	for i, w := range want {
		f := frames[i]
		if f.Mode != w.mode || f.Headline() != w.headline || f.At.Sub(today) != w.at {
			t.Errorf("frame %d: got %s %q at %v, want %s %q at %v",
				i, f.Mode, f.Headline(), f.At.Sub(today), w.mode, w.headline, w.at)
		}
		if _, err := mqtt.FormatDisplayPayload(f); err != nil {
			t.Errorf("frame %d: payload: %v", i, err)
		}
	}
	if frames[0].VisitID == frames[3].VisitID {
		t.Error("expected a new visit id when events come round again")
	}

	tracks := r.pub.Tracks
	if len(tracks) != 4 {
		t.Fatalf("expected a music instruction per visit, got %d", len(tracks))
	}
	if tracks[0].Kind != music.KindBackground || tracks[0].URLs()[0] != "/assets/background_music/calm.mp3" {
		t.Errorf("events music: got %+v", tracks[0])
	}
	if !tracks[1].Stopped {
		t.Errorf("weather music should be stopped, got %+v", tracks[1])
	}

	snapStatus := r.tracker.Snapshot()
	if snapStatus.Counts.Visits != 4 || snapStatus.Counts.Renders != 4 {
		t.Errorf("counts: got %+v", snapStatus.Counts)
	}
}

// TestIntegrationRefreshPicksUpEdits checks that an edit made through the
// API reaches a running display on the next refresh.
func TestIntegrationRefreshPicksUpEdits(t *testing.T) {
	ts := startServer(t)
	settings := rotatingSettings()
	settings["scrollSpeed"] = 0
	settings["weatherEnabled"] = false
	call(t, http.MethodPut, ts.URL+"/api/settings", settings)
	call(t, http.MethodDelete, ts.URL+"/api/events", nil)
	call(t, http.MethodPost, ts.URL+"/api/events", content.Event{Date: "2026-10-20", Title: "FIRST"})

	r := newRig(ts.URL)
	refresher := display.NewRefresher(r.client, r.driver, time.Hour, time.Second, zerolog.Nop())
	refresher.OnResult(r.tracker.RecordRefresh)

	snap, err := r.client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.driver.Run(ctx, snap) }()
	defer func() {
		cancel()
		<-done
	}()

	eventsOnScreen := func(n int) func() bool {
		return func() bool {
			f := r.tracker.Snapshot().Frame
			return f != nil && len(f.Events) == n
		}
	}
	waitFor(t, "first frame", eventsOnScreen(1))
	if phase := r.tracker.Snapshot().Phase; phase != rotation.PhaseStatic {
		t.Fatalf("expected static events, got %s", phase)
	}

	call(t, http.MethodPost, ts.URL+"/api/events", content.Event{Date: "2026-10-21", Title: "SECOND"})
	if err := refresher.RefreshNow(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	waitFor(t, "edited events", eventsOnScreen(2))

	st := r.tracker.Snapshot()
	if st.Counts.Refreshes != 1 || st.LastRefreshError != "" {
		t.Errorf("refresh not recorded: %+v %q", st.Counts, st.LastRefreshError)
	}
}

// TestIntegrationStatusPage checks the display status server reports the
// rotation driven by server content.
func TestIntegrationStatusPage(t *testing.T) {
	ts := startServer(t)
	call(t, http.MethodPut, ts.URL+"/api/settings", rotatingSettings())

	r := newRig(ts.URL)
	snap, err := r.client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	r.driver.Start(context.Background(), snap)
	r.step(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := web.New(ln.Addr().String(), r.tracker)
	go func() { _ = srv.Serve(ln) }()
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + ln.Addr().String() + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var got status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status.Mode != string(rotation.ModeWeather) {
		t.Errorf("mode: got %q, want weather", got.Status.Mode)
	}
	if !got.Status.Ready {
		t.Error("expected ready")
	}
	if got.Status.Counts.Visits != 2 {
		t.Errorf("visits: got %d, want 2", got.Status.Counts.Visits)
	}
	if got.Status.Name != "lobby" {
		t.Errorf("name: got %q", got.Status.Name)
	}
}

// TestIntegrationServerDownKeepsContent checks a failed refresh leaves the
// display on the content it already has.
func TestIntegrationServerDownKeepsContent(t *testing.T) {
	ts := startServer(t)
	r := newRig(ts.URL)
	snap, err := r.client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	r.driver.Start(context.Background(), snap)
	before := r.pub.FrameCount()

	ts.Close()
	refresher := display.NewRefresher(r.client, r.driver, time.Hour, time.Second, zerolog.Nop())
	refresher.OnResult(r.tracker.RecordRefresh)
	if err := refresher.RefreshNow(context.Background()); err == nil {
		t.Fatal("expected refresh to fail with the server down")
	}

	st := r.tracker.Snapshot()
	if st.Counts.RefreshErrors != 1 || st.LastRefreshError == "" {
		t.Errorf("refresh error not recorded: %+v", st.Counts)
	}
	if r.pub.FrameCount() != before {
		t.Error("a failed refresh should not re-render")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
