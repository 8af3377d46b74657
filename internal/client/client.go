// Package client fetches content from the signage server for a display.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/community-signage/internal/content"
)

const (
	maxResponseSize = 4 << 20
	userAgent       = "signage-display/1.0"
)

// Client reads settings, events and announcements from the content API.
type Client struct {
	base string
	http *http.Client
	log  zerolog.Logger
	now  func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock sets the clock used to filter active announcements.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for the server at baseURL.
func New(baseURL string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
		now:  time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch builds a snapshot from one round of requests. Announcements are
// filtered to those active today. Settings with bad fields still produce a
// snapshot; the bad fields take their defaults.
//
// The revision is read before the content, so an edit racing the fetch can
// only make the snapshot newer than its revision, never older.
func (c *Client) Fetch(ctx context.Context) (content.Snapshot, error) {
	rev, err := c.Revision(ctx)
	if err != nil {
		return content.Snapshot{}, err
	}

	var (
		rawSettings json.RawMessage
		events      []content.Event
		anns        []content.Announcement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.get(gctx, "/api/settings", &rawSettings) })
	g.Go(func() error { return c.get(gctx, "/api/events", &events) })
	g.Go(func() error { return c.get(gctx, "/api/announcements", &anns) })
	if err := g.Wait(); err != nil {
		return content.Snapshot{}, err
	}

	settings, err := content.DecodeSettings(rawSettings)
	if err != nil {
		c.log.Warn().Err(err).Msg("settings contain invalid fields, using defaults for them")
	}
	if events == nil {
		events = []content.Event{}
	}

	now := c.now()
	return content.Snapshot{
		Revision:      rev,
		Settings:      settings,
		Events:        events,
		Announcements: content.Active(anns, now),
		FetchedAt:     now,
	}, nil
}

// Revision returns the server's content revision.
func (c *Client) Revision(ctx context.Context) (uint64, error) {
	var rev struct {
		Revision uint64 `json:"revision"`
	}
	if err := c.get(ctx, "/api/revision", &rev); err != nil {
		return 0, err
	}
	return rev.Revision, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("create request %s: %w", path, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	c.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("fetched")
	return nil
}
