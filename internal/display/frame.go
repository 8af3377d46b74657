package display

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/community-signage/internal/content"
	"github.com/sweeney/community-signage/internal/rotation"
)

// Frame is everything a screen needs to draw one content unit.
type Frame struct {
	VisitID  string        `json:"visitId"`
	Mode     rotation.Mode `json:"mode"`
	Unit     int           `json:"unit"`
	Units    int           `json:"units"`
	Cycle    int           `json:"cycle"`
	Revision uint64        `json:"revision"`

	Title  string `json:"title"`
	Ticker string `json:"ticker"`

	Events        []content.Event   `json:"events,omitempty"`
	Announcement  *AnnouncementView `json:"announcement,omitempty"`
	WeatherScreen string            `json:"weatherScreen,omitempty"`

	At time.Time `json:"at"`
}

// Headline is a one-line summary of the frame for logs and status pages.
func (f Frame) Headline() string {
	switch {
	case f.Announcement != nil:
		return f.Announcement.Headline
	case f.WeatherScreen != "":
		return f.WeatherScreen
	case len(f.Events) > 0:
		return f.Events[0].Title
	}
	return f.Title
}

// AnnouncementView is an announcement as displayed.
type AnnouncementView struct {
	Headline      string `json:"headline"`
	HeadlineColor string `json:"headlineColor"`
	Body          string `json:"body"`
	BodyColor     string `json:"bodyColor"`
	Type          string `json:"type"`
}

// Renderer puts frames on screen. Rendering is best effort: errors are
// logged by the driver and never change the rotation.
type Renderer interface {
	Render(ctx context.Context, f Frame) error
}

// Renderers fans a frame out to several renderers.
type Renderers []Renderer

// Render implements Renderer. Every renderer is called; errors are joined.
func (rs Renderers) Render(ctx context.Context, f Frame) error {
	var errs []error
	for _, r := range rs {
		if err := r.Render(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildFrame resolves a render effect against the snapshot it was
// scheduled from.
func buildFrame(e rotation.Effect, snap content.Snapshot, visitID string, at time.Time) Frame {
	s := snap.Settings
	f := Frame{
		VisitID:  visitID,
		Mode:     e.Mode,
		Unit:     e.Unit,
		Units:    e.Units,
		Cycle:    e.Cycle,
		Revision: e.Revision,
		Title:    s.DisplayName(e.Mode),
		Ticker:   s.Ticker(e.Mode),
		At:       at,
	}

	switch e.Mode {
	case rotation.ModeEvents:
		f.Events = snap.Events
	case rotation.ModeAnnouncements:
		if e.Unit >= 0 && e.Unit < len(snap.Announcements) {
			a := snap.Announcements[e.Unit]
			f.Announcement = &AnnouncementView{
				Headline:      a.Headline,
				HeadlineColor: a.HeadlineColor,
				Body:          a.Body(s),
				BodyColor:     a.BodyColor,
				Type:          a.AnnouncementType,
			}
		}
	case rotation.ModeWeather:
		screens := s.WeatherScreens
		if len(screens) == 0 {
			screens = content.DefaultWeatherScreens
		}
		f.WeatherScreen = screens[e.Unit%len(screens)]
	}
	return f
}
