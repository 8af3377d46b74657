package content

import (
	"time"

	"github.com/sweeney/community-signage/internal/rotation"
)

// EventPassDuration is how long one events scroll pass takes. Zero means
// the events list is shown statically.
func (s Settings) EventPassDuration() time.Duration {
	if s.ScrollSpeed <= 0 {
		return 0
	}
	return seconds(60 / s.ScrollSpeed)
}

// AnnouncementDuration is how long each announcement stays on screen.
func (s Settings) AnnouncementDuration() time.Duration {
	speed := s.AnnouncementScrollSpeed
	if speed <= 0 {
		speed = DefaultAnnouncementScrollSpeed
	}
	return seconds(60 / speed)
}

// WeatherScreenDuration is how long each weather screen stays on screen.
func (s Settings) WeatherScreenDuration() time.Duration {
	d := s.ScreenDuration
	if d <= 0 {
		d = DefaultScreenDuration
	}
	return seconds(d)
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// BuildConfig maps a snapshot onto the scheduler configuration.
//
// One pass of each mode is:
//   - events: a single scroll of the whole list
//   - weather: one traversal of the configured weather screens
//   - announcements: each active announcement once
func BuildConfig(snap Snapshot) rotation.Config {
	s := snap.Settings

	weatherScreens := len(s.WeatherScreens)
	if weatherScreens == 0 {
		weatherScreens = len(DefaultWeatherScreens)
	}

	return rotation.Config{
		Revision: snap.Revision,
		Sequence: append([]rotation.Mode(nil), s.RotationOrder...),
		Enabled: map[rotation.Mode]bool{
			rotation.ModeEvents:        s.EventsEnabled,
			rotation.ModeWeather:       s.WeatherEnabled,
			rotation.ModeAnnouncements: s.AnnouncementsEnabled,
		},
		HasContent: map[rotation.Mode]bool{
			rotation.ModeEvents:        len(snap.Events) > 0,
			rotation.ModeWeather:       true,
			rotation.ModeAnnouncements: len(snap.Announcements) > 0,
		},
		CyclesPerVisit: map[rotation.Mode]int{
			rotation.ModeEvents:        s.EventCycles,
			rotation.ModeWeather:       s.WeatherCycles,
			rotation.ModeAnnouncements: s.AnnouncementCycles,
		},
		UnitsPerPass: map[rotation.Mode]int{
			rotation.ModeEvents:        1,
			rotation.ModeWeather:       weatherScreens,
			rotation.ModeAnnouncements: len(snap.Announcements),
		},
		UnitDuration: map[rotation.Mode]time.Duration{
			rotation.ModeEvents:        s.EventPassDuration(),
			rotation.ModeWeather:       s.WeatherScreenDuration(),
			rotation.ModeAnnouncements: s.AnnouncementDuration(),
		},
	}
}
