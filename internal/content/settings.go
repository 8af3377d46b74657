package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/sweeney/community-signage/internal/rotation"
)

// Default values applied when a setting is absent or out of range.
const (
	DefaultEventCycles             = 3
	DefaultWeatherCycles           = 2
	DefaultAnnouncementCycles      = 2
	DefaultScrollSpeed             = 3
	DefaultAnnouncementScrollSpeed = 3
	DefaultScreenDuration          = 8 // seconds
	DefaultLogoURL                 = "/assets/logo/sample-logo.png"
)

// DefaultWeatherScreens is the standard weather screen set.
var DefaultWeatherScreens = []string{
	"currentConditions",
	"latestObservations",
	"extendedForecast",
	"hourlyForecast",
	"localForecast",
	"almanac",
	"travelForecast",
	"regionalObservations",
	"radar",
}

// Settings is the typed view of the flat settings object. Keys the display
// does not use stay in the raw document held by the server.
type Settings struct {
	ChannelNumber string `json:"channelNumber"`
	ChannelName   string `json:"channelName"`
	LogoURL       string `json:"logoUrl"`

	TickerText             string `json:"tickerText"`
	AnnouncementTickerText string `json:"announcementTickerText"`
	WeatherTickerText      string `json:"weatherTickerText"`

	EventsDisplayName        string `json:"eventsDisplayName"`
	AnnouncementsDisplayName string `json:"announcementsDisplayName"`

	RotationOrder        []rotation.Mode `json:"rotationOrder"`
	EventsEnabled        bool            `json:"eventsEnabled"`
	WeatherEnabled       bool            `json:"weatherEnabled"`
	AnnouncementsEnabled bool            `json:"announcementsEnabled"`

	EventCycles        int `json:"eventCycles"`
	WeatherCycles      int `json:"weatherCycles"`
	AnnouncementCycles int `json:"announcementCycles"`

	// ScrollSpeed is events scroll passes per minute; 0 shows events
	// statically.
	ScrollSpeed float64 `json:"scrollSpeed"`
	// AnnouncementScrollSpeed is announcements shown per minute.
	AnnouncementScrollSpeed float64 `json:"announcementScrollSpeed"`

	// ScreenDuration is seconds per weather screen.
	ScreenDuration float64  `json:"screenDuration"`
	WeatherScreens []string `json:"weatherScreens"`

	MusicEnabled             bool     `json:"musicEnabled"`
	Playlist                 []string `json:"playlist"`
	WeatherMusicEnabled      bool     `json:"weatherMusicEnabled"`
	WeatherPlaylist          []string `json:"weatherPlaylist"`
	AnnouncementMusicEnabled bool     `json:"announcementMusicEnabled"`
	AnnouncementPlaylist     []string `json:"announcementPlaylist"`
	MasterMusicEnabled       bool     `json:"masterMusicEnabled"`
	MasterPlaylist           []string `json:"masterPlaylist"`

	DisclaimerEnabled bool   `json:"disclaimerEnabled"`
	DisclaimerText    string `json:"disclaimerText"`
}

// DefaultSettings returns the settings a fresh installation starts with.
func DefaultSettings() Settings {
	return Settings{
		ChannelNumber:            "17",
		ChannelName:              "KCAT-17 COMMUNITY ACCESS",
		LogoURL:                  DefaultLogoURL,
		TickerText:               "TO ADD YOUR COMMUNITY EVENT LISTINGS CALL 555-123-CABLE",
		AnnouncementTickerText:   "TO ADD YOUR COMMUNITY ANNOUNCEMENT CALL 555-123-CABLE",
		WeatherTickerText:        "LOCAL WEATHER PROVIDED BY NOAA",
		EventsDisplayName:        "Community Calendar",
		AnnouncementsDisplayName: "Community Announcements",
		RotationOrder:            append([]rotation.Mode(nil), rotation.Modes...),
		EventsEnabled:            true,
		WeatherEnabled:           false,
		AnnouncementsEnabled:     false,
		EventCycles:              DefaultEventCycles,
		WeatherCycles:            DefaultWeatherCycles,
		AnnouncementCycles:       DefaultAnnouncementCycles,
		ScrollSpeed:              DefaultScrollSpeed,
		AnnouncementScrollSpeed:  DefaultAnnouncementScrollSpeed,
		ScreenDuration:           DefaultScreenDuration,
		WeatherScreens:           append([]string(nil), DefaultWeatherScreens...),
		Playlist:                 []string{},
		WeatherPlaylist:          []string{},
		AnnouncementPlaylist:     []string{},
		MasterPlaylist:           []string{},
		DisclaimerText:           "This message provided as a public service by your local cable access channel.",
	}
}

// DecodeSettings overlays raw JSON on the defaults. It always returns usable
// settings; the error is informational. Malformed JSON yields the defaults.
// Fields of the wrong type keep their defaults while the rest still apply.
func DecodeSettings(raw []byte) (Settings, error) {
	s := DefaultSettings()
	if len(raw) == 0 {
		return s, nil
	}

	err := json.Unmarshal(raw, &s)
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
	case errors.As(err, &typeErr):
		err = fmt.Errorf("settings field %q: %w", typeErr.Field, err)
	default:
		return DefaultSettings(), fmt.Errorf("decode settings: %w", err)
	}

	s.normalize()
	return s, err
}

func (s *Settings) normalize() {
	if s.RotationOrder == nil {
		s.RotationOrder = append([]rotation.Mode(nil), rotation.Modes...)
	}
	if s.EventCycles <= 0 {
		s.EventCycles = DefaultEventCycles
	}
	if s.WeatherCycles <= 0 {
		s.WeatherCycles = DefaultWeatherCycles
	}
	if s.AnnouncementCycles <= 0 {
		s.AnnouncementCycles = DefaultAnnouncementCycles
	}
	if s.ScrollSpeed < 0 {
		s.ScrollSpeed = DefaultScrollSpeed
	}
	if s.AnnouncementScrollSpeed <= 0 {
		s.AnnouncementScrollSpeed = DefaultAnnouncementScrollSpeed
	}
	if s.ScreenDuration <= 0 {
		s.ScreenDuration = DefaultScreenDuration
	}
	if len(s.WeatherScreens) == 0 {
		s.WeatherScreens = append([]string(nil), DefaultWeatherScreens...)
	}
	if s.LogoURL == "" {
		s.LogoURL = DefaultLogoURL
	}
}

// Equal reports whether two settings are identical.
func (s Settings) Equal(o Settings) bool {
	return reflect.DeepEqual(s, o)
}

// DisplayName returns the on-screen title for mode m.
func (s Settings) DisplayName(m rotation.Mode) string {
	switch m {
	case rotation.ModeEvents:
		return s.EventsDisplayName
	case rotation.ModeAnnouncements:
		return s.AnnouncementsDisplayName
	case rotation.ModeWeather:
		return "Local Weather"
	}
	return ""
}

// Ticker returns the ticker text shown under mode m.
func (s Settings) Ticker(m rotation.Mode) string {
	switch m {
	case rotation.ModeEvents:
		return s.TickerText
	case rotation.ModeAnnouncements:
		return s.AnnouncementTickerText
	case rotation.ModeWeather:
		return s.WeatherTickerText
	}
	return ""
}
