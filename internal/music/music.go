// Package music picks the background playlist for the mode on screen.
package music

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sweeney/community-signage/internal/content"
	"github.com/sweeney/community-signage/internal/rotation"
)

// Kind names a music library directory under the assets root.
type Kind string

const (
	KindBackground   Kind = "background"
	KindWeather      Kind = "weather"
	KindAnnouncement Kind = "announcement"
	KindMaster       Kind = "master"
)

// Kinds lists every music library.
var Kinds = []Kind{KindBackground, KindWeather, KindAnnouncement, KindMaster}

// Dir returns the assets subdirectory holding the library, or "" for an
// unknown kind.
func (k Kind) Dir() string {
	switch k {
	case KindBackground:
		return "background_music"
	case KindWeather:
		return "weather_music"
	case KindAnnouncement:
		return "announcement_music"
	case KindMaster:
		return "master_music"
	}
	return ""
}

// ParseKind maps a query value onto a Kind. Empty means background.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindBackground, nil
	}
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown music kind %q, want one of %v", s, Kinds)
}

// Track is a playback instruction. A stopped track carries no files.
type Track struct {
	Mode    rotation.Mode `json:"mode"`
	Kind    Kind          `json:"kind,omitempty"`
	Files   []string      `json:"files,omitempty"`
	Master  bool          `json:"master"`
	Stopped bool          `json:"stopped"`
}

// URLs returns the asset URLs of the playlist, in order.
func (t Track) URLs() []string {
	urls := make([]string, 0, len(t.Files))
	for _, f := range t.Files {
		urls = append(urls, path.Join("/assets", t.Kind.Dir(), f))
	}
	return urls
}

// Player executes playback instructions.
type Player interface {
	Play(ctx context.Context, t Track) error
}

// Players fans a track out to several players.
type Players []Player

// Play implements Player. Every player is called; errors are joined.
func (ps Players) Play(ctx context.Context, t Track) error {
	var errs []error
	for _, p := range ps {
		if err := p.Play(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Selector switches background music as the rotation changes mode.
type Selector struct {
	player Player
	log    zerolog.Logger

	mu            sync.Mutex
	masterPlaying bool
	current       Track
}

// NewSelector creates a selector that drives player.
func NewSelector(player Player, log zerolog.Logger) *Selector {
	return &Selector{player: player, log: log}
}

// SelectTrack switches to the playlist for mode. A configured master
// playlist takes priority: it is started once and per-mode switching is
// suppressed while it stays configured.
func (s *Selector) SelectTrack(ctx context.Context, mode rotation.Mode, settings content.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.MasterMusicEnabled && len(settings.MasterPlaylist) > 0 {
		if s.masterPlaying {
			s.log.Debug().Str("mode", string(mode)).Msg("master playlist active, not switching")
			return nil
		}
		t := Track{Mode: mode, Kind: KindMaster, Files: clone(settings.MasterPlaylist), Master: true}
		if err := s.play(ctx, t); err != nil {
			return err
		}
		s.masterPlaying = true
		return nil
	}
	s.masterPlaying = false

	return s.play(ctx, trackFor(mode, settings))
}

// Current returns the last instruction sent to the player.
func (s *Selector) Current() Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Selector) play(ctx context.Context, t Track) error {
	s.current = t
	if err := s.player.Play(ctx, t); err != nil {
		return fmt.Errorf("play %s music: %w", t.Mode, err)
	}
	return nil
}

func trackFor(mode rotation.Mode, settings content.Settings) Track {
	var (
		enabled bool
		kind    Kind
		files   []string
	)
	switch mode {
	case rotation.ModeEvents:
		enabled, kind, files = settings.MusicEnabled, KindBackground, settings.Playlist
	case rotation.ModeWeather:
		enabled, kind, files = settings.WeatherMusicEnabled, KindWeather, settings.WeatherPlaylist
	case rotation.ModeAnnouncements:
		enabled, kind, files = settings.AnnouncementMusicEnabled, KindAnnouncement, settings.AnnouncementPlaylist
	}
	if !enabled || len(files) == 0 {
		return Track{Mode: mode, Stopped: true}
	}
	return Track{Mode: mode, Kind: kind, Files: clone(files)}
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
