package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sweeney/community-signage/internal/content"
)

// seed writes sample content for every file that does not exist yet.
func (s *Store) seed() error {
	settings, err := defaultSettingsDocument()
	if err != nil {
		return err
	}

	seeds := []struct {
		name string
		v    any
	}{
		{EventsFile, sampleEvents},
		{AnnouncementsFile, sampleAnnouncements},
		{SettingsFile, settings},
	}
	for _, sd := range seeds {
		_, err := os.Stat(s.path(sd.name))
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", sd.name, err)
		}
		if err := s.writeJSON(sd.name, sd.v); err != nil {
			return err
		}
		s.log.Info().Str("file", sd.name).Msg("seeded sample data")
	}
	return nil
}

// defaultSettingsDocument is the typed defaults plus the page-styling keys
// only the browser pages read.
func defaultSettingsDocument() (map[string]any, error) {
	data, err := json.Marshal(content.DefaultSettings())
	if err != nil {
		return nil, fmt.Errorf("encode default settings: %w", err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode default settings: %w", err)
	}
	for k, v := range map[string]any{
		"autoStart":             true,
		"tickerSpeed":           5,
		"tickerBgColor":         "#ffffff",
		"tickerTextColor":       "#0000FF",
		"disclaimerColor":       "#ffffff",
		"eventBorderThickness":  2,
		"displayBrightness":     100,
		"weatherRefreshMinutes": 10,
		"cityName":              "Columbia",
		"stationName":           "Columbia Regional",
	} {
		doc[k] = v
	}
	return doc, nil
}

var sampleEvents = []content.Event{
	{
		Date:        "2026-02-10",
		Title:       "TOWN COUNCIL MEETING",
		Time:        "7:00 PM",
		Location:    "MUNICIPAL BUILDING",
		Description: "Open to public. Budget discussion and park renovation plans.",
	},
	{
		Date:        "2026-02-12",
		Title:       "LIBRARY BOOK CLUB",
		Time:        "6:30 PM",
		Location:    "PUBLIC LIBRARY",
		Description: "Monthly book discussion. This month: Local history collection.",
	},
	{
		Date:        "2026-02-15",
		Title:       "COMMUNITY BAKE SALE",
		Time:        "10:00 AM - 2:00 PM",
		Location:    "CITY HALL PLAZA",
		Description: "Support your local fire department! Homemade treats available.",
	},
	{
		Date:        "2026-02-22",
		Title:       "FARMERS MARKET OPENING DAY",
		Time:        "8:00 AM - 1:00 PM",
		Location:    "DOWNTOWN SQUARE",
		Description: "Season opening! Fresh produce, crafts, and live music.",
	},
}

var sampleAnnouncements = []content.Announcement{
	{
		Headline:         "FALL CHILI SUPPER",
		BodyText:         "Hosted by First Community Church\nFellowship Hall\n\nEVERYONE IS INVITED TO ATTEND",
		HeadlineColor:    "#ff0000",
		BodyColor:        "#ffffff",
		AnnouncementType: content.AnnouncementSponsored,
		StartDate:        "2026-10-01",
		EndDate:          "2026-10-18",
	},
	{
		Headline:         "COMMUNITY BLOOD DRIVE",
		BodyText:         "You can help save lives by donating\nat the Community Blood Drive.\n\nWalk-ins are welcome.",
		HeadlineColor:    "#ff0000",
		BodyColor:        "#ffffff",
		AnnouncementType: content.AnnouncementSponsored,
		StartDate:        "2026-04-25",
		EndDate:          "2026-05-07",
	},
}
