// Package content holds the data the display rotates through and maps it
// onto the rotation scheduler's configuration.
package content

import (
	"time"
)

// DateLayout is the calendar-date format used by events and announcements.
const DateLayout = "2006-01-02"

// Event is a community calendar entry as stored by the server.
type Event struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// AnnouncementSponsored is the announcement type that carries the
// disclaimer when one is configured.
const AnnouncementSponsored = "SPONSORED"

// Announcement is a dated full-screen notice.
type Announcement struct {
	StartDate        string `json:"startDate"`
	EndDate          string `json:"endDate"`
	Headline         string `json:"headline"`
	HeadlineColor    string `json:"headlineColor"`
	BodyColor        string `json:"bodyColor"`
	BodyText         string `json:"bodyText"`
	AnnouncementType string `json:"announcementType"`
}

// ActiveOn reports whether startDate <= day <= endDate, comparing calendar
// dates in day's location. Unparseable dates are never active.
func (a Announcement) ActiveOn(day time.Time) bool {
	loc := day.Location()
	start, err := time.ParseInLocation(DateLayout, a.StartDate, loc)
	if err != nil {
		return false
	}
	end, err := time.ParseInLocation(DateLayout, a.EndDate, loc)
	if err != nil {
		return false
	}
	today := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return !today.Before(start) && !today.After(end)
}

// Active returns the announcements active on day, preserving order.
func Active(anns []Announcement, day time.Time) []Announcement {
	out := make([]Announcement, 0, len(anns))
	for _, a := range anns {
		if a.ActiveOn(day) {
			out = append(out, a)
		}
	}
	return out
}

// Body returns the announcement text as displayed, with the disclaimer
// appended to sponsored announcements when enabled.
func (a Announcement) Body(s Settings) string {
	if s.DisclaimerEnabled && s.DisclaimerText != "" && a.AnnouncementType == AnnouncementSponsored {
		return a.BodyText + "\n\n" + s.DisclaimerText
	}
	return a.BodyText
}

// Snapshot is one consistent view of server content. Announcements are
// already filtered to those active at FetchedAt.
type Snapshot struct {
	Revision      uint64
	Settings      Settings
	Events        []Event
	Announcements []Announcement
	FetchedAt     time.Time
}

// SameContent reports whether two snapshots would display the same thing.
// Revision and FetchedAt are ignored.
func (s Snapshot) SameContent(o Snapshot) bool {
	if len(s.Events) != len(o.Events) || len(s.Announcements) != len(o.Announcements) {
		return false
	}
	for i := range s.Events {
		if s.Events[i] != o.Events[i] {
			return false
		}
	}
	for i := range s.Announcements {
		if s.Announcements[i] != o.Announcements[i] {
			return false
		}
	}
	return s.Settings.Equal(o.Settings)
}
