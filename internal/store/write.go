package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/renameio/v2"

	"github.com/sweeney/community-signage/internal/content"
	"github.com/sweeney/community-signage/internal/metrics"
)

// writeJSON replaces name with the indented JSON encoding of v.
func (s *Store) writeJSON(name string, v any) error {
	err := s.replace(name, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
	if err != nil {
		metrics.StoreWritesTotal.WithLabelValues(name, "error").Inc()
		return err
	}
	metrics.StoreWritesTotal.WithLabelValues(name, "ok").Inc()
	return nil
}

// writeCSV regenerates the events spreadsheet export.
func (s *Store) writeCSV(events []content.Event) error {
	return s.replace(CSVFile, func(w io.Writer) error {
		return WriteEventsCSV(w, events)
	})
}

// replace writes a file through a pending temp file that is fsynced and
// renamed over the target, so readers never see a partial file.
func (s *Store) replace(name string, write func(io.Writer) error) error {
	pending, err := renameio.NewPendingFile(s.path(name), renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending %s: %w", name, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.log.Debug().Err(err).Str("file", name).Msg("cleanup pending file")
		}
	}()

	if err := write(pending); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// WriteEventsCSV writes events as a spreadsheet with a header row.
func WriteEventsCSV(w io.Writer, events []content.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Title", "Time", "Location", "Description"}); err != nil {
		return err
	}
	for _, e := range events {
		if err := cw.Write([]string{e.Date, e.Title, e.Time, e.Location, e.Description}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
