package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sweeney/community-signage/internal/content"
	"github.com/sweeney/community-signage/internal/music"
	"github.com/sweeney/community-signage/internal/store"
)

const maxBodyBytes = 1 << 20

// CSVDownloadName is the file name offered for the events spreadsheet.
const CSVDownloadName = "community_calendar.csv"

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Events())
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var e content.Event
	if !decodeBody(w, r, &e) {
		return
	}
	added, err := s.store.AddEvent(e)
	if err != nil {
		s.storeError(w, err, "Event not found", "Failed to add event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "event": added})
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var e content.Event
	if !decodeBody(w, r, &e) {
		return
	}
	updated, err := s.store.UpdateEvent(index, e)
	if err != nil {
		s.storeError(w, err, "Event not found", "Failed to update event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "event": updated})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteEvent(index); err != nil {
		s.storeError(w, err, "Event not found", "Failed to delete event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearEvents(); err != nil {
		s.storeError(w, err, "", "Failed to clear events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Announcements())
}

func (s *Server) handleAddAnnouncement(w http.ResponseWriter, r *http.Request) {
	var a content.Announcement
	if !decodeBody(w, r, &a) {
		return
	}
	added, err := s.store.AddAnnouncement(a)
	if err != nil {
		s.storeError(w, err, "Announcement not found", "Failed to add announcement")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "announcement": added})
}

func (s *Server) handleUpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var a content.Announcement
	if !decodeBody(w, r, &a) {
		return
	}
	updated, err := s.store.UpdateAnnouncement(index, a)
	if err != nil {
		s.storeError(w, err, "Announcement not found", "Failed to update announcement")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "announcement": updated})
}

func (s *Server) handleDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteAnnouncement(index); err != nil {
		s.storeError(w, err, "Announcement not found", "Failed to delete announcement")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.Settings()
	if err != nil {
		s.storeError(w, err, "", "Failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings map[string]any
	if !decodeBody(w, r, &settings) {
		return
	}
	if _, err := content.DecodeSettings(mustJSON(settings)); err != nil {
		// Invalid fields fall back to defaults on the display.
		s.log.Warn().Err(err).Msg("settings saved with invalid fields")
	}
	if err := s.store.PutSettings(settings); err != nil {
		s.storeError(w, err, "", "Failed to update settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Export())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var x store.Export
	if !decodeBody(w, r, &x) {
		return
	}
	if err := s.store.Import(x); err != nil {
		s.storeError(w, err, "", "Failed to import data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="`+CSVDownloadName+`"`)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	http.ServeFile(w, r, s.store.CSVPath())
}

func (s *Server) handleListMusic(w http.ResponseWriter, r *http.Request) {
	kind, err := music.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	files, err := listMP3(filepath.Join(s.assetsDir, kind.Dir()))
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("list music")
		writeError(w, http.StatusInternalServerError, "Failed to list music")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleRevision(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"revision": s.store.Revision()})
}

type networkAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (s *Server) handleNetworkInfo(w http.ResponseWriter, r *http.Request) {
	port := "80"
	if _, p, err := net.SplitHostPort(s.httpServer.Addr); err == nil && p != "" {
		port = p
	}

	addrs := []networkAddress{}
	ifaces, err := net.Interfaces()
	if err != nil {
		s.log.Warn().Err(err).Msg("list interfaces")
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		ifAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range ifAddrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			addrs = append(addrs, networkAddress{Name: iface.Name, Address: ipnet.IP.String()})
		}
	}

	urls := make([]string, 0, len(addrs))
	for _, a := range addrs {
		urls = append(urls, "http://"+net.JoinHostPort(a.Address, port))
	}
	writeJSON(w, http.StatusOK, map[string]any{"port": port, "addresses": addrs, "urls": urls})
}

// storeError maps store errors onto HTTP statuses.
func (s *Server) storeError(w http.ResponseWriter, err error, notFound, failed string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg(failed)
		writeError(w, http.StatusInternalServerError, failed)
	}
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return 0, false
	}
	return index, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func listMP3(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	files := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".mp3") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func mustJSON(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
