package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/community-signage/internal/display"
	"github.com/sweeney/community-signage/internal/music"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event            string         `json:"event,omitempty"`
	Reason           string         `json:"reason,omitempty"`
	Name             string         `json:"name"`
	Ready            bool           `json:"ready"`
	Phase            string         `json:"phase"`
	Mode             string         `json:"mode"`
	Sequence         []string       `json:"sequence"`
	SequenceIndex    int            `json:"sequence_index"`
	Unit             int            `json:"unit"`
	Units            int            `json:"units"`
	CycleCount       map[string]int `json:"cycle_count"`
	IdleReason       string         `json:"idle_reason,omitempty"`
	NowShowing       *NowShowing    `json:"now_showing,omitempty"`
	Music            *MusicJSON     `json:"music,omitempty"`
	LastRefresh      string         `json:"last_refresh,omitempty"`
	LastRefreshError string         `json:"last_refresh_error,omitempty"`
	UptimeSeconds    int64          `json:"uptime_seconds"`
	StartTime        string         `json:"start_time"`
	Timestamp        string         `json:"timestamp"`
	MQTT             MQTTStatus     `json:"mqtt"`
	Counts           CountsJSON     `json:"counts"`
	Network          *NetworkJSON   `json:"network,omitempty"`
	Config           ConfigJSON     `json:"config"`
}

// NowShowing summarises the frame on screen.
type NowShowing struct {
	VisitID  string `json:"visit_id"`
	Mode     string `json:"mode"`
	Title    string `json:"title"`
	Headline string `json:"headline"`
	Unit     int    `json:"unit"`
	Units    int    `json:"units"`
	Cycle    int    `json:"cycle"`
	Revision uint64 `json:"revision"`
	Since    string `json:"since"`
}

// MusicJSON is the current playback instruction.
type MusicJSON struct {
	Mode    string   `json:"mode"`
	Kind    string   `json:"kind,omitempty"`
	Master  bool     `json:"master"`
	Stopped bool     `json:"stopped"`
	Tracks  []string `json:"tracks"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of display counts.
type CountsJSON struct {
	Renders       int `json:"renders"`
	Visits        int `json:"visits"`
	Skips         int `json:"skips"`
	Idles         int `json:"idles"`
	Refreshes     int `json:"refreshes"`
	RefreshErrors int `json:"refresh_errors"`
	ButtonPresses int `json:"button_presses"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of display config.
type ConfigJSON struct {
	ServerURL      string `json:"server_url"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
	RefreshEveryMs int64  `json:"refresh_every_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	ButtonPin      int    `json:"button_pin"`
}

// NowJSON is what a kiosk browser should draw right now.
type NowJSON struct {
	Phase      string         `json:"phase"`
	IdleReason string         `json:"idleReason,omitempty"`
	Frame      *display.Frame `json:"frame"`
	Music      *NowMusicJSON  `json:"music"`
}

// NowMusicJSON carries playable URLs for the browser audio element.
type NowMusicJSON struct {
	Master  bool     `json:"master"`
	Stopped bool     `json:"stopped"`
	URLs    []string `json:"urls"`
}

func buildInner(snap Snapshot) StatusInner {
	phase := string(snap.Phase)
	if phase == "" {
		phase = "UNKNOWN"
	}
	seq := make([]string, 0, len(snap.Sequence))
	for _, m := range snap.Sequence {
		seq = append(seq, string(m))
	}
	cycles := make(map[string]int, len(snap.CycleCount))
	for m, n := range snap.CycleCount {
		cycles[string(m)] = n
	}

	inner := StatusInner{
		Name:             snap.Config.Name,
		Ready:            snap.Ready(),
		Phase:            phase,
		Mode:             string(snap.Mode),
		Sequence:         seq,
		SequenceIndex:    snap.SequenceIndex,
		Unit:             snap.Unit,
		Units:            snap.Units,
		CycleCount:       cycles,
		IdleReason:       snap.IdleReason,
		LastRefreshError: snap.LastRefreshError,
		UptimeSeconds:    int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:        snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:        snap.Now.UTC().Format(time.RFC3339),
		MQTT:             MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Renders:       snap.Counts.Renders,
			Visits:        snap.Counts.Visits,
			Skips:         snap.Counts.Skips,
			Idles:         snap.Counts.Idles,
			Refreshes:     snap.Counts.Refreshes,
			RefreshErrors: snap.Counts.RefreshErrors,
			ButtonPresses: snap.Counts.ButtonPresses,
		},
		Config: ConfigJSON{
			ServerURL:      snap.Config.ServerURL,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
			RefreshEveryMs: snap.Config.RefreshEveryMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			ButtonPin:      snap.Config.ButtonPin,
		},
	}
	if !snap.LastRefresh.IsZero() {
		inner.LastRefresh = snap.LastRefresh.UTC().Format(time.RFC3339)
	}
	if f := snap.Frame; f != nil {
		inner.NowShowing = &NowShowing{
			VisitID:  f.VisitID,
			Mode:     string(f.Mode),
			Title:    f.Title,
			Headline: f.Headline(),
			Unit:     f.Unit,
			Units:    f.Units,
			Cycle:    f.Cycle,
			Revision: f.Revision,
			Since:    f.At.UTC().Format(time.RFC3339),
		}
	}
	if tr := snap.Track; tr != nil {
		inner.Music = &MusicJSON{
			Mode:    string(tr.Mode),
			Kind:    string(tr.Kind),
			Master:  tr.Master,
			Stopped: tr.Stopped,
			Tracks:  nonNil(tr.Files),
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatNow returns the frame and music a kiosk browser should present.
func FormatNow(snap Snapshot) []byte {
	now := NowJSON{
		Phase:      string(snap.Phase),
		IdleReason: snap.IdleReason,
		Frame:      snap.Frame,
	}
	if tr := snap.Track; tr != nil {
		now.Music = trackJSON(*tr)
	}
	data, _ := json.Marshal(now)
	return data
}

func trackJSON(tr music.Track) *NowMusicJSON {
	return &NowMusicJSON{
		Master:  tr.Master,
		Stopped: tr.Stopped,
		URLs:    tr.URLs(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
