package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/community-signage/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"orNone": func(s string) string {
		if s == "" {
			return "none"
		}
		return s
	},
	"ms": func(ms int64) string {
		return (time.Duration(ms) * time.Millisecond).String()
	},
	"plus1": func(i int) int { return i + 1 },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>{{if .Config.Name}}{{.Config.Name}}{{else}}Signage{{end}} Display</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.showing { color: green; font-weight: bold; }
.static { color: #06c; font-weight: bold; }
.idle, .stopped { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.current { font-weight: bold; }
</style>
</head>
<body>
<h1>{{if .Config.Name}}{{.Config.Name}}{{else}}Signage{{end}} Display</h1>

<h2>Rotation</h2>
<table>
<tr><th>Phase</th><td id="phase" class="{{if eq .Phase "SHOWING"}}showing{{else if eq .Phase "STATIC"}}static{{else if eq .Phase "IDLE"}}idle{{else}}stopped{{end}}">{{.Phase}}</td></tr>
<tr><th>Mode</th><td id="mode">{{orNone (printf "%s" .Mode)}}</td></tr>
{{if .Units}}<tr><th>Unit</th><td>{{plus1 .Unit}} of {{.Units}}</td></tr>{{end}}
{{if .IdleReason}}<tr><th>Idle reason</th><td>{{.IdleReason}}</td></tr>{{end}}
<tr><th>Sequence</th><td>{{range $i, $m := .Sequence}}{{if $i}} &rarr; {{end}}<span{{if eq $i $.SequenceIndex}} class="current"{{end}}>{{$m}}</span>{{end}}</td></tr>
{{range $m, $n := .CycleCount}}<tr><th>Cycles ({{$m}})</th><td>{{$n}}</td></tr>
{{end}}</table>

{{if .Frame}}<h2>Now Showing</h2>
<table>
<tr><th>Title</th><td>{{.Frame.Title}}</td></tr>
<tr><th>Headline</th><td id="headline">{{.Frame.Headline}}</td></tr>
<tr><th>Pass</th><td>{{.Frame.Cycle}}</td></tr>
<tr><th>Since</th><td>{{.Frame.At.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Content revision</th><td>{{.Frame.Revision}}</td></tr>
</table>{{end}}

<h2>Music</h2>
<table>
{{if .Track}}<tr><th>Playlist</th><td id="music">{{if .Track.Stopped}}stopped{{else}}{{.Track.Kind}}{{if .Track.Master}} (master){{end}}, {{len .Track.Files}} tracks{{end}}</td></tr>
{{else}}<tr><th>Playlist</th><td id="music">none</td></tr>{{end}}
</table>

<h2>Content</h2>
<table>
<tr><th>Server</th><td>{{.Config.ServerURL}}</td></tr>
<tr><th>Last refresh</th><td>{{if .LastRefresh.IsZero}}never{{else}}{{.LastRefresh.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
{{if .LastRefreshError}}<tr><th>Refresh error</th><td class="disconnected">{{.LastRefreshError}}</td></tr>{{end}}
<tr><th>Refresh every</th><td>{{ms .Config.RefreshEveryMs}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{orNone .Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Visits</th><td>{{.Counts.Visits}}</td></tr>
<tr><th>Renders</th><td>{{.Counts.Renders}}</td></tr>
<tr><th>Skips</th><td>{{.Counts.Skips}}</td></tr>
<tr><th>Idle</th><td>{{.Counts.Idles}}</td></tr>
<tr><th>Refreshes</th><td>{{.Counts.Refreshes}} ({{.Counts.RefreshErrors}} failed)</td></tr>
<tr><th>Button presses</th><td>{{.Counts.ButtonPresses}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{ms .Config.HeartbeatMs}}{{end}}</td></tr>
<tr><th>Button</th><td>{{if lt .Config.ButtonPin 0}}disabled{{else}}GPIO {{.Config.ButtonPin}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/now.json">Now</a> &middot; <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, struct {
		status.Snapshot
		Uptime time.Duration
	}{snap, snap.Uptime()})
}
