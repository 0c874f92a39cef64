package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/battery-controller/internal/status"
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"onOff": status.OnOff,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Battery Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
form { display: inline; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Battery Controller</h1>

<h2>Outputs</h2>
<table>
{{range .Outputs}}<tr><th>{{.Name}} (GPIO{{.Pin}}, {{.Polarity}})</th><td class="{{if .On}}on{{else}}off{{end}}">{{onOff .On}}</td>{{if $.Control}}<td><form method="post" action="/outputs/{{.Name}}/on"><button>on</button></form> <form method="post" action="/outputs/{{.Name}}/off"><button>off</button></form></td>{{end}}</tr>
{{else}}<tr><td>none</td></tr>
{{end}}</table>

<h2>Buttons</h2>
<table>
{{range .Buttons}}<tr><th>slot {{.Slot}} (GPIO{{.Pin}}, {{.Polarity}})</th><td class="{{if eq (printf "%s" .State) "PRESSED"}}on{{else if eq (printf "%s" .State) "RELEASED"}}off{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .State)}}{{if .Latched}} (confirmed){{end}}</td></tr>
{{else}}<tr><td>none registered</td></tr>
{{end}}</table>

{{if .Battery}}<h2>Battery</h2>
<table>
<tr><th>ADC raw</th><td>{{.Battery}}</td></tr>
</table>
{{end}}
<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.Redis}}<tr><th>Redis</th><td>{{.Config.Redis}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Button pressed</th><td>{{.Counts.Pressed}}</td></tr>
<tr><th>Button released</th><td>{{.Counts.Released}}</td></tr>
<tr><th>Output on</th><td>{{.Counts.OutputOn}}</td></tr>
<tr><th>Output off</th><td>{{.Counts.OutputOff}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>GPIO backend</th><td>{{.Config.Backend}}</td></tr>
<tr><th>Scan</th><td>{{.Config.ScanMs}}ms, press {{.Config.PressScans}} / release {{.Config.ReleaseScans}} scans</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, control bool) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Control bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Control:  control,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Warnf("web: render index: %v", err)
	}
}
