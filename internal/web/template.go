package web

import (
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/weighbridge/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": humanDuration,
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}).Parse(indexHTML))

var durationUnits = []struct {
	suffix string
	size   time.Duration
}{
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// humanDuration renders d as "1d 2h 3m 4s", leaving out leading zero units.
func humanDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	var parts []string
	for _, u := range durationUnits {
		n := d / u.size
		d -= n * u.size
		if n == 0 && len(parts) == 0 && u.size != time.Second {
			continue
		}
		parts = append(parts, strconv.FormatInt(int64(n), 10)+u.suffix)
	}
	return strings.Join(parts, " ")
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Weighbridge</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.big { font-size: 1.6em; font-weight: bold; }
.warn { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Weighbridge<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Display</h2>
<table>
<tr><th>Mode</th><td id="mode">{{if .Mode}}{{.Mode}}{{else}}UNKNOWN{{end}}</td></tr>
<tr><th>Showing</th><td id="primary" class="big">{{orDash .Primary}}</td></tr>
<tr><th>Status</th><td id="status-text" class="warn">{{.StatusText}}</td></tr>
</table>

<h2>Consumption</h2>
<table>
<tr><th>Weight</th><td id="weight">{{.Weight}}g</td></tr>
<tr><th>Quantity</th><td id="quantity">{{.Pipeline.Quantity}}ml</td></tr>
<tr><th>Last sent</th><td id="last-sent">{{.Pipeline.LastSent}}ml</td></tr>
<tr><th>Total</th><td id="total">{{.Pipeline.Total}}ml</td></tr>
<tr><th>Phase</th><td id="phase">{{.Pipeline.Phase}}</td></tr>
{{if .LastEvent}}<tr><th>Last event</th><td>{{.LastEvent.Consumed}}ml at {{.LastEvent.At.UTC.Format "2006-01-02T15:04:05Z"}}{{if not .LastEvent.Delivered}} (not sent){{end}}</td></tr>{{end}}
</table>
<p><a href="/api/consumption">History</a></p>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Delivered / gave up</th><td>{{.Publish.Delivered}} / {{.Publish.GaveUp}}</td></tr>
<tr><th>Backlog</th><td>{{.Publish.Backlog}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Stabilization</th><td>{{.Config.StabilizationMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function set(id, text) {
    var el = document.getElementById(id);
    if (el) { el.textContent = text; }
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
    ws.onclose = function() {
      dot.className = "live-dot err"; dot.title = "offline";
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).data.status;
        set("mode", s.mode);
        set("primary", s.display.primary || "-");
        set("status-text", s.display.status);
        set("weight", s.scale.weight_g + "g");
        set("quantity", s.scale.quantity_ml + "ml");
        set("last-sent", s.scale.last_sent_ml + "ml");
        set("total", s.scale.total_ml + "ml");
        set("phase", s.scale.phase);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, snap)
}
