package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/footswitch/internal/status"
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
	"ms": func(d time.Duration) int64 { return d.Milliseconds() },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Footswitch</title>
<style>
body { font-family: monospace; max-width: 700px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.connected { color: green; }
.disconnected { color: red; }
.flash { background: #ffe680; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Footswitch{{if .Live}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Buttons</h2>
<table>
<tr><th>Name</th><th>Source</th><th>Single</th><th>Double</th><th>Long</th><th>Last</th></tr>
{{range .Buttons}}<tr id="btn-{{.Name}}">
<td>{{.Name}}{{if not .Momentary}} (toggle){{end}}</td>
<td>{{.Source}}</td>
<td class="single">{{.Counts.SinglePress}}</td>
<td class="double">{{.Counts.DoublePress}}</td>
<td class="long">{{.Counts.LongPress}}</td>
<td class="last">{{if .Last}}{{.Last.Kind}} at {{.Last.Timestamp.UTC.Format "15:04:05"}}{{else}}-{{end}}</td>
</tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Gestures</th><td>{{.Counts.Total}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq (ms .Config.Heartbeat) 0}}disabled{{else}}{{ms .Config.Heartbeat}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
{{range .Buttons}}<tr><th>{{.Name}} windows</th><td>long {{ms .LongPress}}ms, double {{ms .DoublePress}}ms</td></tr>
{{end}}</table>

<p><a href="/index.json">JSON</a></p>
{{if .Live}}
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var cells = { SINGLE_PRESS: "single", DOUBLE_PRESS: "double", LONG_PRESS: "long" };

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function onGesture(ts, g) {
    var row = document.getElementById("btn-" + g.button);
    if (!row) return;
    var cell = row.querySelector("." + cells[g.event]);
    if (cell) cell.textContent = String(parseInt(cell.textContent, 10) + 1);
    row.querySelector(".last").textContent = g.event + " at " + new Date(ts).toISOString().substr(11, 8);
    row.className = "flash";
    setTimeout(function() { row.className = ""; }, 300);
  }

  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(e) {
      try {
        var msg = JSON.parse(e.data);
        if (msg.type === "gesture") onGesture(msg.ts, msg.data);
      } catch (err) {}
    };
  }
  connect();
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, live bool) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Live   bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Live:     live,
	}
	return indexTmpl.Execute(w, data)
}
