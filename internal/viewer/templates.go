package viewer

// pageTemplate renders both the viewer page and the loading/error shell.
// The shell uses the same header markup so the layout does not shift once
// the index is loaded.
const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  {{- if .Refresh}}
  <meta http-equiv="refresh" content="{{.Refresh}}">
  {{- end}}
  <style>` + cssContent + `</style>
  {{- if eq .Mode "swagger"}}
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
  {{- end}}
</head>
<body>
  <header>
    <span class="site-name">{{.SiteName}}</span>
    <div class="doc-selectors">
      <form method="get" action="{{.SelectAction}}">
        <input type="hidden" name="event" value="group">
        <input type="hidden" name="from" value="{{.From}}">
        <select name="value" data-event="group" onchange="apiviewSelect(this)"{{if not .Groups}} disabled{{end}}>
          {{- range .Groups}}
          <option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>
          {{- end}}
        </select>
      </form>
      <form method="get" action="{{.SelectAction}}">
        <input type="hidden" name="event" value="document">
        <input type="hidden" name="from" value="{{.From}}">
        <select name="value" data-event="document" onchange="apiviewSelect(this)"{{if not .Documents}} disabled{{end}}>
          {{- range .Documents}}
          <option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>
          {{- end}}
        </select>
      </form>
    </div>
    <nav class="ui-navigator">
      <ul>
        {{- range .Links}}
        <li><a{{if .Href}} href="{{.Href}}"{{end}}{{if .Active}} class="selected-ui"{{end}}>{{.Label}}</a></li>
        {{- end}}
      </ul>
    </nav>
  </header>
  {{- if eq .Mode "redoc"}}
  <div class="ui-container redoc">
    <redoc spec-url="{{.SpecURL}}"></redoc>
  </div>
  <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
  {{- else if eq .Mode "swagger"}}
  <div class="ui-container swagger">
    <div id="swagger-ui"></div>
  </div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: {{.SpecURL}}, dom_id: "#swagger-ui", deepLinking: {{.DeepLinking}}});
  </script>
  {{- else}}
  <div class="ui-container placeholder {{.Status}}">
    <p class="message">{{.Message}}</p>
    {{- if .Details}}
    <pre class="details">{{range .Details}}{{.}}
{{end}}</pre>
    {{- end}}
  </div>
  {{- end}}
  {{- if .Socket}}
  <script>` + scriptContent + `</script>
  {{- end}}
</body>
</html>`

const cssContent = `
* { box-sizing: border-box; }
body { margin: 0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; }
header { display: flex; align-items: center; gap: 1rem; height: 3.5rem; padding: 0 1rem; border-bottom: 1px solid #dee2e6; background: #f8f9fa; }
.site-name { font-weight: 600; }
.doc-selectors { display: flex; gap: 0.5rem; }
.doc-selectors form { margin: 0; }
.doc-selectors select { min-width: 10rem; padding: 0.25rem; }
.ui-navigator { margin-left: auto; }
.ui-navigator ul { display: flex; gap: 1rem; list-style: none; margin: 0; padding: 0; }
.ui-navigator a { color: #495057; text-decoration: none; }
.ui-navigator a[href]:hover { color: #228be6; }
.ui-navigator a.selected-ui { color: #228be6; font-weight: 600; }
.ui-container { height: calc(100vh - 3.5rem); overflow: auto; }
.placeholder { padding: 2rem; color: #495057; }
.placeholder.error .message { color: #c92a2a; }
.placeholder .details { white-space: pre-wrap; background: #f1f3f5; padding: 1rem; }
`

// scriptContent sends selections over the session socket when it is open
// and falls back to submitting the form.
const scriptContent = `
var apiviewSocket = null;
(function () {
  if (!window.WebSocket) { return; }
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + {{.Socket}});
  ws.onopen = function () { apiviewSocket = ws; };
  ws.onclose = function () { apiviewSocket = null; };
  ws.onmessage = function (e) {
    var msg = JSON.parse(e.data);
    if (msg.type === "state") {
      document.title = msg.title;
      if (msg.location !== location.pathname + location.search) {
        location.assign(msg.location);
      }
    } else if (msg.type === "error") {
      location.reload();
    }
  };
  window.addEventListener("pageshow", function (e) {
    if (e.persisted && apiviewSocket) {
      apiviewSocket.send(JSON.stringify({type: "route", path: location.pathname, query: location.search.replace(/^\?/, "")}));
    }
  });
})();
function apiviewSelect(el) {
  if (apiviewSocket) {
    apiviewSocket.send(JSON.stringify({type: "select", event: el.dataset.event, value: el.value, from: location.pathname + location.search}));
    return;
  }
  el.form.submit();
}
`
