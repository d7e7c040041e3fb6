package http

import (
	"html/template"
	"net/http"

	"github.com/redmonkez12/go-csp/internal/csp"
	"github.com/redmonkez12/go-csp/internal/logging"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>CSP demo</title>
</head>
<body>
  <p id="status">inline script blocked</p>
  <script nonce="{{.Nonce}}">
    document.getElementById("status").textContent = "inline script allowed by nonce";
  </script>
  <script>
    document.getElementById("status").textContent = "inline script without nonce ran";
  </script>
</body>
</html>
`))

type indexData struct {
	Nonce string
}

// handleIndex renders a page whose inline scripts exercise the nonce.
func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, indexData{Nonce: csp.NonceFromContext(r.Context())}); err != nil {
		logging.FromContext(r.Context()).Error("failed to render index", "error", err.Error())
	}
}
