package server

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/ziadkadry99/apiview/internal/catalog"
	"github.com/ziadkadry99/apiview/internal/loader"
)

// indexResponse is the load state returned by GET /api/index.
type indexResponse struct {
	Status     string        `json:"status"`
	Source     string        `json:"source"`
	Index      catalog.Index `json:"index,omitempty"`
	Groups     int           `json:"groups,omitempty"`
	Documents  int           `json:"documents,omitempty"`
	Kind       loader.Kind   `json:"kind,omitempty"`
	Message    string        `json:"message,omitempty"`
	Violations []string      `json:"violations,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	resp := indexResponse{Status: "loading"}
	if l := s.Loader(); l != nil {
		resp.Source = l.Source()
	}
	switch res := s.result().(type) {
	case loader.Done:
		resp.Status = "done"
		resp.Index = res.Index
		resp.Groups = len(res.Index)
		resp.Documents = res.Index.Count()
	case loader.Failed:
		resp.Status = "error"
		resp.Kind = res.Err.Kind
		resp.Message = res.Err.Message
		resp.Violations = res.Err.Violations
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.Reload()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
}

var overviewTemplate = template.Must(template.New("overview").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; color: #212529; }
    table { border-collapse: collapse; width: 100%; }
    th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid #dee2e6; }
    a { color: #228be6; }
  </style>
</head>
<body>
{{.Body}}
</body>
</html>`))

// handleOverview renders the catalog as a markdown table.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.readyIndex(w)
	if !ok {
		return
	}
	body, err := catalog.RenderOverview(idx)
	if err != nil {
		s.logger.Error("overview render failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	overviewTemplate.Execute(w, struct {
		Title string
		Body  template.HTML
	}{Title: s.cfg.SiteName, Body: body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
