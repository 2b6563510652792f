package server

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/ziadkadry99/apiview/internal/catalog"
	"github.com/ziadkadry99/apiview/internal/history"
	"github.com/ziadkadry99/apiview/internal/loader"
	"github.com/ziadkadry99/apiview/internal/selection"
	"github.com/ziadkadry99/apiview/internal/session"
	"github.com/ziadkadry99/apiview/internal/viewer"
)

// socketPath is where viewer pages open their session socket.
const socketPath = "/ws/session"

// handleViewer serves /, /{group} and /{group}/{document...}. A page load is
// an external navigation: the session history arrives at the URL and the
// selection follows it.
func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.readyIndex(w)
	if !ok {
		return
	}

	loc := history.FromURL(r.URL)
	sess := s.arrive(w, r, idx, loc)

	d := viewer.Dispatch(loc)
	if d.Mode == viewer.ModeRedirect {
		// The redirect replaces the entry, like the browser does.
		sess.Replace(d.Target)
		http.Redirect(w, r, d.Target.String(), http.StatusFound)
		return
	}

	snap := sess.Snapshot()
	page := viewer.NewPage(s.cfg.SiteName, snap.State, idx, snap.Location, d)
	page.Socket = socketPath
	s.render(w, http.StatusOK, page)
}

// handleSelect applies an interactive selection submitted by the header
// forms and redirects to the pushed location.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.readyIndex(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	ev, err := parseEvent(q.Get("event"), q.Get("value"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	from, err := parseFrom(q.Get("from"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := s.session(w, r, idx, from)
	snap, err := sess.Select(from, ev)
	if err != nil {
		var re *catalog.ResolutionError
		if errors.As(err, &re) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, snap.Location.String(), http.StatusSeeOther)
}

// parseEvent maps a form or socket selection to a selection event.
func parseEvent(event, value string) (selection.Event, error) {
	if value == "" {
		return nil, errors.New("value is required")
	}
	switch event {
	case "group":
		return selection.GroupChange{GroupID: value}, nil
	case "document":
		return selection.DocumentChange{DocumentID: value}, nil
	default:
		return nil, errors.New("event must be group or document")
	}
}

// parseFrom reads the location a selection was made on. Empty means the
// session's current location.
func parseFrom(raw string) (history.Location, error) {
	if raw == "" {
		return history.Location{}, nil
	}
	if !strings.HasPrefix(raw, "/") {
		return history.Location{}, errors.New("from must be a path")
	}
	loc, err := history.ParseLocation(raw)
	if err != nil {
		return history.Location{}, errors.New("invalid from location")
	}
	return loc, nil
}

// readyIndex returns the loaded index, or writes the loading or error shell.
func (s *Server) readyIndex(w http.ResponseWriter) (catalog.Index, bool) {
	switch res := s.result().(type) {
	case loader.Done:
		return res.Index, true
	case loader.Failed:
		s.render(w, http.StatusBadGateway,
			viewer.NewErrorShell(s.cfg.SiteName, string(res.Err.Kind), res.Err.Message, res.Err.Violations))
	default:
		w.Header().Set("Retry-After", "2")
		s.render(w, http.StatusServiceUnavailable, viewer.NewLoadingShell(s.cfg.SiteName))
	}
	return nil, false
}

// session returns the caller's session, creating one at initial when the
// cookie is missing or stale.
func (s *Server) session(w http.ResponseWriter, r *http.Request, idx catalog.Index, initial history.Location) *session.Session {
	if sess, ok := s.sessions.Get(session.IDFromRequest(r)); ok {
		return sess
	}
	if initial.Path == "" {
		initial = history.Location{Path: "/"}
	}
	sess := s.sessions.Create(idx, initial)
	session.SetCookie(w, sess.ID)
	return sess
}

// arrive moves the caller's session to loc. A new session starts there.
func (s *Server) arrive(w http.ResponseWriter, r *http.Request, idx catalog.Index, loc history.Location) *session.Session {
	if sess, ok := s.sessions.Get(session.IDFromRequest(r)); ok {
		sess.Arrive(loc)
		return sess
	}
	sess := s.sessions.Create(idx, loc)
	session.SetCookie(w, sess.ID)
	return sess
}

func (s *Server) render(w http.ResponseWriter, status int, page viewer.Page) {
	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, page); err != nil {
		s.logger.Error("render failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
