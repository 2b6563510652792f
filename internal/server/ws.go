package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/apiview/internal/history"
	"github.com/ziadkadry99/apiview/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// socketRequest is the incoming WebSocket message format.
type socketRequest struct {
	Type  string `json:"type"`  // "select", "route", "back" or "forward"
	Event string `json:"event"` // select: "group" or "document"
	Value string `json:"value"`
	From  string `json:"from"`  // select: location of the page that sent it
	Path  string `json:"path"`  // route
	Query string `json:"query"` // route
}

// socketResponse is the outgoing WebSocket message format.
type socketResponse struct {
	Type     string `json:"type"` // "state" or "error"
	Session  string `json:"session,omitempty"`
	Action   string `json:"action,omitempty"`
	Location string `json:"location,omitempty"`
	Title    string `json:"title,omitempty"`
	Group    string `json:"group,omitempty"`
	Document string `json:"document,omitempty"`
	URL      string `json:"url,omitempty"`
	Message  string `json:"message,omitempty"`
}

// handleWebSocket is an event channel for one session. Every message is
// answered with the resulting state or an error.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(session.IDFromRequest(r))
	if !ok {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.send(conn, stateMessage(sess.Snapshot()))
	for {
		var req socketRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "session", sess.ID, "error", err)
			}
			return
		}
		s.send(conn, s.handleSocketRequest(sess, req))
	}
}

func (s *Server) handleSocketRequest(sess *session.Session, req socketRequest) socketResponse {
	switch req.Type {
	case "select":
		ev, err := parseEvent(req.Event, req.Value)
		if err != nil {
			return errorMessage(err.Error())
		}
		from, err := parseFrom(req.From)
		if err != nil {
			return errorMessage(err.Error())
		}
		snap, err := sess.Select(from, ev)
		if err != nil {
			return errorMessage(err.Error())
		}
		return stateMessage(snap)
	case "route":
		if req.Path == "" || req.Path[0] != '/' {
			return errorMessage("path must start with /")
		}
		return stateMessage(sess.Arrive(history.Location{Path: req.Path, RawQuery: req.Query}))
	case "back":
		snap, _ := sess.Back()
		return stateMessage(snap)
	case "forward":
		snap, _ := sess.Forward()
		return stateMessage(snap)
	default:
		return errorMessage("unknown message type: " + req.Type)
	}
}

func stateMessage(snap session.Snapshot) socketResponse {
	return socketResponse{
		Type:     "state",
		Session:  snap.ID,
		Action:   string(snap.Action),
		Location: snap.Location.String(),
		Title:    snap.Title,
		Group:    snap.State.Group.ID,
		Document: snap.State.Document.ID,
		URL:      snap.State.Document.URL,
	}
}

func errorMessage(msg string) socketResponse {
	return socketResponse{Type: "error", Message: msg}
}

func (s *Server) send(conn *websocket.Conn, resp socketResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
	}
}
