// Package routesync keeps a selection store and a navigation history in
// lockstep: interactive selections push new history entries, and history
// pops (back, forward, page loads) are replayed into the store.
package routesync

import (
	"fmt"
	"log/slog"

	"github.com/ziadkadry99/apiview/internal/catalog"
	"github.com/ziadkadry99/apiview/internal/history"
	"github.com/ziadkadry99/apiview/internal/selection"
)

// Title formats the page title for a selection and ui.
func Title(s selection.State, ui string) string {
	return fmt.Sprintf("%s - %s : %s", s.Group.Name, s.Document.Name, ui)
}

// Synchronizer binds one selection store to one history. It is not safe for
// concurrent use.
type Synchronizer struct {
	store    *selection.Store
	hist     history.History
	logger   *slog.Logger
	title    string
	unlisten func()

	onChange []func(selection.State)
	onTitle  []func(string)
}

// New mounts a synchronizer: the store is initialized from the current
// location and the synchronizer starts listening to the history.
func New(idx catalog.Index, h history.History, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	loc := h.Location()
	s := &Synchronizer{
		store:  selection.NewStore(idx, ParseRoute(loc.Path)),
		hist:   h,
		logger: logger,
	}
	s.title = Title(s.store.State(), UI(loc))
	s.store.Observe(func(_, next selection.State) {
		for _, fn := range s.onChange {
			fn(next)
		}
		s.refreshTitle()
	})
	s.unlisten = h.Listen(s.handleLocation)
	return s
}

// State returns the current selection.
func (s *Synchronizer) State() selection.State { return s.store.State() }

// Index returns the index the selection resolves against.
func (s *Synchronizer) Index() catalog.Index { return s.store.Index() }

// Location returns the current history location.
func (s *Synchronizer) Location() history.Location { return s.hist.Location() }

// Title returns the current page title.
func (s *Synchronizer) Title() string { return s.title }

// OnChange registers fn to be called with every new selection.
func (s *Synchronizer) OnChange(fn func(selection.State)) {
	s.onChange = append(s.onChange, fn)
}

// OnTitle registers fn to be called whenever the title changes.
func (s *Synchronizer) OnTitle(fn func(string)) {
	s.onTitle = append(s.onTitle, fn)
}

// Select applies an interactive GroupChange or DocumentChange and pushes
// the resulting /{group}/{document} path, keeping the current query string.
// Unknown ids return a *catalog.ResolutionError and push nothing.
func (s *Synchronizer) Select(ev selection.Event) (selection.State, error) {
	switch ev.(type) {
	case selection.GroupChange, selection.DocumentChange:
	default:
		return s.store.State(), fmt.Errorf("%T is not an interactive selection", ev)
	}

	next, err := s.store.Dispatch(ev)
	if err != nil {
		return next, err
	}

	cur := s.hist.Location()
	loc := history.Location{
		Path:     BuildPath(next.Group.ID, next.Document.ID),
		RawQuery: cur.RawQuery,
	}
	if loc != cur {
		s.hist.Push(loc)
	}
	return next, nil
}

// Close stops listening to the history.
func (s *Synchronizer) Close() {
	if s.unlisten != nil {
		s.unlisten()
		s.unlisten = nil
	}
}

func (s *Synchronizer) handleLocation(loc history.Location, action history.Action) {
	if action == history.Pop {
		s.replay(loc)
	}
	// The ui parameter can change on any navigation.
	s.refreshTitle()
}

// replay mirrors a popped location into the store. Ids from the URL are
// untrusted and fall back to the index defaults.
func (s *Synchronizer) replay(loc history.Location) {
	params := ParseRoute(loc.Path)
	if params.DocumentID == "" {
		// "/{group}" reopens whatever was last chosen in that group.
		params.DocumentID = s.store.State().LastSelected[params.GroupID]
	}
	g, d := s.store.Index().Resolve(params.GroupID, params.DocumentID)
	if cur := s.store.State().Params(); cur.GroupID == g.ID && cur.DocumentID == d.ID {
		return
	}
	if _, err := s.store.Dispatch(selection.RouteReplay{GroupID: g.ID, DocumentID: d.ID}); err != nil {
		s.logger.Error("route replay failed", "location", loc.String(), "error", err)
		return
	}
	s.logger.Debug("route replayed", "location", loc.String(), "group", g.ID, "document", d.ID)
}

func (s *Synchronizer) refreshTitle() {
	title := Title(s.store.State(), UI(s.hist.Location()))
	if title == s.title {
		return
	}
	s.title = title
	for _, fn := range s.onTitle {
		fn(title)
	}
}
