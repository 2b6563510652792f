// Package selection holds the selected group/document pair together with the
// per-group memory of the last selected document, and the transitions that
// move it.
package selection

import (
	"fmt"
	"maps"

	"github.com/ziadkadry99/apiview/internal/catalog"
)

// RouteParams are the ids taken from the URL path. Either may be empty.
type RouteParams struct {
	GroupID    string
	DocumentID string
}

// State is the current selection. Document is always a member of
// Group.Documents, and LastSelected[Group.ID] always equals Document.ID.
type State struct {
	Group    catalog.Group
	Document catalog.Document
	// LastSelected maps every group id to the document last chosen in it.
	LastSelected map[string]string
}

// Params returns the ids of the active pair.
func (s State) Params() RouteParams {
	return RouteParams{GroupID: s.Group.ID, DocumentID: s.Document.ID}
}

// Event is a selection event: GroupChange, DocumentChange or RouteReplay.
type Event interface {
	event()
}

// GroupChange switches group and restores the document last chosen in it.
type GroupChange struct {
	GroupID string
}

// DocumentChange selects a document within the current group.
type DocumentChange struct {
	DocumentID string
}

// RouteReplay mirrors an external navigation (back/forward) into the state.
type RouteReplay struct {
	GroupID    string
	DocumentID string
}

func (GroupChange) event()    {}
func (DocumentChange) event() {}
func (RouteReplay) event()    {}

func (e GroupChange) String() string    { return "group:" + e.GroupID }
func (e DocumentChange) String() string { return "document:" + e.DocumentID }
func (e RouteReplay) String() string    { return "route:" + e.GroupID + "/" + e.DocumentID }

// Init builds the initial state from the route params. Unknown ids fall back
// to the first group and its first document. The selected group remembers
// the resolved document; every other group starts at its first document.
func Init(idx catalog.Index, params RouteParams) State {
	g, d := idx.Resolve(params.GroupID, params.DocumentID)
	last := make(map[string]string, len(idx))
	for _, group := range idx {
		if group.ID == g.ID {
			last[group.ID] = d.ID
		} else {
			last[group.ID] = group.First().ID
		}
	}
	return State{Group: g, Document: d, LastSelected: last}
}

// Transition applies ev to s and returns the new state. s is never modified.
// Ids that are not in the index yield a *catalog.ResolutionError and s is
// returned unchanged.
func Transition(idx catalog.Index, s State, ev Event) (State, error) {
	switch ev := ev.(type) {
	case GroupChange:
		g, ok := idx.Group(ev.GroupID)
		if !ok {
			return s, &catalog.ResolutionError{GroupID: ev.GroupID}
		}
		docID, ok := s.LastSelected[g.ID]
		if !ok {
			docID = g.First().ID
		}
		g, d, err := idx.Lookup(g.ID, docID)
		if err != nil {
			return s, err
		}
		return State{Group: g, Document: d, LastSelected: s.LastSelected}, nil

	case DocumentChange:
		g, d, err := idx.Lookup(s.Group.ID, ev.DocumentID)
		if err != nil {
			return s, err
		}
		return State{Group: g, Document: d, LastSelected: remember(s.LastSelected, g.ID, d.ID)}, nil

	case RouteReplay:
		g, d, err := idx.Lookup(ev.GroupID, ev.DocumentID)
		if err != nil {
			return s, err
		}
		return State{Group: g, Document: d, LastSelected: remember(s.LastSelected, g.ID, d.ID)}, nil

	default:
		return s, fmt.Errorf("unknown selection event %T", ev)
	}
}

// remember returns last with groupID mapped to documentID. The map is copied
// when it changes; maps held by earlier states are never written.
func remember(last map[string]string, groupID, documentID string) map[string]string {
	if cur, ok := last[groupID]; ok && cur == documentID {
		return last
	}
	next := maps.Clone(last)
	if next == nil {
		next = make(map[string]string, 1)
	}
	next[groupID] = documentID
	return next
}
