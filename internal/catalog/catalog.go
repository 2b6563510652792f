// Package catalog defines the document index: groups of viewable API
// documents and the lookups the selection and routing layers resolve against.
package catalog

import (
	"fmt"
	"net/url"
	"strings"
)

// ViewerPath returns the viewer path of a document, /{group}/{document}.
// Each segment of the document id is escaped on its own so the slashes
// survive as separators.
func ViewerPath(groupID, documentID string) string {
	segments := strings.Split(documentID, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/" + url.PathEscape(groupID) + "/" + strings.Join(segments, "/")
}

// Document is a single renderable specification.
type Document struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Group is a named bucket of related documents, e.g. an API family.
type Group struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Documents   []Document `json:"documents" yaml:"documents"`
}

// Index is the ordered catalog of groups. A valid index has at least one
// group and every group has at least one document.
type Index []Group

// ResolutionError reports a group or document id that is not in the index.
type ResolutionError struct {
	GroupID    string
	DocumentID string // empty when the group itself is unknown
}

func (e *ResolutionError) Error() string {
	if e.DocumentID == "" {
		return fmt.Sprintf("unknown group %q", e.GroupID)
	}
	return fmt.Sprintf("unknown document %q in group %q", e.DocumentID, e.GroupID)
}

// Group returns the group with the given id.
func (idx Index) Group(id string) (Group, bool) {
	for _, g := range idx {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// Document returns the document with the given id within the group.
func (g Group) Document(id string) (Document, bool) {
	for _, d := range g.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}

// First returns the first document of the group.
func (g Group) First() Document {
	return g.Documents[0]
}

// Lookup resolves a group/document pair strictly.
func (idx Index) Lookup(groupID, documentID string) (Group, Document, error) {
	g, ok := idx.Group(groupID)
	if !ok {
		return Group{}, Document{}, &ResolutionError{GroupID: groupID}
	}
	d, ok := g.Document(documentID)
	if !ok {
		return Group{}, Document{}, &ResolutionError{GroupID: groupID, DocumentID: documentID}
	}
	return g, d, nil
}

// Resolve resolves a group/document pair leniently, for untrusted input such
// as URL path segments. An unknown group falls back to the first group and an
// unknown document to the first document of the resolved group.
func (idx Index) Resolve(groupID, documentID string) (Group, Document) {
	g, ok := idx.Group(groupID)
	if !ok {
		g = idx[0]
	}
	d, ok := g.Document(documentID)
	if !ok {
		d = g.First()
	}
	return g, d
}

// Validate checks the invariants the JSON schema cannot express and returns
// one message per violation.
func (idx Index) Validate() []string {
	var violations []string
	if len(idx) == 0 {
		violations = append(violations, "index must contain at least one group")
	}

	groups := make(map[string]bool, len(idx))
	for i, g := range idx {
		if groups[g.ID] {
			violations = append(violations, fmt.Sprintf("/%d/id: duplicate group id %q", i, g.ID))
		}
		groups[g.ID] = true

		if len(g.Documents) == 0 {
			violations = append(violations, fmt.Sprintf("/%d/documents: group %q has no documents", i, g.ID))
		}
		docs := make(map[string]bool, len(g.Documents))
		for j, d := range g.Documents {
			if docs[d.ID] {
				violations = append(violations, fmt.Sprintf("/%d/documents/%d/id: duplicate document id %q in group %q", i, j, d.ID, g.ID))
			}
			docs[d.ID] = true
		}
	}
	return violations
}

// Count returns the total number of documents across all groups.
func (idx Index) Count() int {
	n := 0
	for _, g := range idx {
		n += len(g.Documents)
	}
	return n
}
