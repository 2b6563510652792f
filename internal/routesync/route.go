package routesync

import (
	"net/url"
	"strings"

	"github.com/ziadkadry99/apiview/internal/catalog"
	"github.com/ziadkadry99/apiview/internal/history"
	"github.com/ziadkadry99/apiview/internal/selection"
)

// UI values understood by the viewer.
const (
	UIRedoc   = "redoc"
	UISwagger = "swagger"
)

// ParseRoute reads /{groupId}/{documentId...}. Everything after the group
// segment is the document id, slashes included, so "/aws/s3/2006-03-01"
// yields group "aws" and document "s3/2006-03-01".
func ParseRoute(path string) selection.RouteParams {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return selection.RouteParams{}
	}
	group, doc, _ := strings.Cut(path, "/")
	return selection.RouteParams{GroupID: unescape(group), DocumentID: unescape(doc)}
}

// BuildPath is the inverse of ParseRoute.
func BuildPath(groupID, documentID string) string {
	return catalog.ViewerPath(groupID, documentID)
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

// UI returns the ui query parameter of loc, defaulting to redoc when absent.
// Unknown values are returned as is; normalizing them is the viewer's job.
func UI(loc history.Location) string {
	q := loc.Query()
	if !q.Has("ui") {
		return UIRedoc
	}
	return q.Get("ui")
}
