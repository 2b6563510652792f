// Package viewer decides which rendering widget shows the selected document
// and renders the viewer page around it.
package viewer

import (
	"net/url"
	"strings"

	"github.com/ziadkadry99/apiview/internal/history"
	"github.com/ziadkadry99/apiview/internal/routesync"
	"github.com/ziadkadry99/apiview/internal/selection"
)

// Mode is the outcome of dispatching a location.
type Mode string

const (
	ModeRedoc    Mode = "redoc"
	ModeSwagger  Mode = "swagger"
	ModeRedirect Mode = "redirect"
)

// Decision is what to do for a location.
type Decision struct {
	Mode Mode
	// DeepLinking enables Swagger UI deep links. It is read from the
	// deepLinking flag the navigation link put in the query.
	DeepLinking bool
	// Target is set for ModeRedirect. Redirects replace the current entry.
	Target history.Location
}

// Dispatch picks the widget for loc's ui parameter. Any value other than
// redoc or swagger, including none, redirects to the same location with
// ui=redoc.
func Dispatch(loc history.Location) Decision {
	q := loc.Query()
	switch q.Get("ui") {
	case routesync.UIRedoc:
		return Decision{Mode: ModeRedoc}
	case routesync.UISwagger:
		return Decision{Mode: ModeSwagger, DeepLinking: q.Get("deepLinking") == "true"}
	default:
		return Decision{
			Mode:   ModeRedirect,
			Target: history.Location{Path: loc.Path, RawQuery: ForceUI(loc.RawQuery, routesync.UIRedoc)},
		}
	}
}

// ForceUI returns rawQuery with every ui parameter removed and ui=value put
// first. The other parameters keep their order and encoding.
func ForceUI(rawQuery, value string) string {
	parts := []string{"ui=" + url.QueryEscape(value)}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil && k == "ui" {
			continue
		}
		parts = append(parts, pair)
	}
	return strings.Join(parts, "&")
}

// Link is an entry of the ui navigation. An empty Href renders an inert link.
type Link struct {
	Label  string
	Href   string
	Active bool
}

// NavLinks returns the Redoc and Swagger UI links for the selection. The
// Swagger link carries deepLinking=true.
func NavLinks(s selection.State, ui string) []Link {
	path := routesync.BuildPath(s.Group.ID, s.Document.ID)
	return []Link{
		{Label: "Redoc", Href: path + "?ui=redoc", Active: ui == routesync.UIRedoc},
		{Label: "Swagger UI", Href: path + "?ui=swagger&deepLinking=true", Active: ui == routesync.UISwagger},
	}
}

// shellLinks are NavLinks without targets, for pages with no selection.
func shellLinks() []Link {
	return []Link{{Label: "Redoc"}, {Label: "Swagger UI"}}
}
