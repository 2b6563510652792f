package viewer

import (
	"fmt"
	"html/template"
	"io"

	"github.com/ziadkadry99/apiview/internal/catalog"
	"github.com/ziadkadry99/apiview/internal/history"
	"github.com/ziadkadry99/apiview/internal/routesync"
	"github.com/ziadkadry99/apiview/internal/selection"
)

// SelectAction is where the header forms submit selections.
const SelectAction = "/api/select"

// Status of a shell page.
type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// Option is an entry of a header select.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Page is the data behind a rendered viewer or shell page.
type Page struct {
	SiteName     string
	Title        string
	Mode         Mode
	SpecURL      string
	DeepLinking  bool
	Groups       []Option
	Documents    []Option
	Links        []Link
	SelectAction string
	From         string
	// Socket is the websocket path the page script connects to. Empty
	// disables the script.
	Socket string

	// Shell only.
	Status  Status
	Message string
	Details []string
	Refresh int
}

// NewPage builds the page for a selection. d must not be a redirect.
func NewPage(siteName string, s selection.State, idx catalog.Index, loc history.Location, d Decision) Page {
	ui := routesync.UI(loc)
	p := Page{
		SiteName:     siteName,
		Title:        routesync.Title(s, ui),
		Mode:         d.Mode,
		SpecURL:      s.Document.URL,
		DeepLinking:  d.DeepLinking,
		Links:        NavLinks(s, ui),
		SelectAction: SelectAction,
		From:         loc.String(),
	}
	for _, g := range idx {
		p.Groups = append(p.Groups, Option{Value: g.ID, Label: g.Name, Selected: g.ID == s.Group.ID})
	}
	for _, doc := range s.Group.Documents {
		p.Documents = append(p.Documents, Option{Value: doc.ID, Label: doc.Name, Selected: doc.ID == s.Document.ID})
	}
	return p
}

// NewLoadingShell is shown while the index is being fetched. The page
// refreshes itself until the load resolves.
func NewLoadingShell(siteName string) Page {
	return Page{
		SiteName:     siteName,
		Title:        siteName,
		Links:        shellLinks(),
		SelectAction: SelectAction,
		Status:       StatusLoading,
		Message:      "Loading API documents...",
		Refresh:      2,
	}
}

// NewErrorShell shows a failed load. The diagnostic is shown verbatim: one
// line per validation violation, or the raw message for other kinds.
func NewErrorShell(siteName, kind, message string, violations []string) Page {
	details := violations
	if len(details) == 0 && message != "" {
		details = []string{message}
	}
	return Page{
		SiteName:     siteName,
		Title:        siteName,
		Links:        shellLinks(),
		SelectAction: SelectAction,
		Status:       StatusError,
		Message:      fmt.Sprintf("Failed to load API documents (%s error)", kind),
		Details:      details,
	}
}

// Renderer executes the page template.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the page template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("page").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes p as HTML to w.
func (r *Renderer) Render(w io.Writer, p Page) error {
	if err := r.tmpl.Execute(w, p); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	return nil
}
