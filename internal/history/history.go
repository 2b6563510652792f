// Package history models browser session history as an injectable
// navigation context.
package history

import (
	"net/url"
	"sync"
)

// Action is how the current location was reached.
type Action string

const (
	Push    Action = "PUSH"    // a new entry was added by the application
	Replace Action = "REPLACE" // the current entry was rewritten
	Pop     Action = "POP"     // back, forward or any navigation from outside the application
)

// Location is a path plus its raw query string (without the leading "?").
type Location struct {
	Path     string
	RawQuery string
}

// ParseLocation splits a request URI such as "/aws/s3?ui=redoc".
func ParseLocation(uri string) (Location, error) {
	u, err := url.ParseRequestURI(uri)
	if err != nil {
		return Location{}, err
	}
	return Location{Path: u.EscapedPath(), RawQuery: u.RawQuery}, nil
}

// FromURL returns the location of u.
func FromURL(u *url.URL) Location {
	return Location{Path: u.EscapedPath(), RawQuery: u.RawQuery}
}

// String returns the location as a request URI.
func (l Location) String() string {
	if l.RawQuery == "" {
		return l.Path
	}
	return l.Path + "?" + l.RawQuery
}

// Query returns the parsed query parameters.
func (l Location) Query() url.Values {
	q, _ := url.ParseQuery(l.RawQuery)
	return q
}

// Listener is told about every location change.
type Listener func(loc Location, action Action)

// History is the navigation context the synchronizer works against.
type History interface {
	Location() Location
	Push(Location)
	Replace(Location)
	Listen(Listener) (unlisten func())
}

// Memory is an in-memory History with a browser-like entry stack.
type Memory struct {
	mu        sync.Mutex
	entries   []Location
	index     int
	listeners map[int]Listener
	nextID    int
}

var _ History = (*Memory)(nil)

// NewMemory creates a history with a single entry.
func NewMemory(initial Location) *Memory {
	return &Memory{
		entries:   []Location{initial},
		listeners: make(map[int]Listener),
	}
}

// Location returns the current entry.
func (m *Memory) Location() Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index]
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Index returns the position of the current entry.
func (m *Memory) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Push adds a new entry after the current one, discarding forward entries.
func (m *Memory) Push(loc Location) {
	m.mu.Lock()
	m.entries = append(m.entries[:m.index+1], loc)
	m.index++
	m.mu.Unlock()
	m.notify(loc, Push)
}

// Replace rewrites the current entry.
func (m *Memory) Replace(loc Location) {
	m.mu.Lock()
	m.entries[m.index] = loc
	m.mu.Unlock()
	m.notify(loc, Replace)
}

// Go moves n entries back (negative) or forward (positive). Moves past
// either end are ignored, as in a browser.
func (m *Memory) Go(n int) bool {
	m.mu.Lock()
	target := m.index + n
	if n == 0 || target < 0 || target >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	m.index = target
	loc := m.entries[target]
	m.mu.Unlock()
	m.notify(loc, Pop)
	return true
}

// Back is Go(-1).
func (m *Memory) Back() bool { return m.Go(-1) }

// Forward is Go(1).
func (m *Memory) Forward() bool { return m.Go(1) }

// Arrive records a navigation the application did not initiate, such as a
// page load after the user pressed back or typed a URL. If loc is the
// current, previous or next entry the history moves there; otherwise it is
// pushed as a new entry. Listeners always see Pop.
func (m *Memory) Arrive(loc Location) {
	m.mu.Lock()
	switch {
	case m.entries[m.index] == loc:
	case m.index > 0 && m.entries[m.index-1] == loc:
		m.index--
	case m.index+1 < len(m.entries) && m.entries[m.index+1] == loc:
		m.index++
	default:
		m.entries = append(m.entries[:m.index+1], loc)
		m.index++
	}
	m.mu.Unlock()
	m.notify(loc, Pop)
}

// Listen registers l and returns a function that removes it.
func (m *Memory) Listen(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Memory) notify(loc Location, action Action) {
	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	// Registration order.
	for id := 0; id < m.nextID; id++ {
		if l, ok := m.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(loc, action)
	}
}
