package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/apiview/internal/db"
	"github.com/ziadkadry99/apiview/internal/journal"
	"github.com/ziadkadry99/apiview/internal/loader"
	"github.com/ziadkadry99/apiview/internal/session"
)

const indexJSON = `[
  {"id": "petstore", "name": "Petstore", "documents": [
    {"id": "v2", "name": "v2", "url": "https://petstore.swagger.io/v2/swagger.json"}
  ]},
  {"id": "aws", "name": "AWS", "documents": [
    {"id": "s3", "name": "s3", "url": "https://example.com/s3.json"},
    {"id": "ec2", "name": "ec2", "url": "https://example.com/ec2.json"}
  ]}
]`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func writeIndex(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "documents.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newServer mounts a server on source and waits for the load to resolve.
func newServer(t *testing.T, source string, journalStore *journal.Store) *Server {
	t.Helper()
	logger := quietLogger()
	newLoader := func() *loader.Loader {
		return loader.New(source, loader.WithLogger(logger))
	}
	opts := []session.Option{session.WithLogger(logger)}
	if journalStore != nil {
		opts = append(opts, session.WithJournal(journalStore))
	}
	srv, err := New(Config{SiteName: "Test APIs"}, newLoader, session.NewManager(opts...), journalStore, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.Mount(t.Context())
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	waitLoaded(t, srv)
	return srv
}

func waitLoaded(t *testing.T, srv *Server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	if _, err := srv.Loader().Wait(ctx); err != nil {
		t.Fatalf("waiting for index: %v", err)
	}
}

func newReadyServer(t *testing.T) *Server {
	t.Helper()
	return newServer(t, writeIndex(t, t.TempDir(), indexJSON), nil)
}

func get(srv *Server, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestHealthCheck(t *testing.T) {
	srv := newReadyServer(t)
	w := get(srv, "/healthz")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	source := writeIndex(t, t.TempDir(), indexJSON)
	srv, err := New(Config{AllowAll: true}, func() *loader.Loader { return loader.New(source) }, session.NewManager(), nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestLoadingShell(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Write([]byte(indexJSON))
	}))
	t.Cleanup(slow.Close)
	t.Cleanup(func() { close(release) })

	srv, err := New(Config{SiteName: "Test APIs"}, func() *loader.Loader {
		return loader.New(slow.URL, loader.WithLogger(quietLogger()))
	}, session.NewManager(), nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	srv.Mount(t.Context())
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	w := get(srv, "/aws/s3?ui=redoc")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while loading, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Loading API documents") {
		t.Error("expected loading message")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("no session should be created before the index is loaded")
	}

	w = get(srv, "/api/index")
	var resp indexResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "loading" || resp.Source != slow.URL {
		t.Errorf("index state: %+v", resp)
	}
}

func TestErrorShell(t *testing.T) {
	source := writeIndex(t, t.TempDir(), `[{"id": "aws", "name": "AWS", "documents": []}]`)
	srv := newServer(t, source, nil)

	w := get(srv, "/")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for a failed load, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "validation error") || !strings.Contains(body, "/0/documents") {
		t.Errorf("expected validation details, got:\n%s", body)
	}

	w = get(srv, "/api/index")
	var resp indexResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "error" || resp.Kind != loader.KindValidation || len(resp.Violations) == 0 {
		t.Errorf("index state: %+v", resp)
	}
}

func TestFetchErrorShowsBody(t *testing.T) {
	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such index", http.StatusNotFound)
	}))
	t.Cleanup(missing.Close)
	srv := newServer(t, missing.URL, nil)

	w := get(srv, "/aws/s3?ui=redoc")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no such index") {
		t.Error("expected the response body as the diagnostic")
	}
}

func TestViewerRedirects(t *testing.T) {
	srv := newReadyServer(t)

	tests := []struct {
		target string
		want   string
	}{
		{"/aws/s3", "/aws/s3?ui=redoc"},
		{"/aws/s3?ui=unknown", "/aws/s3?ui=redoc"},
		{"/aws/s3?foo=1&ui=x&bar=2", "/aws/s3?ui=redoc&foo=1&bar=2"},
		{"/", "/?ui=redoc"},
		{"/aws", "/aws?ui=redoc"},
	}
	for _, tt := range tests {
		w := get(srv, tt.target)
		if w.Code != http.StatusFound {
			t.Errorf("%s: expected 302, got %d", tt.target, w.Code)
			continue
		}
		if loc := w.Header().Get("Location"); loc != tt.want {
			t.Errorf("%s: redirected to %q, want %q", tt.target, loc, tt.want)
		}
	}
}

func TestViewerPage(t *testing.T) {
	srv := newReadyServer(t)

	w := get(srv, "/aws/ec2?ui=swagger&deepLinking=true")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"<title>AWS - ec2 : swagger</title>",
		"swagger-ui-bundle.js",
		`<option value="ec2" selected>ec2</option>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	c := sessionCookie(t, w)
	sess, ok := srv.Sessions().Get(c.Value)
	if !ok {
		t.Fatal("session not registered")
	}
	if got := sess.Snapshot().Location.String(); got != "/aws/ec2?ui=swagger&deepLinking=true" {
		t.Errorf("session location %q", got)
	}

	// Unknown ids fall back without touching the URL.
	w = get(srv, "/aws/lambda?ui=redoc", c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<title>AWS - s3 : redoc</title>") {
		t.Error("expected fallback to the first aws document")
	}
}

func TestRedirectReplacesSessionEntry(t *testing.T) {
	srv := newReadyServer(t)
	w := get(srv, "/petstore/v2?ui=redoc")
	c := sessionCookie(t, w)

	get(srv, "/aws/s3", c)
	get(srv, "/aws/s3?ui=redoc", c)

	sess, _ := srv.Sessions().Get(c.Value)
	snap, ok := sess.Back()
	if !ok || snap.Location.String() != "/petstore/v2?ui=redoc" {
		t.Errorf("back from the redirected page went to %q", snap.Location)
	}
}

func selectURL(event, value, from string) string {
	q := url.Values{"event": {event}, "value": {value}}
	if from != "" {
		q.Set("from", from)
	}
	return "/api/select?" + q.Encode()
}

func TestSelectFlow(t *testing.T) {
	srv := newReadyServer(t)
	w := get(srv, "/petstore/v2?ui=redoc")
	c := sessionCookie(t, w)

	steps := []struct {
		event, value, from string
		want               string
	}{
		{"group", "aws", "/petstore/v2?ui=redoc", "/aws/s3?ui=redoc"},
		{"document", "ec2", "/aws/s3?ui=redoc", "/aws/ec2?ui=redoc"},
		{"group", "petstore", "/aws/ec2?ui=redoc", "/petstore/v2?ui=redoc"},
		// The group remembers ec2.
		{"group", "aws", "/petstore/v2?ui=redoc", "/aws/ec2?ui=redoc"},
	}
	for _, st := range steps {
		w := get(srv, selectURL(st.event, st.value, st.from), c)
		if w.Code != http.StatusSeeOther {
			t.Fatalf("select %s=%s: expected 303, got %d", st.event, st.value, w.Code)
		}
		if loc := w.Header().Get("Location"); loc != st.want {
			t.Errorf("select %s=%s: redirected to %q, want %q", st.event, st.value, loc, st.want)
		}
	}

	// Back and forward through the browser replay the route.
	sess, _ := srv.Sessions().Get(c.Value)
	get(srv, "/petstore/v2?ui=redoc", c)
	if g := sess.Snapshot().State.Group.ID; g != "petstore" {
		t.Errorf("after back: group %q", g)
	}
	get(srv, "/aws/ec2?ui=redoc", c)
	if d := sess.Snapshot().State.Document.ID; d != "ec2" {
		t.Errorf("after forward: document %q", d)
	}
}

func TestSelectErrors(t *testing.T) {
	srv := newReadyServer(t)
	c := sessionCookie(t, get(srv, "/aws/s3?ui=redoc"))

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unknown document", selectURL("document", "lambda", ""), http.StatusNotFound},
		{"unknown group", selectURL("group", "gcp", ""), http.StatusNotFound},
		{"bad event", selectURL("ui", "redoc", ""), http.StatusBadRequest},
		{"missing value", "/api/select?event=group", http.StatusBadRequest},
		{"absolute from", selectURL("group", "aws", "http://evil.example/x"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(srv, tt.target, c)
			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
		})
	}

	sess, _ := srv.Sessions().Get(c.Value)
	if got := sess.Snapshot().Location.String(); got != "/aws/s3?ui=redoc" {
		t.Errorf("failed selections must not navigate, location %q", got)
	}
}

func TestSelectWithoutSession(t *testing.T) {
	srv := newReadyServer(t)
	w := get(srv, selectURL("group", "aws", "/petstore/v2?ui=swagger"))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/aws/s3?ui=swagger" {
		t.Errorf("redirected to %q", loc)
	}
	sessionCookie(t, w)
}

func TestIndexAPI(t *testing.T) {
	srv := newReadyServer(t)
	w := get(srv, "/api/index")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp indexResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "done" || resp.Groups != 2 || resp.Documents != 3 {
		t.Errorf("index state: %+v", resp)
	}
	if len(resp.Index) != 2 || resp.Index[1].Documents[1].ID != "ec2" {
		t.Errorf("index payload: %+v", resp.Index)
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	source := writeIndex(t, dir, indexJSON)
	srv := newServer(t, source, nil)
	get(srv, "/aws/s3?ui=redoc")
	if srv.Sessions().Len() != 1 {
		t.Fatalf("expected one session, got %d", srv.Sessions().Len())
	}

	writeIndex(t, dir, `[{"id": "gcp", "name": "GCP", "documents": [{"id": "storage", "name": "storage", "url": "https://example.com/gcs.json"}]}]`)

	req := httptest.NewRequest(http.MethodPost, "/api/index/reload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	waitLoaded(t, srv)

	if srv.Sessions().Len() != 0 {
		t.Error("reload should drop sessions bound to the old index")
	}
	w = get(srv, "/gcp/storage?ui=redoc")
	if !strings.Contains(w.Body.String(), "<title>GCP - storage : redoc</title>") {
		t.Errorf("expected the reloaded index to be served")
	}
}

func TestReloadRequiresJSON(t *testing.T) {
	srv := newReadyServer(t)
	get(srv, "/aws/s3?ui=redoc")

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"form post", "application/x-www-form-urlencoded", "a=1"},
		{"plain text", "text/plain", "{}"},
		{"empty form", "application/x-www-form-urlencoded", ""},
		{"no content type", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/index/reload", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)
			if w.Code != http.StatusUnsupportedMediaType {
				t.Errorf("expected 415, got %d", w.Code)
			}
		})
	}
	if srv.Sessions().Len() != 1 {
		t.Error("rejected reloads must not reset sessions")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/index/reload", nil)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202 for a JSON request, got %d", w.Code)
	}
	waitLoaded(t, srv)
}

func TestOverview(t *testing.T) {
	srv := newReadyServer(t)
	w := get(srv, "/-/overview")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<table>") || !strings.Contains(body, `href="/aws/ec2"`) {
		t.Errorf("overview missing catalog table:\n%s", body)
	}
}

func TestJournalEndpoint(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := journal.NewStore(database)

	srv := newServer(t, writeIndex(t, t.TempDir(), indexJSON), store)
	c := sessionCookie(t, get(srv, "/petstore/v2?ui=redoc"))
	get(srv, selectURL("group", "aws", "/petstore/v2?ui=redoc"), c)
	get(srv, "/aws/s3?ui=redoc", c)

	w := get(srv, "/api/sessions/"+c.Value+"/journal")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var entries []journal.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}
	if entries[1].Action != "PUSH" || entries[1].Path != "/aws/s3" || entries[1].GroupID != "aws" {
		t.Errorf("unexpected push entry: %+v", entries[1])
	}
	if entries[0].Action != "POP" {
		t.Errorf("page load should be journaled as POP, got %s", entries[0].Action)
	}
}

func TestWebSocketSession(t *testing.T) {
	srv := newReadyServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/petstore/v2?ui=redoc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie")
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/session"
	header := http.Header{"Cookie": {session.CookieName + "=" + cookie.Value}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	read := func() socketResponse {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg socketResponse
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type != "state" || msg.Location != "/petstore/v2?ui=redoc" {
		t.Fatalf("initial state: %+v", msg)
	}

	conn.WriteJSON(socketRequest{Type: "select", Event: "group", Value: "aws"})
	msg := read()
	if msg.Action != "PUSH" || msg.Location != "/aws/s3?ui=redoc" || msg.Title != "AWS - s3 : redoc" {
		t.Errorf("after select: %+v", msg)
	}
	if msg.URL != "https://example.com/s3.json" {
		t.Errorf("document url %q", msg.URL)
	}

	conn.WriteJSON(socketRequest{Type: "select", Event: "document", Value: "lambda"})
	if msg := read(); msg.Type != "error" {
		t.Errorf("expected error for unknown document, got %+v", msg)
	}

	conn.WriteJSON(socketRequest{Type: "back"})
	if msg := read(); msg.Action != "POP" || msg.Group != "petstore" {
		t.Errorf("after back: %+v", msg)
	}

	conn.WriteJSON(socketRequest{Type: "route", Path: "/aws/ec2", Query: "ui=swagger"})
	if msg := read(); msg.Document != "ec2" || msg.Title != "AWS - ec2 : swagger" {
		t.Errorf("after route: %+v", msg)
	}

	conn.WriteJSON(socketRequest{Type: "teleport"})
	if msg := read(); msg.Type != "error" {
		t.Errorf("expected error for unknown type, got %+v", msg)
	}
}

func TestWebSocketRequiresSession(t *testing.T) {
	srv := newReadyServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/session"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail without a session")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", resp)
	}
}

// Two tabs share one session cookie. A selection sent from the first tab
// applies to the page that tab shows, not to the second tab's location.
func TestWebSocketSelectFromStaleTab(t *testing.T) {
	srv := newReadyServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	cookie := sessionCookie(t, get(srv, "/aws/ec2?ui=redoc"))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/session"
	header := http.Header{"Cookie": {session.CookieName + "=" + cookie.Value}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	read := func() socketResponse {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg socketResponse
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}
	read()

	// The second tab moves the session elsewhere.
	if w := get(srv, "/petstore/v2?ui=redoc", cookie); w.Code != http.StatusOK {
		t.Fatalf("second tab: status %d", w.Code)
	}

	conn.WriteJSON(socketRequest{Type: "select", Event: "document", Value: "s3", From: "/aws/ec2?ui=redoc"})
	msg := read()
	if msg.Type != "state" || msg.Location != "/aws/s3?ui=redoc" || msg.Action != "PUSH" {
		t.Fatalf("select from first tab: %+v", msg)
	}

	conn.WriteJSON(socketRequest{Type: "select", Event: "document", Value: "ec2", From: "aws/ec2"})
	if msg := read(); msg.Type != "error" || msg.Message != "from must be a path" {
		t.Errorf("expected error for relative from, got %+v", msg)
	}

	// Without from the selection applies to the current location.
	conn.WriteJSON(socketRequest{Type: "select", Event: "document", Value: "ec2"})
	if msg := read(); msg.Location != "/aws/ec2?ui=redoc" {
		t.Errorf("select without from: %+v", msg)
	}
}

func TestServeAfterShutdownReturns(t *testing.T) {
	srv := newReadyServer(t)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve kept running after Shutdown")
	}
}
