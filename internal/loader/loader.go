// Package loader fetches, parses and validates the document index and
// exposes the outcome as a three-state result.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ziadkadry99/apiview/internal/catalog"
)

// DefaultTimeout bounds a single index fetch.
const DefaultTimeout = 30 * time.Second

// Result is the state of an index load: Loading, Done or Failed.
// Consumers switch over the concrete types.
type Result interface {
	result()
}

// Loading means the fetch has not resolved yet.
type Loading struct{}

// Done carries the loaded, validated index.
type Done struct {
	Index catalog.Index
}

// Failed carries the terminal load error.
type Failed struct {
	Err *LoadError
}

func (Loading) result() {}
func (Done) result()    {}
func (Failed) result()  {}

// Option configures a Loader.
type Option func(*options)

type options struct {
	client  *http.Client
	timeout time.Duration
	include []string
	exclude []string
	logger  *slog.Logger
}

// WithTimeout sets the fetch timeout. Defaults to DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient replaces the HTTP client used for fetching.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithFilter applies catalog.Filter to the loaded index.
func WithFilter(include, exclude []string) Option {
	return func(o *options) {
		o.include = include
		o.exclude = exclude
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) options {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: o.timeout}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Load fetches, parses, validates and filters the index synchronously.
// Every failure is a *LoadError.
func Load(ctx context.Context, source string, opts ...Option) (catalog.Index, error) {
	return load(ctx, source, newOptions(opts))
}

func load(ctx context.Context, source string, o options) (catalog.Index, error) {
	data, err := Fetch(ctx, o.client, source)
	if err != nil {
		return nil, err
	}
	idx, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if len(o.include) > 0 || len(o.exclude) > 0 {
		idx = catalog.Filter(idx, o.include, o.exclude)
		if len(idx) == 0 {
			return nil, validationError([]string{"include/exclude patterns removed every document"})
		}
	}
	return idx, nil
}

// Loader runs one asynchronous load per mount.
type Loader struct {
	source string
	opts   options

	mu        sync.Mutex
	result    Result
	mounted   bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}
	observers []func(Result)
}

// New creates a Loader for the given source. Nothing is fetched until Mount.
func New(source string, opts ...Option) *Loader {
	return &Loader{
		source: source,
		opts:   newOptions(opts),
		result: Loading{},
		done:   make(chan struct{}),
	}
}

// Source returns the index location.
func (l *Loader) Source() string { return l.source }

// Mount starts the fetch. Calling Mount more than once has no effect; a
// failed load is terminal and is not retried.
func (l *Loader) Mount(ctx context.Context) {
	l.mu.Lock()
	if l.mounted || l.closed {
		l.mu.Unlock()
		return
	}
	l.mounted = true
	ctx, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()

	go func() {
		start := time.Now()
		idx, err := load(ctx, l.source, l.opts)
		var r Result
		if err != nil {
			var le *LoadError
			if !errors.As(err, &le) {
				le = &LoadError{Kind: KindValidation, Message: err.Error(), Err: err}
			}
			r = Failed{Err: le}
		} else {
			r = Done{Index: idx}
		}
		if !l.resolve(r) {
			l.opts.logger.Debug("index load discarded after close", "source", l.source)
			return
		}
		switch r := r.(type) {
		case Done:
			l.opts.logger.Info("index loaded", "source", l.source,
				"groups", len(r.Index), "documents", r.Index.Count(), "duration", time.Since(start))
		case Failed:
			l.opts.logger.Error("index load failed", "source", l.source, "kind", r.Err.Kind, "error", r.Err.Message)
		}
	}()
}

// resolve publishes r unless the loader was closed. It reports whether the
// result was published.
func (l *Loader) resolve(r Result) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.result = r
	observers := l.observers
	l.observers = nil
	close(l.done)
	l.mu.Unlock()

	for _, fn := range observers {
		fn(r)
	}
	return true
}

// Result returns the current state.
func (l *Loader) Result() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result
}

// Subscribe registers fn to be called once with the resolved result. If the
// load already resolved, fn is called immediately.
func (l *Loader) Subscribe(fn func(Result)) {
	l.mu.Lock()
	if _, pending := l.result.(Loading); pending && !l.closed {
		l.observers = append(l.observers, fn)
		l.mu.Unlock()
		return
	}
	r := l.result
	l.mu.Unlock()
	fn(r)
}

// Wait blocks until the load resolves or ctx is done.
func (l *Loader) Wait(ctx context.Context) (Result, error) {
	select {
	case <-l.done:
		return l.Result(), nil
	case <-ctx.Done():
		return l.Result(), ctx.Err()
	}
}

// Close unmounts the loader. A fetch still in flight is cancelled and its
// result dropped; pending observers are never called.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.observers = nil
	if l.cancel != nil {
		l.cancel()
	}
}
