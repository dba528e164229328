// Package registry owns the process-wide table of live browser sessions.
// Each session is keyed by a caller-supplied correlation id that is stable
// across a workflow run; the registry is the single owner of session state
// and every mutation of a given id's entry happens under that entry's lock.
package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/config"
	"github.com/xkilldash9x/ventriloquist/internal/transport"
)

// TransportFactory builds the Transport for a fresh session. It is only
// invoked when no usable entry exists for the correlation id.
type TransportFactory func() (transport.Transport, error)

// Options tunes a single GetOrCreate call.
type Options struct {
	// ForceNew closes any existing entry for the id before connecting fresh.
	ForceNew bool
	// IdleTimeout overrides the configured idle timeout when positive.
	IdleTimeout time.Duration
}

// Handle is what callers get back: the live browser plus the transport that
// serves its connect/reconnect calls.
type Handle struct {
	// SessionID is the correlation id; later workflow steps present it to
	// keep operating on the same browser.
	SessionID string
	Browser   *transport.Browser
	Transport transport.Transport
}

// entry is one tracked session. Its mutex is the critical section for the
// probe-then-maybe-reconnect sequence; holding it prevents two near
// simultaneous requests for the same id from double-connecting.
type entry struct {
	mu sync.Mutex

	id          string
	tr          transport.Transport
	browser     *transport.Browser
	pages       map[string]*transport.Page
	lastUsed    time.Time
	idleTimeout time.Duration
}

// Registry is the process-wide session table. Construct one per process and
// inject it into every executor.
type Registry struct {
	cfg    config.SessionConfig
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry

	// group collapses concurrent non-forced GetOrCreate calls for the same
	// id into a single connect.
	group singleflight.Group

	// now is a test seam for eviction timing.
	now func() time.Time
}

// New creates an empty registry.
func New(cfg config.SessionConfig, logger *zap.Logger) *Registry {
	return &Registry{
		cfg:     cfg,
		logger:  logger.Named("registry"),
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// GetOrCreate returns the live session for the correlation id, creating or
// repairing one as needed. Every call first runs an opportunistic sweep that
// evicts entries idle past their timeout; eviction is lazy by design, so an
// idle session survives until the next access observes it.
func (r *Registry) GetOrCreate(ctx context.Context, correlationID string, factory TransportFactory, opts Options) (*Handle, error) {
	r.sweep(ctx)

	if opts.ForceNew {
		// Forced recreation must not be deduplicated against concurrent
		// plain lookups; it takes the entry lock directly.
		r.Close(ctx, correlationID)
		return r.acquire(ctx, correlationID, factory, opts)
	}

	v, err, _ := r.group.Do(correlationID, func() (interface{}, error) {
		return r.acquire(ctx, correlationID, factory, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// acquire drives the entry from absent/ready toward ready: probe an existing
// connection, fall back to reconnect when the transport supports it, and
// finally connect fresh. A forced close can remove the entry between lookup
// and lock; acquire re-verifies table membership under the entry lock and
// starts over on the replacement, so work never lands on an orphaned entry.
func (r *Registry) acquire(ctx context.Context, correlationID string, factory TransportFactory, opts Options) (*Handle, error) {
	for {
		e := r.entryFor(correlationID, opts)
		e.mu.Lock()
		if !r.isCurrent(correlationID, e) {
			e.mu.Unlock()
			continue
		}
		h, err := r.acquireLocked(ctx, correlationID, e, factory)
		e.mu.Unlock()
		return h, err
	}
}

// isCurrent reports whether e is still the table's entry for the id.
func (r *Registry) isCurrent(correlationID string, e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[correlationID] == e
}

// acquireLocked holds e.mu and e is current in the table.
func (r *Registry) acquireLocked(ctx context.Context, correlationID string, e *entry, factory TransportFactory) (*Handle, error) {
	if e.browser != nil {
		if err := r.probe(ctx, e); err == nil {
			e.lastUsed = r.now()
			return &Handle{SessionID: correlationID, Browser: e.browser, Transport: e.tr}, nil
		}

		r.logger.Warn("Session failed liveness probe.", zap.String("correlation_id", correlationID))
		if b, ok := r.tryReconnect(ctx, e); ok {
			r.replaceBrowser(e, b)
			e.lastUsed = r.now()
			r.logger.Info("Session reconnected.", zap.String("correlation_id", correlationID))
			return &Handle{SessionID: correlationID, Browser: e.browser, Transport: e.tr}, nil
		}

		// The existing entry is irrecoverable; discard it and fall through
		// to a fresh connection.
		r.discardLocked(e)
	}

	if e.tr == nil {
		tr, err := factory()
		if err != nil {
			r.removeIf(correlationID, e)
			return nil, err
		}
		e.tr = tr
	}

	browser, err := e.tr.Connect(ctx)
	if err != nil {
		r.removeIf(correlationID, e)
		return nil, err
	}

	e.browser = browser
	e.pages = make(map[string]*transport.Page)
	e.lastUsed = r.now()
	r.logger.Info("Session created.",
		zap.String("correlation_id", correlationID),
		zap.String("backend", string(e.tr.Backend())),
	)
	return &Handle{SessionID: correlationID, Browser: browser, Transport: e.tr}, nil
}

// entryFor returns the entry for the id, inserting a stub when absent.
func (r *Registry) entryFor(correlationID string, opts Options) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[correlationID]
	if !ok {
		idle := opts.IdleTimeout
		if idle <= 0 {
			idle = r.cfg.IdleTimeout
		}
		if idle <= 0 {
			idle = 3 * time.Minute
		}
		e = &entry{
			id:          correlationID,
			pages:       make(map[string]*transport.Page),
			idleTimeout: idle,
			lastUsed:    r.now(),
		}
		r.entries[correlationID] = e
	} else if opts.IdleTimeout > 0 {
		e.idleTimeout = opts.IdleTimeout
	}
	return e
}

// probe checks that the existing browser handle still answers.
func (r *Registry) probe(ctx context.Context, e *entry) error {
	timeout := r.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.tr.Liveness(probeCtx, e.browser)
}

// tryReconnect attempts a token-based reconnect when the transport supports
// it. Reconnect support is a capability query, not a nullable method.
func (r *Registry) tryReconnect(ctx context.Context, e *entry) (*transport.Browser, bool) {
	rc, ok := transport.AsReconnector(e.tr)
	if !ok || e.browser == nil || e.browser.SessionToken == "" {
		return nil, false
	}

	timeout := r.cfg.ReconnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	recCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b, err := rc.Reconnect(recCtx, e.browser.SessionToken)
	if err != nil {
		r.logger.Warn("Reconnect attempt failed.", zap.String("correlation_id", e.id), zap.Error(err))
		return nil, false
	}
	return b, true
}

// replaceBrowser swaps in a reconnected handle. Pages belonged to the dead
// connection and are dropped with it.
func (r *Registry) replaceBrowser(e *entry, b *transport.Browser) {
	if e.browser != nil {
		e.browser.Close()
	}
	e.browser = b
	e.pages = make(map[string]*transport.Page)
}

// discardLocked drops the entry's dead connection state. Caller holds e.mu.
func (r *Registry) discardLocked(e *entry) {
	for _, p := range e.pages {
		p.Close()
	}
	e.pages = make(map[string]*transport.Page)
	if e.browser != nil {
		e.browser.Close()
		e.browser = nil
	}
}

// removeIf deletes the table entry for the id, but only while e is still the
// current entry; a concurrent forced recreation must not lose its successor.
func (r *Registry) removeIf(correlationID string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[correlationID] == e {
		delete(r.entries, correlationID)
	}
}

// StorePage records a page handle under the session.
func (r *Registry) StorePage(correlationID, pageID string, page *transport.Page) bool {
	r.mu.Lock()
	e, ok := r.entries[correlationID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pages[pageID] = page
	e.lastUsed = r.now()
	return true
}

// GetPage looks up a stored page handle.
func (r *Registry) GetPage(correlationID, pageID string) (*transport.Page, bool) {
	r.mu.Lock()
	e, ok := r.entries[correlationID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pages[pageID]
	if ok {
		e.lastUsed = r.now()
	}
	return p, ok
}

// Len reports how many sessions are tracked. Primarily for diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close tears down one session and removes it, reporting whether an entry
// existed for the id. Close-time errors are logged and swallowed; a session
// asked to close is gone either way.
func (r *Registry) Close(ctx context.Context, correlationID string) bool {
	r.mu.Lock()
	e, ok := r.entries[correlationID]
	delete(r.entries, correlationID)
	r.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := r.closeEntryLocked(ctx, e); err != nil {
		r.logger.Warn("Session close reported an error (ignored).",
			zap.String("correlation_id", correlationID), zap.Error(err))
	}
	return true
}

// CloseAllResult summarizes a bulk close sweep.
type CloseAllResult struct {
	Total  int `json:"total"`
	Closed int `json:"closed"`
}

// CloseAll tears down every tracked session: pages first, then stray
// browsing contexts, then the browser itself. One failed close never aborts
// the sweep over the rest; all entries are removed regardless of outcome.
func (r *Registry) CloseAll(ctx context.Context) CloseAllResult {
	r.mu.Lock()
	snapshot := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	result := CloseAllResult{Total: len(snapshot)}
	for _, e := range snapshot {
		e.mu.Lock()
		err := r.closeEntryLocked(ctx, e)
		e.mu.Unlock()
		if err != nil {
			r.logger.Warn("Session close failed during bulk close (continuing).",
				zap.String("correlation_id", e.id), zap.Error(err))
			continue
		}
		result.Closed++
	}

	r.logger.Info("Bulk close complete.", zap.Int("total", result.Total), zap.Int("closed", result.Closed))
	return result
}

// closeEntryLocked closes pages, stray targets, then the browser. Caller
// holds e.mu. Only the browser teardown outcome is reported; page closes
// are inherently best-effort.
func (r *Registry) closeEntryLocked(ctx context.Context, e *entry) error {
	timeout := r.cfg.CloseTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	closeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, p := range e.pages {
		p.Close()
	}
	e.pages = make(map[string]*transport.Page)

	if e.browser == nil {
		return nil
	}
	b := e.browser
	e.browser = nil
	return b.Shutdown(closeCtx)
}

// sweep evicts entries whose idle timeout has elapsed. An entry whose lock
// is currently held belongs to an in-flight request and is skipped; eviction
// never fires concurrently with a request already in progress for that id.
func (r *Registry) sweep(ctx context.Context) {
	now := r.now()

	r.mu.Lock()
	var expired []*entry
	for id, e := range r.entries {
		if !e.mu.TryLock() {
			continue
		}
		idle := now.Sub(e.lastUsed)
		e.mu.Unlock()
		if idle > e.idleTimeout {
			expired = append(expired, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		r.logger.Info("Evicting idle session.",
			zap.String("correlation_id", e.id),
			zap.Duration("idle_timeout", e.idleTimeout),
		)
		e.mu.Lock()
		if err := r.closeEntryLocked(ctx, e); err != nil {
			r.logger.Debug("Idle eviction close failed (ignored).", zap.String("correlation_id", e.id), zap.Error(err))
		}
		e.mu.Unlock()
	}
}

// BackendOf reports the backend of a tracked session, for result metadata.
func (r *Registry) BackendOf(correlationID string) (schemas.BackendKind, bool) {
	r.mu.Lock()
	e, ok := r.entries[correlationID]
	r.mu.Unlock()
	if !ok {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tr == nil {
		return "", false
	}
	return e.tr.Backend(), true
}
