// Package transport normalizes three incompatible remote-browser backends
// behind one capability set: connect, open pages, navigate, snapshot page
// metadata, and screenshot. Reconnection by provider session token is a
// separate capability that callers must query for explicitly.
package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/config"
)

// Browser is one live connection to a browser process, local or remote.
// It owns the browser-scoped chromedp context and the allocator behind it.
type Browser struct {
	// Ctx is the browser-level chromedp context. Page contexts are derived
	// from it.
	Ctx context.Context
	// SessionToken is the provider-specific session id recovered from the
	// connection URL, for backends that can resume a session by token.
	SessionToken string

	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	shutdownFn  func(context.Context) error

	closeOnce sync.Once
}

// NewBrowser wraps an established browser context. The cancel functions tear
// down the chromedp context and its allocator, in that order.
func NewBrowser(ctx context.Context, cancel, allocCancel context.CancelFunc, sessionToken string) *Browser {
	return &Browser{
		Ctx:          ctx,
		SessionToken: sessionToken,
		cancel:       cancel,
		allocCancel:  allocCancel,
	}
}

// Close disconnects from (or shuts down) the browser. Safe to call more
// than once.
func (b *Browser) Close() {
	b.closeOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		if b.allocCancel != nil {
			b.allocCancel()
		}
	})
}

// SetShutdownFunc overrides the graceful shutdown path. Backends install a
// protocol-aware teardown here; tests install failure injection.
func (b *Browser) SetShutdownFunc(fn func(context.Context) error) { b.shutdownFn = fn }

// Shutdown tears the browser down gracefully, reporting whether the remote
// side acknowledged the close. The contexts are released regardless.
func (b *Browser) Shutdown(ctx context.Context) error {
	var err error
	b.closeOnce.Do(func() {
		if b.shutdownFn != nil {
			err = b.shutdownFn(ctx)
		} else {
			err = chromedp.Cancel(b.Ctx)
		}
		if b.cancel != nil {
			b.cancel()
		}
		if b.allocCancel != nil {
			b.allocCancel()
		}
	})
	return err
}

// Page is one open tab within a Browser. It is exclusively owned by the
// session that created it and never shared across sessions.
type Page struct {
	// ID is unique within the owning session.
	ID  string
	Ctx context.Context

	cancel context.CancelFunc
}

// NewPageID mints a page id.
func NewPageID() string { return uuid.New().String() }

// Close detaches the tab's context. Best effort.
func (p *Page) Close() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Navigation is the outcome of a NavigateTo call. Response data is nil when
// the navigation produced no main-frame response (same-document navigation,
// or a wait policy that does not observe the response).
type Navigation struct {
	Status *int64
	// Domain is the host component resolved from the target URL.
	Domain string
	// FinalURL is the page URL after redirects, when observed.
	FinalURL string
}

// Transport is the uniform capability set implemented once per backend.
// Connection failures are never retried inside a Transport; they propagate
// as *Error values whose kind identifies the likely cause.
type Transport interface {
	// Backend reports which provider this transport drives.
	Backend() schemas.BackendKind

	// Connect establishes a live browser handle. One Transport instance
	// serves all connect/reconnect calls of a single session.
	Connect(ctx context.Context) (*Browser, error)

	// Liveness probes an existing handle by listing its targets. A non-nil
	// error means the connection is gone.
	Liveness(ctx context.Context, b *Browser) error

	// NewPage opens a tab and applies backend-appropriate anti-detection
	// configuration before any navigation happens in it.
	NewPage(ctx context.Context, b *Browser) (*Page, error)

	// NavigateTo drives the page to url honoring the wait policy.
	NavigateTo(ctx context.Context, p *Page, url string, wait schemas.WaitPolicy) (*Navigation, error)

	// PageInfo snapshots the page's current URL, title and, when the
	// preceding navigation observed one, the HTTP status.
	PageInfo(ctx context.Context, p *Page, nav *Navigation) (schemas.PageInfo, error)

	// Screenshot captures the viewport as a base64 data-URI string.
	Screenshot(ctx context.Context, p *Page) (string, error)
}

// Reconnector is the optional capability of resuming a prior remote session
// by provider token. Callers must check for it explicitly; most backends do
// not support it.
type Reconnector interface {
	Reconnect(ctx context.Context, sessionToken string) (*Browser, error)
}

// AsReconnector reports whether the transport can resume sessions by token.
func AsReconnector(t Transport) (Reconnector, bool) {
	r, ok := t.(Reconnector)
	return r, ok
}

// New selects and constructs a Transport from the credential record. It
// validates backend-specific required fields and fails fast with a
// descriptive error when one is absent. Pure function of its inputs.
func New(creds schemas.Credentials, netCfg config.NetworkConfig, logger *zap.Logger) (Transport, error) {
	switch creds.Kind {
	case schemas.BackendBrightData:
		if creds.BrightData == nil || creds.BrightData.WebsocketEndpoint == "" {
			return nil, fmt.Errorf("brightdata backend requires a websocket endpoint")
		}
		return newBrightData(*creds.BrightData, netCfg, logger), nil

	case schemas.BackendBrowserless:
		if creds.Browserless == nil {
			return nil, fmt.Errorf("browserless backend requires a credential record")
		}
		bc := *creds.Browserless
		switch bc.ConnectionType {
		case "direct":
			if bc.WsURL == "" {
				return nil, fmt.Errorf("browserless direct connection requires ws_url")
			}
		default:
			if bc.BaseURL == "" || bc.Token == "" {
				return nil, fmt.Errorf("browserless standard connection requires base_url and token")
			}
		}
		return newBrowserless(bc, netCfg, logger), nil

	case schemas.BackendLocal:
		local := schemas.LocalCredentials{}
		if creds.Local != nil {
			local = *creds.Local
		}
		if local.AttachToExisting && local.DebugPort == 0 {
			return nil, fmt.Errorf("local attach mode requires a debug port")
		}
		return newLocal(local, netCfg, logger), nil
	}

	return nil, fmt.Errorf("unknown backend kind %q", creds.Kind)
}
