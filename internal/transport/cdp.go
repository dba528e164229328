// File: internal/transport/cdp.go
package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/config"
	"github.com/xkilldash9x/ventriloquist/internal/stealth"
)

// core carries the CDP mechanics shared by every backend once a browser
// handle exists: target probing, page creation, navigation, page metadata
// and screenshots. Backends embed it and contribute Connect.
type core struct {
	backend schemas.BackendKind
	netCfg  config.NetworkConfig
	logger  *zap.Logger
	// applyStealth controls whether the anti-detection persona is pushed
	// into every new page before its first navigation.
	applyStealth bool
	persona      stealth.Persona
}

func newCore(backend schemas.BackendKind, netCfg config.NetworkConfig, logger *zap.Logger, applyStealth bool) core {
	return core{
		backend:      backend,
		netCfg:       netCfg,
		logger:       logger.Named(string(backend)),
		applyStealth: applyStealth,
		persona:      stealth.DefaultPersona,
	}
}

func (c *core) Backend() schemas.BackendKind { return c.backend }

// connectRemote dials a remote debugging WebSocket URL and returns a live
// browser handle. The allocator is rooted in context.Background so the
// browser connection outlives the connect call; ctx only bounds the dial.
func (c *core) connectRemote(ctx context.Context, wsURL string, modifyURL bool) (*Browser, error) {
	opts := []chromedp.RemoteAllocatorOption{}
	if !modifyURL {
		opts = append(opts, chromedp.NoModifyURL)
	}
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), wsURL, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	timeout := c.netCfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialCtx, dialCancel := context.WithTimeout(browserCtx, timeout)
	defer dialCancel()

	// An empty Run establishes the WebSocket connection and the first target.
	if err := chromedp.Run(dialCtx); err != nil {
		cancel()
		allocCancel()
		// Respect a caller side cancellation over our own classification.
		if ctx.Err() != nil {
			return nil, NewError(KindTimeout, c.backend, "connect canceled by caller", ctx.Err())
		}
		return nil, ClassifyConnect(c.backend, err)
	}

	token := sessionTokenFromURL(wsURL)
	c.logger.Debug("Remote browser connected.",
		zap.String("endpoint", redactURL(wsURL)),
		zap.Bool("session_token_recovered", token != ""),
	)
	return NewBrowser(browserCtx, cancel, allocCancel, token), nil
}

// Liveness lists the browser's targets. Listing fails fast once the
// underlying connection has dropped.
func (c *core) Liveness(ctx context.Context, b *Browser) error {
	probeCtx, cancel := mergeDeadline(b.Ctx, ctx)
	defer cancel()

	if _, err := chromedp.Targets(probeCtx); err != nil {
		return NewError(KindSession, c.backend, "liveness probe failed; connection is gone", err)
	}
	return nil
}

// NewPage opens a fresh tab and applies the anti-detection configuration
// before anything navigates in it.
func (c *core) NewPage(ctx context.Context, b *Browser) (*Page, error) {
	pageCtx, pageCancel := chromedp.NewContext(b.Ctx)

	initCtx, cancel := mergeDeadline(pageCtx, ctx)
	defer cancel()

	var tasks chromedp.Tasks
	if c.applyStealth {
		tasks = stealth.Apply(c.persona, c.logger)
	}
	// Run materializes the target even when there are no stealth tasks.
	if err := chromedp.Run(initCtx, tasks); err != nil {
		pageCancel()
		return nil, NewError(KindSession, c.backend, "failed to open page", err)
	}

	return &Page{ID: NewPageID(), Ctx: pageCtx, cancel: pageCancel}, nil
}

// NavigateTo drives the page to the target URL honoring the wait policy.
func (c *core) NavigateTo(ctx context.Context, p *Page, target string, wait schemas.WaitPolicy) (*Navigation, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, NewError(KindNavigation, c.backend, "target URL is not parseable", err)
	}
	nav := &Navigation{Domain: parsed.Hostname()}

	timeout := c.netCfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	opCtx, opCancel := mergeDeadline(p.Ctx, ctx)
	defer opCancel()
	navCtx, navCancel := context.WithTimeout(opCtx, timeout)
	defer navCancel()

	switch wait {
	case schemas.WaitNone:
		err = chromedp.Run(navCtx, navigateNoWait(target))

	case schemas.WaitFixed:
		settle := c.netCfg.PostLoadWait
		if settle <= 0 {
			settle = 2 * time.Second
		}
		err = chromedp.Run(navCtx, navigateNoWait(target), chromedp.Sleep(settle))

	case schemas.WaitDOMReady:
		err = chromedp.Run(navCtx, navigateNoWait(target), waitReadyState("interactive"))

	default: // WaitLoad, WaitNavigation
		var resp *network.Response
		resp, err = chromedp.RunResponse(navCtx, chromedp.Navigate(target))
		if err == nil && resp != nil {
			status := resp.Status
			nav.Status = &status
			nav.FinalURL = resp.URL
		}
	}

	if err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return nil, NewError(KindNavigation, c.backend,
				fmt.Sprintf("navigation timed out after %s; consider raising the navigation timeout", timeout), err)
		}
		return nil, NewError(KindNavigation, c.backend, "", err)
	}

	c.logger.Debug("Navigation complete.",
		zap.String("url", target),
		zap.String("wait", string(wait)),
	)
	return nav, nil
}

// PageInfo snapshots the live URL and title; the status rides along from the
// preceding navigation when one was observed.
func (c *core) PageInfo(ctx context.Context, p *Page, nav *Navigation) (schemas.PageInfo, error) {
	opCtx, cancel := mergeDeadline(p.Ctx, ctx)
	defer cancel()

	var info schemas.PageInfo
	err := chromedp.Run(opCtx,
		chromedp.Location(&info.URL),
		chromedp.Title(&info.Title),
	)
	if err != nil {
		return schemas.PageInfo{}, NewError(KindSession, c.backend, "failed to read page info", err)
	}
	if nav != nil {
		info.Status = nav.Status
	}
	return info, nil
}

// Screenshot captures the viewport as a PNG data URI.
func (c *core) Screenshot(ctx context.Context, p *Page) (string, error) {
	opCtx, cancel := mergeDeadline(p.Ctx, ctx)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(opCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", NewError(KindSession, c.backend, "screenshot capture failed", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf), nil
}

// mergeDeadline derives an operation context from the page/browser context
// that is additionally canceled when the caller's ctx is. chromedp contexts
// carry required values, so the derivation order matters.
func mergeDeadline(chromeCtx, callerCtx context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(chromeCtx)
	if callerCtx == nil {
		return merged, cancel
	}
	stop := context.AfterFunc(callerCtx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

// sessionTokenFromURL recovers the provider session token from a connect
// URL. Providers either put it in an explicit query parameter or use the
// devtools browser GUID as the final path segment.
func sessionTokenFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	for _, key := range []string{"sessionId", "session", "trackingId"} {
		if v := u.Query().Get(key); v != "" {
			return v
		}
	}
	// ws(s)://host/devtools/browser/<guid>
	segments := splitPath(u.Path)
	for i, seg := range segments {
		if seg == "browser" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}

func splitPath(p string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				out = append(out, p[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// redactURL strips query values (tokens, passwords) from a URL for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
