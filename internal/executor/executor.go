// Package executor hosts the thin action coordinators. Each operation
// resolves a session from the registry, drives the page through the
// interaction and detection layers, and assembles the uniform result record
// the workflow host consumes. Executors hold no session state of their own;
// the registry is the single owner.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/config"
	"github.com/xkilldash9x/ventriloquist/internal/detect"
	"github.com/xkilldash9x/ventriloquist/internal/interact"
	"github.com/xkilldash9x/ventriloquist/internal/registry"
	"github.com/xkilldash9x/ventriloquist/internal/transport"
)

// activePage is the registry key of the page executors operate on. One page
// per session is the working model; an operation that needs a fresh tab
// replaces the active one.
const activePage = "active"

// Runner wires the operations to their collaborators. Construct one per
// process and share it across workflow steps.
type Runner struct {
	cfg      config.Interface
	registry *registry.Registry
	logger   *zap.Logger

	clicker  *interact.Clicker
	former   *interact.Former
	detector *detect.Engine

	// newTransport is swapped by tests to run operations against fakes.
	newTransport func(creds schemas.Credentials) (transport.Transport, error)
	now          func() time.Time
}

func New(cfg config.Interface, reg *registry.Registry, logger *zap.Logger) *Runner {
	log := logger.Named("executor")
	r := &Runner{
		cfg:      cfg,
		registry: reg,
		logger:   log,
		clicker:  interact.NewClicker(cfg.Interaction(), log),
		former:   interact.NewFormer(cfg.Interaction(), log),
		detector: detect.NewEngine(cfg.Detection(), log),
		now:      time.Now,
	}
	r.newTransport = func(creds schemas.Credentials) (transport.Transport, error) {
		return transport.New(creds, cfg.Network(), logger)
	}
	return r
}

// SessionParams resolves which session an operation runs against: an
// explicit correlation id wins, then an id carried on the inbound item, and
// absent both a fresh id is minted.
type SessionParams struct {
	// SessionID is the caller's explicit correlation id.
	SessionID string `json:"sessionId,omitempty"`
	// InboundID is a session id found on the inbound item, produced by an
	// earlier step in the same run.
	InboundID string `json:"inboundId,omitempty"`
	// Credentials configure the transport for fresh connections. Required
	// only when no live session exists for the resolved id.
	Credentials schemas.Credentials `json:"credentials"`

	ForceNew    bool             `json:"forceNew"`
	IdleTimeout schemas.Duration `json:"idleTimeout,omitempty"`
}

// Common carries the toggles shared by every operation.
type Common struct {
	Session SessionParams `json:"session"`
	// ContinueOnFail converts failures into structured failure results
	// instead of errors that abort the caller's batch.
	ContinueOnFail bool `json:"continueOnFail"`
	// CaptureScreenshot attaches a data-URI screenshot to the result.
	CaptureScreenshot bool `json:"captureScreenshot"`
	// Timeout bounds the whole operation when positive. The bound is a
	// stop-waiting signal: the remote operation may still be running when
	// it fires.
	Timeout schemas.Duration `json:"timeout,omitempty"`
}

func (c Common) resolveID() string {
	if c.Session.SessionID != "" {
		return c.Session.SessionID
	}
	if c.Session.InboundID != "" {
		return c.Session.InboundID
	}
	return uuid.New().String()
}

// opContext applies the operation timeout when one is set.
func (c Common) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout.Std())
	}
	return context.WithCancel(ctx)
}

// session acquires (or revives) the session for the resolved id. When no
// entry exists and the caller supplied no credentials the failure is a
// session error, distinct from interaction errors, so callers can decide
// whether to recreate.
func (r *Runner) session(ctx context.Context, common Common, id string) (*registry.Handle, error) {
	if _, tracked := r.registry.BackendOf(id); !tracked && common.Session.Credentials.Kind == "" {
		return nil, transport.NewError(transport.KindSession, "",
			fmt.Sprintf("no live session for id %q and no credentials to create one", id), nil)
	}

	factory := func() (transport.Transport, error) {
		return r.newTransport(common.Session.Credentials)
	}
	h, err := r.registry.GetOrCreate(ctx, id, factory, registry.Options{
		ForceNew:    common.Session.ForceNew,
		IdleTimeout: common.Session.IdleTimeout.Std(),
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// page returns the session's active page, opening one when absent.
func (r *Runner) page(ctx context.Context, h *registry.Handle) (*transport.Page, error) {
	if p, ok := r.registry.GetPage(h.SessionID, activePage); ok {
		return p, nil
	}
	p, err := h.Transport.NewPage(ctx, h.Browser)
	if err != nil {
		return nil, fmt.Errorf("opening page failed: %w", err)
	}
	r.registry.StorePage(h.SessionID, activePage, p)
	return p, nil
}

// pageContext derives an interaction context from the page's chromedp
// context, bounded by the operation timeout when one is set. Script-level
// primitives must run on a context descending from the page's own, or
// chromedp cannot route them to the right target.
func pageContext(p *transport.Page, common Common) (context.Context, context.CancelFunc) {
	if common.Timeout > 0 {
		return context.WithTimeout(p.Ctx, common.Timeout.Std())
	}
	return context.WithCancel(p.Ctx)
}

// conclude assembles the success/failure result. On failure the session is
// torn down before reporting: a half-broken session must not be available to
// the next call on that id. ContinueOnFail turns the error into a structured
// failure record.
func (r *Runner) conclude(ctx context.Context, common Common, res *schemas.ActionResult, start time.Time, h *registry.Handle, p *transport.Page, opErr error) (*schemas.ActionResult, error) {
	if opErr != nil {
		r.logger.Warn("Operation failed; closing its session.",
			zap.String("operation", res.Operation),
			zap.String("correlation_id", res.SessionID),
			zap.Error(opErr),
		)
		r.registry.Close(ctx, res.SessionID)
		res.Fail(opErr).Finish(start)
		if common.ContinueOnFail {
			return res, nil
		}
		return res, opErr
	}

	if h != nil && p != nil {
		info, err := h.Transport.PageInfo(ctx, p, nil)
		if err == nil {
			res.URL = info.URL
			res.Title = info.Title
		} else {
			r.logger.Debug("Page metadata unavailable for result.", zap.Error(err))
		}
		if common.CaptureScreenshot {
			shot, err := h.Transport.Screenshot(ctx, p)
			if err != nil {
				r.logger.Warn("Screenshot capture failed (result still succeeds).", zap.Error(err))
			} else {
				res.Screenshot = shot
			}
		}
	}
	res.Success = true
	return res.Finish(start), nil
}
