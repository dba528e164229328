package executor

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
)

// OpenParams drive the open operation: connect (or reuse) a session and
// navigate its page to a URL.
type OpenParams struct {
	Common
	URL  string             `json:"url"`
	Wait schemas.WaitPolicy `json:"wait,omitempty"`
	// NewPage opens a fresh tab instead of reusing the session's active one.
	NewPage bool `json:"newPage"`
}

// Open establishes or reuses a session and navigates to the target URL. It
// is the entry point of a workflow run: its result carries the session id
// later steps present to keep driving the same browser.
func (r *Runner) Open(ctx context.Context, p OpenParams) (*schemas.ActionResult, error) {
	id := p.resolveID()
	res := schemas.NewActionResult("open", id)
	start := r.now()

	opCtx, cancel := p.opContext(ctx)
	defer cancel()

	h, err := r.session(opCtx, p.Common, id)
	if err != nil {
		return r.conclude(ctx, p.Common, res, start, nil, nil, err)
	}

	if p.NewPage {
		if old, ok := r.registry.GetPage(id, activePage); ok {
			old.Close()
		}
		page, err := h.Transport.NewPage(opCtx, h.Browser)
		if err != nil {
			return r.conclude(ctx, p.Common, res, start, nil, nil, err)
		}
		r.registry.StorePage(id, activePage, page)
	}

	page, err := r.page(opCtx, h)
	if err != nil {
		return r.conclude(ctx, p.Common, res, start, nil, nil, err)
	}

	nav, err := h.Transport.NavigateTo(opCtx, page, p.URL, p.Wait)
	if err != nil {
		return r.conclude(ctx, p.Common, res, start, nil, nil, err)
	}

	info, err := h.Transport.PageInfo(opCtx, page, nav)
	if err != nil {
		return r.conclude(ctx, p.Common, res, start, nil, nil, err)
	}
	if info.Status != nil {
		res.Data = map[string]any{"status": *info.Status}
	}

	r.logger.Info("Page opened.",
		zap.String("correlation_id", id),
		zap.String("url", info.URL),
		zap.String("backend", string(h.Transport.Backend())),
	)
	return r.conclude(ctx, p.Common, res, start, h, page, nil)
}
