package executor

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
)

// ClickParams drive the click operation.
type ClickParams struct {
	Common
	Selector string `json:"selector"`
}

// Click performs a robust click on the selector, escalating through the
// strategy ladder. The result data records which strategy landed and how
// many attempts it took.
func (r *Runner) Click(ctx context.Context, p ClickParams) (*schemas.ActionResult, error) {
	id := p.resolveID()
	res := schemas.NewActionResult("click", id)
	start := r.now()

	opCtx, cancel := p.opContext(ctx)
	defer cancel()

	h, err := r.session(opCtx, p.Common, id)
	if err != nil {
		return r.conclude(ctx, p.Common, res, start, nil, nil, err)
	}
	page, err := r.page(opCtx, h)
	if err != nil {
		return r.conclude(ctx, p.Common, res, start, nil, nil, err)
	}

	clickCtx, clickCancel := pageContext(page, p.Common)
	defer clickCancel()
	report, err := r.clicker.Click(clickCtx, p.Selector)
	res.Data = report
	if err != nil {
		return r.conclude(ctx, p.Common, res, start, nil, nil, err)
	}

	r.logger.Debug("Click complete.",
		zap.String("correlation_id", id),
		zap.String("selector", p.Selector),
		zap.String("strategy", string(report.Strategy)),
		zap.Int("attempts", report.Attempts),
	)
	return r.conclude(ctx, p.Common, res, start, h, page, nil)
}
