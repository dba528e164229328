package executor

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
)

// DetectParams drive the detect operation.
type DetectParams struct {
	Common
	Conditions []schemas.ConditionSpec `json:"conditions"`
}

// Detect evaluates the condition batch against the session's active page.
// Conditions are independent; the operation succeeds even when every
// condition fails, because a negative detection is still an answer. The
// result data carries the merged summary.
func (r *Runner) Detect(ctx context.Context, p DetectParams) (*schemas.ActionResult, error) {
	id := p.resolveID()
	res := schemas.NewActionResult("detect", id)
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

	detectCtx, detectCancel := pageContext(page, p.Common)
	defer detectCancel()

	summary := r.detector.EvaluateAll(detectCtx, p.Conditions)
	res.Data = summary

	passed := 0
	for _, d := range summary.Details {
		if d.Passed {
			passed++
		}
	}
	r.logger.Debug("Detection batch evaluated.",
		zap.String("correlation_id", id),
		zap.Int("conditions", len(summary.Details)),
		zap.Int("passed", passed),
	)
	return r.conclude(ctx, p.Common, res, start, h, page, nil)
}
