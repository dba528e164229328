package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
)

// SubmitSpec names the submit control and the post-submit wait behavior.
type SubmitSpec struct {
	Selector string             `json:"selector"`
	Wait     schemas.SubmitWait `json:"wait,omitempty"`
	// WaitFor bounds the post-submit wait; zero falls back to the
	// configured default.
	WaitFor schemas.Duration `json:"waitFor,omitempty"`
}

// FormParams drive the form operation: fill fields in order, then
// optionally submit with page-change verification.
type FormParams struct {
	Common
	Fields []schemas.FieldSpec `json:"fields"`
	Submit *SubmitSpec         `json:"submit,omitempty"`
}

// Form fills the given fields in order and, when a submit spec is present,
// submits and verifies the page moved. The result data carries the submit
// report; a verified no-change submission is still reported as success with
// changed=false, since some forms legitimately stay in place.
func (r *Runner) Form(ctx context.Context, p FormParams) (*schemas.ActionResult, error) {
	id := p.resolveID()
	res := schemas.NewActionResult("form", id)
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

	formCtx, formCancel := pageContext(page, p.Common)
	defer formCancel()

	for i, field := range p.Fields {
		if err := r.former.SetField(formCtx, field); err != nil {
			return r.conclude(ctx, p.Common, res, start, nil, nil,
				fmt.Errorf("field %d (%s %q): %w", i, field.Kind, field.Selector, err))
		}
	}

	if p.Submit != nil {
		report, err := r.former.Submit(formCtx, p.Submit.Selector, p.Submit.Wait, p.Submit.WaitFor.Std())
		res.Data = report
		if err != nil {
			return r.conclude(ctx, p.Common, res, start, nil, nil, err)
		}
		r.logger.Info("Form submitted.",
			zap.String("correlation_id", id),
			zap.Bool("changed", report.Changed),
			zap.Int("attempts", report.Attempts),
		)
	}
	return r.conclude(ctx, p.Common, res, start, h, page, nil)
}
