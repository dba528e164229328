package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
)

// AuthenticateParams drive a credential form login.
type AuthenticateParams struct {
	Common
	UserSelector string `json:"userSelector"`
	Username     string `json:"username"`
	PassSelector string `json:"passSelector"`
	Password     string `json:"password"`

	Submit SubmitSpec `json:"submit"`
	// SuccessCondition optionally verifies the login landed, evaluated
	// after submission. Nil means page-change verification alone decides.
	SuccessCondition *schemas.ConditionSpec `json:"successCondition,omitempty"`
}

// authOutcome is the data payload of an authenticate result. The password
// never appears in it.
type authOutcome struct {
	Submitted bool `json:"submitted"`
	Changed   bool `json:"changed"`
	Attempts  int  `json:"attempts"`
	// Verified is set when a success condition was supplied and passed.
	Verified *bool `json:"verified,omitempty"`
}

// Authenticate fills the credential fields, submits with page-change
// verification, and optionally checks a post-login success condition. A
// submission that neither moved the page nor passed the success condition
// fails; staying on a login page is what a rejected login looks like.
func (r *Runner) Authenticate(ctx context.Context, p AuthenticateParams) (*schemas.ActionResult, error) {
	id := p.resolveID()
	res := schemas.NewActionResult("authenticate", id)
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

	authCtx, authCancel := pageContext(page, p.Common)
	defer authCancel()

	fields := []schemas.FieldSpec{
		{Kind: schemas.FieldText, Selector: p.UserSelector, Value: p.Username, ClearFirst: true},
		{Kind: schemas.FieldText, Selector: p.PassSelector, Value: p.Password, ClearFirst: true},
	}
	for _, field := range fields {
		if err := r.former.SetField(authCtx, field); err != nil {
			return r.conclude(ctx, p.Common, res, start, nil, nil,
				fmt.Errorf("credential field %q: %w", field.Selector, err))
		}
	}

	report, err := r.former.Submit(authCtx, p.Submit.Selector, p.Submit.Wait, p.Submit.WaitFor.Std())
	outcome := authOutcome{Submitted: err == nil, Changed: report.Changed, Attempts: report.Attempts}
	res.Data = outcome
	if err != nil {
		return r.conclude(ctx, p.Common, res, start, nil, nil, err)
	}

	if p.SuccessCondition != nil {
		check := r.detector.Evaluate(authCtx, *p.SuccessCondition)
		verified := check.Passed
		outcome.Verified = &verified
		res.Data = outcome
		if !verified {
			return r.conclude(ctx, p.Common, res, start, nil, nil,
				fmt.Errorf("login verification %q did not pass", p.SuccessCondition.Name))
		}
	} else if !report.Changed {
		return r.conclude(ctx, p.Common, res, start, nil, nil,
			fmt.Errorf("login submission produced no page change after %d attempts", report.Attempts))
	}

	r.logger.Info("Authentication complete.",
		zap.String("correlation_id", id),
		zap.Bool("changed", report.Changed),
		zap.Int("attempts", report.Attempts),
	)
	return r.conclude(ctx, p.Common, res, start, h, page, nil)
}
