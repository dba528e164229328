package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/registry"
	"github.com/xkilldash9x/ventriloquist/internal/transport"
)

// FollowUpKind names the action taken when a decision group matches.
type FollowUpKind string

const (
	FollowUpNone     FollowUpKind = "none"
	FollowUpClick    FollowUpKind = "click"
	FollowUpFill     FollowUpKind = "fill"
	FollowUpNavigate FollowUpKind = "navigate"
)

// FollowUp is the optional action a matched group triggers.
type FollowUp struct {
	Kind     FollowUpKind `json:"kind"`
	Selector string       `json:"selector,omitempty"`
	// Field is the field spec applied for the fill follow-up.
	Field *schemas.FieldSpec `json:"field,omitempty"`
	// URL is the navigation target for the navigate follow-up.
	URL  string             `json:"url,omitempty"`
	Wait schemas.WaitPolicy `json:"wait,omitempty"`
}

// DecisionGroup is one branch: a named condition set plus its follow-up.
type DecisionGroup struct {
	Name       string                  `json:"name"`
	Conditions []schemas.ConditionSpec `json:"conditions"`
	Action     FollowUp                `json:"action"`
}

// DecisionParams drive the decision operation.
type DecisionParams struct {
	Common
	Groups []DecisionGroup `json:"groups"`
	// FallbackAction runs when no group matches. Nil means no match is
	// simply reported.
	FallbackAction *FollowUp `json:"fallbackAction,omitempty"`
}

// decisionOutcome is the data payload of a decision result.
type decisionOutcome struct {
	MatchedGroup string                    `json:"matchedGroup,omitempty"`
	ActionTaken  FollowUpKind              `json:"actionTaken,omitempty"`
	Groups       map[string]bool           `json:"groups"`
	Details      []schemas.ConditionResult `json:"details,omitempty"`
}

// Decision evaluates condition groups in order and performs the follow-up
// of the first group whose conditions all pass. Later groups are still
// evaluated for the outcome map, but only the first match acts.
func (r *Runner) Decision(ctx context.Context, p DecisionParams) (*schemas.ActionResult, error) {
	id := p.resolveID()
	res := schemas.NewActionResult("decision", id)
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

	evalCtx, evalCancel := pageContext(page, p.Common)
	defer evalCancel()

	outcome := decisionOutcome{Groups: make(map[string]bool, len(p.Groups))}
	var matched *DecisionGroup
	for i := range p.Groups {
		group := &p.Groups[i]
		summary := r.detector.EvaluateAll(evalCtx, group.Conditions)
		pass := len(summary.Details) > 0
		for _, d := range summary.Details {
			if !d.Passed {
				pass = false
				break
			}
		}
		outcome.Groups[group.Name] = pass
		outcome.Details = append(outcome.Details, summary.Details...)
		if pass && matched == nil {
			matched = group
		}
	}

	action := p.FallbackAction
	if matched != nil {
		outcome.MatchedGroup = matched.Name
		action = &matched.Action
	}

	if action != nil && action.Kind != FollowUpNone && action.Kind != "" {
		outcome.ActionTaken = action.Kind
		if err := r.followUp(opCtx, evalCtx, h, page, *action); err != nil {
			res.Data = outcome
			return r.conclude(ctx, p.Common, res, start, nil, nil,
				fmt.Errorf("follow-up %s failed: %w", action.Kind, err))
		}
	}

	res.Data = outcome
	r.logger.Info("Decision evaluated.",
		zap.String("correlation_id", id),
		zap.String("matched", outcome.MatchedGroup),
		zap.String("action", string(outcome.ActionTaken)),
	)
	return r.conclude(ctx, p.Common, res, start, h, page, nil)
}

func (r *Runner) followUp(opCtx, pageCtx context.Context, h *registry.Handle, page *transport.Page, action FollowUp) error {
	switch action.Kind {
	case FollowUpClick:
		_, err := r.clicker.Click(pageCtx, action.Selector)
		return err
	case FollowUpFill:
		if action.Field == nil {
			return fmt.Errorf("fill follow-up requires a field spec")
		}
		return r.former.SetField(pageCtx, *action.Field)
	case FollowUpNavigate:
		_, err := h.Transport.NavigateTo(opCtx, page, action.URL, action.Wait)
		return err
	}
	return fmt.Errorf("unknown follow-up kind %q", action.Kind)
}
