// Package detect evaluates declarative page conditions: element existence
// (immediate or actively polled), text and attribute comparison, match
// counting and URL inspection. Conditions are independent; one failing or
// erroring never stops the rest of the batch.
package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/config"
)

// Engine runs condition batches against a page.
type Engine struct {
	cfg    config.DetectionConfig
	logger *zap.Logger

	// eval executes a script on the page and unmarshals the result. It is a
	// function field so tests can substitute a canned page.
	eval func(ctx context.Context, script string, out any) error
}

func NewEngine(cfg config.DetectionConfig, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.Named("detect"),
		eval: func(ctx context.Context, script string, out any) error {
			return chromedp.Run(ctx, chromedp.Evaluate(script, out))
		},
	}
}

// EvaluateAll runs every condition and merges the outcomes. The summary maps
// condition names to their formatted outputs; a later condition with a
// duplicate name overwrites the earlier key in the map, while Details keeps
// both in order.
func (e *Engine) EvaluateAll(ctx context.Context, specs []schemas.ConditionSpec) schemas.DetectionSummary {
	summary := schemas.DetectionSummary{
		Results: make(map[string]any, len(specs)),
		Details: make([]schemas.ConditionResult, 0, len(specs)),
	}
	for _, spec := range specs {
		res := e.Evaluate(ctx, spec)
		summary.Results[res.Name] = res.Output
		summary.Details = append(summary.Details, res)
	}
	return summary
}

// Evaluate runs one condition. Evaluation errors are captured in the result
// as a failed condition rather than propagated; a selector that cannot be
// inspected is indistinguishable from one that does not match.
func (e *Engine) Evaluate(ctx context.Context, spec schemas.ConditionSpec) schemas.ConditionResult {
	res := schemas.ConditionResult{Name: spec.Name}

	passed, actual, err := e.check(ctx, spec)
	if err != nil {
		e.logger.Debug("Condition evaluation errored.",
			zap.String("name", spec.Name),
			zap.String("kind", string(spec.Kind)),
			zap.Error(err),
		)
		res.Error = err.Error()
		passed = false
	}
	if spec.Invert {
		passed = !passed
	}

	res.Passed = passed
	res.Actual = actual
	res.Output = formatOutput(spec, passed, actual)
	return res
}

func (e *Engine) check(ctx context.Context, spec schemas.ConditionSpec) (bool, any, error) {
	switch spec.Kind {
	case schemas.ConditionExists:
		found, err := e.exists(ctx, spec)
		return found, found, err

	case schemas.ConditionText:
		text, found, err := e.readString(ctx, spec.Selector, "")
		if err != nil || !found {
			return false, nil, err
		}
		ok, err := compareString(text, spec.Expected, spec.Comparator, spec.CaseSensitive)
		return ok, text, err

	case schemas.ConditionAttribute:
		if spec.Attribute == "" {
			return false, nil, fmt.Errorf("condition %q: attribute name required", spec.Name)
		}
		value, found, err := e.readString(ctx, spec.Selector, spec.Attribute)
		if err != nil || !found {
			return false, nil, err
		}
		ok, err := compareString(value, spec.Expected, spec.Comparator, spec.CaseSensitive)
		return ok, value, err

	case schemas.ConditionCount:
		count, err := e.count(ctx, spec.Selector)
		if err != nil {
			return false, nil, err
		}
		return compareNumeric(count, spec.ExpectedCount, spec.NumComparator), count, nil

	case schemas.ConditionURL:
		var url string
		if err := e.eval(ctx, `window.location.href`, &url); err != nil {
			return false, nil, fmt.Errorf("reading location failed: %w", err)
		}
		ok, err := compareString(url, spec.Expected, spec.Comparator, spec.CaseSensitive)
		return ok, url, err
	}
	return false, nil, fmt.Errorf("unknown condition kind %q", spec.Kind)
}

// exists probes for the selector, either once or polled until the deadline.
func (e *Engine) exists(ctx context.Context, spec schemas.ConditionSpec) (bool, error) {
	probe := func(ctx context.Context) (bool, error) {
		var found bool
		script := fmt.Sprintf(`document.querySelector(%s) !== null`, jsLiteral(spec.Selector))
		if err := e.eval(ctx, script, &found); err != nil {
			return false, fmt.Errorf("existence probe failed: %w", err)
		}
		return found, nil
	}

	if !spec.WaitForElement {
		return probe(ctx)
	}

	timeout := spec.WaitTimeout.Std()
	if timeout <= 0 {
		timeout = e.cfg.WaitTimeout
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	interval := e.cfg.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		found, err := probe(waitCtx)
		if err == nil && found {
			return true, nil
		}
		select {
		case <-waitCtx.Done():
			// Timing out the wait means the element never appeared; that is
			// a negative outcome, not an evaluation error.
			return false, nil
		case <-time.After(interval):
		}
	}
}

// readString reads an element's text content, or an attribute when attr is
// non-empty. The second return distinguishes a missing element from an
// empty value.
func (e *Engine) readString(ctx context.Context, selector, attr string) (string, bool, error) {
	var script string
	if attr == "" {
		script = fmt.Sprintf(`(function(sel){
			const el = document.querySelector(sel);
			return el === null ? null : (el.textContent || "").trim();
		})(%s)`, jsLiteral(selector))
	} else {
		script = fmt.Sprintf(`(function(sel, attr){
			const el = document.querySelector(sel);
			return el === null ? null : el.getAttribute(attr);
		})(%s, %s)`, jsLiteral(selector), jsLiteral(attr))
	}

	var value *string
	if err := e.eval(ctx, script, &value); err != nil {
		return "", false, fmt.Errorf("reading %q failed: %w", selector, err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (e *Engine) count(ctx context.Context, selector string) (int, error) {
	var count int
	script := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsLiteral(selector))
	if err := e.eval(ctx, script, &count); err != nil {
		return 0, fmt.Errorf("counting %q failed: %w", selector, err)
	}
	return count, nil
}

func jsLiteral(s string) string {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
