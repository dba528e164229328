package interact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/config"
)

// Former fills form fields and submits forms with page-change verification.
type Former struct {
	cfg          config.FormConfig
	scrollSettle time.Duration
	clicker      *Clicker
	logger       *zap.Logger

	// run, eval and snapshot drive the page; function fields so tests can
	// substitute a canned page.
	run      runFunc
	eval     evalFunc
	snapshot func(ctx context.Context) (pageState, error)
}

func NewFormer(cfg config.InteractionConfig, logger *zap.Logger) *Former {
	return &Former{
		cfg:          cfg.Form,
		scrollSettle: cfg.ScrollSettle,
		clicker:      NewClicker(cfg, logger),
		logger:       logger.Named("form"),
		run:          chromedp.Run,
		eval:         chromedpEval,
		snapshot:     snapshotPage,
	}
}

// SetField applies one field spec to the page. The field is scrolled into
// view first; interaction with an off-screen control is flaky on pages that
// lazy-render below the fold.
func (f *Former) SetField(ctx context.Context, field schemas.FieldSpec) error {
	EnsureVisible(ctx, field.Selector, f.scrollSettle, f.logger)

	switch field.Kind {
	case schemas.FieldText, "":
		return f.setText(ctx, field)
	case schemas.FieldSelect:
		return f.setSelect(ctx, field.Selector, []string{field.Value}, field.Match)
	case schemas.FieldMultiSelect:
		values := field.Values
		if len(values) == 0 && field.Value != "" {
			for _, v := range strings.Split(field.Value, ",") {
				values = append(values, strings.TrimSpace(v))
			}
		}
		return f.setSelect(ctx, field.Selector, values, field.Match)
	case schemas.FieldCheckbox:
		return f.setChecked(ctx, field.Selector, field.Checked)
	case schemas.FieldRadio:
		_, err := f.clicker.Click(ctx, field.Selector)
		return err
	case schemas.FieldFile:
		return f.run(ctx, chromedp.SetUploadFiles(field.Selector, []string{field.Value}, chromedp.ByQuery))
	}
	return fmt.Errorf("unknown field kind %q", field.Kind)
}

// setText waits for the input, optionally clears it via script, then types.
// Clearing goes through script because SetValue fails on transiently
// non-interactable nodes, and typing does not replace existing content.
func (f *Former) setText(ctx context.Context, field schemas.FieldSpec) error {
	if err := f.run(ctx, chromedp.WaitVisible(field.Selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("text field %q not visible: %w", field.Selector, err)
	}

	if field.ClearFirst {
		script := fmt.Sprintf(`(function(sel){
			const el = document.querySelector(sel);
			if (!el || el.disabled || el.readOnly) return false;
			el.value = "";
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		})(%s)`, jsEncode(field.Selector))
		var cleared bool
		if err := f.eval(ctx, script, &cleared); err != nil {
			return fmt.Errorf("clearing %q failed: %w", field.Selector, err)
		}
		if !cleared {
			return fmt.Errorf("text field %q is disabled, read-only or gone", field.Selector)
		}
	}

	if err := f.run(ctx, chromedp.SendKeys(field.Selector, field.Value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("typing into %q failed: %w", field.Selector, err)
	}
	return nil
}

// setSelect reads the control's options, resolves each wanted value through
// the match policy, then applies the selection in one script pass so that a
// multi-select fires a single change event.
func (f *Former) setSelect(ctx context.Context, selector string, wants []string, policy schemas.MatchPolicy) error {
	if len(wants) == 0 {
		return fmt.Errorf("select %q: no value given", selector)
	}

	read := fmt.Sprintf(`(function(sel){
		const el = document.querySelector(sel);
		if (!el || !el.options) return null;
		return Array.from(el.options).map(o => ({value: o.value, label: o.label || o.text}));
	})(%s)`, jsEncode(selector))
	var options []Option
	if err := f.eval(ctx, read, &options); err != nil {
		return fmt.Errorf("reading options of %q failed: %w", selector, err)
	}
	if options == nil {
		return fmt.Errorf("no select element matches %q", selector)
	}

	chosen := make([]string, 0, len(wants))
	for _, want := range wants {
		m, err := ResolveOption(options, want, policy)
		if err != nil {
			return fmt.Errorf("select %q: %w", selector, err)
		}
		f.logger.Debug("Resolved option.",
			zap.String("selector", selector),
			zap.String("wanted", want),
			zap.String("value", m.Option.Value),
			zap.Float64("score", m.Score),
		)
		chosen = append(chosen, m.Option.Value)
	}

	apply := fmt.Sprintf(`(function(sel, values){
		const el = document.querySelector(sel);
		if (!el) return false;
		const set = new Set(values);
		for (const o of el.options) o.selected = set.has(o.value);
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})(%s, %s)`, jsEncode(selector), jsEncode(chosen))
	var ok bool
	if err := f.eval(ctx, apply, &ok); err != nil {
		return fmt.Errorf("applying selection on %q failed: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("select %q disappeared while applying options", selector)
	}
	return nil
}

// setChecked drives a checkbox to the wanted state. Toggling goes through
// click() so the page sees the event sequence a user would produce.
func (f *Former) setChecked(ctx context.Context, selector string, want bool) error {
	script := fmt.Sprintf(`(function(sel, want){
		const el = document.querySelector(sel);
		if (!el) return false;
		if (el.checked !== want) el.click();
		return el.checked === want;
	})(%s, %s)`, jsEncode(selector), jsEncode(want))
	var ok bool
	if err := f.eval(ctx, script, &ok); err != nil {
		return fmt.Errorf("checkbox %q failed: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("checkbox %q missing or refused state change", selector)
	}
	return nil
}

// SubmitReport records how a submission concluded.
type SubmitReport struct {
	Attempts int `json:"attempts"`
	// RetrySuccess marks a submission that only landed on a retry pass.
	RetrySuccess bool `json:"retrySuccess,omitempty"`
	// Changed reports whether the page moved (URL or title) after submit.
	Changed bool `json:"changed"`
}

// Submit clicks the submit control and verifies the page actually moved by
// comparing URL and title before and after. When retries are enabled, a
// submission that produced no change is re-attempted after a delay. A final
// no-change outcome is reported, not failed; the caller decides whether a
// stationary page is acceptable for its operation.
func (f *Former) Submit(ctx context.Context, selector string, wait schemas.SubmitWait, waitFor time.Duration) (SubmitReport, error) {
	passes := f.submitPasses()

	report := SubmitReport{}
	for attempt := 1; attempt <= passes; attempt++ {
		report.Attempts = attempt

		before, err := f.snapshot(ctx)
		if err != nil {
			return report, err
		}
		if _, err := f.clicker.Click(ctx, selector); err != nil {
			return report, fmt.Errorf("submit control: %w", err)
		}
		if err := f.waitAfterSubmit(ctx, wait, waitFor); err != nil {
			return report, err
		}
		after, err := f.snapshot(ctx)
		if err != nil {
			return report, err
		}

		if pageChanged(before, after) {
			report.Changed = true
			report.RetrySuccess = attempt > 1
			if report.RetrySuccess {
				f.logger.Info("Form submission succeeded on retry.", zap.Int("attempt", attempt))
			}
			return report, nil
		}

		f.logger.Warn("Submission produced no page change.",
			zap.Int("attempt", attempt),
			zap.String("url", after.URL),
		)
		if attempt < passes && f.cfg.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(f.cfg.RetryDelay):
			}
		}
	}
	return report, nil
}

func (f *Former) submitPasses() int {
	if !f.cfg.RetryEnabled {
		return 1
	}
	passes := f.cfg.MaxRetries + 1
	if passes < 2 {
		passes = 2
	}
	return passes
}

func (f *Former) waitAfterSubmit(ctx context.Context, wait schemas.SubmitWait, waitFor time.Duration) error {
	if waitFor <= 0 {
		waitFor = f.cfg.SubmitWait
	}
	switch wait {
	case schemas.SubmitWaitNone:
		return nil
	case schemas.SubmitWaitFixed:
		if waitFor <= 0 {
			waitFor = 2 * time.Second
		}
		return f.run(ctx, chromedp.Sleep(waitFor))
	case schemas.SubmitWaitDOMReady:
		return waitDocumentState(ctx, f.eval, "interactive", waitFor)
	case schemas.SubmitWaitLoad, schemas.SubmitWaitNavigation, "":
		// A same-document submission keeps readyState at complete, which
		// makes this wait a no-op; the change check still runs after it.
		return waitDocumentState(ctx, f.eval, "complete", waitFor)
	}
	return fmt.Errorf("unknown submit wait policy %q", wait)
}
