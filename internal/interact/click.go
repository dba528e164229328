package interact

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/internal/config"
)

// ClickStrategy names one rung of the click escalation ladder.
type ClickStrategy string

const (
	// ClickNative is a trusted input event dispatched by the browser.
	ClickNative ClickStrategy = "native"
	// ClickScript invokes the element's click() method from page script.
	ClickScript ClickStrategy = "script"
	// ClickPointer synthesizes a raw mouse press/release at the element
	// center, for controls that intercept the DOM click event.
	ClickPointer ClickStrategy = "pointer"
)

// clickLadder is the escalation order. Native first because it is the only
// strategy sites cannot distinguish from a real user.
var clickLadder = []ClickStrategy{ClickNative, ClickScript, ClickPointer}

// ClickReport records which strategy finally landed and after how many full
// passes over the ladder.
type ClickReport struct {
	Strategy ClickStrategy `json:"strategy"`
	Attempts int           `json:"attempts"`
}

// Clicker performs robust clicks. One instance serves a whole session.
type Clicker struct {
	cfg          config.ClickConfig
	scrollSettle time.Duration
	logger       *zap.Logger

	// run and eval drive the page; function fields so tests can substitute
	// a canned page.
	run  runFunc
	eval evalFunc
}

func NewClicker(cfg config.InteractionConfig, logger *zap.Logger) *Clicker {
	return &Clicker{
		cfg:          cfg.Click,
		scrollSettle: cfg.ScrollSettle,
		logger:       logger.Named("click"),
		run:          chromedp.Run,
		eval:         chromedpEval,
	}
}

// Click walks the strategy ladder until one lands, repeating the whole pass
// up to the configured retry count with a delay in between. The returned
// report is meaningful even on failure: it carries the attempt count.
func (c *Clicker) Click(ctx context.Context, selector string) (ClickReport, error) {
	passes := c.cfg.Retries + 1
	if passes < 1 {
		passes = 1
	}
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	report := ClickReport{}
	var lastErr error
	for attempt := 1; attempt <= passes; attempt++ {
		report.Attempts = attempt
		EnsureVisible(ctx, selector, c.scrollSettle, c.logger)

		for _, strategy := range clickLadder {
			err := c.tryStrategy(ctx, strategy, selector, timeout)
			if err == nil {
				report.Strategy = strategy
				if strategy != ClickNative || attempt > 1 {
					c.logger.Debug("Click landed after escalation.",
						zap.String("selector", selector),
						zap.String("strategy", string(strategy)),
						zap.Int("attempt", attempt),
					)
				}
				return report, nil
			}
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			lastErr = err
			c.logger.Debug("Click strategy failed.",
				zap.String("selector", selector),
				zap.String("strategy", string(strategy)),
				zap.Error(err),
			)
		}

		if attempt < passes && c.cfg.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}
	}
	return report, fmt.Errorf("element %q did not accept a click after %d attempts: %w", selector, passes, lastErr)
}

func (c *Clicker) tryStrategy(ctx context.Context, strategy ClickStrategy, selector string, timeout time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch strategy {
	case ClickNative:
		return c.run(opCtx,
			chromedp.WaitVisible(selector, chromedp.ByQuery),
			chromedp.Click(selector, chromedp.ByQuery),
		)

	case ClickScript:
		script := fmt.Sprintf(`(function(sel){
			const el = document.querySelector(sel);
			if (!el) return false;
			el.click();
			return true;
		})(%s)`, jsEncode(selector))
		var ok bool
		if err := c.eval(opCtx, script, &ok); err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("script click: no element matches %q", selector)
		}
		return nil

	case ClickPointer:
		return c.pointerClick(opCtx, selector)
	}
	return fmt.Errorf("unknown click strategy %q", strategy)
}

// pointerClick dispatches raw mouse events at the element's center point.
func (c *Clicker) pointerClick(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(function(sel){
		const el = document.querySelector(sel);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		return [r.left + r.width / 2, r.top + r.height / 2];
	})(%s)`, jsEncode(selector))

	var center []float64
	if err := c.eval(ctx, script, &center); err != nil {
		return err
	}
	if len(center) != 2 {
		return fmt.Errorf("pointer click: no element matches %q", selector)
	}
	return c.run(ctx, chromedp.MouseClickXY(center[0], center[1]))
}
