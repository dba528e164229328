// Package interact implements the element-level primitives that page
// operations compose: robust clicking with strategy escalation, scroll-into-
// view visibility management, dropdown option matching and form filling.
// Every primitive drives the page through its chromedp context and bounds
// itself with an operation-scoped timeout.
package interact

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// jsEncode marshals a Go value into a JavaScript literal for safe embedding
// in an evaluated snippet.
func jsEncode(v any) string {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

// evalFunc executes a script on the page and unmarshals the result. Clicker
// and Former carry one as a function field so tests can substitute a canned
// page.
type evalFunc func(ctx context.Context, script string, out any) error

// runFunc executes chromedp actions on the page. Same seam, action-shaped.
type runFunc func(ctx context.Context, actions ...chromedp.Action) error

func chromedpEval(ctx context.Context, script string, out any) error {
	return chromedp.Run(ctx, chromedp.Evaluate(script, out))
}

// EnsureVisible scrolls the element to the viewport center when it is not
// already fully in view. It reports whether a scroll was issued and never
// fails the surrounding operation; an element that cannot be scrolled to is
// an element the following interaction will complain about anyway.
func EnsureVisible(ctx context.Context, selector string, settle time.Duration, logger *zap.Logger) bool {
	script := fmt.Sprintf(`(function(sel){
		const el = document.querySelector(sel);
		if (!el) return false;
		const r = el.getBoundingClientRect();
		if (r.top >= 0 && r.bottom <= window.innerHeight) return false;
		el.scrollIntoView({block: 'center', inline: 'center', behavior: 'smooth'});
		return true;
	})(%s)`, jsEncode(selector))

	var acted bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &acted)); err != nil {
		logger.Debug("Scroll-into-view failed (ignored).", zap.String("selector", selector), zap.Error(err))
		return false
	}
	if acted && settle > 0 {
		_ = chromedp.Run(ctx, chromedp.Sleep(settle))
	}
	return acted
}

// pageState is the URL/title pair used to detect that an action moved the
// page somewhere else.
type pageState struct {
	URL   string
	Title string
}

func snapshotPage(ctx context.Context) (pageState, error) {
	var st pageState
	err := chromedp.Run(ctx,
		chromedp.Location(&st.URL),
		chromedp.Title(&st.Title),
	)
	if err != nil {
		return pageState{}, fmt.Errorf("page snapshot failed: %w", err)
	}
	return st, nil
}

// pageChanged reports whether the page moved: either the URL or the title
// differs. Single-page applications routinely rewrite the title without a
// URL change, so both are compared.
func pageChanged(before, after pageState) bool {
	return before.URL != after.URL || before.Title != after.Title
}

// waitDocumentState polls document.readyState until it reaches at least the
// given minimum ("interactive" or "complete"), bounded by the given window.
func waitDocumentState(ctx context.Context, eval evalFunc, minState string, bound time.Duration) error {
	if bound <= 0 {
		bound = 20 * time.Second
	}
	rank := map[string]int{"loading": 0, "interactive": 1, "complete": 2}
	want, ok := rank[minState]
	if !ok {
		return fmt.Errorf("unknown document state %q", minState)
	}

	waitCtx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()
	for {
		var state string
		if err := eval(waitCtx, `document.readyState`, &state); err != nil {
			// A navigation can destroy the execution context mid-poll; keep
			// polling until the deadline decides.
			if waitCtx.Err() != nil {
				return fmt.Errorf("document never reached %q state: %w", minState, waitCtx.Err())
			}
		} else if rank[state] >= want {
			return nil
		}
		select {
		case <-waitCtx.Done():
			return fmt.Errorf("document never reached %q state: %w", minState, waitCtx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
}
