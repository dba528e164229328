// File: internal/transport/navigate.go
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// navigateNoWait issues the navigation without waiting for any load event.
// chromedp.Navigate blocks until the frame stops loading, which is exactly
// what the "none" and "fixed" wait policies must not do.
func navigateNoWait(targetURL string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		_, _, errText, err := page.Navigate(targetURL).Do(ctx)
		return navigationOutcome(errText, err)
	}
}

// navigationOutcome folds the protocol-level error text and the transport
// error into one result. A navigation can fail either way: the CDP call
// itself errors, or it succeeds but reports a load failure as text.
func navigationOutcome(errText string, err error) error {
	if err != nil {
		return err
	}
	if errText != "" {
		return fmt.Errorf("page load error: %s", errText)
	}
	return nil
}

// waitReadyState polls document.readyState until it reaches at least the
// given state. "interactive" corresponds to DOMContentLoaded, "complete" to
// the window load event.
func waitReadyState(min string) chromedp.ActionFunc {
	rank := map[string]int{"loading": 0, "interactive": 1, "complete": 2}
	want := rank[min]

	return func(ctx context.Context) error {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			var state string
			if err := chromedp.Evaluate(`document.readyState`, &state).Do(ctx); err != nil {
				return err
			}
			if rank[state] >= want {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}
