package stealth

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

//go:embed evasions.js
var evasionsScript string

// Persona defines the browser characteristics to emulate before the first
// navigation of a session.
type Persona struct {
	UserAgent string
	Platform  string
	Languages []string
	Timezone  string
	Locale    string
	Width     int64
	Height    int64
}

// DefaultPersona provides a realistic default browser profile with a
// standard desktop viewport.
var DefaultPersona = Persona{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	Platform:  "Win32",
	Languages: []string{"en-US", "en"},
	Timezone:  "America/Los_Angeles",
	Locale:    "en-US",
	Width:     1920,
	Height:    1080,
}

// Apply constructs a sequence of Chrome DevTools Protocol actions that make
// a headless browser present like a standard, user-operated one: custom user
// agent, standard viewport metrics, and a script that removes the usual
// automation tells (navigator.webdriver and friends).
func Apply(p Persona, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying browser stealth persona",
		zap.String("userAgent", p.UserAgent),
		zap.String("platform", p.Platform),
	)

	return chromedp.Tasks{
		// 1. Override the User-Agent.
		emulation.SetUserAgentOverride(p.UserAgent),

		// 2. Emulate a standard desktop viewport. Headless Chrome defaults
		// to an 800x600 window, which is a well known automation tell.
		emulation.SetDeviceMetricsOverride(p.Width, p.Height, 1.0, false),

		// 3. Inject the evasions script so it runs on every new document
		// before any page script can inspect the environment.
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(evasionsScript).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),

		// 4. Pin timezone and locale to the persona.
		emulation.SetTimezoneOverride(p.Timezone),
		emulation.SetLocaleOverride().WithLocale(p.Locale),

		// 5. Keep the Accept-Language header consistent with the persona.
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": acceptLanguage(p.Languages),
		}),
	}
}

// acceptLanguage renders the persona languages as an Accept-Language value
// with descending quality weights.
func acceptLanguage(langs []string) string {
	if len(langs) == 0 {
		return "en-US,en;q=0.9"
	}
	if len(langs) == 1 {
		return langs[0]
	}
	return fmt.Sprintf("%s,%s;q=0.9", langs[0], langs[1])
}
