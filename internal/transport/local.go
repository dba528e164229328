// File: internal/transport/local.go
package transport

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

// assumedDisplayWidth/Height stand in for the primary display when centering
// a headed window; the real display geometry is not knowable before launch.
const (
	assumedDisplayWidth  = 1920
	assumedDisplayHeight = 1080
)

// local launches a Chrome process on this machine, or attaches to an
// already-running instance through its remote debugging port.
type local struct {
	core
	creds schemas.LocalCredentials
}

func newLocal(creds schemas.LocalCredentials, netCfg config.NetworkConfig, logger *zap.Logger) *local {
	return &local{
		core:  newCore(schemas.BackendLocal, netCfg, logger, creds.Stealth),
		creds: creds,
	}
}

// Connect either attaches to a running instance or launches a new process.
func (t *local) Connect(ctx context.Context) (*Browser, error) {
	if t.creds.AttachToExisting {
		return t.attach(ctx)
	}
	return t.launch(ctx)
}

// attach connects to the debug port of an already-running instance. The
// allocator resolves the browser WebSocket URL from /json/version itself.
func (t *local) attach(ctx context.Context) (*Browser, error) {
	host := t.creds.DebugHost
	if host == "" {
		host = "127.0.0.1"
	}
	debugURL := fmt.Sprintf("http://%s:%d", host, t.creds.DebugPort)
	t.logger.Debug("Attaching to running browser.", zap.String("debug_url", debugURL))
	return t.connectRemote(ctx, debugURL, true)
}

// launch starts a fresh Chrome process. The allocator is rooted in
// context.Background so the process outlives the connect call.
func (t *local) launch(ctx context.Context) (*Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), t.execOptions()...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	timeout := t.creds.ConnectionTimeout.Std()
	if timeout <= 0 {
		timeout = t.netCfg.ConnectTimeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	launchCtx, launchCancel := context.WithTimeout(browserCtx, timeout)
	defer launchCancel()

	if err := chromedp.Run(launchCtx); err != nil {
		cancel()
		allocCancel()
		if ctx.Err() != nil {
			return nil, NewError(KindTimeout, t.backend, "launch canceled by caller", ctx.Err())
		}
		return nil, ClassifyConnect(t.backend, err)
	}

	t.logger.Debug("Local browser launched.", zap.Bool("headless", t.creds.Headless))
	return NewBrowser(browserCtx, cancel, allocCancel, ""), nil
}

// execOptions assembles the launch flag set: stability defaults, the
// caller's raw arguments, and window geometry for headed runs.
func (t *local) execOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	if t.creds.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(t.creds.ExecutablePath))
	}
	if t.creds.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(t.creds.UserDataDir))
	}
	if !t.creds.Headless {
		opts = append(opts, chromedp.Flag("headless", false))

		width, height := t.creds.WindowWidth, t.creds.WindowHeight
		if width <= 0 || height <= 0 {
			width, height = 1280, 900
		}
		opts = append(opts, chromedp.WindowSize(width, height))

		x, y := t.creds.WindowX, t.creds.WindowY
		if t.creds.AutoCenter {
			x = (assumedDisplayWidth - width) / 2
			y = (assumedDisplayHeight - height) / 2
			if x < 0 {
				x = 0
			}
			if y < 0 {
				y = 0
			}
		}
		opts = append(opts, chromedp.Flag("window-position", fmt.Sprintf("%d,%d", x, y)))
	}

	// Automation tell-tale flags off regardless of the stealth toggle; the
	// persona script only layers on top of these.
	opts = append(opts,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)

	for _, arg := range t.creds.LaunchArgs {
		name, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if !found {
			opts = append(opts, chromedp.Flag(name, true))
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}

	return opts
}
