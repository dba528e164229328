// File: internal/transport/browserless.go
package transport

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/config"
)

// browserless drives a generic remote-debugging cloud service. It is the
// only backend that can resume a prior remote session: the provider keeps
// the browser alive for a grace period and hands it back when the session
// token is presented on the connection URL.
type browserless struct {
	core
	creds   schemas.BrowserlessCredentials
	limiter *rate.Limiter
}

// Compile-time check: browserless is the reconnect-capable backend.
var _ Reconnector = (*browserless)(nil)

func newBrowserless(creds schemas.BrowserlessCredentials, netCfg config.NetworkConfig, logger *zap.Logger) *browserless {
	return &browserless{
		core:    newCore(schemas.BackendBrowserless, netCfg, logger, creds.StealthMode),
		creds:   creds,
		limiter: newConnectLimiter(netCfg.ConnectRatePerMinute),
	}
}

// Connect dials the service using either the direct WebSocket URL or the
// base URL + token pair.
func (t *browserless) Connect(ctx context.Context) (*Browser, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, NewError(KindTimeout, t.backend, "canceled while pacing connect", err)
	}

	wsURL, err := t.connectionURL("")
	if err != nil {
		return nil, err
	}
	return t.connectRemote(ctx, wsURL, false)
}

// Reconnect resumes a prior session by presenting its token on the
// connection URL. Failures are typed like any other connect failure; the
// caller decides whether to fall back to a fresh connection.
func (t *browserless) Reconnect(ctx context.Context, sessionToken string) (*Browser, error) {
	if sessionToken == "" {
		return nil, NewError(KindSession, t.backend, "no session token to reconnect with", nil)
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, NewError(KindTimeout, t.backend, "canceled while pacing reconnect", err)
	}

	wsURL, err := t.connectionURL(sessionToken)
	if err != nil {
		return nil, err
	}
	b, err := t.connectRemote(ctx, wsURL, false)
	if err != nil {
		return nil, err
	}
	// Preserve the token across reconnects even when the provider does not
	// echo it back on the URL.
	if b.SessionToken == "" {
		b.SessionToken = sessionToken
	}
	return b, nil
}

// connectionURL builds the WebSocket connection URL. A non-empty
// sessionToken requests resumption of that session.
func (t *browserless) connectionURL(sessionToken string) (string, error) {
	var u *url.URL
	var err error

	if t.creds.ConnectionType == "direct" {
		u, err = url.Parse(t.creds.WsURL)
		if err != nil {
			return "", NewError(KindDNS, t.backend, "ws_url is not a valid URL", err)
		}
	} else {
		u, err = url.Parse(t.creds.BaseURL)
		if err != nil {
			return "", NewError(KindDNS, t.backend, "base_url is not a valid URL", err)
		}
		switch u.Scheme {
		case "http", "ws":
			u.Scheme = "ws"
		default:
			u.Scheme = "wss"
		}
	}

	q := u.Query()
	if t.creds.Token != "" && q.Get("token") == "" {
		q.Set("token", t.creds.Token)
	}
	if t.creds.StealthMode {
		q.Set("stealth", "true")
	}
	if t.creds.RequestTimeout > 0 {
		q.Set("timeout", strconv.FormatInt(t.creds.RequestTimeout.Std().Milliseconds(), 10))
	}
	if sessionToken != "" {
		q.Set("sessionId", sessionToken)
	}
	u.RawQuery = q.Encode()

	if !strings.HasPrefix(u.Scheme, "ws") {
		return "", NewError(KindDNS, t.backend, fmt.Sprintf("unsupported connection scheme %q", u.Scheme), nil)
	}
	return u.String(), nil
}
