// File: internal/transport/brightdata.go
package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/config"
)

// brightData drives the remote proxy-style scraping browser. The provider
// terminates the proxy and the anti-detection layer on its side, so the
// transport does not push a stealth persona into pages. Navigation outside
// the account's allow-listed domains is rejected before it reaches the wire.
type brightData struct {
	core
	creds   schemas.BrightDataCredentials
	limiter *rate.Limiter
}

func newBrightData(creds schemas.BrightDataCredentials, netCfg config.NetworkConfig, logger *zap.Logger) *brightData {
	return &brightData{
		core:    newCore(schemas.BackendBrightData, netCfg, logger, false),
		creds:   creds,
		limiter: newConnectLimiter(netCfg.ConnectRatePerMinute),
	}
}

// Connect dials the provider supplied WebSocket endpoint. Connect churn is
// paced because the provider bills and throttles per connection.
func (t *brightData) Connect(ctx context.Context) (*Browser, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, NewError(KindTimeout, t.backend, "canceled while pacing connect", err)
	}

	endpoint, err := t.endpointURL()
	if err != nil {
		return nil, err
	}
	return t.connectRemote(ctx, endpoint, false)
}

// endpointURL folds the optional zone password into the endpoint userinfo.
func (t *brightData) endpointURL() (string, error) {
	u, err := url.Parse(t.creds.WebsocketEndpoint)
	if err != nil {
		return "", NewError(KindDNS, t.backend, "websocket endpoint is not a valid URL", err)
	}
	if t.creds.Password != "" && u.User != nil {
		if _, hasPw := u.User.Password(); !hasPw {
			u.User = url.UserPassword(u.User.Username(), t.creds.Password)
		}
	}
	return u.String(), nil
}

// NavigateTo enforces the account's domain allow-list before delegating to
// the shared navigation path. A rejected domain surfaces as a permission
// error that names the offending domain.
func (t *brightData) NavigateTo(ctx context.Context, p *Page, target string, wait schemas.WaitPolicy) (*Navigation, error) {
	if len(t.creds.AuthorizedDomains) > 0 {
		parsed, err := url.Parse(target)
		if err != nil {
			return nil, NewError(KindNavigation, t.backend, "target URL is not parseable", err)
		}
		host := parsed.Hostname()
		if !domainAuthorized(host, t.creds.AuthorizedDomains) {
			return nil, NewError(KindPermission, t.backend,
				fmt.Sprintf("domain %q is not on the account allow-list; request authorization for it", host), nil)
		}
	}
	return t.core.NavigateTo(ctx, p, target, wait)
}

// domainAuthorized accepts exact matches and subdomains of allow-listed entries.
func domainAuthorized(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

// newConnectLimiter paces fresh connections to cloud providers. Zero or
// negative rates fall back to a conservative default.
func newConnectLimiter(perMinute float64) *rate.Limiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return rate.NewLimiter(rate.Limit(perMinute/60.0), 1)
}
