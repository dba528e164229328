// File: internal/transport/transport_test.go
package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/config"
)

func testNetCfg() config.NetworkConfig {
	return config.NetworkConfig{
		ConnectTimeout:       10 * time.Second,
		NavigationTimeout:    30 * time.Second,
		PostLoadWait:         time.Second,
		ConnectRatePerMinute: 600,
	}
}

// -- Factory Tests --

func TestFactoryValidation(t *testing.T) {
	logger := zap.NewNop()
	netCfg := testNetCfg()

	tests := []struct {
		name    string
		creds   schemas.Credentials
		wantErr string
	}{
		{
			name:    "Unknown backend",
			creds:   schemas.Credentials{Kind: "selenium"},
			wantErr: "unknown backend kind",
		},
		{
			name:    "BrightData without endpoint",
			creds:   schemas.Credentials{Kind: schemas.BackendBrightData, BrightData: &schemas.BrightDataCredentials{}},
			wantErr: "websocket endpoint",
		},
		{
			name:    "BrightData missing record",
			creds:   schemas.Credentials{Kind: schemas.BackendBrightData},
			wantErr: "websocket endpoint",
		},
		{
			name: "Browserless direct without ws_url",
			creds: schemas.Credentials{Kind: schemas.BackendBrowserless, Browserless: &schemas.BrowserlessCredentials{
				ConnectionType: "direct",
			}},
			wantErr: "ws_url",
		},
		{
			name: "Browserless standard without token",
			creds: schemas.Credentials{Kind: schemas.BackendBrowserless, Browserless: &schemas.BrowserlessCredentials{
				ConnectionType: "standard",
				BaseURL:        "https://chrome.example.com",
			}},
			wantErr: "base_url and token",
		},
		{
			name: "Local attach without port",
			creds: schemas.Credentials{Kind: schemas.BackendLocal, Local: &schemas.LocalCredentials{
				AttachToExisting: true,
			}},
			wantErr: "debug port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.creds, netCfg, logger)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFactoryConstructsBackends(t *testing.T) {
	logger := zap.NewNop()
	netCfg := testNetCfg()

	bd, err := New(schemas.Credentials{
		Kind:       schemas.BackendBrightData,
		BrightData: &schemas.BrightDataCredentials{WebsocketEndpoint: "wss://brd.example.com:9222"},
	}, netCfg, logger)
	require.NoError(t, err)
	assert.Equal(t, schemas.BackendBrightData, bd.Backend())
	_, ok := AsReconnector(bd)
	assert.False(t, ok, "brightdata must not advertise reconnect support")

	bl, err := New(schemas.Credentials{
		Kind: schemas.BackendBrowserless,
		Browserless: &schemas.BrowserlessCredentials{
			ConnectionType: "standard",
			BaseURL:        "https://chrome.example.com",
			Token:          "tok",
		},
	}, netCfg, logger)
	require.NoError(t, err)
	assert.Equal(t, schemas.BackendBrowserless, bl.Backend())
	_, ok = AsReconnector(bl)
	assert.True(t, ok, "browserless must advertise reconnect support")

	lc, err := New(schemas.Credentials{Kind: schemas.BackendLocal}, netCfg, logger)
	require.NoError(t, err)
	assert.Equal(t, schemas.BackendLocal, lc.Backend())
	_, ok = AsReconnector(lc)
	assert.False(t, ok, "local must not advertise reconnect support")
}

// -- Browserless URL Building --

func TestBrowserlessConnectionURL(t *testing.T) {
	logger := zap.NewNop()

	t.Run("Standard", func(t *testing.T) {
		tr := newBrowserless(schemas.BrowserlessCredentials{
			ConnectionType: "standard",
			BaseURL:        "https://chrome.example.com",
			Token:          "secret",
			StealthMode:    true,
			RequestTimeout: schemas.Duration(45 * time.Second),
		}, testNetCfg(), logger)

		u, err := tr.connectionURL("")
		require.NoError(t, err)
		assert.Contains(t, u, "wss://chrome.example.com")
		assert.Contains(t, u, "token=secret")
		assert.Contains(t, u, "stealth=true")
		assert.Contains(t, u, "timeout=45000")
		assert.NotContains(t, u, "sessionId")
	})

	t.Run("Standard downgrades http to ws", func(t *testing.T) {
		tr := newBrowserless(schemas.BrowserlessCredentials{
			ConnectionType: "standard",
			BaseURL:        "http://localhost:3000",
			Token:          "tok",
		}, testNetCfg(), logger)

		u, err := tr.connectionURL("")
		require.NoError(t, err)
		assert.Contains(t, u, "ws://localhost:3000")
	})

	t.Run("Reconnect token on URL", func(t *testing.T) {
		tr := newBrowserless(schemas.BrowserlessCredentials{
			ConnectionType: "direct",
			WsURL:          "wss://chrome.example.com?token=tok",
		}, testNetCfg(), logger)

		u, err := tr.connectionURL("abc-123")
		require.NoError(t, err)
		assert.Contains(t, u, "sessionId=abc-123")
		assert.Contains(t, u, "token=tok")
	})
}

// -- BrightData --

func TestBrightDataEndpointPassword(t *testing.T) {
	tr := newBrightData(schemas.BrightDataCredentials{
		WebsocketEndpoint: "wss://brd-customer-x@brd.example.com:9222",
		Password:          "zonepw",
	}, testNetCfg(), zap.NewNop())

	u, err := tr.endpointURL()
	require.NoError(t, err)
	assert.Contains(t, u, "brd-customer-x:zonepw@")
}

func TestDomainAuthorized(t *testing.T) {
	allowed := []string{"example.com", "Partner.ORG"}

	assert.True(t, domainAuthorized("example.com", allowed))
	assert.True(t, domainAuthorized("shop.example.com", allowed))
	assert.True(t, domainAuthorized("partner.org", allowed))
	assert.False(t, domainAuthorized("example.com.evil.net", allowed))
	assert.False(t, domainAuthorized("other.com", allowed))
}

// -- Navigation --

func TestNavigationOutcome(t *testing.T) {
	assert.NoError(t, navigationOutcome("", nil))

	err := navigationOutcome("net::ERR_NAME_NOT_RESOLVED", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "net::ERR_NAME_NOT_RESOLVED")

	// A transport error wins over the protocol error text.
	cause := errors.New("context deadline exceeded")
	assert.ErrorIs(t, navigationOutcome("ignored", cause), cause)
}

// -- URL Helpers --

func TestSessionTokenFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"Query param", "wss://h.example.com?token=t&sessionId=s-42", "s-42"},
		{"Tracking param", "wss://h.example.com?trackingId=tr-7", "tr-7"},
		{"Devtools path", "ws://127.0.0.1:9222/devtools/browser/7a9f-22bc", "7a9f-22bc"},
		{"Nothing recoverable", "wss://h.example.com/chromium", ""},
		{"Unparseable", "::::", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sessionTokenFromURL(tt.url))
		})
	}
}

func TestRedactURL(t *testing.T) {
	out := redactURL("wss://user:pw@h.example.com/path?token=secret")
	assert.NotContains(t, out, "secret")
	assert.NotContains(t, out, "pw")
	assert.Contains(t, out, "h.example.com")
}
