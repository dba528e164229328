// File: internal/transport/errors_test.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
)

func TestClassifyConnect(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
	}{
		{"DNS typed", &net.DNSError{Err: "no such host", Name: "bad.example"}, KindDNS},
		{"DNS text", errors.New("dial tcp: lookup bad.example: no such host"), KindDNS},
		{"Deadline", context.DeadlineExceeded, KindTimeout},
		{"Timeout text", errors.New("websocket handshake timeout"), KindTimeout},
		{"Auth 401", errors.New("unexpected status 401 Unauthorized"), KindAuth},
		{"Auth forbidden", errors.New("403 Forbidden"), KindAuth},
		{"Rate limit", errors.New("429 too many requests"), KindRateLimit},
		{"Fallback", errors.New("connection reset by peer"), KindNavigation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyConnect(schemas.BackendBrowserless, tt.err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.wantKind, classified.Kind)
			assert.Equal(t, schemas.BackendBrowserless, classified.Backend)
			assert.True(t, IsKind(classified, tt.wantKind))
		})
	}
}

func TestClassifyConnectPreservesTypedErrors(t *testing.T) {
	original := NewError(KindPermission, schemas.BackendBrightData, "domain not allow-listed", nil)
	classified := ClassifyConnect(schemas.BackendBrightData, fmt.Errorf("wrapped: %w", original))
	assert.Equal(t, KindPermission, classified.Kind)
}

func TestErrorMessageShape(t *testing.T) {
	err := NewError(KindAuth, schemas.BackendBrowserless, "check the API token", errors.New("401"))
	msg := err.Error()
	assert.Contains(t, msg, "auth error")
	assert.Contains(t, msg, "browserless")
	assert.Contains(t, msg, "check the API token")

	// Unwrap reaches the cause.
	assert.EqualError(t, errors.Unwrap(err), "401")
}

func TestIsKindOnForeignError(t *testing.T) {
	assert.False(t, IsKind(errors.New("plain"), KindAuth))
	assert.False(t, IsKind(nil, KindAuth))
}
