package stealth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEvasionsScriptEmbedded(t *testing.T) {
	require.NotEmpty(t, evasionsScript, "evasions.js must be embedded")
	assert.Contains(t, evasionsScript, "webdriver")
}

func TestApplyProducesTaskSequence(t *testing.T) {
	core, observedLogs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	tasks := Apply(DefaultPersona, logger)

	// UA override, viewport, script injection, timezone, locale, headers.
	assert.Len(t, tasks, 6)

	logs := observedLogs.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "stealth persona")
}

func TestAcceptLanguage(t *testing.T) {
	tests := []struct {
		name  string
		langs []string
		want  string
	}{
		{"Empty", nil, "en-US,en;q=0.9"},
		{"Single", []string{"de-DE"}, "de-DE"},
		{"Pair", []string{"en-US", "en"}, "en-US,en;q=0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := acceptLanguage(tt.langs)
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.HasSuffix(got, ","))
		})
	}
}
