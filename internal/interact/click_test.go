// File: internal/interact/click_test.go
package interact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/ventriloquist/internal/config"
)

func testClicker(t *testing.T, retries int) *Clicker {
	t.Helper()
	return NewClicker(config.InteractionConfig{
		Click: config.ClickConfig{Timeout: time.Second, Retries: retries},
	}, zaptest.NewLogger(t))
}

func TestClickEscalatesToScript(t *testing.T) {
	c := testClicker(t, 0)
	c.run = func(ctx context.Context, actions ...chromedp.Action) error {
		return errors.New("node not visible")
	}
	c.eval = func(ctx context.Context, script string, out any) error {
		if ok, isBool := out.(*bool); isBool {
			*ok = true
		}
		return nil
	}

	report, err := c.Click(context.Background(), "#buy")
	require.NoError(t, err)
	assert.Equal(t, ClickScript, report.Strategy, "native failure must escalate to the script strategy")
	assert.Equal(t, 1, report.Attempts)
}

func TestClickEscalatesToPointer(t *testing.T) {
	c := testClicker(t, 0)

	runCalls := 0
	c.run = func(ctx context.Context, actions ...chromedp.Action) error {
		runCalls++
		if runCalls == 1 {
			// First run call is the native strategy; the next one is the
			// pointer strategy's raw mouse dispatch.
			return errors.New("overlay intercepts pointer events")
		}
		return nil
	}
	c.eval = func(ctx context.Context, script string, out any) error {
		switch v := out.(type) {
		case *bool:
			return errors.New("execution context destroyed")
		case *[]float64:
			*v = []float64{120, 240}
		}
		return nil
	}

	report, err := c.Click(context.Background(), "#buy")
	require.NoError(t, err)
	assert.Equal(t, ClickPointer, report.Strategy)
	assert.Equal(t, 1, report.Attempts)
	assert.Equal(t, 2, runCalls)
}

func TestClickExhaustsLadderAndRetries(t *testing.T) {
	c := testClicker(t, 1)
	cause := errors.New("node detached")
	c.run = func(ctx context.Context, actions ...chromedp.Action) error { return cause }
	c.eval = func(ctx context.Context, script string, out any) error { return cause }

	report, err := c.Click(context.Background(), "#gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "did not accept a click after 2 attempts")
	assert.Equal(t, 2, report.Attempts)
	assert.Empty(t, report.Strategy, "no strategy landed")
}
