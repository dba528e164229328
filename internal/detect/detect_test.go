// File: internal/detect/detect_test.go
package detect

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/config"
)

func testEngine(t *testing.T, eval func(ctx context.Context, script string, out any) error) *Engine {
	t.Helper()
	e := NewEngine(config.DetectionConfig{
		WaitTimeout:  500 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}, zaptest.NewLogger(t))
	e.eval = eval
	return e
}

// pageStub answers every script from canned values based on what the script
// inspects.
func pageStub(exists bool, text string, attr *string, count int, url string) func(ctx context.Context, script string, out any) error {
	return func(ctx context.Context, script string, out any) error {
		switch {
		case strings.Contains(script, "querySelectorAll"):
			*out.(*int) = count
		case strings.Contains(script, "location.href"):
			*out.(*string) = url
		case strings.Contains(script, "getAttribute"):
			*out.(**string) = attr
		case strings.Contains(script, "textContent"):
			if exists {
				*out.(**string) = &text
			} else {
				*out.(**string) = nil
			}
		default: // existence probe
			*out.(*bool) = exists
		}
		return nil
	}
}

func TestEvaluateCount(t *testing.T) {
	engine := testEngine(t, pageStub(true, "", nil, 3, ""))

	t.Run("At least two passes", func(t *testing.T) {
		res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
			Name:          "enough-rows",
			Kind:          schemas.ConditionCount,
			Selector:      ".row",
			NumComparator: schemas.NumGreaterEqual,
			ExpectedCount: 2,
		})
		assert.True(t, res.Passed)
		assert.Equal(t, 3, res.Actual)
	})

	t.Run("Fewer than two fails", func(t *testing.T) {
		res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
			Name:          "too-many-rows",
			Kind:          schemas.ConditionCount,
			Selector:      ".row",
			NumComparator: schemas.NumLess,
			ExpectedCount: 2,
		})
		assert.False(t, res.Passed)
	})
}

func TestEvaluateText(t *testing.T) {
	engine := testEngine(t, pageStub(true, "Welcome back, Jo", nil, 0, ""))

	res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
		Name:       "greeting",
		Kind:       schemas.ConditionText,
		Selector:   "h1",
		Comparator: schemas.CompareContains,
		Expected:   "welcome",
	})
	assert.True(t, res.Passed, "contains is case-insensitive by default")
	assert.Equal(t, "Welcome back, Jo", res.Actual)

	res = engine.Evaluate(context.Background(), schemas.ConditionSpec{
		Name:          "greeting-cs",
		Kind:          schemas.ConditionText,
		Selector:      "h1",
		Comparator:    schemas.CompareContains,
		Expected:      "welcome",
		CaseSensitive: true,
	})
	assert.False(t, res.Passed)
}

func TestEvaluateTextMissingElement(t *testing.T) {
	engine := testEngine(t, pageStub(false, "", nil, 0, ""))
	res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
		Name:     "gone",
		Kind:     schemas.ConditionText,
		Selector: "#missing",
		Expected: "anything",
	})
	assert.False(t, res.Passed)
	assert.Empty(t, res.Error, "a missing element is a negative outcome, not an error")
}

func TestEvaluateAttribute(t *testing.T) {
	val := "btn btn-primary"
	engine := testEngine(t, pageStub(true, "", &val, 0, ""))

	res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
		Name:       "primary-button",
		Kind:       schemas.ConditionAttribute,
		Selector:   "button",
		Attribute:  "class",
		Comparator: schemas.CompareContains,
		Expected:   "btn-primary",
	})
	assert.True(t, res.Passed)

	res = engine.Evaluate(context.Background(), schemas.ConditionSpec{
		Name:     "no-attr-name",
		Kind:     schemas.ConditionAttribute,
		Selector: "button",
	})
	assert.False(t, res.Passed)
	assert.Contains(t, res.Error, "attribute name required")
}

func TestEvaluateURL(t *testing.T) {
	engine := testEngine(t, pageStub(true, "", nil, 0, "https://app.example.com/dashboard?tab=1"))
	res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
		Name:       "on-dashboard",
		Kind:       schemas.ConditionURL,
		Comparator: schemas.CompareContains,
		Expected:   "/dashboard",
	})
	assert.True(t, res.Passed)
	assert.Equal(t, "https://app.example.com/dashboard?tab=1", res.Actual)
}

func TestEvaluateExistsPolled(t *testing.T) {
	t.Run("Element appears during the wait", func(t *testing.T) {
		probes := 0
		engine := testEngine(t, func(ctx context.Context, script string, out any) error {
			probes++
			*out.(*bool) = probes >= 3
			return nil
		})
		res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
			Name:           "late-banner",
			Kind:           schemas.ConditionExists,
			Selector:       ".banner",
			WaitForElement: true,
		})
		assert.True(t, res.Passed)
		assert.GreaterOrEqual(t, probes, 3)
	})

	t.Run("Element never appears", func(t *testing.T) {
		engine := testEngine(t, pageStub(false, "", nil, 0, ""))
		res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
			Name:           "never",
			Kind:           schemas.ConditionExists,
			Selector:       ".ghost",
			WaitForElement: true,
			WaitTimeout:    schemas.Duration(50 * time.Millisecond),
		})
		assert.False(t, res.Passed)
		assert.Empty(t, res.Error, "an expired wait is a negative outcome, not an error")
	})
}

func TestEvaluateInvert(t *testing.T) {
	engine := testEngine(t, pageStub(true, "", nil, 0, ""))
	res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
		Name:     "captcha-absent",
		Kind:     schemas.ConditionExists,
		Selector: ".captcha",
		Invert:   true,
	})
	assert.False(t, res.Passed, "present element with invert must fail")
}

func TestEvaluateCapturesErrors(t *testing.T) {
	engine := testEngine(t, func(ctx context.Context, script string, out any) error {
		return errors.New("execution context destroyed")
	})
	res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
		Name:     "broken",
		Kind:     schemas.ConditionExists,
		Selector: "body",
	})
	assert.False(t, res.Passed)
	assert.Contains(t, res.Error, "execution context destroyed")
}

func TestOutputFormats(t *testing.T) {
	engine := testEngine(t, pageStub(true, "hello", nil, 0, ""))

	t.Run("Strings", func(t *testing.T) {
		res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
			Name: "s", Kind: schemas.ConditionExists, Selector: "p",
			Format: schemas.FormatStrings, SuccessOutput: "found", FailureOutput: "missing",
		})
		assert.Equal(t, "found", res.Output)
	})

	t.Run("Numeric", func(t *testing.T) {
		res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
			Name: "n", Kind: schemas.ConditionExists, Selector: "p",
			Format: schemas.FormatNumeric, Invert: true,
		})
		assert.Equal(t, 0, res.Output)
	})

	t.Run("Value", func(t *testing.T) {
		res := engine.Evaluate(context.Background(), schemas.ConditionSpec{
			Name: "v", Kind: schemas.ConditionText, Selector: "p",
			Expected: "hello", Format: schemas.FormatValue,
		})
		assert.Equal(t, "hello", res.Output)
	})
}

func TestEvaluateAllMerges(t *testing.T) {
	engine := testEngine(t, pageStub(true, "ok", nil, 2, "https://x.example.com"))

	summary := engine.EvaluateAll(context.Background(), []schemas.ConditionSpec{
		{Name: "a", Kind: schemas.ConditionExists, Selector: "p"},
		{Name: "b", Kind: schemas.ConditionCount, Selector: "li", NumComparator: schemas.NumEqual, ExpectedCount: 2},
	})

	require.Len(t, summary.Details, 2)
	assert.Equal(t, "a", summary.Details[0].Name)
	assert.Equal(t, "b", summary.Details[1].Name)
	assert.Equal(t, true, summary.Results["a"])
	assert.Equal(t, true, summary.Results["b"])
}

func TestCompareString(t *testing.T) {
	tests := []struct {
		name          string
		actual, want  string
		cmp           schemas.StringComparator
		caseSensitive bool
		pass          bool
	}{
		{"Exact", "Hello", "hello", schemas.CompareExact, false, true},
		{"Exact case sensitive", "Hello", "hello", schemas.CompareExact, true, false},
		{"Contains default", "navigation failed", "failed", "", false, true},
		{"StartsWith", "https://a.example.com", "https://", schemas.CompareStartsWith, false, true},
		{"EndsWith", "report.pdf", ".pdf", schemas.CompareEndsWith, false, true},
		{"Pattern", "order #4821 confirmed", `#\d{4}`, schemas.ComparePattern, true, true},
		{"Pattern case fold", "ERROR: denied", "error", schemas.ComparePattern, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compareString(tt.actual, tt.want, tt.cmp, tt.caseSensitive)
			require.NoError(t, err)
			assert.Equal(t, tt.pass, got)
		})
	}

	_, err := compareString("x", "(unclosed", schemas.ComparePattern, true)
	assert.ErrorContains(t, err, "invalid pattern")
}

func TestCompareNumeric(t *testing.T) {
	assert.True(t, compareNumeric(3, 3, schemas.NumEqual))
	assert.True(t, compareNumeric(3, 3, ""))
	assert.True(t, compareNumeric(4, 3, schemas.NumGreater))
	assert.True(t, compareNumeric(2, 3, schemas.NumLess))
	assert.True(t, compareNumeric(3, 3, schemas.NumGreaterEqual))
	assert.True(t, compareNumeric(3, 3, schemas.NumLessEqual))
	assert.False(t, compareNumeric(3, 3, "approximately"))
}
