package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
)

// compareString applies a string comparator. An empty comparator means
// contains, which is the forgiving default for page text that carries
// whitespace and surrounding copy.
func compareString(actual, expected string, cmp schemas.StringComparator, caseSensitive bool) (bool, error) {
	a, e := actual, expected
	if !caseSensitive && cmp != schemas.ComparePattern {
		a = strings.ToLower(a)
		e = strings.ToLower(e)
	}

	switch cmp {
	case schemas.CompareExact:
		return a == e, nil
	case schemas.CompareContains, "":
		return strings.Contains(a, e), nil
	case schemas.CompareStartsWith:
		return strings.HasPrefix(a, e), nil
	case schemas.CompareEndsWith:
		return strings.HasSuffix(a, e), nil
	case schemas.ComparePattern:
		pattern := expected
		if !caseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", expected, err)
		}
		return re.MatchString(actual), nil
	}
	return false, fmt.Errorf("unknown string comparator %q", cmp)
}

// compareNumeric applies a numeric comparator; empty means equality.
func compareNumeric(actual, expected int, cmp schemas.NumericComparator) bool {
	switch cmp {
	case schemas.NumEqual, "":
		return actual == expected
	case schemas.NumGreater:
		return actual > expected
	case schemas.NumLess:
		return actual < expected
	case schemas.NumGreaterEqual:
		return actual >= expected
	case schemas.NumLessEqual:
		return actual <= expected
	}
	return false
}

// formatOutput renders the condition outcome per the requested format.
// The zero format is boolean.
func formatOutput(spec schemas.ConditionSpec, passed bool, actual any) any {
	switch spec.Format {
	case schemas.FormatBoolean, "":
		return passed
	case schemas.FormatStrings:
		if passed {
			return spec.SuccessOutput
		}
		return spec.FailureOutput
	case schemas.FormatNumeric:
		if passed {
			return 1
		}
		return 0
	case schemas.FormatValue:
		return actual
	}
	return passed
}
