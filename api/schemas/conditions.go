package schemas

// -- Detection Schemas --

// ConditionKind names what a single detection rule inspects.
type ConditionKind string

const (
	ConditionExists    ConditionKind = "exists"
	ConditionText      ConditionKind = "text"
	ConditionAttribute ConditionKind = "attribute"
	ConditionCount     ConditionKind = "count"
	ConditionURL       ConditionKind = "url"
)

// StringComparator is the comparison applied to text, attribute and URL values.
type StringComparator string

const (
	CompareExact      StringComparator = "exact"
	CompareContains   StringComparator = "contains"
	CompareStartsWith StringComparator = "startsWith"
	CompareEndsWith   StringComparator = "endsWith"
	ComparePattern    StringComparator = "pattern" // regular expression
)

// NumericComparator is the comparison applied to match counts.
type NumericComparator string

const (
	NumEqual        NumericComparator = "eq"
	NumGreater      NumericComparator = "gt"
	NumLess         NumericComparator = "lt"
	NumGreaterEqual NumericComparator = "gte"
	NumLessEqual    NumericComparator = "lte"
)

// OutputFormat controls how a condition's outcome is rendered in results.
type OutputFormat string

const (
	FormatBoolean OutputFormat = "boolean" // true / false
	FormatStrings OutputFormat = "strings" // caller supplied success/failure strings
	FormatNumeric OutputFormat = "numeric" // 1 / 0
	FormatValue   OutputFormat = "value"   // the raw matched value
)

// ConditionSpec is one named detection rule. It is a pure value object
// consumed by a single Detect call.
type ConditionSpec struct {
	Name     string        `json:"name"`
	Kind     ConditionKind `json:"kind"`
	Selector string        `json:"selector,omitempty"`
	// Attribute names the attribute to read for ConditionAttribute.
	Attribute string `json:"attribute,omitempty"`

	Comparator    StringComparator  `json:"comparator,omitempty"`
	CaseSensitive bool              `json:"caseSensitive"`
	Expected      string            `json:"expected,omitempty"`
	NumComparator NumericComparator `json:"numComparator,omitempty"`
	ExpectedCount int               `json:"expectedCount,omitempty"`

	// WaitForElement selects an actively polled wait-for-appearance for
	// existence checks; false means a single immediate probe.
	WaitForElement bool     `json:"waitForElement"`
	WaitTimeout    Duration `json:"waitTimeout,omitempty"`

	Format        OutputFormat `json:"format,omitempty"`
	SuccessOutput string       `json:"successOutput,omitempty"`
	FailureOutput string       `json:"failureOutput,omitempty"`
	Invert        bool         `json:"invert"`
}

// ConditionResult carries the outcome of evaluating one ConditionSpec.
type ConditionResult struct {
	Name string `json:"name"`
	// Passed is the boolean outcome after inversion.
	Passed bool `json:"passed"`
	// Actual is the raw matched value (element text, attribute value,
	// match count, or current URL).
	Actual any `json:"actual,omitempty"`
	// Output is Actual/Passed rendered per the condition's OutputFormat.
	Output any    `json:"output"`
	Error  string `json:"error,omitempty"`
}

// DetectionSummary merges a batch of independently evaluated conditions.
type DetectionSummary struct {
	// Results maps condition name to its formatted output value.
	Results map[string]any `json:"results"`
	// Details preserves per-condition diagnostics in evaluation order.
	Details []ConditionResult `json:"details"`
}
