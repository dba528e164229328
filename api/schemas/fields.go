package schemas

// -- Form Schemas --

// FieldKind names the flavor of form control a FieldSpec targets.
type FieldKind string

const (
	FieldText        FieldKind = "text"
	FieldSelect      FieldKind = "select"
	FieldMultiSelect FieldKind = "multiSelect"
	FieldCheckbox    FieldKind = "checkbox"
	FieldRadio       FieldKind = "radio"
	FieldFile        FieldKind = "file"
)

// MatchMode selects how a dropdown target value is matched against options.
type MatchMode string

const (
	MatchExact     MatchMode = "exact"
	MatchSubstring MatchMode = "substring"
	MatchFuzzy     MatchMode = "fuzzy"
)

// MatchPolicy bundles the matching knobs for select fields so that
// default/override precedence stays in one place.
type MatchPolicy struct {
	Mode          MatchMode `json:"mode"`
	CaseSensitive bool      `json:"caseSensitive"`
	// Threshold is the minimum normalized similarity (0..1) a fuzzy match
	// must reach. Ignored for the other modes.
	Threshold float64 `json:"threshold,omitempty"`
}

// FieldSpec describes one form field to fill.
type FieldSpec struct {
	Kind     FieldKind `json:"kind"`
	Selector string    `json:"selector"`
	// Value is the text to type, the option to select, or the file path to
	// upload, depending on Kind.
	Value string `json:"value,omitempty"`
	// Values carries the option list for multi-select fields.
	Values []string `json:"values,omitempty"`
	// Checked is the desired state for checkbox/radio fields.
	Checked bool `json:"checked"`
	// Match applies to select/multiSelect fields. Zero value means exact.
	Match MatchPolicy `json:"match"`
	// ClearFirst empties text inputs before typing.
	ClearFirst bool `json:"clearFirst"`
}

// SubmitWait names the post-submit wait behavior for form submission.
type SubmitWait string

const (
	SubmitWaitNone       SubmitWait = "none"
	SubmitWaitFixed      SubmitWait = "fixed"
	SubmitWaitDOMReady   SubmitWait = "domready"
	SubmitWaitLoad       SubmitWait = "load"
	SubmitWaitNavigation SubmitWait = "navigation"
)
