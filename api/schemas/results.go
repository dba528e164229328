package schemas

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// json is the module wide encoder; ConfigCompatibleWithStandardLibrary keeps
// output byte-for-byte interchangeable with encoding/json.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ActionResult is the uniform record every action executor hands back to the
// workflow host. Operation specific fields are optional.
type ActionResult struct {
	Success   bool   `json:"success"`
	Operation string `json:"operation"`
	SessionID string `json:"sessionId,omitempty"`
	// Timestamp is ISO-8601 with millisecond precision.
	Timestamp  string `json:"timestamp"`
	DurationMs int64  `json:"executionDurationMs"`

	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
	// Screenshot is a base64 data-URI string when capture was requested.
	Screenshot string `json:"screenshot,omitempty"`
	// Data carries extracted values or detection summaries.
	Data any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewActionResult stamps a result for the named operation. The duration is
// filled in by Finish.
func NewActionResult(operation, sessionID string) *ActionResult {
	return &ActionResult{
		Operation: operation,
		SessionID: sessionID,
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// Finish records the elapsed time since start and returns the receiver for
// chaining at return sites.
func (r *ActionResult) Finish(start time.Time) *ActionResult {
	r.DurationMs = time.Since(start).Milliseconds()
	return r
}

// Fail marks the result as a structured failure.
func (r *ActionResult) Fail(err error) *ActionResult {
	r.Success = false
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Encode renders the result as JSON for the workflow host.
func (r *ActionResult) Encode() ([]byte, error) {
	return json.Marshal(r)
}
