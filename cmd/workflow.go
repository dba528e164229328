// -- cmd/workflow.go --
package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/ventriloquist/internal/executor"
)

// Workflow is a declarative sequence of browser operations executed in
// order against a shared session.
type Workflow struct {
	Name string `yaml:"name"`
	// Defaults are merged into every step: credentials, continue-on-fail
	// and screenshot toggles a step does not set itself.
	Defaults yaml.Node `yaml:"defaults"`
	Steps    []Step    `yaml:"steps"`
}

// Step is one operation invocation. Params are decoded lazily into the
// operation-specific parameter struct.
type Step struct {
	Name      string    `yaml:"name"`
	Operation string    `yaml:"operation"`
	Params    yaml.Node `yaml:"params"`
}

// LoadWorkflow parses and validates a workflow file.
func LoadWorkflow(path string) (*Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	var wf Workflow
	if err := yaml.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("parsing workflow file: %w", err)
	}
	if len(wf.Steps) == 0 {
		return nil, fmt.Errorf("workflow %q has no steps", path)
	}
	for i, step := range wf.Steps {
		if step.Operation == "" {
			return nil, fmt.Errorf("step %d (%q) has no operation", i+1, step.Name)
		}
	}
	return &wf, nil
}

// decodeParams decodes a YAML params node into an operation parameter
// struct. The node is lowered to plain values and re-marshaled through
// JSON so one set of field tags (the camelCase result-record names) serves
// both the workflow file and the result output.
func decodeParams(node yaml.Node, out any) error {
	if node.IsZero() {
		return nil
	}
	var plain any
	if err := node.Decode(&plain); err != nil {
		return fmt.Errorf("decoding params: %w", err)
	}
	buf, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(plain)
	if err != nil {
		return fmt.Errorf("normalizing params: %w", err)
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("binding params: %w", err)
	}
	return nil
}

// defaults decodes the workflow's defaults block into a Common record.
func (w *Workflow) defaults() (executor.Common, error) {
	var def executor.Common
	if err := decodeParams(w.Defaults, &def); err != nil {
		return executor.Common{}, fmt.Errorf("workflow defaults: %w", err)
	}
	return def, nil
}

// mergeCommon fills a step's unset Common fields from the workflow defaults
// and threads the session id produced by earlier steps.
func mergeCommon(c *executor.Common, def executor.Common, priorSessionID string) {
	if c.Session.Credentials.Kind == "" {
		c.Session.Credentials = def.Session.Credentials
	}
	if c.Session.SessionID == "" && c.Session.InboundID == "" {
		c.Session.InboundID = priorSessionID
	}
	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = def.Session.IdleTimeout
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	c.ContinueOnFail = c.ContinueOnFail || def.ContinueOnFail
	c.CaptureScreenshot = c.CaptureScreenshot || def.CaptureScreenshot
}
