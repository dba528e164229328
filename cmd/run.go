// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/executor"
	"github.com/xkilldash9x/ventriloquist/internal/observability"
	"github.com/xkilldash9x/ventriloquist/internal/registry"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow-file>",
	Short: "Execute a browser workflow file.",
	Long: `Run executes the steps of a YAML workflow in order. Steps share one
browser session: every result carries a session id, and later steps reuse it
unless they name their own. Results are printed to stdout as JSON records,
one per step.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runWorkflow(ctx context.Context, path string) error {
	logger := observability.GetLogger()

	wf, err := LoadWorkflow(path)
	if err != nil {
		return err
	}
	def, err := wf.defaults()
	if err != nil {
		return err
	}

	reg := registry.New(appConfig.Session(), logger)
	runner := executor.New(appConfig, reg, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Shutdown must proceed even when the signal context is already gone.
	defer reg.CloseAll(context.Background())

	logger.Info("Workflow starting.", zap.String("workflow", wf.Name), zap.Int("steps", len(wf.Steps)))

	priorSessionID := ""
	for i, step := range wf.Steps {
		if ctx.Err() != nil {
			return fmt.Errorf("workflow interrupted before step %d: %w", i+1, ctx.Err())
		}

		res, err := executeStep(ctx, runner, step, def, priorSessionID)
		if res != nil {
			if raw, encErr := res.Encode(); encErr == nil {
				fmt.Fprintln(os.Stdout, string(raw))
			}
			if res.SessionID != "" {
				priorSessionID = res.SessionID
			}
		}
		if err != nil {
			return fmt.Errorf("step %d (%q): %w", i+1, step.Name, err)
		}
	}

	logger.Info("Workflow complete.", zap.String("workflow", wf.Name))
	return nil
}

// executeStep binds the step's params and dispatches to its operation.
func executeStep(ctx context.Context, runner *executor.Runner, step Step, def executor.Common, priorSessionID string) (*schemas.ActionResult, error) {
	switch step.Operation {
	case "open":
		var p executor.OpenParams
		if err := decodeParams(step.Params, &p); err != nil {
			return nil, err
		}
		mergeCommon(&p.Common, def, priorSessionID)
		return runner.Open(ctx, p)

	case "click":
		var p executor.ClickParams
		if err := decodeParams(step.Params, &p); err != nil {
			return nil, err
		}
		mergeCommon(&p.Common, def, priorSessionID)
		return runner.Click(ctx, p)

	case "form":
		var p executor.FormParams
		if err := decodeParams(step.Params, &p); err != nil {
			return nil, err
		}
		mergeCommon(&p.Common, def, priorSessionID)
		return runner.Form(ctx, p)

	case "detect":
		var p executor.DetectParams
		if err := decodeParams(step.Params, &p); err != nil {
			return nil, err
		}
		mergeCommon(&p.Common, def, priorSessionID)
		return runner.Detect(ctx, p)

	case "extract":
		var p executor.ExtractParams
		if err := decodeParams(step.Params, &p); err != nil {
			return nil, err
		}
		mergeCommon(&p.Common, def, priorSessionID)
		return runner.Extract(ctx, p)

	case "decision":
		var p executor.DecisionParams
		if err := decodeParams(step.Params, &p); err != nil {
			return nil, err
		}
		mergeCommon(&p.Common, def, priorSessionID)
		return runner.Decision(ctx, p)

	case "authenticate":
		var p executor.AuthenticateParams
		if err := decodeParams(step.Params, &p); err != nil {
			return nil, err
		}
		mergeCommon(&p.Common, def, priorSessionID)
		return runner.Authenticate(ctx, p)

	case "close":
		var p executor.CloseParams
		if err := decodeParams(step.Params, &p); err != nil {
			return nil, err
		}
		mergeCommon(&p.Common, def, priorSessionID)
		return runner.Close(ctx, p)
	}
	return nil, fmt.Errorf("unknown operation %q", step.Operation)
}
