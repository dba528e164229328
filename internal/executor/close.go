package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
)

// CloseMode selects which sessions a close operation tears down.
type CloseMode string

const (
	// CloseOne closes the single resolved session.
	CloseOne CloseMode = "one"
	// CloseList closes an explicit list of session ids.
	CloseList CloseMode = "list"
	// CloseAllSessions closes every session this process is tracking.
	CloseAllSessions CloseMode = "all"
)

// CloseParams drive the close operation.
type CloseParams struct {
	Common
	Mode CloseMode `json:"mode"`
	// SessionIDs is the explicit list for CloseList.
	SessionIDs []string `json:"sessionIds,omitempty"`
}

// closeOutcome is the data payload of a close result.
type closeOutcome struct {
	Total  int      `json:"total"`
	Closed int      `json:"closed"`
	IDs    []string `json:"ids,omitempty"`
}

// Close tears sessions down. Closing is best-effort everywhere: individual
// close failures are swallowed by the registry, and a close over an unknown
// id is a no-op rather than an error.
func (r *Runner) Close(ctx context.Context, p CloseParams) (*schemas.ActionResult, error) {
	id := p.resolveID()
	res := schemas.NewActionResult("close", id)
	start := r.now()

	opCtx, cancel := p.opContext(ctx)
	defer cancel()

	var outcome closeOutcome
	switch p.Mode {
	case CloseOne, "":
		closed := 0
		if r.registry.Close(opCtx, id) {
			closed = 1
		}
		outcome = closeOutcome{Total: 1, Closed: closed, IDs: []string{id}}

	case CloseList:
		closed := 0
		for _, sid := range p.SessionIDs {
			if r.registry.Close(opCtx, sid) {
				closed++
			}
		}
		outcome = closeOutcome{Total: len(p.SessionIDs), Closed: closed, IDs: p.SessionIDs}

	case CloseAllSessions:
		result := r.registry.CloseAll(opCtx)
		outcome = closeOutcome{Total: result.Total, Closed: result.Closed}

	default:
		err := fmt.Errorf("unknown close mode %q", p.Mode)
		res.Fail(err).Finish(start)
		if p.ContinueOnFail {
			return res, nil
		}
		return res, err
	}

	res.Data = outcome
	res.Success = true
	r.logger.Info("Close complete.",
		zap.String("mode", string(p.Mode)),
		zap.Int("total", outcome.Total),
		zap.Int("closed", outcome.Closed),
	)
	return res.Finish(start), nil
}
