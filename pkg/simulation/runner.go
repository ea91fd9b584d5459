package simulation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/open-policy-agent/opa/v1/rego"

	"outpost-hq/warden/pkg/rules"
	"outpost-hq/warden/pkg/telemetry/metrics"
)

// DefaultModulePath is the module path a candidate module is compiled
// under for the duration of a run.
const DefaultModulePath = "policy.simulation"

// DefaultQuery is used when the caller does not name a query path.
const DefaultQuery = "data.sandbox.allow"

// Detail is the decision for one replayed event, in input order.
type Detail struct {
	Event    map[string]any `json:"event"`
	Allow    bool           `json:"allow"`
	Decision string         `json:"decision"`
}

// Result aggregates a simulation run. Allowed plus Denied always equals
// TotalEvents; an event whose evaluation faulted counts as denied with
// decision "error".
type Result struct {
	TotalEvents int      `json:"total_events"`
	Allowed     int      `json:"allowed"`
	Denied      int      `json:"denied"`
	Details     []Detail `json:"details"`
}

// Runner replays event batches through a candidate rule module. Runs are
// fully isolated from live state: nothing is written to the audit log and
// no spend total is touched, so the same input always yields the same
// counts.
type Runner struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRunner creates a simulation runner. The metrics collector may be nil.
func NewRunner(m *metrics.Metrics) *Runner {
	return &Runner{
		metrics: m,
		logger:  slog.Default().With("component", "simulation.runner"),
	}
}

// Run compiles the candidate module source and evaluates the query against
// every event in order. A compile failure aborts the whole run with a
// CompileError and no partial results. Cancellation via ctx discards
// partial results rather than returning them.
func (r *Runner) Run(ctx context.Context, source, query string, events []map[string]any) (*Result, error) {
	if query == "" {
		query = DefaultQuery
	}

	compiler, err := rules.Compile(DefaultModulePath, source)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordSimulation("compile_error")
		}
		return nil, err
	}

	result := &Result{
		TotalEvents: len(events),
		Details:     make([]Detail, 0, len(events)),
	}

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation cancelled: %w", err)
		}

		detail := Detail{Event: event}
		rs, evalErr := rego.New(
			rego.Query(query),
			rego.Compiler(compiler),
			rego.Input(event),
		).Eval(ctx)

		if evalErr != nil {
			// A fault denies this one event without aborting the run.
			detail.Decision = "error"
			result.Denied++
		} else {
			if len(rs) > 0 && len(rs[0].Expressions) > 0 {
				if allowed, ok := rs[0].Expressions[0].Value.(bool); ok && allowed {
					detail.Allow = true
				}
			}
			if detail.Allow {
				detail.Decision = "allow"
				result.Allowed++
			} else {
				detail.Decision = "deny"
				result.Denied++
			}
		}
		result.Details = append(result.Details, detail)
	}

	if result.Allowed+result.Denied != result.TotalEvents {
		return nil, fmt.Errorf("simulation accounting mismatch: %d allowed + %d denied != %d total",
			result.Allowed, result.Denied, result.TotalEvents)
	}

	if r.metrics != nil {
		r.metrics.RecordSimulation("ok")
	}
	r.logger.Info("simulation complete",
		"total", result.TotalEvents,
		"allowed", result.Allowed,
		"denied", result.Denied)
	return result, nil
}
