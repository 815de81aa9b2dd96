package reconcile

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/notify"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

// Result is the outcome for one tenant. Exactly one of Snapshot and Err is set.
type Result struct {
	TenantID  uuid.UUID
	Snapshot  *usage.Snapshot
	Violation *notify.Violation
	Err       error
}

// OK reports whether the tenant was reconciled.
func (r Result) OK() bool { return r.Err == nil }

func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		TenantID  uuid.UUID         `json:"tenant_id"`
		OK        bool              `json:"ok"`
		Snapshot  *usage.Snapshot   `json:"snapshot,omitempty"`
		Human     string            `json:"human,omitempty"`
		Violation *notify.Violation `json:"violation,omitempty"`
		Error     string            `json:"error,omitempty"`
	}{TenantID: r.TenantID, OK: r.OK(), Snapshot: r.Snapshot, Violation: r.Violation}
	if r.Snapshot != nil {
		out.Human = r.Snapshot.Human()
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Summary reports a ReconcileAll run.
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
}

// Violations returns the violations raised during the run.
func (s Summary) Violations() []notify.Violation {
	var out []notify.Violation
	for _, r := range s.Results {
		if r.Violation != nil {
			out = append(out, *r.Violation)
		}
	}
	return out
}
