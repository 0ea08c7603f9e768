package tracked

import (
	"github.com/joshuapare/memquota/ledger"
	"github.com/joshuapare/memquota/probe"
	"github.com/joshuapare/memquota/quota"
)

// Attach places id into sandboxed mode.
func (t *Tracker) Attach(id quota.ContextID) (*quota.Guard, error) {
	return t.registry.Attach(id)
}

// Detach tears down id's guard and returns its final statistics.
func (t *Tracker) Detach(id quota.ContextID) (quota.Stats, error) {
	return t.registry.Detach(id)
}

// SetQuota sets the cap of id, attaching it if needed.
func (t *Tracker) SetQuota(id quota.ContextID, c uint64) error {
	return t.registry.SetQuota(id, c)
}

// ClearQuota makes id Unbounded.
func (t *Tracker) ClearQuota(id quota.ContextID) error {
	return t.registry.ClearQuota(id)
}

// CurrentUsage returns the bytes accounted to id.
func (t *Tracker) CurrentUsage(id quota.ContextID) (uint64, error) {
	return t.registry.CurrentUsage(id)
}

// GlobalUsage returns the bytes attributed to all live tracked allocations.
func (t *Tracker) GlobalUsage() uint64 {
	return t.ledger.Global()
}

// Ledger returns the usage ledger.
func (t *Tracker) Ledger() *ledger.Ledger { return t.ledger }

// Registry returns the execution context registry.
func (t *Tracker) Registry() *quota.Registry { return t.registry }

// Prober returns the size probe.
func (t *Tracker) Prober() *probe.Prober { return t.probe }

// Report is a point-in-time view of all counters.
type Report struct {
	Ledger   ledger.Snapshot `json:"ledger"`
	Contexts []quota.Stats   `json:"contexts"`
}

// Report returns the ledger snapshot and every attached context's statistics.
func (t *Tracker) Report() Report {
	return Report{
		Ledger:   t.ledger.Snapshot(),
		Contexts: t.registry.Contexts(),
	}
}
