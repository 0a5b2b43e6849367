package models

// MilestoneState is a derived view over a milestone's flags.
type MilestoneState string

const (
	MilestonePending  MilestoneState = "pending"
	MilestoneBillIn   MilestoneState = "bill_in"
	MilestoneApproved MilestoneState = "approved"
	MilestoneReleased MilestoneState = "released"
)

// Milestone gates the release of an expense's funds to the payee.
// BillUploaded and Approved may be set in either order; Released can only
// become true once both are set, and never goes back.
type Milestone struct {
	ID           string
	ExpenseID    string
	IntentID     string
	BillUploaded bool
	Approved     bool
	Released     bool

	// ClaimedAt is the Unix time a release attempt claimed this milestone,
	// or zero when no attempt is in flight.
	ClaimedAt  int64
	ReleasedAt int64
	CreatedAt  int64
}

// Releasable reports whether the provider should be asked to release funds.
func (m *Milestone) Releasable() bool {
	return m.BillUploaded && m.Approved && !m.Released
}

// State summarises the flags.
func (m *Milestone) State() MilestoneState {
	switch {
	case m.Released:
		return MilestoneReleased
	case m.Approved:
		return MilestoneApproved
	case m.BillUploaded:
		return MilestoneBillIn
	default:
		return MilestonePending
	}
}
