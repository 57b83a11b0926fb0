package ledger

import "time"

// =============================================================================
// USAGE REQUEST
// =============================================================================

// UsageStatus is the lifecycle state of a usage request.
type UsageStatus string

const (
	UsagePendingApproval UsageStatus = "PENDING_APPROVAL"
	UsageActive          UsageStatus = "ACTIVE"
	UsageRejected        UsageStatus = "REJECTED"
	UsageCancelled       UsageStatus = "CANCELLED"
)

var usageTransitions = map[UsageStatus][]UsageStatus{
	UsagePendingApproval: {UsageActive, UsageRejected, UsageCancelled},
	UsageActive:          {UsageCancelled},
}

func (s UsageStatus) CanTransition(to UsageStatus) bool {
	for _, allowed := range usageTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s UsageStatus) Valid() bool {
	switch s {
	case UsagePendingApproval, UsageActive, UsageRejected, UsageCancelled:
		return true
	}
	return false
}

// UsageRequest is one request to spend leave time. Once ACTIVE, its
// deductions sum to Amount exactly.
type UsageRequest struct {
	ID        UsageID
	OwnerID   OwnerID
	LeaveType LeaveType
	PolicyID  PolicyID
	Amount    Amount
	Window    Window
	Status    UsageStatus
	Reason    string

	// GrantID is the backing grant created in PENDING for on-request policies.
	GrantID GrantID

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UsageDate is the day allocation eligibility is evaluated on.
func (u *UsageRequest) UsageDate() Date {
	return u.Window.From
}

func (u *UsageRequest) transition(to UsageStatus, at time.Time) error {
	if !u.Status.CanTransition(to) {
		return &InvalidTransitionError{Subject: "usage", ID: string(u.ID), From: string(u.Status), To: string(to)}
	}
	u.Status = to
	u.UpdatedAt = at
	return nil
}

// DeductionRecord links one usage to one grant it drew from.
type DeductionRecord struct {
	ID        DeductionID
	UsageID   UsageID
	GrantID   GrantID
	Amount    Amount
	CreatedAt time.Time
}

// SumDeductions totals the amounts of the given deductions.
func SumDeductions(unit Unit, deductions []DeductionRecord) Amount {
	total := Amount{Unit: unit}
	for _, d := range deductions {
		total = total.Add(d.Amount)
	}
	return total
}
