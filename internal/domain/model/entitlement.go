package model

// EntitlementState is the resolved access level for a chat turn.
type EntitlementState string

const (
	EntitlementPaidActive  EntitlementState = "paid_active"
	EntitlementTrialActive EntitlementState = "trial_active"
	EntitlementExpired     EntitlementState = "expired"
)

// QuotaScope names which limit currently applies, so clients can render
// "trial exhausted" vs "conversation full" differently.
type QuotaScope string

const (
	ScopeTrial        QuotaScope = "trial"
	ScopePlan         QuotaScope = "plan"
	ScopeConversation QuotaScope = "conversation"
	ScopeNone         QuotaScope = ""
)

// Entitlement is the snapshot returned by the resolver and attached to
// quota-exceeded responses.
type Entitlement struct {
	State         EntitlementState `json:"state"`
	Scope         QuotaScope       `json:"scope,omitempty"`
	Used          int              `json:"used"`
	Limit         int              `json:"limit"` // 0 means unlimited (time-boxed plans)
	RemainingDays int              `json:"remaining_days,omitempty"`
}

// Allowed reports whether a chat turn may proceed under this entitlement.
func (e Entitlement) Allowed() bool {
	return e.State != EntitlementExpired
}

// Remaining returns how many turns are left, or -1 when unlimited.
func (e Entitlement) Remaining() int {
	if e.Limit == 0 {
		return -1
	}
	if e.Used >= e.Limit {
		return 0
	}
	return e.Limit - e.Used
}
