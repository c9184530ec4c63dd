package payment

import "strings"

// Status is the collection_status reported when the shopper returns.
type Status string

const (
	StatusApproved  Status = "approved"
	StatusPending   Status = "pending"
	StatusInProcess Status = "in_process"
	StatusRejected  Status = "rejected"
	StatusUnknown   Status = "unknown"
)

// ParseStatus normalises the raw query value. Anything unrecognised, including
// the literal "null" some gateways send on abandonment, is StatusUnknown.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved":
		return StatusApproved
	case "pending":
		return StatusPending
	case "in_process":
		return StatusInProcess
	case "rejected", "cancelled":
		return StatusRejected
	default:
		return StatusUnknown
	}
}

// Pending reports whether the payment is still being processed.
func (s Status) Pending() bool { return s == StatusPending || s == StatusInProcess }
