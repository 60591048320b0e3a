package entities

import "time"

type SuppressionReason string

const (
	SuppressionReasonBounced    SuppressionReason = "bounced"
	SuppressionReasonComplained SuppressionReason = "complained"
	SuppressionReasonOptedOut   SuppressionReason = "opted_out"
	SuppressionReasonManual     SuppressionReason = "manual"
)

func (r SuppressionReason) Valid() bool {
	switch r {
	case SuppressionReasonBounced, SuppressionReasonComplained, SuppressionReasonOptedOut, SuppressionReasonManual:
		return true
	}
	return false
}

// Suppression marks an address that must never be sent to
type Suppression struct {
	Email     string            `json:"email"`
	Reason    SuppressionReason `json:"reason"`
	CreatedAt time.Time         `json:"createdAt"`
}
