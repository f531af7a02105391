package exchange

import "strings"

// Status is the normalized order status. The aggregator's raw vocabulary is
// wider; everything downstream only ever looks at the three coarse predicates.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSettled    Status = "settled"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
	StatusRefunded   Status = "refunded"
)

// IsComplete reports that the order settled and its funds are usable.
func (s Status) IsComplete() bool { return s == StatusSettled }

// IsFailed reports a terminal unsuccessful outcome.
func (s Status) IsFailed() bool {
	return s == StatusFailed || s == StatusExpired || s == StatusRefunded
}

// IsPending reports that the order may still settle and should be re-checked.
func (s Status) IsPending() bool { return !s.IsComplete() && !s.IsFailed() }

// NormalizeStatus maps the aggregator's raw status strings onto the
// normalized set. Unknown values map to processing so the record stays
// sweepable instead of being misread as terminal.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "waiting", "pending":
		return StatusPending
	case "processing", "review", "settling", "confirming":
		return StatusProcessing
	case "settled", "complete", "completed":
		return StatusSettled
	case "refund", "refunding", "refunded":
		return StatusRefunded
	case "expired", "timeout":
		return StatusExpired
	case "failed", "error", "rejected":
		return StatusFailed
	default:
		return StatusProcessing
	}
}
