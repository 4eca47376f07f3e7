package guard

import (
	"errors"

	complaintdomain "github.com/smallbiznis/grievance-portal/internal/complaint/domain"
)

var (
	ErrUnknownStatus      = errors.New("unknown_complaint_status")
	ErrStatusRegression   = errors.New("complaint_status_regression")
	ErrReservedStatus     = errors.New("complaint_status_reserved")
	ErrNotAwaitingPayment = errors.New("complaint_not_awaiting_payment")
	ErrNotReceived        = errors.New("complaint_not_received")
)

var rank = map[complaintdomain.Status]int{
	complaintdomain.StatusPendingPayment: 0,
	complaintdomain.StatusReceived:       1,
	complaintdomain.StatusProcessing:     2,
	complaintdomain.StatusResolved:       3,
}

// EnsureTransition allows only forward moves into statuses the workflow writes.
func EnsureTransition(from, to complaintdomain.Status) error {
	fromRank, ok := rank[from]
	if !ok {
		return ErrUnknownStatus
	}
	toRank, ok := rank[to]
	if !ok {
		return ErrUnknownStatus
	}
	if to == complaintdomain.StatusProcessing {
		return ErrReservedStatus
	}
	if toRank <= fromRank {
		return ErrStatusRegression
	}
	return nil
}

func EnsureCanCheckout(status complaintdomain.Status) error {
	if status != complaintdomain.StatusPendingPayment {
		return ErrNotAwaitingPayment
	}
	return nil
}

func EnsureCanResolve(status complaintdomain.Status) error {
	if status != complaintdomain.StatusReceived {
		return ErrNotReceived
	}
	return nil
}

// IsTerminal reports whether no further writes can happen.
func IsTerminal(status complaintdomain.Status) bool {
	return status == complaintdomain.StatusResolved
}

// EnsureResponsePair checks that the response letter and its score are
// either both present or both absent.
func EnsureResponsePair(complaint *complaintdomain.Complaint) bool {
	if complaint == nil {
		return true
	}
	return (complaint.AIResponse == nil) == (complaint.ComplexityScore == nil)
}
