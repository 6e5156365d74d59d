package orders

import "github.com/ariefcatur/go-order-to-cash/internal/authz"

type Status string

const (
	StatusReceived      Status = "RECEIVED"
	StatusInPreparation Status = "IN_PREPARATION"
	StatusDispatched    Status = "DISPATCHED"
	StatusDelivered     Status = "DELIVERED"
	StatusCancelled     Status = "CANCELLED"
)

// transition is one named edge of the order state machine.
type transition struct {
	action authz.Action
	from   []Status
	to     Status
}

var (
	startPreparation = transition{authz.ActionStartPreparation, []Status{StatusReceived}, StatusInPreparation}
	dispatch         = transition{authz.ActionDispatch, []Status{StatusInPreparation}, StatusDispatched}
	deliver          = transition{authz.ActionDeliver, []Status{StatusDispatched}, StatusDelivered}
	cancel           = transition{authz.ActionCancelOrder, []Status{StatusReceived, StatusInPreparation}, StatusCancelled}
)

var transitions = []transition{startPreparation, dispatch, deliver, cancel}

func (t transition) allowedFrom(s Status) bool {
	for _, f := range t.from {
		if f == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether some named transition leads from one status to the other.
func CanTransition(from, to Status) bool {
	for _, t := range transitions {
		if t.to == to && t.allowedFrom(from) {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}
