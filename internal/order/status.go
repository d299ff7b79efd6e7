package order

import "fmt"

// Status is an order's position in the fulfilment lifecycle.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPacked         Status = "packed"
	StatusDispatched     Status = "dispatched"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// statusRank orders the forward progression. Cancelled and delivered are
// terminal and deliberately absent from forward movement checks.
var statusRank = map[Status]int{
	StatusPending:        0,
	StatusConfirmed:      1,
	StatusPacked:         2,
	StatusDispatched:     3,
	StatusOutForDelivery: 4,
	StatusDelivered:      5,
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusConfirmed, StatusPacked, StatusDispatched,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return Status(raw), nil
	}
	return "", fmt.Errorf("unknown order status %q", raw)
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether moving from s to next is allowed. Forward
// moves go one step at a time; cancellation is allowed from any non-terminal
// state.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to == from+1
}
