// Package order defines orders, their lifecycle and the ledger that stores
// them.
package order

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusFulfilling Status = "FULFILLING"
	StatusShipped    Status = "SHIPPED"
	StatusCompleted  Status = "COMPLETED"
	StatusCanceled   Status = "CANCELED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusPaid,
	StatusFulfilling,
	StatusShipped,
	StatusCompleted,
	StatusCanceled,
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusCanceled},
	StatusPaid:       {StatusFulfilling, StatusCanceled},
	StatusFulfilling: {StatusShipped},
	StatusShipped:    {StatusCompleted},
}

// adminTargets are the statuses an administrator may set directly.
var adminTargets = map[Status]struct{}{
	StatusCanceled:   {},
	StatusFulfilling: {},
	StatusShipped:    {},
	StatusCompleted:  {},
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// CanTransition reports whether an order may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AdminSettable reports whether an administrator may request s.
func (s Status) AdminSettable() bool {
	_, ok := adminTargets[s]
	return ok
}

// Terminal reports whether no transitions leave s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// InvalidTransitionError is returned when a status change is not permitted
// from the order's current status.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}
