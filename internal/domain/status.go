package domain

import (
	"fmt"
	"slices"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusInReview  Status = "in_review"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusSubmitted, StatusInReview, StatusApproved, StatusRejected}

var legalTransitions = map[Status][]Status{
	StatusSubmitted: {StatusInReview, StatusApproved, StatusRejected},
	StatusInReview:  {StatusApproved, StatusRejected},
}

// ParseStatus rejects anything outside the four-state vocabulary, including
// the legacy bootstrap values (pending, under_review, pending_documents).
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

func (s Status) Valid() bool { return slices.Contains(Statuses, s) }

// Terminal statuses are absorbing.
func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(legalTransitions[s], next)
}

// NextStatuses returns the statuses reachable from s in one transition.
func (s Status) NextStatuses() []Status {
	return slices.Clone(legalTransitions[s])
}

func (s Status) String() string { return string(s) }

// ReplayStatus folds events (already in timestamp order) starting from the
// initial Submitted status. It fails on the first event whose OldStatus does
// not match the status reached so far or whose step is not a legal transition.
func ReplayStatus(events []StatusChangeEvent) (Status, error) {
	current := StatusSubmitted
	for i, ev := range events {
		if ev.OldStatus != current {
			return current, fmt.Errorf("event %d (%s): old status %s, expected %s", i, ev.ID, ev.OldStatus, current)
		}
		if !current.CanTransitionTo(ev.NewStatus) {
			return current, fmt.Errorf("event %d (%s): %s -> %s is not a legal transition", i, ev.ID, current, ev.NewStatus)
		}
		current = ev.NewStatus
	}
	return current, nil
}
