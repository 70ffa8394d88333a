package models

import (
	"fmt"
	"strings"
)

type TicketStatus string

const (
	StatusOpen       TicketStatus = "OPEN"
	StatusInProgress TicketStatus = "IN_PROGRESS"
	StatusReview     TicketStatus = "REVIEW"
	StatusCompleted  TicketStatus = "COMPLETED"
)

// Rank orders statuses along the forward path; -1 for unknown values.
func (s TicketStatus) Rank() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusInProgress:
		return 1
	case StatusReview:
		return 2
	case StatusCompleted:
		return 3
	}
	return -1
}

func (s TicketStatus) Valid() bool { return s.Rank() >= 0 }

// ParseStatus accepts the canonical names as well as the "In_Progress" /
// "in progress" spellings older clients send.
func ParseStatus(v string) (TicketStatus, error) {
	norm := strings.ToUpper(strings.TrimSpace(v))
	norm = strings.ReplaceAll(norm, " ", "_")
	norm = strings.ReplaceAll(norm, "-", "_")
	s := TicketStatus(norm)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}
