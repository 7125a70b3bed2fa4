package circuitbreaker

import (
	"encoding/json"
	"fmt"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking requests
	StateHalfOpen              // Probing with single requests
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is the persisted breaker record. OpenedAt is meaningful only in
// StateOpen; AttemptCount and LastAttempt only in StateHalfOpen.
type Snapshot struct {
	State                State
	OpenedAt             time.Time
	AttemptCount         int
	LastAttempt          time.Time
	FailureCount         int
	LastFailure          time.Time
	ConsecutiveSuccesses int
}

func (s Snapshot) allows(now time.Time, coolDown, probeInterval time.Duration) bool {
	switch s.State {
	case StateOpen:
		return now.Sub(s.OpenedAt) >= coolDown
	case StateHalfOpen:
		return now.Sub(s.LastAttempt) >= probeInterval
	default:
		return true
	}
}

func (s *Snapshot) recordFailure(now time.Time, threshold int, coolDown time.Duration) {
	s.FailureCount++
	s.ConsecutiveSuccesses = 0
	s.LastFailure = now

	switch s.State {
	case StateClosed:
		if s.FailureCount >= threshold {
			s.open(now)
		}
	case StateHalfOpen:
		s.open(now)
	case StateOpen:
		// A failure after the cool-down is a failed probe and re-arms the
		// cool-down. Stragglers that started before the breaker opened
		// leave opened_at alone.
		if now.Sub(s.OpenedAt) >= coolDown {
			s.open(now)
		}
	}
}

func (s *Snapshot) recordSuccess(now time.Time) {
	s.ConsecutiveSuccesses++

	switch s.State {
	case StateOpen:
		s.State = StateHalfOpen
		s.OpenedAt = time.Time{}
		s.AttemptCount = 0
		s.LastAttempt = now
	case StateHalfOpen:
		s.AttemptCount++
		s.LastAttempt = now
		if s.ConsecutiveSuccesses >= 2 {
			s.close()
		}
	case StateClosed:
		s.FailureCount = 0
	}
}

func (s *Snapshot) open(now time.Time) {
	s.State = StateOpen
	s.OpenedAt = now
	s.AttemptCount = 0
	s.LastAttempt = time.Time{}
}

func (s *Snapshot) close() {
	s.State = StateClosed
	s.FailureCount = 0
	s.OpenedAt = time.Time{}
	s.AttemptCount = 0
	s.LastAttempt = time.Time{}
}

// On-disk form:
//
//	{"state": "Closed" | {"Open": {...}} | {"HalfOpen": {...}},
//	 "failure_count": 0, "last_failure": "...", "consecutive_successes": 0}
type fileRecord struct {
	State                json.RawMessage `json:"state"`
	FailureCount         int             `json:"failure_count"`
	LastFailure          string          `json:"last_failure"`
	ConsecutiveSuccesses int             `json:"consecutive_successes"`
}

type openRecord struct {
	OpenedAt string `json:"opened_at"`
}

type halfOpenRecord struct {
	AttemptCount int    `json:"attempt_count"`
	LastAttempt  string `json:"last_attempt"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	var state any
	switch s.State {
	case StateClosed:
		state = "Closed"
	case StateOpen:
		state = map[string]openRecord{"Open": {OpenedAt: formatTime(s.OpenedAt)}}
	case StateHalfOpen:
		state = map[string]halfOpenRecord{"HalfOpen": {
			AttemptCount: s.AttemptCount,
			LastAttempt:  formatTime(s.LastAttempt),
		}}
	default:
		return nil, fmt.Errorf("unknown breaker state %d", s.State)
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fileRecord{
		State:                raw,
		FailureCount:         s.FailureCount,
		LastFailure:          formatTime(s.LastFailure),
		ConsecutiveSuccesses: s.ConsecutiveSuccesses,
	})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	out := Snapshot{
		FailureCount:         rec.FailureCount,
		ConsecutiveSuccesses: rec.ConsecutiveSuccesses,
	}

	var err error
	if out.LastFailure, err = parseTime(rec.LastFailure); err != nil {
		return fmt.Errorf("last_failure: %w", err)
	}

	var tag string
	if err := json.Unmarshal(rec.State, &tag); err == nil {
		if tag != "Closed" {
			return fmt.Errorf("unknown breaker state %q", tag)
		}
		out.State = StateClosed
		*s = out
		return nil
	}

	var variant struct {
		Open     *openRecord     `json:"Open"`
		HalfOpen *halfOpenRecord `json:"HalfOpen"`
	}
	if err := json.Unmarshal(rec.State, &variant); err != nil {
		return fmt.Errorf("state: %w", err)
	}

	switch {
	case variant.Open != nil && variant.HalfOpen == nil:
		out.State = StateOpen
		if out.OpenedAt, err = parseTime(variant.Open.OpenedAt); err != nil {
			return fmt.Errorf("opened_at: %w", err)
		}
	case variant.HalfOpen != nil && variant.Open == nil:
		out.State = StateHalfOpen
		out.AttemptCount = variant.HalfOpen.AttemptCount
		if out.LastAttempt, err = parseTime(variant.HalfOpen.LastAttempt); err != nil {
			return fmt.Errorf("last_attempt: %w", err)
		}
	default:
		return fmt.Errorf("state must be Closed, Open or HalfOpen")
	}

	*s = out
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
