package api

import "time"

// RetryState describes where one logical request stands in its retry
// budget. It is immutable: each retry derives the next value through Next
// instead of mutating shared state across attempts, so a descriptor can be
// read at any point of the chain without synchronization.
type RetryState struct {
	// Attempt is the number of retries performed so far, 0 before the
	// first retry.
	Attempt int

	// Max is the retry budget after the initial attempt.
	Max int
}

// NewRetryState returns the descriptor for a request that has not been
// retried yet.
func NewRetryState(max int) RetryState {
	return RetryState{Max: max}
}

// Exhausted reports whether the retry budget is spent.
func (s RetryState) Exhausted() bool {
	return s.Attempt >= s.Max
}

// Next returns the descriptor for the following retry.
func (s RetryState) Next() RetryState {
	return RetryState{Attempt: s.Attempt + 1, Max: s.Max}
}

// Backoff returns the linear delay to wait before the retry this state
// describes: the attempt number times the unit.
func (s RetryState) Backoff(unit time.Duration) time.Duration {
	return time.Duration(s.Attempt) * unit
}
