// Package notification contains the pure rules for follow-up delivery:
// retry scheduling, dead-lettering and the spoken message text.
package notification

import (
	"fmt"
	"time"
)

const (
	StatusPending    = "pending"
	StatusDelivered  = "delivered"
	StatusDeadLetter = "dead_letter"
)

// RetryPolicy bounds redelivery of a follow-up after voice channel failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the policy used when configuration is silent.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// NextDelay returns the wait before the next try after the given number of
// failed attempts. The delay doubles per attempt and is capped at MaxDelay.
func (p RetryPolicy) NextDelay(failedAttempts int) time.Duration {
	if failedAttempts < 1 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < failedAttempts; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// FailureDecision is the outcome of a failed delivery attempt.
type FailureDecision struct {
	Attempts      int
	DeadLetter    bool
	NextAttemptAt time.Time
}

// DecideFailure computes what happens to an entry that has just failed.
// priorAttempts is the attempt count before this failure.
func DecideFailure(p RetryPolicy, priorAttempts int, now time.Time) FailureDecision {
	attempts := priorAttempts + 1
	if p.MaxAttempts > 0 && attempts >= p.MaxAttempts {
		return FailureDecision{Attempts: attempts, DeadLetter: true, NextAttemptAt: now}
	}
	return FailureDecision{
		Attempts:      attempts,
		NextAttemptAt: now.Add(p.NextDelay(attempts)),
	}
}

// CanRequeue evaluates whether a supervisor may retry a follow-up.
func CanRequeue(requestID, status string) error {
	if status != StatusDeadLetter {
		return fmt.Errorf("follow-up %s is %s; only dead-lettered follow-ups can be requeued", requestID, status)
	}
	return nil
}

// IsValidStatus reports whether status is one of the known queue states.
func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusDelivered, StatusDeadLetter:
		return true
	}
	return false
}

const followUpPrefix = "Good news! I heard back from my supervisor. "

// TimeoutNotice is spoken when no supervisor answer arrived in time.
const TimeoutNotice = "Sorry, I wasn't able to get an answer to your question in time."

// FollowUpText is the message spoken to the caller when an answer arrives.
func FollowUpText(answer string) string {
	return followUpPrefix + answer
}
