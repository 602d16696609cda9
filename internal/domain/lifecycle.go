package domain

import "time"

// Start moves the quiz from waiting to running, recording the start time.
// A non-nil durationSeconds overrides the configured duration; values below
// MinDurationSeconds are rejected.
func (q *Quiz) Start(now time.Time, durationSeconds *int) error {
	if q.Status != StatusWaiting {
		return &InvalidStateError{Action: "start", Status: q.Status}
	}
	if durationSeconds != nil {
		if *durationSeconds < MinDurationSeconds {
			return &ValidationError{Field: "duration_seconds", Reason: "must be at least 10 seconds"}
		}
		q.DurationSeconds = *durationSeconds
	}
	q.Status = StatusRunning
	q.StartedAt = &now
	return nil
}

// Finish moves the quiz from running to finished. It reports whether the
// transition happened: finishing an already finished quiz is a no-op, any
// other state is an error.
func (q *Quiz) Finish(now time.Time) (bool, error) {
	switch q.Status {
	case StatusFinished:
		return false, nil
	case StatusRunning:
		q.Status = StatusFinished
		q.EndedAt = &now
		return true, nil
	default:
		return false, &InvalidStateError{Action: "finish", Status: q.Status}
	}
}

// CanJoin reports whether participants may join in the current state.
// Joining is open while the quiz is waiting or running.
func (q *Quiz) CanJoin() error {
	if q.Status != StatusWaiting && q.Status != StatusRunning {
		return &InvalidStateError{Action: "join", Status: q.Status}
	}
	return nil
}

// CanMutateQuestions reports whether the question list may change.
// The structural shape is frozen once the quiz starts.
func (q *Quiz) CanMutateQuestions(action string) error {
	if q.Status != StatusDraft && q.Status != StatusWaiting {
		return &InvalidStateError{Action: action, Status: q.Status}
	}
	return nil
}

// SyncQuestionStatus is the centralized draft/waiting guard, evaluated
// after every structural mutation: acquiring the first question moves a
// draft quiz to waiting, removing the last one reverts it to draft.
// It reports whether the status changed.
func (q *Quiz) SyncQuestionStatus() bool {
	switch {
	case q.Status == StatusDraft && len(q.Questions) > 0:
		q.Status = StatusWaiting
		return true
	case q.Status == StatusWaiting && len(q.Questions) == 0:
		q.Status = StatusDraft
		return true
	}
	return false
}
