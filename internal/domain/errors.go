package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound is returned when a quiz ID does not resolve.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrRoomNotFound is returned when a room code does not resolve.
	ErrRoomNotFound = errors.New("room not found")
	// ErrQuestionNotFound indicates a question ID outside the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrChoiceNotFound indicates a choice ID outside the question.
	ErrChoiceNotFound = errors.New("choice not found")
	// ErrParticipantNotFound indicates a participant unknown to the quiz.
	ErrParticipantNotFound = errors.New("participant not found")
)

// InvalidStateError reports a command that is illegal in the quiz's
// current lifecycle state, naming both.
type InvalidStateError struct {
	Action string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s quiz in %s state", e.Action, e.Status)
}

// ValidationError reports malformed input on a command.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
