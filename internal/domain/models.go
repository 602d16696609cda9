package domain

import "time"

// Status is the lifecycle state of a quiz session.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusWaiting  Status = "waiting"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
)

const (
	// DefaultDurationSeconds applies when a quiz is created without a duration.
	DefaultDurationSeconds = 60
	// MinDurationSeconds is the lowest duration a start command may set.
	MinDurationSeconds = 10
)

// Quiz is one live quiz session, identified publicly by its room code.
type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	RoomCode        string     `json:"room_code"`
	Status          Status     `json:"status"`
	DurationSeconds int        `json:"duration_seconds"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Questions       []Question `json:"questions"`
}

// Question belongs to exactly one quiz. Order is the stable sort key;
// ties break by ID.
type Question struct {
	ID               string   `json:"id"`
	QuizID           string   `json:"quiz_id"`
	Text             string   `json:"text"`
	Order            int      `json:"order"`
	TimeLimitSeconds int      `json:"time_limit_seconds,omitempty"`
	Choices          []Choice `json:"choices"`
}

// Choice belongs to exactly one question. IsCorrect is the single source
// of truth used to grade answers.
type Choice struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
}

// Participant is a named entrant in a specific quiz, not a global identity.
// Name is unique within the quiz; re-joining with the same name resolves to
// the same record.
type Participant struct {
	ID       string    `json:"id"`
	QuizID   string    `json:"quiz_id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// AnswerRecord holds one participant's answer to one question. At most one
// record exists per (participant, question) pair; resubmission overwrites.
// IsCorrect is copied from the chosen choice at submission time.
type AnswerRecord struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	QuestionID    string    `json:"question_id"`
	ChoiceID      string    `json:"choice_id"`
	IsCorrect     bool      `json:"is_correct"`
	LatencyMS     int       `json:"latency_ms"`
	AnsweredAt    time.Time `json:"answered_at"`
}

// AnswerSubmission is one inbound answer from a client.
type AnswerSubmission struct {
	QuestionID string `json:"question_id"`
	ChoiceID   string `json:"choice_id"`
	LatencyMS  int    `json:"latency_ms,omitempty"`
}

// Question looks up a question by ID.
func (q *Quiz) Question(id string) (*Question, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i], true
		}
	}
	return nil, false
}

// Choice looks up a choice by ID.
func (qu *Question) Choice(id string) (*Choice, bool) {
	for i := range qu.Choices {
		if qu.Choices[i].ID == id {
			return &qu.Choices[i], true
		}
	}
	return nil, false
}

// TimeRemaining reports the advisory seconds left on the quiz clock.
// Before start it is the configured duration; it never goes below zero.
// Nothing expires a quiz from the clock alone.
func (q *Quiz) TimeRemaining(now time.Time) int {
	if q.StartedAt == nil {
		return q.DurationSeconds
	}
	remaining := q.DurationSeconds - int(now.Sub(*q.StartedAt).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
