package app

import (
	"time"

	"quizroom-service/internal/domain"
)

// QuizView is the public quiz snapshot carried in responses and events.
// It deliberately omits choice correctness.
type QuizView struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	RoomCode        string          `json:"room_code"`
	Status          domain.Status   `json:"status"`
	DurationSeconds int             `json:"duration_seconds"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	Questions       []QuestionView  `json:"questions"`
}

type QuestionView struct {
	ID               string       `json:"id"`
	Text             string       `json:"text"`
	Order            int          `json:"order"`
	TimeLimitSeconds int          `json:"time_limit_seconds,omitempty"`
	Choices          []ChoiceView `json:"choices"`
}

type ChoiceView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type ParticipantView struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

func newQuizView(q *domain.Quiz) QuizView {
	questions := make([]QuestionView, 0, len(q.Questions))
	for _, question := range q.Questions {
		choices := make([]ChoiceView, 0, len(question.Choices))
		for _, c := range question.Choices {
			choices = append(choices, ChoiceView{ID: c.ID, Text: c.Text})
		}
		questions = append(questions, QuestionView{
			ID:               question.ID,
			Text:             question.Text,
			Order:            question.Order,
			TimeLimitSeconds: question.TimeLimitSeconds,
			Choices:          choices,
		})
	}
	return QuizView{
		ID:              q.ID,
		Title:           q.Title,
		RoomCode:        q.RoomCode,
		Status:          q.Status,
		DurationSeconds: q.DurationSeconds,
		StartedAt:       q.StartedAt,
		EndedAt:         q.EndedAt,
		Questions:       questions,
	}
}

func newParticipantView(p *domain.Participant) ParticipantView {
	return ParticipantView{ID: p.ID, Name: p.Name, JoinedAt: p.JoinedAt}
}

func newParticipantViews(ps []domain.Participant) []ParticipantView {
	views := make([]ParticipantView, 0, len(ps))
	for i := range ps {
		views = append(views, newParticipantView(&ps[i]))
	}
	return views
}

// Event payloads published to room subscribers. Each is a self-consistent
// snapshot of the state after the triggering action.
type joinedPayload struct {
	Participant   ParticipantView   `json:"participant"`
	Participants  []ParticipantView `json:"participants"`
	TimeRemaining int               `json:"time_remaining"`
}

type startedPayload struct {
	Quiz          QuizView `json:"quiz"`
	TimeRemaining int      `json:"time_remaining"`
}

type scoreboardPayload struct {
	Scoreboard    []domain.ScoreEntry `json:"scoreboard"`
	ParticipantID string              `json:"participant_id"`
}

type finishedPayload struct {
	Quiz       QuizView            `json:"quiz"`
	Scoreboard []domain.ScoreEntry `json:"scoreboard"`
}
