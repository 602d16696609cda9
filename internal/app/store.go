package app

import (
	"context"

	"quizroom-service/internal/domain"
)

// Store abstracts the persistence collaborator. Implementations must
// enforce uniqueness on (quiz, participant name) and on (participant,
// question), with upserts resolving conflicts as overwrites.
type Store interface {
	CreateQuiz(ctx context.Context, quiz *domain.Quiz) error
	GetQuiz(ctx context.Context, id string) (*domain.Quiz, error)
	// GetQuizByCode resolves an (already normalized) room code.
	GetQuizByCode(ctx context.Context, roomCode string) (*domain.Quiz, error)
	// UpdateQuiz persists status, duration and lifecycle timestamps.
	UpdateQuiz(ctx context.Context, quiz *domain.Quiz) error

	AddQuestion(ctx context.Context, q *domain.Question) error
	RemoveQuestion(ctx context.Context, quizID, questionID string) error

	// UpsertParticipant inserts a participant or returns the existing
	// record for the same (quiz, name) pair.
	UpsertParticipant(ctx context.Context, p *domain.Participant) (*domain.Participant, error)
	GetParticipant(ctx context.Context, id string) (*domain.Participant, error)
	ListParticipants(ctx context.Context, quizID string) ([]domain.Participant, error)

	// UpsertAnswer inserts an answer record or overwrites the existing
	// one for the same (participant, question) pair.
	UpsertAnswer(ctx context.Context, rec *domain.AnswerRecord) error
	ListAnswers(ctx context.Context, quizID string) ([]domain.AnswerRecord, error)
	CountAnswers(ctx context.Context, quizID string) (int, error)
}

// Notifier receives the end-of-quiz summary. Implementations are
// best-effort and must never propagate delivery failures.
type Notifier interface {
	QuizFinished(ctx context.Context, title string, participantCount int, top []domain.ScoreEntry)
}
