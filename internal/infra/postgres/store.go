package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizroom-service/internal/domain"
)

// Store is the Postgres implementation of app.Store. Uniqueness on
// (quiz_id, name) and (participant_id, question_id) lives in the schema;
// upserts use ON CONFLICT DO UPDATE so concurrent writers can never create
// a duplicate pair.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO quizzes (id, title, room_code, status, duration_seconds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		quiz.ID, quiz.Title, quiz.RoomCode, string(quiz.Status), quiz.DurationSeconds, quiz.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	for i := range quiz.Questions {
		if err := insertQuestion(ctx, tx, &quiz.Questions[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertQuestion(ctx context.Context, tx pgx.Tx, q *domain.Question) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO questions (id, quiz_id, text, ord, time_limit_seconds)
		 VALUES ($1, $2, $3, $4, $5)`,
		q.ID, q.QuizID, q.Text, q.Order, q.TimeLimitSeconds)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	for _, c := range q.Choices {
		_, err := tx.Exec(ctx,
			`INSERT INTO choices (id, question_id, text, is_correct) VALUES ($1, $2, $3, $4)`,
			c.ID, c.QuestionID, c.Text, c.IsCorrect)
		if err != nil {
			return fmt.Errorf("insert choice: %w", err)
		}
	}
	return nil
}

func (s *Store) GetQuiz(ctx context.Context, id string) (*domain.Quiz, error) {
	quiz := &domain.Quiz{}
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, room_code, status, duration_seconds, created_at, started_at, ended_at
		 FROM quizzes WHERE id = $1`, id).
		Scan(&quiz.ID, &quiz.Title, &quiz.RoomCode, &status, &quiz.DurationSeconds,
			&quiz.CreatedAt, &quiz.StartedAt, &quiz.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select quiz: %w", err)
	}
	quiz.Status = domain.Status(status)

	if err := s.loadQuestions(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *Store) GetQuizByCode(ctx context.Context, roomCode string) (*domain.Quiz, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM quizzes WHERE room_code = $1`, roomCode).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select quiz by code: %w", err)
	}
	return s.GetQuiz(ctx, id)
}

func (s *Store) loadQuestions(ctx context.Context, quiz *domain.Quiz) error {
	rows, err := s.pool.Query(ctx,
		`SELECT id, quiz_id, text, ord, time_limit_seconds
		 FROM questions WHERE quiz_id = $1 ORDER BY ord, id`, quiz.ID)
	if err != nil {
		return fmt.Errorf("select questions: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &q.Order, &q.TimeLimitSeconds); err != nil {
			return fmt.Errorf("scan question: %w", err)
		}
		index[q.ID] = len(quiz.Questions)
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(quiz.Questions) == 0 {
		return nil
	}

	crows, err := s.pool.Query(ctx,
		`SELECT c.id, c.question_id, c.text, c.is_correct
		 FROM choices c JOIN questions q ON c.question_id = q.id
		 WHERE q.quiz_id = $1 ORDER BY c.id`, quiz.ID)
	if err != nil {
		return fmt.Errorf("select choices: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var c domain.Choice
		if err := crows.Scan(&c.ID, &c.QuestionID, &c.Text, &c.IsCorrect); err != nil {
			return fmt.Errorf("scan choice: %w", err)
		}
		if i, ok := index[c.QuestionID]; ok {
			quiz.Questions[i].Choices = append(quiz.Questions[i].Choices, c)
		}
	}
	return crows.Err()
}

func (s *Store) UpdateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quizzes SET status = $2, duration_seconds = $3, started_at = $4, ended_at = $5
		 WHERE id = $1`,
		quiz.ID, string(quiz.Status), quiz.DurationSeconds, quiz.StartedAt, quiz.EndedAt)
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) AddQuestion(ctx context.Context, q *domain.Question) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := insertQuestion(ctx, tx, q); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) RemoveQuestion(ctx context.Context, quizID, questionID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM questions WHERE id = $1 AND quiz_id = $2`, questionID, quizID)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// UpsertParticipant inserts the participant or, if the (quiz, name) pair
// already exists, returns the existing record. The conflict target makes
// re-joining idempotent with no read-then-write race.
func (s *Store) UpsertParticipant(ctx context.Context, p *domain.Participant) (*domain.Participant, error) {
	out := &domain.Participant{QuizID: p.QuizID, Name: p.Name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO participants (id, quiz_id, name, joined_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (quiz_id, name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, joined_at`,
		p.ID, p.QuizID, p.Name, p.JoinedAt).
		Scan(&out.ID, &out.JoinedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert participant: %w", err)
	}
	return out, nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (*domain.Participant, error) {
	p := &domain.Participant{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, quiz_id, name, joined_at FROM participants WHERE id = $1`, id).
		Scan(&p.ID, &p.QuizID, &p.Name, &p.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select participant: %w", err)
	}
	return p, nil
}

func (s *Store) ListParticipants(ctx context.Context, quizID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, quiz_id, name, joined_at FROM participants
		 WHERE quiz_id = $1 ORDER BY joined_at, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.QuizID, &p.Name, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertAnswer records an answer, overwriting any previous record for the
// same (participant, question) pair in a single atomic statement.
func (s *Store) UpsertAnswer(ctx context.Context, rec *domain.AnswerRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO answers (id, participant_id, question_id, choice_id, is_correct, latency_ms, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (participant_id, question_id) DO UPDATE
		 SET choice_id = EXCLUDED.choice_id,
		     is_correct = EXCLUDED.is_correct,
		     latency_ms = EXCLUDED.latency_ms,
		     answered_at = EXCLUDED.answered_at`,
		rec.ID, rec.ParticipantID, rec.QuestionID, rec.ChoiceID, rec.IsCorrect, rec.LatencyMS, rec.AnsweredAt)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (s *Store) ListAnswers(ctx context.Context, quizID string) ([]domain.AnswerRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.participant_id, a.question_id, a.choice_id, a.is_correct, a.latency_ms, a.answered_at
		 FROM answers a JOIN participants p ON a.participant_id = p.id
		 WHERE p.quiz_id = $1 ORDER BY a.answered_at, a.id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	defer rows.Close()

	var out []domain.AnswerRecord
	for rows.Next() {
		var a domain.AnswerRecord
		if err := rows.Scan(&a.ID, &a.ParticipantID, &a.QuestionID, &a.ChoiceID, &a.IsCorrect, &a.LatencyMS, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CountAnswers(ctx context.Context, quizID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM answers a JOIN participants p ON a.participant_id = p.id
		 WHERE p.quiz_id = $1`, quizID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	return count, nil
}
