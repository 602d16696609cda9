package memory

import (
	"context"
	"sort"
	"sync"

	"quizroom-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. Uniqueness on
// (quiz, name) and (participant, question) is enforced by keyed maps, so
// upserts are naturally idempotent.
type Store struct {
	mu           sync.RWMutex
	quizzes      map[string]*domain.Quiz
	byCode       map[string]string // room code -> quiz ID
	participants map[string]*domain.Participant
	byQuizName   map[participantKey]string // (quiz, name) -> participant ID
	answers      map[answerKey]*domain.AnswerRecord
}

type participantKey struct {
	quizID string
	name   string
}

type answerKey struct {
	participantID string
	questionID    string
}

func NewStore() *Store {
	return &Store{
		quizzes:      make(map[string]*domain.Quiz),
		byCode:       make(map[string]string),
		participants: make(map[string]*domain.Participant),
		byQuizName:   make(map[participantKey]string),
		answers:      make(map[answerKey]*domain.AnswerRecord),
	}
}

func (s *Store) CreateQuiz(_ context.Context, quiz *domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneQuiz(quiz)
	sortQuestions(stored.Questions)
	s.quizzes[quiz.ID] = stored
	s.byCode[quiz.RoomCode] = quiz.ID
	return nil
}

func (s *Store) GetQuiz(_ context.Context, id string) (*domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *Store) GetQuizByCode(ctx context.Context, roomCode string) (*domain.Quiz, error) {
	s.mu.RLock()
	id, ok := s.byCode[roomCode]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return s.GetQuiz(ctx, id)
}

func (s *Store) UpdateQuiz(_ context.Context, quiz *domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.quizzes[quiz.ID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	stored.Status = quiz.Status
	stored.DurationSeconds = quiz.DurationSeconds
	stored.StartedAt = quiz.StartedAt
	stored.EndedAt = quiz.EndedAt
	return nil
}

func (s *Store) AddQuestion(_ context.Context, q *domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[q.QuizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.Questions = append(quiz.Questions, *q)
	sortQuestions(quiz.Questions)
	return nil
}

func (s *Store) RemoveQuestion(_ context.Context, quizID, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	kept := quiz.Questions[:0]
	found := false
	for _, q := range quiz.Questions {
		if q.ID == questionID {
			found = true
			continue
		}
		kept = append(kept, q)
	}
	if !found {
		return domain.ErrQuestionNotFound
	}
	quiz.Questions = kept
	return nil
}

func (s *Store) UpsertParticipant(_ context.Context, p *domain.Participant) (*domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participantKey{quizID: p.QuizID, name: p.Name}
	if id, ok := s.byQuizName[key]; ok {
		existing := *s.participants[id]
		return &existing, nil
	}
	stored := *p
	s.participants[p.ID] = &stored
	s.byQuizName[key] = p.ID
	out := stored
	return &out, nil
}

func (s *Store) GetParticipant(_ context.Context, id string) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	out := *p
	return &out, nil
}

func (s *Store) ListParticipants(_ context.Context, quizID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Participant
	for _, p := range s.participants {
		if p.QuizID == quizID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpsertAnswer(_ context.Context, rec *domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := answerKey{participantID: rec.ParticipantID, questionID: rec.QuestionID}
	if existing, ok := s.answers[key]; ok {
		existing.ChoiceID = rec.ChoiceID
		existing.IsCorrect = rec.IsCorrect
		existing.LatencyMS = rec.LatencyMS
		existing.AnsweredAt = rec.AnsweredAt
		return nil
	}
	stored := *rec
	s.answers[key] = &stored
	return nil
}

func (s *Store) ListAnswers(_ context.Context, quizID string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AnswerRecord
	for _, a := range s.answers {
		p, ok := s.participants[a.ParticipantID]
		if ok && p.QuizID == quizID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AnsweredAt.Equal(out[j].AnsweredAt) {
			return out[i].AnsweredAt.Before(out[j].AnsweredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CountAnswers(ctx context.Context, quizID string) (int, error) {
	answers, err := s.ListAnswers(ctx, quizID)
	if err != nil {
		return 0, err
	}
	return len(answers), nil
}

func cloneQuiz(q *domain.Quiz) *domain.Quiz {
	out := *q
	out.Questions = make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		cq := question
		cq.Choices = append([]domain.Choice(nil), question.Choices...)
		out.Questions[i] = cq
	}
	return &out
}

func sortQuestions(questions []domain.Question) {
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].Order != questions[j].Order {
			return questions[i].Order < questions[j].Order
		}
		return questions[i].ID < questions[j].ID
	})
}
