package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizroom-service/internal/broadcast"
	"quizroom-service/internal/domain"
)

const roomCodeAttempts = 10

// Broadcaster publishes room events to subscribers; see broadcast.Hub.
type Broadcaster interface {
	Publish(roomCode string, e broadcast.Event)
}

// QuizService orchestrates the quiz lifecycle: it validates commands
// against the state machine, drives the answer ledger, computes
// scoreboards and publishes room events. Event payloads are computed
// under the per-quiz lock and published after it is released.
type QuizService struct {
	store    Store
	hub      Broadcaster
	notifier Notifier
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewQuizService(store Store, hub Broadcaster, notifier Notifier) *QuizService {
	return &QuizService{
		store:    store,
		hub:      hub,
		notifier: notifier,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex guarding all state transitions and ledger
// writes for one quiz.
func (s *QuizService) sessionLock(quizID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[quizID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[quizID] = l
	}
	return l
}

type ChoiceInput struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionInput struct {
	Text             string        `json:"text"`
	Order            int           `json:"order"`
	TimeLimitSeconds int           `json:"time_limit_seconds,omitempty"`
	Choices          []ChoiceInput `json:"choices"`
}

type CreateQuizRequest struct {
	Title           string          `json:"title"`
	DurationSeconds int             `json:"duration_seconds,omitempty"`
	Questions       []QuestionInput `json:"questions"`
}

// CreateQuiz creates a quiz with its questions and a fresh unique room
// code. A quiz created with questions starts out waiting.
func (s *QuizService) CreateQuiz(ctx context.Context, req CreateQuizRequest) (*domain.Quiz, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(req.Questions) == 0 {
		return nil, &domain.ValidationError{Field: "questions", Reason: "provide at least one question"}
	}
	duration := req.DurationSeconds
	if duration == 0 {
		duration = domain.DefaultDurationSeconds
	}
	if duration < domain.MinDurationSeconds {
		return nil, &domain.ValidationError{Field: "duration_seconds", Reason: "must be at least 10 seconds"}
	}

	quizID := uuid.NewString()
	questions := make([]domain.Question, 0, len(req.Questions))
	for i, in := range req.Questions {
		q, err := buildQuestion(quizID, in, i)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}

	code, err := s.uniqueRoomCode(ctx)
	if err != nil {
		return nil, err
	}

	quiz := &domain.Quiz{
		ID:              quizID,
		Title:           title,
		RoomCode:        code,
		Status:          domain.StatusDraft,
		DurationSeconds: duration,
		CreatedAt:       s.now(),
		Questions:       questions,
	}
	quiz.SyncQuestionStatus()

	if err := s.store.CreateQuiz(ctx, quiz); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	return quiz, nil
}

func buildQuestion(quizID string, in QuestionInput, position int) (*domain.Question, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, &domain.ValidationError{Field: "question text", Reason: "must not be empty"}
	}
	if len(in.Choices) < 2 || len(in.Choices) > 4 {
		return nil, &domain.ValidationError{Field: "choices", Reason: "each question must have between 2 and 4 choices"}
	}
	q := &domain.Question{
		ID:               uuid.NewString(),
		QuizID:           quizID,
		Text:             text,
		Order:            in.Order,
		TimeLimitSeconds: in.TimeLimitSeconds,
	}
	if in.Order == 0 {
		q.Order = position
	}
	hasCorrect := false
	for _, c := range in.Choices {
		if c.IsCorrect {
			hasCorrect = true
		}
		q.Choices = append(q.Choices, domain.Choice{
			ID:         uuid.NewString(),
			QuestionID: q.ID,
			Text:       c.Text,
			IsCorrect:  c.IsCorrect,
		})
	}
	if !hasCorrect {
		return nil, &domain.ValidationError{Field: "choices", Reason: "at least one choice must be marked as correct"}
	}
	return q, nil
}

func (s *QuizService) uniqueRoomCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code, err := domain.NewRoomCode()
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		_, err = s.store.GetQuizByCode(ctx, code)
		if errors.Is(err, domain.ErrRoomNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
	}
	return "", fmt.Errorf("could not generate a unique room code")
}

// AddQuestion appends a question while the quiz has not started. The
// draft/waiting guard runs after the mutation.
func (s *QuizService) AddQuestion(ctx context.Context, quizID string, in QuestionInput) (*domain.Quiz, error) {
	lock := s.sessionLock(quizID)
	lock.Lock()
	defer lock.Unlock()

	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := quiz.CanMutateQuestions("add question to"); err != nil {
		return nil, err
	}
	q, err := buildQuestion(quizID, in, len(quiz.Questions))
	if err != nil {
		return nil, err
	}
	if err := s.store.AddQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("add question: %w", err)
	}

	quiz.Questions = append(quiz.Questions, *q)
	if quiz.SyncQuestionStatus() {
		if err := s.store.UpdateQuiz(ctx, quiz); err != nil {
			return nil, fmt.Errorf("update quiz status: %w", err)
		}
	}
	return s.store.GetQuiz(ctx, quizID)
}

// RemoveQuestion deletes a question while the quiz has not started.
// Removing the last question reverts the quiz to draft.
func (s *QuizService) RemoveQuestion(ctx context.Context, quizID, questionID string) (*domain.Quiz, error) {
	lock := s.sessionLock(quizID)
	lock.Lock()
	defer lock.Unlock()

	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := quiz.CanMutateQuestions("remove question from"); err != nil {
		return nil, err
	}
	if _, ok := quiz.Question(questionID); !ok {
		return nil, domain.ErrQuestionNotFound
	}
	if err := s.store.RemoveQuestion(ctx, quizID, questionID); err != nil {
		return nil, fmt.Errorf("remove question: %w", err)
	}

	kept := quiz.Questions[:0]
	for _, q := range quiz.Questions {
		if q.ID != questionID {
			kept = append(kept, q)
		}
	}
	quiz.Questions = kept
	if quiz.SyncQuestionStatus() {
		if err := s.store.UpdateQuiz(ctx, quiz); err != nil {
			return nil, fmt.Errorf("update quiz status: %w", err)
		}
	}
	return s.store.GetQuiz(ctx, quizID)
}

// StartQuiz moves a waiting quiz to running and publishes quiz_started.
func (s *QuizService) StartQuiz(ctx context.Context, quizID string, durationSeconds *int) (*domain.Quiz, error) {
	lock := s.sessionLock(quizID)

	quiz, payload, err := func() (*domain.Quiz, startedPayload, error) {
		lock.Lock()
		defer lock.Unlock()

		quiz, err := s.store.GetQuiz(ctx, quizID)
		if err != nil {
			return nil, startedPayload{}, err
		}
		now := s.now()
		if err := quiz.Start(now, durationSeconds); err != nil {
			return nil, startedPayload{}, err
		}
		if err := s.store.UpdateQuiz(ctx, quiz); err != nil {
			return nil, startedPayload{}, fmt.Errorf("start quiz: %w", err)
		}
		return quiz, startedPayload{Quiz: newQuizView(quiz), TimeRemaining: quiz.TimeRemaining(now)}, nil
	}()
	if err != nil {
		return nil, err
	}

	s.hub.Publish(quiz.RoomCode, broadcast.Event{Event: broadcast.EventQuizStarted, Payload: payload})
	return quiz, nil
}

// Join adds a participant to the quiz behind a room code. Joining twice
// with the same name resolves to the same participant.
func (s *QuizService) Join(ctx context.Context, roomCode, name string) (*domain.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	resolved, err := s.store.GetQuizByCode(ctx, domain.NormalizeRoomCode(roomCode))
	if err != nil {
		return nil, err
	}

	lock := s.sessionLock(resolved.ID)

	participant, quiz, payload, err := func() (*domain.Participant, *domain.Quiz, joinedPayload, error) {
		lock.Lock()
		defer lock.Unlock()

		// Re-read under the lock; the quiz may have finished since the
		// code lookup.
		quiz, err := s.store.GetQuiz(ctx, resolved.ID)
		if err != nil {
			return nil, nil, joinedPayload{}, err
		}
		if err := quiz.CanJoin(); err != nil {
			return nil, nil, joinedPayload{}, err
		}
		participant, err := s.store.UpsertParticipant(ctx, &domain.Participant{
			ID:       uuid.NewString(),
			QuizID:   quiz.ID,
			Name:     name,
			JoinedAt: s.now(),
		})
		if err != nil {
			return nil, nil, joinedPayload{}, fmt.Errorf("join quiz: %w", err)
		}
		participants, err := s.store.ListParticipants(ctx, quiz.ID)
		if err != nil {
			return nil, nil, joinedPayload{}, fmt.Errorf("list participants: %w", err)
		}
		return participant, quiz, joinedPayload{
			Participant:   newParticipantView(participant),
			Participants:  newParticipantViews(participants),
			TimeRemaining: quiz.TimeRemaining(s.now()),
		}, nil
	}()
	if err != nil {
		return nil, err
	}

	s.hub.Publish(quiz.RoomCode, broadcast.Event{Event: broadcast.EventStudentJoined, Payload: payload})
	return participant, nil
}

// SubmitResult is the submitter's view after a batch of answers.
type SubmitResult struct {
	Name           string  `json:"name"`
	Score          int     `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
	Rank           int     `json:"rank"`
	TimeRemaining  int     `json:"time_remaining"`
}

// SubmitAnswers records a batch of answers for one participant. Each
// (participant, question) pair keeps at most one record; resubmission
// overwrites. When every participant has answered every question the quiz
// finalizes automatically, exactly once.
func (s *QuizService) SubmitAnswers(ctx context.Context, quizID, participantID string, subs []domain.AnswerSubmission) (*SubmitResult, error) {
	if len(subs) == 0 {
		return nil, &domain.ValidationError{Field: "answers", Reason: "provide at least one answer"}
	}

	lock := s.sessionLock(quizID)

	var (
		quiz        *domain.Quiz
		scoreboard  []domain.ScoreEntry
		result      *SubmitResult
		finishedNow bool
	)
	err := func() error {
		lock.Lock()
		defer lock.Unlock()

		var err error
		quiz, err = s.store.GetQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		if quiz.Status != domain.StatusRunning {
			return &domain.InvalidStateError{Action: "submit answers to", Status: quiz.Status}
		}
		participant, err := s.store.GetParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		if participant.QuizID != quiz.ID {
			return domain.ErrParticipantNotFound
		}

		now := s.now()
		for _, sub := range subs {
			question, ok := quiz.Question(sub.QuestionID)
			if !ok {
				return domain.ErrQuestionNotFound
			}
			choice, ok := question.Choice(sub.ChoiceID)
			if !ok {
				return domain.ErrChoiceNotFound
			}
			rec := &domain.AnswerRecord{
				ID:            uuid.NewString(),
				ParticipantID: participant.ID,
				QuestionID:    question.ID,
				ChoiceID:      choice.ID,
				IsCorrect:     choice.IsCorrect,
				LatencyMS:     sub.LatencyMS,
				AnsweredAt:    now,
			}
			if err := s.store.UpsertAnswer(ctx, rec); err != nil {
				return fmt.Errorf("record answer: %w", err)
			}
		}

		participants, err := s.store.ListParticipants(ctx, quiz.ID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}
		answers, err := s.store.ListAnswers(ctx, quiz.ID)
		if err != nil {
			return fmt.Errorf("list answers: %w", err)
		}
		scoreboard = domain.BuildScoreboard(participants, answers, len(quiz.Questions))

		// Auto-finalize on full answer coverage. The count check and the
		// transition share this critical section, so only one writer
		// observes the running -> finished edge.
		expected := len(participants) * len(quiz.Questions)
		count, err := s.store.CountAnswers(ctx, quiz.ID)
		if err != nil {
			return fmt.Errorf("count answers: %w", err)
		}
		if expected > 0 && count >= expected {
			changed, err := quiz.Finish(now)
			if err != nil {
				return err
			}
			if changed {
				if err := s.store.UpdateQuiz(ctx, quiz); err != nil {
					return fmt.Errorf("finalize quiz: %w", err)
				}
				finishedNow = true
			}
		}

		for _, e := range scoreboard {
			if e.ParticipantID == participant.ID {
				result = &SubmitResult{
					Name:           e.Name,
					Score:          e.Score,
					TotalQuestions: e.TotalQuestions,
					Percentage:     e.Percentage,
					Rank:           e.Rank,
					TimeRemaining:  quiz.TimeRemaining(now),
				}
				break
			}
		}
		return nil
	}()
	if err != nil {
		return nil, err
	}

	s.hub.Publish(quiz.RoomCode, broadcast.Event{
		Event:   broadcast.EventScoreboardUpdated,
		Payload: scoreboardPayload{Scoreboard: scoreboard, ParticipantID: participantID},
	})
	if finishedNow {
		s.hub.Publish(quiz.RoomCode, broadcast.Event{
			Event:   broadcast.EventQuizFinished,
			Payload: finishedPayload{Quiz: newQuizView(quiz), Scoreboard: scoreboard},
		})
		s.notifyFinished(ctx, quiz, scoreboard)
	}
	return result, nil
}

// FinishResult pairs the final quiz snapshot with its scoreboard.
type FinishResult struct {
	Quiz       *domain.Quiz        `json:"quiz"`
	Scoreboard []domain.ScoreEntry `json:"scoreboard"`
}

// FinishQuiz finalizes a running quiz. Finishing an already finished quiz
// returns the same final state again without re-notifying.
func (s *QuizService) FinishQuiz(ctx context.Context, quizID string) (*FinishResult, error) {
	lock := s.sessionLock(quizID)

	var (
		quiz       *domain.Quiz
		scoreboard []domain.ScoreEntry
		changed    bool
	)
	err := func() error {
		lock.Lock()
		defer lock.Unlock()

		var err error
		quiz, err = s.store.GetQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		changed, err = quiz.Finish(s.now())
		if err != nil {
			return err
		}
		if changed {
			if err := s.store.UpdateQuiz(ctx, quiz); err != nil {
				return fmt.Errorf("finish quiz: %w", err)
			}
		}
		scoreboard, err = s.buildScoreboard(ctx, quiz)
		return err
	}()
	if err != nil {
		return nil, err
	}

	s.hub.Publish(quiz.RoomCode, broadcast.Event{
		Event:   broadcast.EventQuizFinished,
		Payload: finishedPayload{Quiz: newQuizView(quiz), Scoreboard: scoreboard},
	})
	if changed {
		s.notifyFinished(ctx, quiz, scoreboard)
	}
	return &FinishResult{Quiz: quiz, Scoreboard: scoreboard}, nil
}

// StatusResult is the live status of a quiz.
type StatusResult struct {
	Quiz          *domain.Quiz        `json:"quiz"`
	TimeRemaining int                 `json:"time_remaining"`
	Scoreboard    []domain.ScoreEntry `json:"scoreboard"`
}

// Status reports the quiz state, advisory time remaining and the current
// scoreboard, reflecting persisted answer records at call time.
func (s *QuizService) Status(ctx context.Context, quizID string) (*StatusResult, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	scoreboard, err := s.buildScoreboard(ctx, quiz)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		Quiz:          quiz,
		TimeRemaining: quiz.TimeRemaining(s.now()),
		Scoreboard:    scoreboard,
	}, nil
}

// Results returns the quiz with its scoreboard, in any state.
func (s *QuizService) Results(ctx context.Context, quizID string) (*FinishResult, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	scoreboard, err := s.buildScoreboard(ctx, quiz)
	if err != nil {
		return nil, err
	}
	return &FinishResult{Quiz: quiz, Scoreboard: scoreboard}, nil
}

// GetByCode resolves a quiz by room code, case-insensitively, along with
// its time remaining.
func (s *QuizService) GetByCode(ctx context.Context, roomCode string) (*domain.Quiz, int, error) {
	quiz, err := s.store.GetQuizByCode(ctx, domain.NormalizeRoomCode(roomCode))
	if err != nil {
		return nil, 0, err
	}
	return quiz, quiz.TimeRemaining(s.now()), nil
}

// ParticipantResult is one participant's final outcome next to the winner.
type ParticipantResult struct {
	Participant domain.ScoreEntry  `json:"participant"`
	Winner      *domain.ScoreEntry `json:"winner,omitempty"`
}

// ParticipantResult returns a participant's final entry once the quiz has
// finished.
func (s *QuizService) ParticipantResult(ctx context.Context, roomCode, participantID string) (*ParticipantResult, error) {
	quiz, err := s.store.GetQuizByCode(ctx, domain.NormalizeRoomCode(roomCode))
	if err != nil {
		return nil, err
	}
	if quiz.Status != domain.StatusFinished {
		return nil, &domain.InvalidStateError{Action: "view results of", Status: quiz.Status}
	}
	scoreboard, err := s.buildScoreboard(ctx, quiz)
	if err != nil {
		return nil, err
	}
	result := &ParticipantResult{}
	if len(scoreboard) > 0 {
		winner := scoreboard[0]
		result.Winner = &winner
	}
	for _, e := range scoreboard {
		if e.ParticipantID == participantID {
			result.Participant = e
			return result, nil
		}
	}
	return nil, domain.ErrParticipantNotFound
}

func (s *QuizService) buildScoreboard(ctx context.Context, quiz *domain.Quiz) ([]domain.ScoreEntry, error) {
	participants, err := s.store.ListParticipants(ctx, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	answers, err := s.store.ListAnswers(ctx, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return domain.BuildScoreboard(participants, answers, len(quiz.Questions)), nil
}

func (s *QuizService) notifyFinished(ctx context.Context, quiz *domain.Quiz, scoreboard []domain.ScoreEntry) {
	if s.notifier == nil {
		return
	}
	top := scoreboard
	if len(top) > 3 {
		top = top[:3]
	}
	s.notifier.QuizFinished(ctx, quiz.Title, len(scoreboard), top)
}
