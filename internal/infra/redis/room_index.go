package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// RoomIndexStore decorates an app.Store with a Redis cache for room code
// lookups. Codes never change once assigned, so the code -> quiz ID
// mapping is safe to cache; the quiz itself is always re-read from the
// inner store. Cache failures fall through to the store.
type RoomIndexStore struct {
	app.Store
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
}

func NewRoomIndexStore(inner app.Store, client *redis.Client, ttl time.Duration) *RoomIndexStore {
	return &RoomIndexStore{Store: inner, client: client, ttl: ttl}
}

func (s *RoomIndexStore) GetQuizByCode(ctx context.Context, roomCode string) (*domain.Quiz, error) {
	if id, err := s.client.Get(ctx, s.key(roomCode)).Result(); err == nil && id != "" {
		return s.Store.GetQuiz(ctx, id)
	}

	result, err, _ := s.sf.Do(roomCode, func() (interface{}, error) {
		quiz, err := s.Store.GetQuizByCode(ctx, roomCode)
		if err != nil {
			return nil, err
		}
		// best-effort fill
		_ = s.client.Set(ctx, s.key(roomCode), quiz.ID, s.ttl).Err()
		return quiz, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Quiz), nil
}

func (s *RoomIndexStore) key(roomCode string) string {
	return "quiz:room:" + roomCode
}
