package draft

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultTTL     = 24 * 7 * time.Hour
	draftKeyPrefix = "fittrack||workout-draft||"
)

// Store persists one draft per user.
type Store interface {
	Load(ctx context.Context, userID string) (State, error)
	Save(ctx context.Context, userID string, s State) error
	Clear(ctx context.Context, userID string) error
}

type RedisStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

func draftKey(userID string) string {
	return draftKeyPrefix + userID
}

// Load returns an empty draft when the user has none.
func (s *RedisStore) Load(ctx context.Context, userID string) (State, error) {
	cmd := s.redisClient.Get(ctx, draftKey(userID))
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return Empty(), nil
		}
		return State{}, err
	}

	var state State
	if err := json.Unmarshal([]byte(cmd.Val()), &state); err != nil {
		return State{}, err
	}
	if state.Exercises == nil {
		state.Exercises = []ExerciseDraft{}
	}
	if state.SelectedExerciseIDs == nil {
		state.SelectedExerciseIDs = []string{}
	}
	return state, nil
}

// Save overwrites the draft and restarts its TTL.
func (s *RedisStore) Save(ctx context.Context, userID string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.redisClient.Set(ctx, draftKey(userID), data, s.ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	return s.redisClient.Del(ctx, draftKey(userID)).Err()
}
