package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aymanebs/emr-api/internal/model"
)

const (
	activePatientKey = "session:%s:active_patient"
	lastSelectionKey = "session:%s:last_selection"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and returns a session store whose entries
// expire after ttl of inactivity.
func NewRedisStore(url string, ttl time.Duration) (Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisStore{client: client, ttl: ttl}, nil
}

func (s *redisStore) SetActivePatient(ctx context.Context, sessionID string, patient *model.ActivePatient) error {
	return s.setJSON(ctx, fmt.Sprintf(activePatientKey, sessionID), patient)
}

func (s *redisStore) GetActivePatient(ctx context.Context, sessionID string) (*model.ActivePatient, error) {
	var patient model.ActivePatient
	ok, err := s.getJSON(ctx, fmt.Sprintf(activePatientKey, sessionID), &patient)
	if err != nil || !ok {
		return nil, err
	}
	return &patient, nil
}

func (s *redisStore) ClearActivePatient(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, fmt.Sprintf(activePatientKey, sessionID)).Err()
}

func (s *redisStore) SetLastSelection(ctx context.Context, sessionID string, selection *model.LastSelection) error {
	return s.setJSON(ctx, fmt.Sprintf(lastSelectionKey, sessionID), selection)
}

func (s *redisStore) GetLastSelection(ctx context.Context, sessionID string) (*model.LastSelection, error) {
	var selection model.LastSelection
	ok, err := s.getJSON(ctx, fmt.Sprintf(lastSelectionKey, sessionID), &selection)
	if err != nil || !ok {
		return nil, err
	}
	return &selection, nil
}

func (s *redisStore) ClearLastSelection(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, fmt.Sprintf(lastSelectionKey, sessionID)).Err()
}

func (s *redisStore) setJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal session value: %w", err)
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

func (s *redisStore) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read session value: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal session value: %w", err)
	}
	return true, nil
}
