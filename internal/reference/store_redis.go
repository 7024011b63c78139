package reference

import (
	"context"

	platformredis "caresignal/internal/platform/redis"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

const keyPrefix = "caresignal:references:"

// RedisStore keeps reference sets in Redis lists so every node resolves
// the same references.
type RedisStore struct {
	client *platformredis.Client
}

func NewRedisStore(client *platformredis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "redis client is required")
	}
	return &RedisStore{client: client}, nil
}

func refListKey(subjectID id.SubjectID, medicineID id.MedicineID) string {
	return keyPrefix + subjectID.String() + ":" + medicineID.String()
}

func (s *RedisStore) Replace(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID, urls []string) error {
	key := refListKey(subjectID, medicineID)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(urls) > 0 {
		args := make([]interface{}, len(urls))
		for i, u := range urls {
			args[i] = u
		}
		pipe.RPush(ctx, key, args...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store reference images")
	}
	return nil
}

func (s *RedisStore) References(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) ([]string, error) {
	urls, err := s.client.LRange(ctx, refListKey(subjectID, medicineID), 0, -1).Result()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list reference images")
	}
	return urls, nil
}

func (s *RedisStore) Delete(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) error {
	if err := s.client.Del(ctx, refListKey(subjectID, medicineID)).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to delete reference images")
	}
	return nil
}
