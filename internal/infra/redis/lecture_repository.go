package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"lecture-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// LectureLoader fetches lecture content from a backing store (e.g., Postgres).
type LectureLoader interface {
	LoadLecture(ctx context.Context, lectureID string) (domain.Lecture, error)
}

// LectureRepository caches lectures in Redis (JSON per lecture under
// lecture:{id}) and falls back to a loader on cache miss.
type LectureRepository struct {
	client *redis.Client
	loader LectureLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewLectureRepository(client *redis.Client, loader LectureLoader, ttl time.Duration) *LectureRepository {
	return &LectureRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *LectureRepository) GetLecture(ctx context.Context, lectureID string) (domain.Lecture, error) {
	key := r.lectureKey(lectureID)

	if lecture, err := r.cached(ctx, key); err == nil {
		return lecture, nil
	}

	result, err, _ := r.sf.Do(lectureID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if lecture, err := r.cached(ctx, key); err == nil {
			return lecture, nil
		}

		lecture, err := r.loader.LoadLecture(ctx, lectureID)
		if err != nil {
			return domain.Lecture{}, err
		}

		data, err := json.Marshal(lecture)
		if err != nil {
			return domain.Lecture{}, fmt.Errorf("marshal lecture: %w", err)
		}
		_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		return lecture, nil
	})
	if err != nil {
		return domain.Lecture{}, err
	}
	return result.(domain.Lecture), nil
}

func (r *LectureRepository) cached(ctx context.Context, key string) (domain.Lecture, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return domain.Lecture{}, fmt.Errorf("get lecture: %w", err)
		}
		return domain.Lecture{}, err
	}
	var lecture domain.Lecture
	if err := json.Unmarshal(raw, &lecture); err != nil {
		return domain.Lecture{}, fmt.Errorf("unmarshal lecture: %w", err)
	}
	return lecture, nil
}

func (r *LectureRepository) lectureKey(lectureID string) string {
	return "lecture:" + lectureID
}

func (r *LectureRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
