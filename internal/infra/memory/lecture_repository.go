package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"lecture-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// LectureLoader fetches lecture content from a backing store (e.g., Postgres).
type LectureLoader interface {
	LoadLecture(ctx context.Context, lectureID string) (domain.Lecture, error)
}

// LectureRepository caches lectures with TTL to avoid repeated DB hits.
type LectureRepository struct {
	loader LectureLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedLecture
}

type cachedLecture struct {
	lecture   domain.Lecture
	expiresAt time.Time
}

func NewLectureRepository(loader LectureLoader, ttl time.Duration) *LectureRepository {
	return &LectureRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedLecture),
	}
}

func (r *LectureRepository) GetLecture(ctx context.Context, lectureID string) (domain.Lecture, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[lectureID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.lecture, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(lectureID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[lectureID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.lecture, nil
		}
		r.mu.RUnlock()

		lecture, err := r.loader.LoadLecture(ctx, lectureID)
		if err != nil {
			return domain.Lecture{}, err
		}

		r.mu.Lock()
		r.cache[lectureID] = cachedLecture{
			lecture:   lecture,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return lecture, nil
	})
	if err != nil {
		return domain.Lecture{}, err
	}
	return result.(domain.Lecture), nil
}

func (r *LectureRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticLectureLoader is a simple loader backed by an in-memory map (useful
// for tests/demos).
type StaticLectureLoader struct {
	lectures map[string]domain.Lecture
}

func NewStaticLectureLoader(lectures map[string]domain.Lecture) *StaticLectureLoader {
	return &StaticLectureLoader{lectures: lectures}
}

func (l *StaticLectureLoader) LoadLecture(_ context.Context, lectureID string) (domain.Lecture, error) {
	if lecture, ok := l.lectures[lectureID]; ok {
		return lecture, nil
	}
	return domain.Lecture{}, domain.ErrLectureNotFound
}
