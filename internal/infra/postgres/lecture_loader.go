package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lecture-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// LectureLoader loads lecture JSONB from Postgres.
type LectureLoader struct {
	pool *pgxpool.Pool
}

func NewLectureLoader(pool *pgxpool.Pool) *LectureLoader {
	return &LectureLoader{pool: pool}
}

func (l *LectureLoader) LoadLecture(ctx context.Context, lectureID string) (domain.Lecture, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM lectures WHERE id=$1`, lectureID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lecture{}, domain.ErrLectureNotFound
	}
	if err != nil {
		return domain.Lecture{}, fmt.Errorf("load lecture: %w", err)
	}
	var lecture domain.Lecture
	if err := json.Unmarshal(raw, &lecture); err != nil {
		return domain.Lecture{}, fmt.Errorf("unmarshal lecture: %w", err)
	}
	return lecture, nil
}
