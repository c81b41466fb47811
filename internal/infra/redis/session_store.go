package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lecture-quiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// casAttempts bounds optimistic-lock retries on contended sessions.
const casAttempts = 8

// SessionStore persists sessions and answers in Redis:
//   - live:session:{id}          session JSON (the unit of contention)
//   - live:code:{CODE}           access code -> session id, dropped on end
//   - live:host:{hostID}         zset of session ids scored by creation time
//   - live:session:{id}:answers  append-only list of answer JSON
//
// Session mutations run under WATCH/MULTI so concurrent joins and score
// credits are serialized per session without cross-session coordination.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) CreateSession(ctx context.Context, session domain.LiveSession) (string, error) {
	session.ID = uuid.NewString()
	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(session.ID), data, s.ttl)
		pipe.Set(ctx, s.codeKey(session.AccessCode), session.ID, s.ttl)
		pipe.ZAdd(ctx, s.hostKey(session.HostID), redis.Z{
			Score:  float64(session.CreatedAt.UnixMilli()),
			Member: session.ID,
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return session.ID, nil
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (domain.LiveSession, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.LiveSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.LiveSession{}, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(raw)
}

func (s *SessionStore) GetSessionByCode(ctx context.Context, accessCode string) (domain.LiveSession, error) {
	sessionID, err := s.client.Get(ctx, s.codeKey(accessCode)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.LiveSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.LiveSession{}, fmt.Errorf("resolve access code: %w", err)
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.LiveSession{}, err
	}
	if session.Status == domain.SessionEnded {
		// Stale mapping; codes only address live sessions.
		_ = s.client.Del(ctx, s.codeKey(accessCode)).Err()
		return domain.LiveSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) UpdateSession(ctx context.Context, sessionID string, mutate func(*domain.LiveSession) error) (domain.LiveSession, error) {
	key := s.sessionKey(sessionID)
	var updated domain.LiveSession

	for attempt := 0; attempt < casAttempts; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return domain.ErrSessionNotFound
			}
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}

			session, err := decodeSession(raw)
			if err != nil {
				return err
			}
			wasEnded := session.Status == domain.SessionEnded
			if err := mutate(&session); err != nil {
				return err
			}

			data, err := json.Marshal(session)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.ttl)
				if !wasEnded && session.Status == domain.SessionEnded {
					pipe.Del(ctx, s.codeKey(session.AccessCode))
				}
				return nil
			})
			if err != nil {
				return err
			}
			updated = session
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return domain.LiveSession{}, err
		}
		return updated, nil
	}
	return domain.LiveSession{}, fmt.Errorf("update session %s: %w", sessionID, redis.TxFailedErr)
}

func (s *SessionStore) AppendAnswer(ctx context.Context, answer domain.LiveAnswer, credit bool) (domain.LiveSession, error) {
	key := s.sessionKey(answer.SessionID)
	answersKey := s.answersKey(answer.SessionID)
	payload, err := json.Marshal(answer)
	if err != nil {
		return domain.LiveSession{}, fmt.Errorf("marshal answer: %w", err)
	}

	var updated domain.LiveSession
	for attempt := 0; attempt < casAttempts; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return domain.ErrSessionNotFound
			}
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}

			session, err := decodeSession(raw)
			if err != nil {
				return err
			}
			if credit {
				participant := session.Participant(answer.ParticipantID)
				if participant == nil {
					return domain.ErrParticipantNotFound
				}
				participant.Score++
			}

			data, err := json.Marshal(session)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.ttl)
				pipe.RPush(ctx, answersKey, payload)
				if s.ttl > 0 {
					pipe.Expire(ctx, answersKey, s.ttl)
				}
				return nil
			})
			if err != nil {
				return err
			}
			updated = session
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return domain.LiveSession{}, err
		}
		return updated, nil
	}
	return domain.LiveSession{}, fmt.Errorf("append answer for %s: %w", answer.SessionID, redis.TxFailedErr)
}

func (s *SessionStore) ListSessionsByHost(ctx context.Context, hostID string, limit int) ([]domain.LiveSession, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, s.hostKey(hostID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list host sessions: %w", err)
	}

	sessions := make([]domain.LiveSession, 0, len(ids))
	for _, id := range ids {
		session, err := s.GetSession(ctx, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			// Expired session; leave the index entry for the TTL sweep.
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *SessionStore) ListAnswers(ctx context.Context, sessionID string) ([]domain.LiveAnswer, error) {
	raw, err := s.client.LRange(ctx, s.answersKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	answers := make([]domain.LiveAnswer, 0, len(raw))
	for _, item := range raw {
		var answer domain.LiveAnswer
		if err := json.Unmarshal([]byte(item), &answer); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		answers = append(answers, answer)
	}
	return answers, nil
}

func (s *SessionStore) ListQuestionAnswers(ctx context.Context, sessionID string, questionIndex int) ([]domain.LiveAnswer, error) {
	answers, err := s.ListAnswers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	filtered := answers[:0]
	for _, answer := range answers {
		if answer.QuestionIndex == questionIndex {
			filtered = append(filtered, answer)
		}
	}
	return filtered, nil
}

func (s *SessionStore) sessionKey(sessionID string) string {
	return "live:session:" + sessionID
}

func (s *SessionStore) codeKey(accessCode string) string {
	return "live:code:" + accessCode
}

func (s *SessionStore) hostKey(hostID string) string {
	return "live:host:" + hostID
}

func (s *SessionStore) answersKey(sessionID string) string {
	return "live:session:" + sessionID + ":answers"
}

func decodeSession(raw []byte) (domain.LiveSession, error) {
	var session domain.LiveSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.LiveSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}
