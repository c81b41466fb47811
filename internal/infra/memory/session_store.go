package memory

import (
	"context"
	"sort"
	"sync"

	"lecture-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// SessionStore is an in-memory implementation of app.SessionStore. A single
// mutex serializes all session mutations, which gives every operation the
// all-or-nothing semantics the service relies on.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.LiveSession
	answers  map[string][]domain.LiveAnswer
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.LiveSession),
		answers:  make(map[string][]domain.LiveAnswer),
	}
}

func (s *SessionStore) CreateSession(_ context.Context, session domain.LiveSession) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.ID = uuid.NewString()
	stored := cloneSession(session)
	s.sessions[session.ID] = &stored
	return session.ID, nil
}

func (s *SessionStore) GetSession(_ context.Context, sessionID string) (domain.LiveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.LiveSession{}, domain.ErrSessionNotFound
	}
	return cloneSession(*session), nil
}

func (s *SessionStore) GetSessionByCode(_ context.Context, accessCode string) (domain.LiveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.AccessCode == accessCode && session.Status != domain.SessionEnded {
			return cloneSession(*session), nil
		}
	}
	return domain.LiveSession{}, domain.ErrSessionNotFound
}

func (s *SessionStore) UpdateSession(_ context.Context, sessionID string, mutate func(*domain.LiveSession) error) (domain.LiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.LiveSession{}, domain.ErrSessionNotFound
	}

	draft := cloneSession(*session)
	if err := mutate(&draft); err != nil {
		return domain.LiveSession{}, err
	}
	s.sessions[sessionID] = &draft
	return cloneSession(draft), nil
}

func (s *SessionStore) AppendAnswer(_ context.Context, answer domain.LiveAnswer, credit bool) (domain.LiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[answer.SessionID]
	if !ok {
		return domain.LiveSession{}, domain.ErrSessionNotFound
	}

	draft := cloneSession(*session)
	if credit {
		participant := draft.Participant(answer.ParticipantID)
		if participant == nil {
			return domain.LiveSession{}, domain.ErrParticipantNotFound
		}
		participant.Score++
	}
	s.sessions[answer.SessionID] = &draft
	s.answers[answer.SessionID] = append(s.answers[answer.SessionID], answer)
	return cloneSession(draft), nil
}

func (s *SessionStore) ListSessionsByHost(_ context.Context, hostID string, limit int) ([]domain.LiveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []domain.LiveSession
	for _, session := range s.sessions {
		if session.HostID == hostID {
			sessions = append(sessions, cloneSession(*session))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (s *SessionStore) ListAnswers(_ context.Context, sessionID string) ([]domain.LiveAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	answers := s.answers[sessionID]
	out := make([]domain.LiveAnswer, len(answers))
	copy(out, answers)
	return out, nil
}

func (s *SessionStore) ListQuestionAnswers(_ context.Context, sessionID string, questionIndex int) ([]domain.LiveAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.LiveAnswer
	for _, answer := range s.answers[sessionID] {
		if answer.QuestionIndex == questionIndex {
			out = append(out, answer)
		}
	}
	return out, nil
}

// cloneSession deep-copies the participant slice so callers never alias
// stored state.
func cloneSession(session domain.LiveSession) domain.LiveSession {
	participants := make([]domain.Participant, len(session.Participants))
	copy(participants, session.Participants)
	session.Participants = participants
	return session
}
