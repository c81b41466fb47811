package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"lecture-quiz-service/internal/domain"
)

const (
	// hostSessionLimit caps GetHostSessions at the most recent sessions.
	hostSessionLimit = 10
	// accessCodeAttempts bounds the collision-avoidance retry loop.
	accessCodeAttempts = 5
)

// SessionStore abstracts how sessions and answers are persisted (in-memory,
// Redis, etc). Each call is atomic: UpdateSession runs the mutate closure
// under the store's native serialization, and AppendAnswer applies the answer
// insert and the optional score credit as one unit.
type SessionStore interface {
	CreateSession(ctx context.Context, session domain.LiveSession) (string, error)
	GetSession(ctx context.Context, sessionID string) (domain.LiveSession, error)
	GetSessionByCode(ctx context.Context, accessCode string) (domain.LiveSession, error)
	UpdateSession(ctx context.Context, sessionID string, mutate func(*domain.LiveSession) error) (domain.LiveSession, error)
	AppendAnswer(ctx context.Context, answer domain.LiveAnswer, credit bool) (domain.LiveSession, error)
	ListSessionsByHost(ctx context.Context, hostID string, limit int) ([]domain.LiveSession, error)
	ListAnswers(ctx context.Context, sessionID string) ([]domain.LiveAnswer, error)
	ListQuestionAnswers(ctx context.Context, sessionID string, questionIndex int) ([]domain.LiveAnswer, error)
}

// LectureRepository loads lecture content (from cache/backing store).
type LectureRepository interface {
	GetLecture(ctx context.Context, lectureID string) (domain.Lecture, error)
}

// LiveSessionService owns the session lifecycle: creation, joining, starting,
// question advancement, answer submission and termination.
type LiveSessionService struct {
	store    SessionStore
	lectures LectureRepository
	codes    *AccessCodeGenerator
	events   *Broadcaster
	now      func() time.Time
}

func NewLiveSessionService(store SessionStore, lectures LectureRepository) *LiveSessionService {
	return NewLiveSessionServiceWithClock(store, lectures, time.Now)
}

// NewLiveSessionServiceWithClock is test-only for deterministic timestamps.
func NewLiveSessionServiceWithClock(store SessionStore, lectures LectureRepository, now func() time.Time) *LiveSessionService {
	return &LiveSessionService{
		store:    store,
		lectures: lectures,
		codes:    NewAccessCodeGenerator(),
		events:   NewBroadcaster(),
		now:      now,
	}
}

// CreateSession opens a new waiting session over an existing lecture and
// returns its store-assigned id.
func (s *LiveSessionService) CreateSession(ctx context.Context, title, lectureID, hostID string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", domain.ErrEmptyTitle
	}

	lecture, err := s.lectures.GetLecture(ctx, lectureID)
	if err != nil {
		return "", err
	}
	if len(lecture.Questions) == 0 {
		return "", domain.ErrNoQuestions
	}

	code, err := s.allocateAccessCode(ctx)
	if err != nil {
		return "", err
	}

	return s.store.CreateSession(ctx, domain.LiveSession{
		Title:        title,
		LectureID:    lecture.ID,
		HostID:       hostID,
		AccessCode:   code,
		Status:       domain.SessionWaiting,
		Participants: []domain.Participant{},
		CreatedAt:    s.now(),
	})
}

// allocateAccessCode generates candidates until one is free among non-ended
// sessions, bounded by a small attempt count.
func (s *LiveSessionService) allocateAccessCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < accessCodeAttempts; attempt++ {
		code := s.codes.Generate()
		_, err := s.store.GetSessionByCode(ctx, code)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", domain.ErrAccessCodeExhausted
}

// JoinSession registers a new participant in the session matching the access
// code and returns the session id. Codes are matched case-insensitively
// against non-ended sessions.
func (s *LiveSessionService) JoinSession(ctx context.Context, accessCode, participantID, participantName string) (string, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return "", domain.ErrEmptyParticipantID
	}

	session, err := s.store.GetSessionByCode(ctx, NormalizeAccessCode(accessCode))
	if err != nil {
		return "", err
	}

	updated, err := s.store.UpdateSession(ctx, session.ID, func(sess *domain.LiveSession) error {
		if sess.Status == domain.SessionEnded {
			return domain.ErrSessionEnded
		}
		if sess.Participant(participantID) != nil {
			return domain.ErrAlreadyJoined
		}
		sess.Participants = append(sess.Participants, domain.Participant{
			ID:          participantID,
			DisplayName: participantName,
			Score:       0,
			JoinedAt:    s.now(),
		})
		return nil
	})
	if err != nil {
		return "", err
	}

	s.publish(updated)
	return updated.ID, nil
}

// StartSession activates a session. Restarting an active session resets the
// question index; starting an ended session fails.
func (s *LiveSessionService) StartSession(ctx context.Context, sessionID string) error {
	updated, err := s.store.UpdateSession(ctx, sessionID, func(sess *domain.LiveSession) error {
		if sess.Status == domain.SessionEnded {
			return domain.ErrSessionEnded
		}
		now := s.now()
		sess.Status = domain.SessionActive
		sess.StartedAt = &now
		sess.CurrentQuestionIndex = 0
		sess.CurrentQuestionStartedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(updated)
	return nil
}

// NextQuestion advances the session to the next question, or terminates it
// when the lecture's question set is exhausted. Host-driven; there is no
// timer-based auto-advance.
func (s *LiveSessionService) NextQuestion(ctx context.Context, sessionID string) error {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	lecture, err := s.lectures.GetLecture(ctx, session.LectureID)
	if err != nil {
		return err
	}
	questionCount := len(lecture.Questions)

	updated, err := s.store.UpdateSession(ctx, sessionID, func(sess *domain.LiveSession) error {
		if sess.Status == domain.SessionEnded {
			return domain.ErrSessionEnded
		}
		if sess.Status != domain.SessionActive {
			return domain.ErrSessionNotActive
		}
		now := s.now()
		next := sess.CurrentQuestionIndex + 1
		if next >= questionCount {
			sess.Status = domain.SessionEnded
			sess.EndedAt = &now
			return nil
		}
		sess.CurrentQuestionIndex = next
		sess.CurrentQuestionStartedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(updated)
	return nil
}

// EndSession force-terminates a session. Further joins, submissions and
// advances fail afterwards.
func (s *LiveSessionService) EndSession(ctx context.Context, sessionID string) error {
	updated, err := s.store.UpdateSession(ctx, sessionID, func(sess *domain.LiveSession) error {
		if sess.Status == domain.SessionEnded {
			return domain.ErrSessionEnded
		}
		now := s.now()
		sess.Status = domain.SessionEnded
		sess.EndedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(updated)
	return nil
}

// SubmitLiveAnswer records one submission and credits the participant's score
// when correct. Submissions are keyed by the caller-supplied question index,
// not the session's current one: late answers against a stale index are
// accepted as-is.
func (s *LiveSessionService) SubmitLiveAnswer(ctx context.Context, sessionID, participantID string, questionIndex int, answerText string, timeSpent float64) (domain.SubmissionResult, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	if session.Status == domain.SessionEnded {
		return domain.SubmissionResult{}, domain.ErrSessionEnded
	}
	if session.Participant(participantID) == nil {
		return domain.SubmissionResult{}, domain.ErrParticipantNotFound
	}

	lecture, err := s.lectures.GetLecture(ctx, session.LectureID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	if questionIndex < 0 || questionIndex >= len(lecture.Questions) {
		return domain.SubmissionResult{}, domain.ErrQuestionNotFound
	}
	question := lecture.Questions[questionIndex]

	correct := answersMatch(answerText, question.Answer)
	updated, err := s.store.AppendAnswer(ctx, domain.LiveAnswer{
		SessionID:     sessionID,
		ParticipantID: participantID,
		QuestionIndex: questionIndex,
		QuestionID:    question.ID,
		Answer:        answerText,
		IsCorrect:     correct,
		TimeSpent:     timeSpent,
		SubmittedAt:   s.now(),
	}, correct)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	s.publish(updated)
	return domain.SubmissionResult{QuestionIndex: questionIndex, IsCorrect: correct}, nil
}

// GetActiveSession returns the session merged with its lecture and current
// question. A missing session is not an error: (nil, nil) signals "not yet
// ready" to polling clients.
func (s *LiveSessionService) GetActiveSession(ctx context.Context, sessionID string) (*domain.ActiveSessionView, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lecture, err := s.lectures.GetLecture(ctx, session.LectureID)
	if err != nil {
		return nil, err
	}

	view := &domain.ActiveSessionView{
		Session:        session,
		LectureTitle:   lecture.Title,
		TotalQuestions: len(lecture.Questions),
	}
	idx := session.CurrentQuestionIndex
	if idx >= 0 && idx < len(lecture.Questions) {
		q := lecture.Questions[idx]
		view.CurrentQuestion = &domain.QuestionView{Index: idx, ID: q.ID, Prompt: q.Prompt}
	}
	return view, nil
}

// GetHostSessions returns up to the 10 most recently created sessions for a
// host, newest first, each enriched with its lecture title.
func (s *LiveSessionService) GetHostSessions(ctx context.Context, hostID string) ([]domain.SessionSummary, error) {
	sessions, err := s.store.ListSessionsByHost(ctx, hostID, hostSessionLimit)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summary := domain.SessionSummary{
			ID:               sess.ID,
			Title:            sess.Title,
			LectureID:        sess.LectureID,
			AccessCode:       sess.AccessCode,
			Status:           sess.Status,
			ParticipantCount: len(sess.Participants),
			CreatedAt:        sess.CreatedAt,
		}
		if lecture, err := s.lectures.GetLecture(ctx, sess.LectureID); err == nil {
			summary.LectureTitle = lecture.Title
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Subscribe returns a channel that receives scoreboard updates for a session,
// primed with the current snapshot. The caller must invoke the returned
// cancel function to avoid leaks.
func (s *LiveSessionService) Subscribe(ctx context.Context, sessionID string) (<-chan domain.Scoreboard, func(), error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	ch, cancel := s.events.Subscribe(sessionID)
	s.events.Publish(s.scoreboard(session))
	return ch, cancel, nil
}

func (s *LiveSessionService) publish(session domain.LiveSession) {
	s.events.Publish(s.scoreboard(session))
}

// scoreboard orders participants by score descending; ties go to the earlier
// joiner, then to display name.
func (s *LiveSessionService) scoreboard(session domain.LiveSession) domain.Scoreboard {
	entries := make([]domain.ScoreboardEntry, 0, len(session.Participants))
	for _, p := range session.Participants {
		entries = append(entries, domain.ScoreboardEntry{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Score:         p.Score,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		pi := session.Participant(entries[i].ParticipantID)
		pj := session.Participant(entries[j].ParticipantID)
		if pi != nil && pj != nil && !pi.JoinedAt.Equal(pj.JoinedAt) {
			return pi.JoinedAt.Before(pj.JoinedAt)
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})

	return domain.Scoreboard{
		SessionID:     session.ID,
		Status:        session.Status,
		QuestionIndex: session.CurrentQuestionIndex,
		Entries:       entries,
		UpdatedAt:     s.now(),
	}
}

// answersMatch applies the scoring rule: trimmed, case-insensitive exact
// string equality.
func answersMatch(submitted, authoritative string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(authoritative))
}
