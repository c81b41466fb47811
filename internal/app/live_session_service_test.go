package app_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"lecture-quiz-service/internal/app"
	"lecture-quiz-service/internal/domain"
	"lecture-quiz-service/internal/infra/memory"
)

func TestCreateSessionGeneratesAccessCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	id, err := f.service.CreateSession(ctx, "Geography check-in", "lecture-1", "host-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	view, err := f.service.GetActiveSession(ctx, id)
	if err != nil || view == nil {
		t.Fatalf("expected session view, got %v, %v", view, err)
	}
	code := view.Session.AccessCode
	if len(code) != 6 {
		t.Fatalf("expected 6-char code, got %q", code)
	}
	for _, c := range code {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			t.Fatalf("code %q contains invalid character %q", code, c)
		}
	}
	if view.Session.Status != domain.SessionWaiting {
		t.Fatalf("expected waiting, got %s", view.Session.Status)
	}
	if view.Session.CurrentQuestionIndex != 0 {
		t.Fatalf("expected index 0, got %d", view.Session.CurrentQuestionIndex)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	if _, err := f.service.CreateSession(ctx, "   ", "lecture-1", "host-1"); !errors.Is(err, domain.ErrEmptyTitle) {
		t.Fatalf("expected empty title error, got %v", err)
	}
	if _, err := f.service.CreateSession(ctx, "Quiz", "lecture-unknown", "host-1"); !errors.Is(err, domain.ErrLectureNotFound) {
		t.Fatalf("expected lecture error, got %v", err)
	}
	if _, err := f.service.CreateSession(ctx, "Quiz", "lecture-empty", "host-1"); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected no questions error, got %v", err)
	}
}

func TestJoinSessionBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sessionID, code := f.createSession(t, "host-1")

	joinedID, err := f.service.JoinSession(ctx, code, "p1", "Alice")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if joinedID != sessionID {
		t.Fatalf("expected session %s, got %s", sessionID, joinedID)
	}

	if _, err := f.service.JoinSession(ctx, code, "p1", "Alice"); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Fatalf("expected already joined, got %v", err)
	}

	// Codes are case-insensitive and whitespace-tolerant on input.
	if _, err := f.service.JoinSession(ctx, "  "+strings.ToLower(code)+" ", "p2", "Bob"); err != nil {
		t.Fatalf("normalized join failed: %v", err)
	}

	view, _ := f.service.GetActiveSession(ctx, sessionID)
	if got := len(view.Session.Participants); got != 2 {
		t.Fatalf("expected 2 participants, got %d", got)
	}

	if _, err := f.service.JoinSession(ctx, "ZZZZZZ", "p3", "Eve"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found for unknown code, got %v", err)
	}
	if _, err := f.service.JoinSession(ctx, code, "  ", "Eve"); !errors.Is(err, domain.ErrEmptyParticipantID) {
		t.Fatalf("expected empty participant id error, got %v", err)
	}
}

func TestAnswerMatching(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sessionID, code := f.createSessionFor(t, "lecture-lower", "host-1")
	mustJoin(t, f.service, code, "p1", "Alice")
	mustStart(t, f.service, sessionID)

	result, err := f.service.SubmitLiveAnswer(ctx, sessionID, "p1", 0, " Paris ", 4)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.IsCorrect {
		t.Fatalf("expected trimmed case-fold match to be correct")
	}

	result, err = f.service.SubmitLiveAnswer(ctx, sessionID, "p1", 0, "Pariss", 4)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.IsCorrect {
		t.Fatalf("expected near-miss answer to be incorrect")
	}

	view, _ := f.service.GetActiveSession(ctx, sessionID)
	if score := view.Session.Participants[0].Score; score != 1 {
		t.Fatalf("expected score 1, got %d", score)
	}
}

func TestDuplicateSubmissionsAllCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sessionID, code := f.createSession(t, "host-1")
	mustJoin(t, f.service, code, "p1", "Alice")
	mustStart(t, f.service, sessionID)

	for i := 0; i < 2; i++ {
		if _, err := f.service.SubmitLiveAnswer(ctx, sessionID, "p1", 0, "Paris", 3); err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}

	view, _ := f.service.GetActiveSession(ctx, sessionID)
	if score := view.Session.Participants[0].Score; score != 2 {
		t.Fatalf("each correct duplicate should credit, expected 2, got %d", score)
	}
}

func TestTermination(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sessionID, _ := f.createSession(t, "host-1") // lecture-1 has 2 questions
	mustStart(t, f.service, sessionID)

	if err := f.service.NextQuestion(ctx, sessionID); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	view, _ := f.service.GetActiveSession(ctx, sessionID)
	if view.Session.CurrentQuestionIndex != 1 || view.Session.Status != domain.SessionActive {
		t.Fatalf("expected active at index 1, got %s index %d", view.Session.Status, view.Session.CurrentQuestionIndex)
	}

	if err := f.service.NextQuestion(ctx, sessionID); err != nil {
		t.Fatalf("final advance failed: %v", err)
	}
	view, _ = f.service.GetActiveSession(ctx, sessionID)
	if view.Session.Status != domain.SessionEnded {
		t.Fatalf("expected ended after exhausting questions, got %s", view.Session.Status)
	}
	if view.Session.CurrentQuestionIndex != 1 {
		t.Fatalf("index must never exceed N-1, got %d", view.Session.CurrentQuestionIndex)
	}

	if err := f.service.NextQuestion(ctx, sessionID); !errors.Is(err, domain.ErrSessionEnded) {
		t.Fatalf("expected ended error on advance, got %v", err)
	}
	if err := f.service.StartSession(ctx, sessionID); !errors.Is(err, domain.ErrSessionEnded) {
		t.Fatalf("expected ended error on restart, got %v", err)
	}
}

func TestNextQuestionRequiresActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sessionID, _ := f.createSession(t, "host-1")

	if err := f.service.NextQuestion(ctx, sessionID); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected not active error, got %v", err)
	}
}

func TestSubmitErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sessionID, code := f.createSession(t, "host-1")
	mustStart(t, f.service, sessionID)

	if _, err := f.service.SubmitLiveAnswer(ctx, "missing", "p1", 0, "Paris", 1); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}
	if _, err := f.service.SubmitLiveAnswer(ctx, sessionID, "ghost", 0, "Paris", 1); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected participant error, got %v", err)
	}

	mustJoin(t, f.service, code, "p1", "Alice")
	if _, err := f.service.SubmitLiveAnswer(ctx, sessionID, "p1", 7, "Paris", 1); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question error, got %v", err)
	}
	if _, err := f.service.SubmitLiveAnswer(ctx, sessionID, "p1", -1, "Paris", 1); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question error for negative index, got %v", err)
	}
}

func TestStaleIndexSubmissionAccepted(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sessionID, code := f.createSession(t, "host-1")
	mustJoin(t, f.service, code, "p1", "Alice")
	mustStart(t, f.service, sessionID)

	if err := f.service.NextQuestion(ctx, sessionID); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	// Host moved on, but question 0 answers are still scored as submitted.
	result, err := f.service.SubmitLiveAnswer(ctx, sessionID, "p1", 0, "Paris", 9)
	if err != nil {
		t.Fatalf("stale submit failed: %v", err)
	}
	if !result.IsCorrect {
		t.Fatalf("expected stale submission scored against its own index")
	}
}

func TestEndSessionFreezes(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sessionID, code := f.createSession(t, "host-1")
	mustJoin(t, f.service, code, "p1", "Alice")
	mustStart(t, f.service, sessionID)

	if err := f.service.EndSession(ctx, sessionID); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if _, err := f.service.JoinSession(ctx, code, "p2", "Bob"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("ended session must not be joinable by code, got %v", err)
	}
	if _, err := f.service.SubmitLiveAnswer(ctx, sessionID, "p1", 0, "Paris", 1); !errors.Is(err, domain.ErrSessionEnded) {
		t.Fatalf("expected ended error on submit, got %v", err)
	}
	if err := f.service.EndSession(ctx, sessionID); !errors.Is(err, domain.ErrSessionEnded) {
		t.Fatalf("expected ended error on double end, got %v", err)
	}
}

func TestGetActiveSessionNotReady(t *testing.T) {
	f := newFixture()

	view, err := f.service.GetActiveSession(context.Background(), "missing")
	if err != nil {
		t.Fatalf("missing session must not error: %v", err)
	}
	if view != nil {
		t.Fatalf("expected nil view, got %+v", view)
	}
}

func TestGetHostSessionsLimitAndOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	for i := 0; i < 12; i++ {
		f.clock.advance(time.Minute)
		if _, err := f.service.CreateSession(ctx, fmt.Sprintf("Session %d", i), "lecture-1", "host-1"); err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
	}
	if _, err := f.service.CreateSession(ctx, "Other host", "lecture-1", "host-2"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	summaries, err := f.service.GetHostSessions(ctx, "host-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(summaries) != 10 {
		t.Fatalf("expected 10 sessions, got %d", len(summaries))
	}
	if summaries[0].Title != "Session 11" {
		t.Fatalf("expected newest first, got %q", summaries[0].Title)
	}
	for i := 1; i < len(summaries); i++ {
		if summaries[i].CreatedAt.After(summaries[i-1].CreatedAt) {
			t.Fatalf("sessions out of order at %d", i)
		}
	}
	if summaries[0].LectureTitle == "" {
		t.Fatalf("expected summaries enriched with lecture title")
	}
}

func TestSubscribeReceivesScoreboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sessionID, code := f.createSession(t, "host-1")
	mustJoin(t, f.service, code, "p1", "Alice")
	mustStart(t, f.service, sessionID)

	ch, cancel, err := f.service.Subscribe(ctx, sessionID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	<-ch // initial snapshot

	if _, err := f.service.SubmitLiveAnswer(ctx, sessionID, "p1", 0, "Paris", 2); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	update := <-ch
	if len(update.Entries) != 1 || update.Entries[0].Score != 1 {
		t.Fatalf("expected updated score 1, got %+v", update.Entries)
	}
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sessionID, code := f.createSession(t, "host-1") // 2 questions

	mustJoin(t, f.service, code, "p1", "Alice")
	mustJoin(t, f.service, code, "p2", "Bob")
	mustStart(t, f.service, sessionID)

	if res, _ := f.service.SubmitLiveAnswer(ctx, sessionID, "p1", 0, "paris", 5); !res.IsCorrect {
		t.Fatalf("expected p1 correct on q0")
	}
	if res, _ := f.service.SubmitLiveAnswer(ctx, sessionID, "p2", 0, "London", 6); res.IsCorrect {
		t.Fatalf("expected p2 incorrect on q0")
	}
	if err := f.service.NextQuestion(ctx, sessionID); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if res, _ := f.service.SubmitLiveAnswer(ctx, sessionID, "p1", 1, "Rome", 4); !res.IsCorrect {
		t.Fatalf("expected p1 correct on q1")
	}
	if err := f.service.NextQuestion(ctx, sessionID); err != nil {
		t.Fatalf("final advance failed: %v", err)
	}

	view, _ := f.service.GetActiveSession(ctx, sessionID)
	if view.Session.Status != domain.SessionEnded {
		t.Fatalf("expected ended, got %s", view.Session.Status)
	}

	results, err := f.results.GetSessionResults(ctx, sessionID)
	if err != nil {
		t.Fatalf("results failed: %v", err)
	}
	if len(results.Ranking) != 2 {
		t.Fatalf("expected 2 ranked participants, got %d", len(results.Ranking))
	}
	if results.Ranking[0].ParticipantID != "p1" || results.Ranking[0].CorrectAnswers != 2 {
		t.Fatalf("expected p1 on top with 2 correct, got %+v", results.Ranking[0])
	}
	if results.Ranking[1].ParticipantID != "p2" || results.Ranking[1].CorrectAnswers != 0 {
		t.Fatalf("expected p2 last with 0 correct, got %+v", results.Ranking[1])
	}
}

type fixture struct {
	service *app.LiveSessionService
	results *app.ResultsAggregator
	clock   *testClock
}

func newFixture() *fixture {
	clock := &testClock{now: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewSessionStore()
	lectures := memory.NewLectureRepository(memory.NewStaticLectureLoader(map[string]domain.Lecture{
		"lecture-1": {
			ID:    "lecture-1",
			Title: "European Geography",
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is the capital of France?", Answer: "Paris"},
				{ID: "q2", Prompt: "What is the capital of Italy?", Answer: "Rome"},
			},
		},
		"lecture-lower": {
			ID:    "lecture-lower",
			Title: "Lowercase Answers",
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is the capital of France?", Answer: "paris"},
			},
		},
		"lecture-empty": {ID: "lecture-empty", Title: "Empty"},
	}), 5*time.Minute)

	return &fixture{
		service: app.NewLiveSessionServiceWithClock(store, lectures, clock.Now),
		results: app.NewResultsAggregator(store),
		clock:   clock,
	}
}

func (f *fixture) createSession(t *testing.T, hostID string) (string, string) {
	t.Helper()
	return f.createSessionFor(t, "lecture-1", hostID)
}

func (f *fixture) createSessionFor(t *testing.T, lectureID, hostID string) (string, string) {
	t.Helper()
	id, err := f.service.CreateSession(context.Background(), "Test session", lectureID, hostID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	view, err := f.service.GetActiveSession(context.Background(), id)
	if err != nil || view == nil {
		t.Fatalf("load session view: %v", err)
	}
	return id, view.Session.AccessCode
}

func mustJoin(t *testing.T, service *app.LiveSessionService, code, participantID, name string) {
	t.Helper()
	if _, err := service.JoinSession(context.Background(), code, participantID, name); err != nil {
		t.Fatalf("join %s: %v", participantID, err)
	}
}

func mustStart(t *testing.T, service *app.LiveSessionService, sessionID string) {
	t.Helper()
	if err := service.StartSession(context.Background(), sessionID); err != nil {
		t.Fatalf("start session: %v", err)
	}
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }
