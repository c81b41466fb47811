package domain

import "time"

// SessionStatus tracks where a live session is in its lifecycle.
// Transitions are monotonic: waiting -> active -> ended.
type SessionStatus string

const (
	SessionWaiting SessionStatus = "waiting"
	SessionActive  SessionStatus = "active"
	SessionEnded   SessionStatus = "ended"
)

// Participant is a joined user embedded in a live session. The id is
// client-supplied and unique within the session; the score only increases.
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// LiveSession is one live quiz instance tied to one lecture and one host.
type LiveSession struct {
	ID                       string        `json:"id"`
	Title                    string        `json:"title"`
	LectureID                string        `json:"lectureId"`
	HostID                   string        `json:"hostId"`
	AccessCode               string        `json:"accessCode"`
	Status                   SessionStatus `json:"status"`
	CurrentQuestionIndex     int           `json:"currentQuestionIndex"`
	Participants             []Participant `json:"participants"`
	CreatedAt                time.Time     `json:"createdAt"`
	StartedAt                *time.Time    `json:"startedAt,omitempty"`
	CurrentQuestionStartedAt *time.Time    `json:"currentQuestionStartedAt,omitempty"`
	EndedAt                  *time.Time    `json:"endedAt,omitempty"`
}

// Participant returns the embedded participant with the given id, or nil.
func (s *LiveSession) Participant(participantID string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ID == participantID {
			return &s.Participants[i]
		}
	}
	return nil
}

// LiveAnswer is one submission against a question index. Records are
// append-only; correctness is computed once at submission time.
type LiveAnswer struct {
	SessionID     string    `json:"sessionId"`
	ParticipantID string    `json:"participantId"`
	QuestionIndex int       `json:"questionIndex"`
	QuestionID    string    `json:"questionId"`
	Answer        string    `json:"answer"`
	IsCorrect     bool      `json:"isCorrect"`
	TimeSpent     float64   `json:"timeSpent"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Question is one entry of a lecture's ordered question set. Answer holds the
// authoritative answer used for trimmed case-insensitive exact matching.
type Question struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
}

// Lecture is the read-only source of a session's ordered question set.
type Lecture struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// QuestionView is the participant-facing shape of a question; the
// authoritative answer is never exposed.
type QuestionView struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
}

// ActiveSessionView merges a session with its lecture and the question at the
// current index. CurrentQuestion is nil when the index is out of range.
type ActiveSessionView struct {
	Session         LiveSession   `json:"session"`
	LectureTitle    string        `json:"lectureTitle"`
	TotalQuestions  int           `json:"totalQuestions"`
	CurrentQuestion *QuestionView `json:"currentQuestion,omitempty"`
}

// SessionSummary is the host-dashboard shape of a session.
type SessionSummary struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	LectureID        string        `json:"lectureId"`
	LectureTitle     string        `json:"lectureTitle"`
	AccessCode       string        `json:"accessCode"`
	Status           SessionStatus `json:"status"`
	ParticipantCount int           `json:"participantCount"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// ParticipantStats aggregates one participant's submissions.
type ParticipantStats struct {
	ParticipantID  string `json:"participantId"`
	DisplayName    string `json:"displayName"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correctAnswers"`
	TotalAnswers   int    `json:"totalAnswers"`
	Accuracy       int    `json:"accuracy"`
	AverageTime    int    `json:"averageTime"`
}

// SessionResults is the final standing of a session. Ranking is ordered by
// correct answers descending, then average time ascending. TotalQuestions is
// approximated as totalAnswerCount / participantCount and is not an
// authoritative question count.
type SessionResults struct {
	Session        LiveSession        `json:"session"`
	Ranking        []ParticipantStats `json:"ranking"`
	TotalQuestions int                `json:"totalQuestions"`
}

// ScoreboardEntry is a snapshot-friendly view of a participant.
type ScoreboardEntry struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
}

// Scoreboard captures the ordered standings pushed to live subscribers.
type Scoreboard struct {
	SessionID     string            `json:"sessionId"`
	Status        SessionStatus     `json:"status"`
	QuestionIndex int               `json:"questionIndex"`
	Entries       []ScoreboardEntry `json:"entries"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// SubmissionResult summarizes the outcome of one answer submission.
type SubmissionResult struct {
	QuestionIndex int  `json:"questionIndex"`
	IsCorrect     bool `json:"isCorrect"`
}
