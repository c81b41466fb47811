package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no session matches the given id or
	// access code among non-ended sessions.
	ErrSessionNotFound = errors.New("live session not found")
	// ErrLectureNotFound indicates the session's lecture could not be loaded.
	ErrLectureNotFound = errors.New("lecture not found")
	// ErrQuestionNotFound indicates a submitted question index is out of range.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAlreadyJoined is returned when a participant id is already registered
	// in the target session.
	ErrAlreadyJoined = errors.New("participant already joined this session")
	// ErrParticipantNotFound is returned when a user submits before joining.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrSessionEnded rejects mutations against a terminated session.
	ErrSessionEnded = errors.New("live session already ended")
	// ErrSessionNotActive rejects question advancement before the session starts.
	ErrSessionNotActive = errors.New("live session is not active")
	// ErrEmptyTitle rejects session creation without a title.
	ErrEmptyTitle = errors.New("session title must not be empty")
	// ErrEmptyParticipantID rejects joins without a participant id.
	ErrEmptyParticipantID = errors.New("participant id must not be empty")
	// ErrNoQuestions rejects sessions over lectures with no questions.
	ErrNoQuestions = errors.New("lecture has no questions")
	// ErrAccessCodeExhausted is returned when code generation keeps colliding
	// with live sessions.
	ErrAccessCodeExhausted = errors.New("could not allocate a unique access code")
)
