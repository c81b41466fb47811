package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"lecture-quiz-service/internal/app"
	"lecture-quiz-service/internal/domain"
)

// APIHandler serves the request/response operations that have no place on the
// websocket: session creation, host dashboards and results.
type APIHandler struct {
	service *app.LiveSessionService
	results *app.ResultsAggregator
}

func NewAPIHandler(service *app.LiveSessionService, results *app.ResultsAggregator) *APIHandler {
	return &APIHandler{service: service, results: results}
}

// Register mounts the JSON endpoints on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("GET /api/sessions", h.listHostSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.getSession)
	mux.HandleFunc("GET /api/sessions/{id}/results", h.getResults)
	mux.HandleFunc("GET /api/sessions/{id}/answers", h.getQuestionAnswers)
}

type createSessionRequest struct {
	Title     string `json:"title"`
	LectureID string `json:"lectureId"`
	HostID    string `json:"hostId"`
}

type createSessionResponse struct {
	SessionID  string `json:"sessionId"`
	AccessCode string `json:"accessCode"`
}

func (h *APIHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID, err := h.service.CreateSession(r.Context(), req.Title, req.LectureID, req.HostID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := createSessionResponse{SessionID: sessionID}
	if view, err := h.service.GetActiveSession(r.Context(), sessionID); err == nil && view != nil {
		resp.AccessCode = view.Session.AccessCode
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *APIHandler) listHostSessions(w http.ResponseWriter, r *http.Request) {
	hostID := r.URL.Query().Get("hostId")
	if hostID == "" {
		writeError(w, http.StatusBadRequest, "missing hostId")
		return
	}

	summaries, err := h.service.GetHostSessions(r.Context(), hostID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *APIHandler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetActiveSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if view == nil {
		writeError(w, http.StatusNotFound, domain.ErrSessionNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) getResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.results.GetSessionResults(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if results == nil {
		writeError(w, http.StatusNotFound, domain.ErrSessionNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *APIHandler) getQuestionAnswers(w http.ResponseWriter, r *http.Request) {
	questionIndex, err := strconv.Atoi(r.URL.Query().Get("question"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing or invalid question index")
		return
	}

	answers, err := h.results.GetCurrentQuestionAnswers(r.Context(), r.PathValue("id"), questionIndex)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Message: message})
}

// writeServiceError maps domain errors onto HTTP statuses so clients can
// react per error kind.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrLectureNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrParticipantNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyJoined),
		errors.Is(err, domain.ErrSessionEnded),
		errors.Is(err, domain.ErrSessionNotActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmptyTitle),
		errors.Is(err, domain.ErrEmptyParticipantID),
		errors.Is(err, domain.ErrNoQuestions):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
