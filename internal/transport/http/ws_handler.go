package http

import (
	"encoding/json"
	"log"
	"net/http"

	"lecture-quiz-service/internal/app"
	"lecture-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler wires live sessions onto websockets. Participants connect with
// ?code=&participantId=&name= and submit answers; hosts connect with
// ?role=host&sessionId= and drive the session. Both receive scoreboard pushes.
type WSHandler struct {
	service  *app.LiveSessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LiveSessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex int     `json:"questionIndex"`
	Answer        string  `json:"answer"`
	TimeSpent     float64 `json:"timeSpent"`
}

type joinedPayload struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("role") == "host" {
		h.serveHost(w, r)
		return
	}
	h.serveParticipant(w, r)
}

func (h *WSHandler) serveParticipant(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	participantID := r.URL.Query().Get("participantId")
	name := r.URL.Query().Get("name")
	if code == "" || participantID == "" || name == "" {
		http.Error(w, "missing code, participantId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID, err := h.service.JoinSession(r.Context(), code, participantID, name)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	pump := startPumps(conn, updates)
	defer pump.shutdown()

	pump.send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{
		SessionID:     sessionID,
		ParticipantID: participantID,
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				pump.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			result, err := h.service.SubmitLiveAnswer(r.Context(), sessionID, participantID, payload.QuestionIndex, payload.Answer, payload.TimeSpent)
			if err != nil {
				pump.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			pump.send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		default:
			pump.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}
}

func (h *WSHandler) serveHost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	pump := startPumps(conn, updates)
	defer pump.shutdown()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var opErr error
		switch inbound.Type {
		case "start":
			opErr = h.service.StartSession(r.Context(), sessionID)
		case "next":
			opErr = h.service.NextQuestion(r.Context(), sessionID)
		case "end":
			opErr = h.service.EndSession(r.Context(), sessionID)
		default:
			pump.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
			continue
		}
		if opErr != nil {
			pump.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: opErr.Error()}}
			continue
		}
		view, err := h.service.GetActiveSession(r.Context(), sessionID)
		if err != nil || view == nil {
			continue
		}
		pump.send <- outboundMessage[any]{Type: "session", Payload: view}
	}
}

// wsPump owns the single writer goroutine and the scoreboard relay for one
// connection; gorilla connections forbid concurrent writes.
type wsPump struct {
	send         chan outboundMessage[any]
	closeSignals chan struct{}
	writerDone   chan struct{}
	updatesDone  chan struct{}
}

func startPumps(conn *websocket.Conn, updates <-chan domain.Scoreboard) *wsPump {
	p := &wsPump{
		send:         make(chan outboundMessage[any], 16),
		closeSignals: make(chan struct{}),
		writerDone:   make(chan struct{}),
		updatesDone:  make(chan struct{}),
	}

	go func() {
		defer close(p.writerDone)
		for msg := range p.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(p.updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case p.send <- outboundMessage[any]{Type: "scoreboard", Payload: update}:
				case <-p.closeSignals:
					return
				}
			case <-p.closeSignals:
				return
			}
		}
	}()

	return p
}

func (p *wsPump) shutdown() {
	close(p.closeSignals)
	<-p.updatesDone
	close(p.send)
	<-p.writerDone
}
