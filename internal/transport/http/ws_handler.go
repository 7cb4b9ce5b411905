package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"gameroom-service/internal/app"
	"gameroom-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler wires websocket connections into the room use cases: presence,
// live start, answer ingestion, and monitoring broadcast.
type WSHandler struct {
	rooms    *app.RoomService
	answers  *app.AnswerService
	monitor  *app.MonitorService
	presence *app.PresenceService
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(rooms *app.RoomService, answers *app.AnswerService, monitor *app.MonitorService, presence *app.PresenceService, hub *Hub) *WSHandler {
	return &WSHandler{
		rooms:    rooms,
		answers:  answers,
		monitor:  monitor,
		presence: presence,
		hub:      hub,
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
	GameID             string     `json:"gameId"`
	QuestionID         string     `json:"questionId"`
	QuestionText       string     `json:"questionText"`
	SelectedOptionID   string     `json:"selectedOptionId"`
	SelectedOptionText string     `json:"selectedOptionText"`
	IsCorrect          bool       `json:"isCorrect"`
	ElapsedMillis      int64      `json:"elapsedMillis"`
	Attempt            int        `json:"attempt"`
	Replace            bool       `json:"replace"`
	AnsweredAt         *time.Time `json:"answeredAt"`
}

type joinedPayload struct {
	RoomID       string               `json:"roomId"`
	Participants []domain.Participant `json:"participants"`
	LiveStatus   domain.LiveStatus    `json:"liveStatus"`
}

type liveStatusPayload struct {
	RoomID string            `json:"roomId"`
	Status domain.LiveStatus `json:"status"`
}

type errorPayload struct {
	Kind    domain.ErrorKind    `json:"kind"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

func errEnvelope(err error) Envelope {
	payload := errorPayload{Kind: domain.KindStorage, Message: err.Error()}
	if e, ok := err.(*domain.Error); ok {
		payload.Kind = e.Kind
		payload.Fields = e.Fields
	}
	return Envelope{Type: "error", Payload: payload}
}

// ServeWS upgrades the request and runs the connection loop. Clients connect
// with roomId, userId, and name query parameters.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	userID := r.URL.Query().Get("userId")
	name := r.URL.Query().Get("name")
	if roomID == "" || userID == "" || name == "" {
		http.Error(w, "missing roomId, userId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	participant := domain.Participant{UserID: userID, Name: name}
	users := h.presence.Join(roomID, participant)

	updates, cancel := h.hub.Subscribe(roomID)
	defer cancel()
	defer func() {
		remaining := h.presence.Leave(roomID, participant)
		h.hub.Broadcast(roomID, Envelope{Type: "presence", Payload: remaining})
	}()

	send := make(chan Envelope, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- update:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- Envelope{Type: "joined", Payload: joinedPayload{
		RoomID:       roomID,
		Participants: users,
		LiveStatus:   h.presence.LiveStatus(roomID),
	}}
	h.hub.Broadcast(roomID, Envelope{Type: "presence", Payload: users})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- Envelope{Type: "error", Payload: errorPayload{Kind: domain.KindValidationFailed, Message: "invalid answer payload"}}
				continue
			}
			h.handleAnswer(r, roomID, userID, name, payload, send)
		case "start":
			status := h.presence.Start(roomID)
			h.hub.Broadcast(roomID, Envelope{Type: "roomStatus", Payload: liveStatusPayload{RoomID: roomID, Status: status}})
		case "reset":
			snapshot := h.monitor.Reset(roomID)
			h.hub.Broadcast(roomID, Envelope{Type: "snapshot", Payload: snapshot})
		default:
			send <- Envelope{Type: "error", Payload: errorPayload{Kind: domain.KindValidationFailed, Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handleAnswer persists the answer and folds it into monitoring. Persistence
// failure is reported to the submitter but never blocks the snapshot: the
// dashboard keeps moving even when storage is down.
func (h *WSHandler) handleAnswer(r *http.Request, roomID, userID, name string, payload answerPayload, send chan Envelope) {
	answeredAt := time.Now()
	if payload.AnsweredAt != nil {
		answeredAt = *payload.AnsweredAt
	}
	attempt := payload.Attempt
	if attempt < 1 {
		attempt = 1
	}

	correct := payload.IsCorrect
	elapsed := payload.ElapsedMillis
	answer := payload.SelectedOptionID
	if answer == "" {
		answer = payload.SelectedOptionText
	}
	record, err := h.answers.Submit(r.Context(), roomID, domain.AnswerSubmission{
		StudentID:    userID,
		GameID:       domain.GameKind(payload.GameID),
		QuestionID:   payload.QuestionID,
		QuestionText: payload.QuestionText,
		Answer:       answer,
		IsCorrect:    &correct,
		ElapsedMs:    &elapsed,
		Attempt:      attempt,
		SentAt:       &answeredAt,
		Replace:      payload.Replace,
	})
	if err != nil {
		log.Printf("answer persist failed room=%s student=%s: %v", roomID, userID, err)
		send <- errEnvelope(err)
	} else {
		send <- Envelope{Type: "answerAck", Payload: record}
	}

	event := domain.AnswerEvent{
		RoomID:             roomID,
		StudentID:          userID,
		StudentName:        name,
		GameID:             domain.GameKind(payload.GameID),
		QuestionID:         payload.QuestionID,
		QuestionText:       payload.QuestionText,
		SelectedOptionID:   payload.SelectedOptionID,
		SelectedOptionText: payload.SelectedOptionText,
		IsCorrect:          payload.IsCorrect,
		ElapsedMillis:      payload.ElapsedMillis,
		AnsweredAt:         answeredAt,
	}
	snapshot, err := h.monitor.RecordAnswer(roomID, event)
	if err != nil {
		send <- errEnvelope(err)
		return
	}
	h.hub.Broadcast(roomID, Envelope{Type: "snapshot", Payload: snapshot})
	h.hub.Broadcast(roomID, Envelope{Type: "answerEvent", Payload: event})
}
