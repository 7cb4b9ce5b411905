package http

import (
	"encoding/json"
	"net/http"
	"time"

	"gameroom-service/internal/app"
	"gameroom-service/internal/domain"
)

// RESTHandler exposes the command surface over plain JSON endpoints. Every
// state-changing operation returns the fresh aggregate so callers can relay
// it; error kinds map to status codes here and nowhere else.
type RESTHandler struct {
	rooms    *app.RoomService
	answers  *app.AnswerService
	results  *app.ResultService
	monitor  *app.MonitorService
	presence *app.PresenceService
	hub      *Hub
}

func NewRESTHandler(rooms *app.RoomService, answers *app.AnswerService, results *app.ResultService, monitor *app.MonitorService, presence *app.PresenceService, hub *Hub) *RESTHandler {
	return &RESTHandler{rooms: rooms, answers: answers, results: results, monitor: monitor, presence: presence, hub: hub}
}

// Register mounts all command routes on the mux.
func (h *RESTHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /rooms", h.createRoom)
	mux.HandleFunc("GET /rooms", h.listRooms)
	mux.HandleFunc("GET /rooms/{id}", h.getRoom)
	mux.HandleFunc("GET /rooms/code/{code}", h.getRoomByCode)
	mux.HandleFunc("POST /rooms/{id}/status", h.updateStatus)
	mux.HandleFunc("POST /rooms/{id}/start", h.startRoom)
	mux.HandleFunc("POST /rooms/{id}/finish", h.finishRoom)
	mux.HandleFunc("POST /rooms/{id}/students", h.addStudent)
	mux.HandleFunc("POST /rooms/code/{code}/join", h.joinByCode)
	mux.HandleFunc("POST /rooms/{id}/answers", h.submitAnswer)
	mux.HandleFunc("GET /rooms/{id}/answers", h.listAnswers)
	mux.HandleFunc("GET /rooms/{id}/results", h.listResults)
	mux.HandleFunc("GET /rooms/{id}/report", h.roomReport)
	mux.HandleFunc("GET /rooms/{id}/monitoring", h.monitoringSnapshot)
	mux.HandleFunc("POST /rooms/{id}/monitoring/reset", h.resetMonitoring)
}

func (h *RESTHandler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req app.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ValidationFailed("invalid request body"))
		return
	}
	room, err := h.rooms.CreateRoom(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *RESTHandler) listRooms(w http.ResponseWriter, r *http.Request) {
	status := domain.RoomStatus(r.URL.Query().Get("status"))
	summaries, err := h.rooms.ListRooms(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *RESTHandler) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.GetRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RESTHandler) getRoomByCode(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.GetRoomByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RESTHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var update app.StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, domain.ValidationFailed("invalid request body"))
		return
	}
	room, err := h.rooms.UpdateStatus(r.Context(), r.PathValue("id"), update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

type timingOverrides struct {
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
}

func (h *RESTHandler) startRoom(w http.ResponseWriter, r *http.Request) {
	var overrides timingOverrides
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
			writeError(w, domain.ValidationFailed("invalid request body"))
			return
		}
	}
	room, err := h.rooms.StartRoom(r.Context(), r.PathValue("id"), overrides.StartsAt, overrides.EndsAt)
	if err != nil {
		writeError(w, err)
		return
	}
	status := h.presence.Start(room.ID)
	h.hub.Broadcast(room.ID, Envelope{Type: "roomStatus", Payload: liveStatusPayload{RoomID: room.ID, Status: status}})
	writeJSON(w, http.StatusOK, room)
}

func (h *RESTHandler) finishRoom(w http.ResponseWriter, r *http.Request) {
	var overrides timingOverrides
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
			writeError(w, domain.ValidationFailed("invalid request body"))
			return
		}
	}
	room, err := h.rooms.FinishRoom(r.Context(), r.PathValue("id"), overrides.EndsAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

type joinRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *RESTHandler) addStudent(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ValidationFailed("invalid request body"))
		return
	}
	student, err := h.rooms.AddStudent(r.Context(), r.PathValue("id"), req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

func (h *RESTHandler) joinByCode(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ValidationFailed("invalid request body"))
		return
	}
	session, err := h.rooms.JoinByCode(r.Context(), r.PathValue("code"), req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *RESTHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var sub domain.AnswerSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, domain.ValidationFailed("invalid request body"))
		return
	}
	if sub.Attempt == 0 {
		sub.Attempt = 1
	}
	record, err := h.answers.Submit(r.Context(), r.PathValue("id"), sub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *RESTHandler) listAnswers(w http.ResponseWriter, r *http.Request) {
	filter := app.AnswerFilter{
		StudentID:  r.URL.Query().Get("studentId"),
		QuestionID: r.URL.Query().Get("questionId"),
	}
	answers, err := h.answers.ListAnswers(r.Context(), r.PathValue("id"), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

func (h *RESTHandler) listResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.results.ListResults(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *RESTHandler) roomReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.results.RoomReport(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *RESTHandler) monitoringSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Snapshot(r.PathValue("id")))
}

func (h *RESTHandler) resetMonitoring(w http.ResponseWriter, r *http.Request) {
	snapshot := h.monitor.Reset(r.PathValue("id"))
	h.hub.Broadcast(snapshot.RoomID, Envelope{Type: "snapshot", Payload: snapshot})
	writeJSON(w, http.StatusOK, snapshot)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the closed error-kind set to status codes. Unclassified
// errors surface as 500s.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	payload := errorPayload{Kind: domain.KindStorage, Message: err.Error()}
	if e, ok := err.(*domain.Error); ok {
		payload.Kind = e.Kind
		payload.Fields = e.Fields
		switch e.Kind {
		case domain.KindNotFound:
			status = http.StatusNotFound
		case domain.KindPreconditionFailed, domain.KindValidationFailed:
			status = http.StatusBadRequest
		case domain.KindConflict:
			status = http.StatusConflict
		case domain.KindStorage:
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, payload)
}
