package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"playground-transcript-feed/internal/app"
	"playground-transcript-feed/internal/models"
	"playground-transcript-feed/internal/observability/logging"
	"playground-transcript-feed/internal/schema"
	"playground-transcript-feed/internal/service/ingest"
	"playground-transcript-feed/internal/service/panel"
	"playground-transcript-feed/internal/service/session"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	app *app.Application
	log zerolog.Logger
}

func newHandlers(application *app.Application) *handlers {
	return &handlers{
		app: application,
		log: logging.WithComponent("http"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type feedResponse struct {
	RoomID   string                  `json:"roomId"`
	Messages []models.DisplayMessage `json:"messages"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type trackRequest struct {
	Enabled bool `json:"enabled"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrInvalid), errors.Is(err, session.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, panel.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoLocalParticipant):
		return http.StatusConflict
	case errors.Is(err, session.ErrRoomClosed), errors.Is(err, session.ErrRegistryClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// room resolves the {room} path parameter, writing a 404 when absent.
func (h *handlers) room(w http.ResponseWriter, r *http.Request) (*session.Room, bool) {
	id := chi.URLParam(r, "room")
	room, ok := h.app.Rooms.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("room not found: "+id))
		return nil, false
	}
	return room, true
}

func (h *handlers) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms := make([]session.Info, 0)
	for _, id := range h.app.Rooms.IDs() {
		room, ok := h.app.Rooms.Get(id)
		if !ok {
			continue
		}
		info, err := room.Info(r.Context())
		if err != nil {
			continue
		}
		rooms = append(rooms, info)
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *handlers) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var ev models.IngestEvent
	if !decode(w, r, &ev) {
		return
	}
	ev.RoomID = chi.URLParam(r, "room")

	if err := h.app.Ingest.Handle(r.Context(), ingest.SourceHTTP, ev); err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("roomId", ev.RoomID).Msg("Ingest failed")
		}
		writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) getFeed(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	feed, err := room.Feed(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if feed == nil {
		feed = []models.DisplayMessage{}
	}
	writeJSON(w, http.StatusOK, feedResponse{RoomID: room.ID(), Messages: feed})
}

func (h *handlers) sendChat(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := room.Send(r.Context(), req.Message)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *handlers) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "room")
	if !h.app.Rooms.Remove(id) {
		writeError(w, http.StatusNotFound, errors.New("room not found: "+id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getPanel(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, room.Panel().Views())
}

func (h *handlers) togglePanelItem(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	view, err := room.Panel().Toggle(chi.URLParam(r, "title"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) setPanelTrack(w http.ResponseWriter, r *http.Request) {
	room, ok := h.room(w, r)
	if !ok {
		return
	}
	var req trackRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := room.Panel().SetTrackEnabled(chi.URLParam(r, "title"), req.Enabled)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
