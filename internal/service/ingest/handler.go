// Package ingest dispatches events pushed by the conferencing SDK bridge,
// over HTTP or Kafka, to the room sessions.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"playground-transcript-feed/internal/models"
	"playground-transcript-feed/internal/observability/logging"
	"playground-transcript-feed/internal/observability/metrics"
	"playground-transcript-feed/internal/schema"
	"playground-transcript-feed/internal/service/session"
)

// Sources, as recorded in metrics.
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
)

// SegmentSink accepts individual transcription segment events.
type SegmentSink interface {
	Deliver(roomID string, seg models.TranscriptSegment) error
}

// Rooms resolves room sessions.
type Rooms interface {
	GetOrCreate(id string) (*session.Room, error)
}

// Handler validates ingest events and applies them to rooms.
type Handler struct {
	rooms     Rooms
	segments  SegmentSink
	validator *schema.Validator
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewHandler(rooms Rooms, segments SegmentSink, validator *schema.Validator) *Handler {
	if validator == nil {
		validator = schema.New()
	}
	return &Handler{
		rooms:     rooms,
		segments:  segments,
		validator: validator,
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("ingest"),
	}
}

// Handle applies one event. Validation failures wrap schema.ErrInvalid.
func (h *Handler) Handle(ctx context.Context, source string, ev models.IngestEvent) error {
	if err := h.validator.Validate(ev); err != nil {
		h.metrics.RecordIngestError(source, "invalid")
		return err
	}
	h.metrics.RecordIngest(source, ev.EventType)

	room, err := h.rooms.GetOrCreate(ev.RoomID)
	if err != nil {
		h.metrics.RecordIngestError(source, "room")
		return fmt.Errorf("open room %s: %w", ev.RoomID, err)
	}

	switch ev.EventType {
	case models.EventRoster:
		err = room.SetRoster(ctx, ev.Participants)
	case models.EventSegment:
		err = h.segments.Deliver(ev.RoomID, *ev.Segment)
	case models.EventChat:
		msg := *ev.Chat
		if msg.Timestamp == 0 {
			msg.Timestamp = ev.Timestamp
		}
		_, err = room.AppendChat(ctx, msg)
	}
	if err != nil {
		reason := "apply"
		if errors.Is(err, session.ErrRoomClosed) {
			reason = "room_closed"
		}
		h.metrics.RecordIngestError(source, reason)
		return fmt.Errorf("apply %s to room %s: %w", ev.EventType, ev.RoomID, err)
	}

	h.log.Debug().
		Str("source", source).
		Str("roomId", ev.RoomID).
		Str("eventType", ev.EventType).
		Msg("Ingest event applied")
	return nil
}
