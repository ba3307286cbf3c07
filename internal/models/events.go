package models

// Ingest event types pushed by the SDK bridge.
const (
	EventRoster  = "room.roster"
	EventSegment = "transcript.segment"
	EventChat    = "chat.message"
)

// IngestEvent is the envelope for everything the SDK bridge sends.
// Exactly one payload field is set, matching EventType.
type IngestEvent struct {
	EventType    string             `json:"eventType" validate:"required,oneof=room.roster transcript.segment chat.message"`
	RoomID       string             `json:"roomId" validate:"required"`
	Timestamp    int64              `json:"timestamp" validate:"gte=0"`
	Participants []Participant      `json:"participants,omitempty" validate:"dive"`
	Segment      *TranscriptSegment `json:"segment,omitempty" validate:"required_if=EventType transcript.segment"`
	Chat         *ChatMessage       `json:"chat,omitempty" validate:"required_if=EventType chat.message"`
}

// FeedEvent is published whenever a room's merged feed changes.
type FeedEvent struct {
	EventType string           `json:"eventType"`
	RoomID    string           `json:"roomId"`
	Timestamp int64            `json:"timestamp"`
	Messages  []DisplayMessage `json:"messages"`
}

// ChatSentEvent is published when a chat message is sent from the playground.
type ChatSentEvent struct {
	EventType string      `json:"eventType"`
	RoomID    string      `json:"roomId"`
	Timestamp int64       `json:"timestamp"`
	Chat      ChatMessage `json:"chat"`
}

const (
	EventFeedUpdated = "room.feed.updated"
	EventChatSent    = "room.chat.sent"
)
