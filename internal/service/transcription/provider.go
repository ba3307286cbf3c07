// Package transcription routes discrete transcript segment events to live
// per-participant subscriptions.
package transcription

import "playground-transcript-feed/internal/models"

// Key identifies one participant track within a room.
type Key struct {
	RoomID   string
	Identity string
	TrackSID string
}

// Sink receives the full current segment set of a track every time it
// changes. The slice is owned by the receiver.
type Sink func(segments []models.TranscriptSegment)

// Provider is the live transcription source a room subscribes to.
type Provider interface {
	// Subscribe attaches sink to a participant track. It returns the
	// segments already known for the track and a cancel func.
	Subscribe(key Key, sink Sink) (snapshot []models.TranscriptSegment, cancel func())

	// ForgetRoom drops everything buffered for a room that no subscriber
	// is attached to.
	ForgetRoom(roomID string)
}
