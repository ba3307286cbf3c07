// Package models defines the data structures exchanged with the SDK bridge and
// the front-end.
package models

// TrackSource identifies the kind of media a publication carries.
type TrackSource string

const (
	SourceCamera           TrackSource = "camera"
	SourceMicrophone       TrackSource = "microphone"
	SourceScreenShare      TrackSource = "screen_share"
	SourceScreenShareAudio TrackSource = "screen_share_audio"
	SourceUnknown          TrackSource = "unknown"
)

// PartialSuffix is appended to the text of a segment that is not final yet.
const PartialSuffix = " ..."

// TranscriptSegment is one incremental unit of speech-to-text output.
type TranscriptSegment struct {
	ID                  string `json:"id" validate:"required"`
	Text                string `json:"text"`
	Final               bool   `json:"final"`
	ParticipantIdentity string `json:"participantIdentity" validate:"required"`
	TrackSID            string `json:"trackSid"`
}

// ChatMessage is one entry of the room chat log.
type ChatMessage struct {
	ID             string `json:"id,omitempty"`
	SenderIdentity string `json:"senderIdentity,omitempty"`
	SenderName     string `json:"senderName,omitempty"`
	Message        string `json:"message" validate:"required"`
	Timestamp      int64  `json:"timestamp" validate:"gte=0"`
}

// Publication is a participant's currently active outgoing track.
type Publication struct {
	TrackSID string      `json:"trackSid" validate:"required"`
	Source   TrackSource `json:"source" validate:"required,oneof=camera microphone screen_share screen_share_audio unknown"`
	Muted    bool        `json:"muted,omitempty"`
}

// Participant is one roster entry.
type Participant struct {
	Identity     string        `json:"identity" validate:"required"`
	Name         string        `json:"name,omitempty"`
	IsLocal      bool          `json:"isLocal,omitempty"`
	JoinedAt     int64         `json:"joinedAt,omitempty"`
	Publications []Publication `json:"publications,omitempty" validate:"dive"`
}

// Microphone returns the participant's microphone publication, if any.
func (p Participant) Microphone() (Publication, bool) {
	for _, pub := range p.Publications {
		if pub.Source == SourceMicrophone {
			return pub, true
		}
	}
	return Publication{}, false
}

// MessageKind tells where a display message came from.
type MessageKind string

const (
	KindTranscript MessageKind = "transcript"
	KindChat       MessageKind = "chat"
)

// DisplayMessage is one entry of the merged feed.
type DisplayMessage struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Message   string      `json:"message"`
	Timestamp int64       `json:"timestamp"`
	IsSelf    bool        `json:"isSelf"`
	Kind      MessageKind `json:"kind"`
}
