// Package mock provides a scripted transcription source for development
// without a conferencing SDK. It produces progressive partial segments and
// exactly one final per utterance, like a real recognizer would.
package mock

import (
	"context"
	"sync"
	"time"

	"playground-transcript-feed/internal/models"
	"playground-transcript-feed/internal/service/segment"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials []string // Progressive partial transcripts
	Final    string   // Final transcript text
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials: []string{"Hi", "Hi there", "Hi there, how"},
		Final:    "Hi there, how can I help you today?",
	},
	{
		Partials: []string{"I'd like", "I'd like to", "I'd like to test"},
		Final:    "I'd like to test the transcription feed",
	},
	{
		Partials: []string{"Sure", "Sure, go"},
		Final:    "Sure, go ahead and speak",
	},
	{
		Partials: []string{"Thank you"},
		Final:    "Thank you very much",
	},
}

var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// Simulator emits segment events for one participant track.
type Simulator struct {
	identity   string
	trackSID   string
	utterances []SimulatedUtterance
	ids        *segment.Generator
}

// New creates a simulator that starts at the next default utterance, so
// several simulators in one process do not repeat each other.
func New(identity, trackSID string) *Simulator {
	counterMu.Lock()
	start := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	utterances := append([]SimulatedUtterance{}, DefaultUtterances[start:]...)
	utterances = append(utterances, DefaultUtterances[:start]...)
	return NewWithUtterances(identity, trackSID, utterances)
}

// NewWithUtterances creates a simulator with a fixed script.
func NewWithUtterances(identity, trackSID string, utterances []SimulatedUtterance) *Simulator {
	return &Simulator{
		identity:   identity,
		trackSID:   trackSID,
		utterances: utterances,
		ids:        segment.New("seg"),
	}
}

// Script returns the ordered segment events of the whole script. Partials
// of one utterance share the final's segment id.
func (s *Simulator) Script(scope string) []models.TranscriptSegment {
	var events []models.TranscriptSegment
	for _, utt := range s.utterances {
		id := s.ids.Next(scope + "-" + s.identity)
		for _, p := range utt.Partials {
			events = append(events, s.event(id, p, false))
		}
		events = append(events, s.event(id, utt.Final, true))
	}
	return events
}

func (s *Simulator) event(id, text string, final bool) models.TranscriptSegment {
	return models.TranscriptSegment{
		ID:                  id,
		Text:                text,
		Final:               final,
		ParticipantIdentity: s.identity,
		TrackSID:            s.trackSID,
	}
}

// Play delivers the script one event per interval until done or ctx ends.
// It stops at the first deliver error.
func (s *Simulator) Play(ctx context.Context, scope string, interval time.Duration, deliver func(models.TranscriptSegment) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for _, ev := range s.Script(scope) {
		if err := deliver(ev); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
