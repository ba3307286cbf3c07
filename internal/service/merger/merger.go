// Package merger reconciles per-participant live transcription streams and
// the chat log into one ordered feed of display messages.
package merger

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"playground-transcript-feed/internal/models"
	"playground-transcript-feed/internal/observability/logging"
	"playground-transcript-feed/internal/observability/metrics"
	"playground-transcript-feed/internal/service/segment"
)

// Inputs is everything one recomputation looks at.
type Inputs struct {
	// Roster in join order. The local participant is part of it.
	Roster []models.Participant
	// Segments holds the current replace-on-emit segment set per identity.
	Segments map[string][]models.TranscriptSegment
	// Chat is the append-only chat log.
	Chat []models.ChatMessage
}

// State is the long-lived segment id -> display message mapping. Values are
// never mutated after Recompute returns them.
type State struct {
	entries map[string]models.DisplayMessage
	order   []string
}

func NewState() State {
	return State{entries: map[string]models.DisplayMessage{}}
}

// Len returns the number of transcript entries.
func (s State) Len() int { return len(s.order) }

// Get returns the transcript entry for a segment id.
func (s State) Get(id string) (models.DisplayMessage, bool) {
	msg, ok := s.entries[id]
	return msg, ok
}

func (s State) clone() State {
	entries := make(map[string]models.DisplayMessage, len(s.entries))
	for k, v := range s.entries {
		entries[k] = v
	}
	return State{entries: entries, order: slices.Clone(s.order)}
}

type segmentRef struct {
	participant models.Participant
	segment     models.TranscriptSegment
}

// contributingSegments lists segments in roster order, then set order.
// Participants without a microphone publication contribute nothing.
func contributingSegments(in Inputs, policy Policy) []segmentRef {
	var refs []segmentRef
	for _, part := range policy.contributors(in.Roster) {
		if _, ok := part.Microphone(); !ok {
			continue
		}
		for _, seg := range in.Segments[part.Identity] {
			if seg.ID == "" {
				continue
			}
			refs = append(refs, segmentRef{participant: part, segment: seg})
		}
	}
	return refs
}

func displayText(seg models.TranscriptSegment) string {
	if seg.Final {
		return seg.Text
	}
	return seg.Text + models.PartialSuffix
}

// Recompute is the pure merge transition. prev is left untouched.
// now is the Unix ms timestamp given to segment ids seen for the first time.
func Recompute(prev State, in Inputs, now int64, policy Policy) (State, []models.DisplayMessage) {
	policy = policy.withDefaults()
	next := prev.clone()
	if next.entries == nil {
		next.entries = map[string]models.DisplayMessage{}
	}

	for _, ref := range contributingSegments(in, policy) {
		id := ref.segment.ID
		ts := now
		if existing, ok := next.entries[id]; ok {
			ts = existing.Timestamp
		} else {
			next.order = append(next.order, id)
		}
		next.entries[id] = models.DisplayMessage{
			ID:        id,
			Name:      policy.participantLabel(ref.participant),
			Message:   displayText(ref.segment),
			Timestamp: ts,
			IsSelf:    ref.participant.IsLocal,
			Kind:      models.KindTranscript,
		}
	}

	feed := make([]models.DisplayMessage, 0, len(next.order)+len(in.Chat))
	for _, id := range next.order {
		feed = append(feed, next.entries[id])
	}

	roster := indexRoster(in.Roster)
	for _, msg := range in.Chat {
		name, isSelf, keep := policy.chatLabel(msg, roster)
		if !keep {
			continue
		}
		feed = append(feed, models.DisplayMessage{
			ID:        msg.ID,
			Name:      name,
			Message:   msg.Message,
			Timestamp: msg.Timestamp,
			IsSelf:    isSelf,
			Kind:      models.KindChat,
		})
	}

	slices.SortStableFunc(feed, func(a, b models.DisplayMessage) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return next, feed
}

// Clock returns the current time in Unix milliseconds.
type Clock func() int64

// SystemClock reads the wall clock.
func SystemClock() int64 { return time.Now().UnixMilli() }

// Merger owns a State and applies Recompute to it. It is not safe for
// concurrent use; a room session serializes calls on its event loop.
type Merger struct {
	policy     Policy
	clock      Clock
	state      State
	lifecycles map[string]*segment.Lifecycle
	observed   map[string]models.TranscriptSegment // Last version fed to each lifecycle
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// Option configures a Merger.
type Option func(*Merger)

func WithClock(c Clock) Option {
	return func(m *Merger) { m.clock = c }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Merger) { m.metrics = mt }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Merger) { m.log = l }
}

func New(policy Policy, opts ...Option) *Merger {
	m := &Merger{
		policy:     policy.withDefaults(),
		clock:      SystemClock,
		state:      NewState(),
		lifecycles: map[string]*segment.Lifecycle{},
		observed:   map[string]models.TranscriptSegment{},
		metrics:    metrics.DefaultMetrics,
		log:        logging.WithComponent("merger"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the effective policy.
func (m *Merger) Policy() Policy { return m.policy }

// State returns the current transcript mapping.
func (m *Merger) State() State { return m.state }

// Recompute merges the inputs into a fresh feed and keeps the new state.
func (m *Merger) Recompute(in Inputs) []models.DisplayMessage {
	start := time.Now()
	m.observe(in)

	next, feed := Recompute(m.state, in, m.clock(), m.policy)
	m.state = next

	m.metrics.RecordRecompute(time.Since(start).Seconds(), len(feed))
	return feed
}

func (m *Merger) observe(in Inputs) {
	for _, ref := range contributingSegments(in, m.policy) {
		id := ref.segment.ID
		if prev, ok := m.observed[id]; ok && prev.Text == ref.segment.Text && prev.Final == ref.segment.Final {
			continue
		}
		m.observed[id] = ref.segment

		lc, ok := m.lifecycles[id]
		if !ok {
			lc = segment.NewLifecycle(id, 0)
			m.lifecycles[id] = lc
			m.metrics.RecordSegmentCreated()
		}

		err := lc.Observe(ref.segment.Final)
		switch {
		case err == nil && ref.segment.Final:
			m.metrics.RecordSegmentFinalized()
			m.log.Debug().
				Str("participant", ref.participant.Identity).
				Str("segmentId", id).
				Int("revisions", lc.Revisions()).
				Msg("Segment finalized")
		case errors.Is(err, segment.ErrPartialAfterFinal):
			m.log.Debug().
				Str("participant", ref.participant.Identity).
				Str("segmentId", id).
				Msg("Final segment revised back to partial")
		}
	}
}

// Reset discards all transcript state, as when the session ends.
func (m *Merger) Reset() {
	for _, lc := range m.lifecycles {
		lc.Close()
	}
	m.lifecycles = map[string]*segment.Lifecycle{}
	m.observed = map[string]models.TranscriptSegment{}
	m.state = NewState()
}
