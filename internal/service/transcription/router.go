package transcription

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"playground-transcript-feed/internal/models"
	"playground-transcript-feed/internal/observability/logging"
	"playground-transcript-feed/internal/observability/metrics"
	"playground-transcript-feed/internal/service/segment"
)

// Limits bounds what the router keeps per track.
type Limits struct {
	MaxSegments int // Segments kept per track window
	MaxPartials int // Partial revisions accepted per segment
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxSegments: 100,
		MaxPartials: 500,
	}
}

// ErrMissingSegmentID is returned for segments without an identifier.
var ErrMissingSegmentID = errors.New("segment id is required")

type window struct {
	segments   []models.TranscriptSegment
	lifecycles map[string]*segment.Lifecycle
	sinks      map[uint64]Sink
}

func newWindow() *window {
	return &window{
		lifecycles: map[string]*segment.Lifecycle{},
		sinks:      map[uint64]Sink{},
	}
}

func (w *window) indexOf(id string) int {
	return slices.IndexFunc(w.segments, func(s models.TranscriptSegment) bool { return s.ID == id })
}

func (w *window) snapshot() []models.TranscriptSegment {
	return slices.Clone(w.segments)
}

// Router implements Provider on top of individual segment events, turning
// them into replace-on-emit segment sets.
type Router struct {
	mu      sync.Mutex
	limits  Limits
	windows map[Key]*window
	nextID  uint64
	metrics *metrics.Metrics
	log     zerolog.Logger
}

var _ Provider = (*Router)(nil)

func NewRouter(limits Limits) *Router {
	return &Router{
		limits:  limits,
		windows: map[Key]*window{},
		metrics: metrics.DefaultMetrics,
		log:     logging.WithComponent("transcription-router"),
	}
}

// Deliver applies one segment event for a room and notifies subscribers of
// the affected track. A segment without a track SID goes to the track the
// participant is subscribed on, if there is exactly one.
func (r *Router) Deliver(roomID string, seg models.TranscriptSegment) error {
	if seg.ID == "" {
		return ErrMissingSegmentID
	}
	if seg.ParticipantIdentity == "" {
		return fmt.Errorf("segment %s: participant identity is required", seg.ID)
	}

	r.mu.Lock()
	key := r.resolveKey(roomID, seg)
	w, ok := r.windows[key]
	if !ok {
		w = newWindow()
		r.windows[key] = w
	}

	if reason := r.apply(w, seg); reason != "" {
		r.mu.Unlock()
		r.metrics.RecordSegmentIgnored(reason)
		segLog := logging.WithSegment(roomID, seg.ParticipantIdentity, seg.ID)
		segLog.Debug().Str("reason", reason).Msg("Segment update ignored")
		return nil
	}

	snapshot := w.snapshot()
	sinks := make([]Sink, 0, len(w.sinks))
	for _, s := range w.sinks {
		sinks = append(sinks, s)
	}
	r.mu.Unlock()

	for _, sink := range sinks {
		sink(slices.Clone(snapshot))
	}
	return nil
}

// resolveKey must be called with r.mu held.
func (r *Router) resolveKey(roomID string, seg models.TranscriptSegment) Key {
	key := Key{RoomID: roomID, Identity: seg.ParticipantIdentity, TrackSID: seg.TrackSID}
	if key.TrackSID != "" {
		return key
	}
	var subscribed []Key
	for k, w := range r.windows {
		if k.RoomID == roomID && k.Identity == seg.ParticipantIdentity && k.TrackSID != "" && len(w.sinks) > 0 {
			subscribed = append(subscribed, k)
		}
	}
	if len(subscribed) == 1 {
		return subscribed[0]
	}
	return key
}

// apply updates the window in place. It returns a non-empty reason when the
// update was ignored. Must be called with r.mu held.
func (r *Router) apply(w *window, seg models.TranscriptSegment) string {
	lc, ok := w.lifecycles[seg.ID]
	if !ok {
		lc = segment.NewLifecycle(seg.ID, r.limits.MaxPartials)
		w.lifecycles[seg.ID] = lc
	}

	err := lc.Observe(seg.Final)
	switch {
	case errors.Is(err, segment.ErrPartialLimitReached):
		return "partial_limit"
	case errors.Is(err, segment.ErrPartialAfterFinal):
		return "partial_after_final"
	case errors.Is(err, segment.ErrSegmentClosed):
		return "closed"
	}

	if i := w.indexOf(seg.ID); i >= 0 {
		w.segments[i] = seg
	} else {
		w.segments = append(w.segments, seg)
	}

	if r.limits.MaxSegments > 0 && len(w.segments) > r.limits.MaxSegments {
		drop := len(w.segments) - r.limits.MaxSegments
		for _, old := range w.segments[:drop] {
			if l, ok := w.lifecycles[old.ID]; ok {
				l.Close()
			}
			delete(w.lifecycles, old.ID)
		}
		w.segments = slices.Clone(w.segments[drop:])
	}
	return ""
}

// Subscribe implements Provider. Segments buffered without a track SID are
// adopted by the first subscription on that participant.
func (r *Router) Subscribe(key Key, sink Sink) ([]models.TranscriptSegment, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[key]
	if !ok {
		w = newWindow()
		r.windows[key] = w
	}

	if key.TrackSID != "" {
		orphan := Key{RoomID: key.RoomID, Identity: key.Identity}
		if ow, ok := r.windows[orphan]; ok && len(ow.sinks) == 0 {
			for _, s := range ow.segments {
				if w.indexOf(s.ID) < 0 {
					w.segments = append(w.segments, s)
					w.lifecycles[s.ID] = ow.lifecycles[s.ID]
				}
			}
			delete(r.windows, orphan)
		}
	}

	r.nextID++
	id := r.nextID
	w.sinks[id] = sink
	r.metrics.RecordSubscribe()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if cur, ok := r.windows[key]; ok {
				delete(cur.sinks, id)
			}
			r.metrics.RecordUnsubscribe()
		})
	}
	return w.snapshot(), cancel
}

// ForgetRoom implements Provider. Windows that still have subscribers are
// kept; they belong to a newer session of the same room.
func (r *Router) ForgetRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	forgotten := 0
	for k, w := range r.windows {
		if k.RoomID != roomID || len(w.sinks) > 0 {
			continue
		}
		for _, lc := range w.lifecycles {
			lc.Close()
		}
		delete(r.windows, k)
		forgotten++
	}
	r.log.Debug().Str("roomId", roomID).Int("windows", forgotten).Msg("Room transcription windows released")
}

// Windows returns the number of track windows held, for observability.
func (r *Router) Windows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}
