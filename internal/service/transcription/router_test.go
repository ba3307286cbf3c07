package transcription

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"playground-transcript-feed/internal/models"
)

type recordingSink struct {
	mu    sync.Mutex
	calls [][]models.TranscriptSegment
}

func (s *recordingSink) sink(segs []models.TranscriptSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, segs)
}

func (s *recordingSink) last() []models.TranscriptSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func ids(segs []models.TranscriptSegment) []string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		out = append(out, s.ID)
	}
	return out
}

func TestRouter_ReplaceOnEmit(t *testing.T) {
	r := NewRouter(DefaultLimits())
	rec := &recordingSink{}
	key := Key{RoomID: "room", Identity: "alice", TrackSID: "TR_a"}

	snapshot, cancel := r.Subscribe(key, rec.sink)
	defer cancel()
	require.Empty(t, snapshot)

	require.NoError(t, r.Deliver("room", models.TranscriptSegment{ID: "1", Text: "hel", ParticipantIdentity: "alice", TrackSID: "TR_a"}))
	require.NoError(t, r.Deliver("room", models.TranscriptSegment{ID: "1", Text: "hello", Final: true, ParticipantIdentity: "alice", TrackSID: "TR_a"}))
	require.NoError(t, r.Deliver("room", models.TranscriptSegment{ID: "2", Text: "how", ParticipantIdentity: "alice", TrackSID: "TR_a"}))

	require.Equal(t, 3, rec.count())
	last := rec.last()
	require.Equal(t, []string{"1", "2"}, ids(last))
	require.Equal(t, "hello", last[0].Text)
	require.True(t, last[0].Final)
}

func TestRouter_BuffersUntilSubscribed(t *testing.T) {
	r := NewRouter(DefaultLimits())
	key := Key{RoomID: "room", Identity: "alice", TrackSID: "TR_a"}

	require.NoError(t, r.Deliver("room", models.TranscriptSegment{ID: "1", Text: "early", ParticipantIdentity: "alice", TrackSID: "TR_a"}))

	snapshot, cancel := r.Subscribe(key, func([]models.TranscriptSegment) {})
	defer cancel()
	require.Equal(t, []string{"1"}, ids(snapshot))
}

func TestRouter_AdoptsSegmentsWithoutTrack(t *testing.T) {
	r := NewRouter(DefaultLimits())

	require.NoError(t, r.Deliver("room", models.TranscriptSegment{ID: "1", Text: "orphan", ParticipantIdentity: "alice"}))

	rec := &recordingSink{}
	snapshot, cancel := r.Subscribe(Key{RoomID: "room", Identity: "alice", TrackSID: "TR_a"}, rec.sink)
	defer cancel()
	require.Equal(t, []string{"1"}, ids(snapshot))

	// Track-less segments now follow the only subscription.
	require.NoError(t, r.Deliver("room", models.TranscriptSegment{ID: "2", Text: "routed", ParticipantIdentity: "alice"}))
	require.Equal(t, []string{"1", "2"}, ids(rec.last()))
	require.Equal(t, 1, r.Windows())
}

func TestRouter_TrimsToMaxSegments(t *testing.T) {
	r := NewRouter(Limits{MaxSegments: 2})
	rec := &recordingSink{}
	key := Key{RoomID: "room", Identity: "alice", TrackSID: "TR_a"}
	_, cancel := r.Subscribe(key, rec.sink)
	defer cancel()

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, r.Deliver("room", models.TranscriptSegment{ID: id, Text: id, Final: true, ParticipantIdentity: "alice", TrackSID: "TR_a"}))
	}

	require.Equal(t, []string{"2", "3"}, ids(rec.last()))
}

func TestRouter_PartialLimitAndStalePartials(t *testing.T) {
	r := NewRouter(Limits{MaxSegments: 10, MaxPartials: 2})
	rec := &recordingSink{}
	key := Key{RoomID: "room", Identity: "alice", TrackSID: "TR_a"}
	_, cancel := r.Subscribe(key, rec.sink)
	defer cancel()

	deliver := func(text string, final bool) {
		require.NoError(t, r.Deliver("room", models.TranscriptSegment{ID: "1", Text: text, Final: final, ParticipantIdentity: "alice", TrackSID: "TR_a"}))
	}

	deliver("a", false)
	deliver("ab", false)
	deliver("abc", false) // over the limit
	require.Equal(t, 2, rec.count())
	require.Equal(t, "ab", rec.last()[0].Text)

	deliver("abcd", true)
	require.Equal(t, 3, rec.count())

	deliver("abcde", false) // stale partial after final
	require.Equal(t, 3, rec.count())
	require.Equal(t, "abcd", rec.last()[0].Text)
}

func TestRouter_CancelStopsDelivery(t *testing.T) {
	r := NewRouter(DefaultLimits())
	rec := &recordingSink{}
	key := Key{RoomID: "room", Identity: "alice", TrackSID: "TR_a"}
	_, cancel := r.Subscribe(key, rec.sink)

	cancel()
	cancel()

	require.NoError(t, r.Deliver("room", models.TranscriptSegment{ID: "1", ParticipantIdentity: "alice", TrackSID: "TR_a"}))
	require.Equal(t, 0, rec.count())
}

func TestRouter_RoomsAreIsolated(t *testing.T) {
	r := NewRouter(DefaultLimits())
	rec := &recordingSink{}
	_, cancel := r.Subscribe(Key{RoomID: "a", Identity: "alice", TrackSID: "TR"}, rec.sink)
	defer cancel()

	require.NoError(t, r.Deliver("b", models.TranscriptSegment{ID: "1", ParticipantIdentity: "alice", TrackSID: "TR"}))
	require.Equal(t, 0, rec.count())

	r.ForgetRoom("b")
	require.Equal(t, 1, r.Windows())
}

func TestRouter_RejectsInvalidSegments(t *testing.T) {
	r := NewRouter(DefaultLimits())

	require.ErrorIs(t, r.Deliver("room", models.TranscriptSegment{ParticipantIdentity: "alice"}), ErrMissingSegmentID)
	require.Error(t, r.Deliver("room", models.TranscriptSegment{ID: "1"}))
}

func TestRouter_ForgetRoomKeepsSubscribedWindows(t *testing.T) {
	r := NewRouter(DefaultLimits())
	require.NoError(t, r.Deliver("room", models.TranscriptSegment{ID: "old", ParticipantIdentity: "bob", TrackSID: "TR_b"}))

	rec := &recordingSink{}
	_, cancel := r.Subscribe(Key{RoomID: "room", Identity: "alice", TrackSID: "TR_a"}, rec.sink)
	defer cancel()

	r.ForgetRoom("room")
	require.Equal(t, 1, r.Windows())

	require.NoError(t, r.Deliver("room", models.TranscriptSegment{ID: "1", Text: "hi", ParticipantIdentity: "alice", TrackSID: "TR_a"}))
	require.Equal(t, 1, rec.count())
	require.Equal(t, "hi", rec.last()[0].Text)
}
