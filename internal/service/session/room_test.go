package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"playground-transcript-feed/internal/models"
	"playground-transcript-feed/internal/service/merger"
	"playground-transcript-feed/internal/service/transcription"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type recordingPublisher struct {
	mu    sync.Mutex
	feeds [][]models.DisplayMessage
	chats []models.ChatMessage
}

func (p *recordingPublisher) PublishFeed(_ context.Context, _ string, feed []models.DisplayMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feeds = append(p.feeds, feed)
	return nil
}

func (p *recordingPublisher) PublishChat(_ context.Context, _ string, msg models.ChatMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chats = append(p.chats, msg)
	return nil
}

func (p *recordingPublisher) feedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.feeds)
}

func (p *recordingPublisher) lastFeed() []models.DisplayMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.feeds) == 0 {
		return nil
	}
	return p.feeds[len(p.feeds)-1]
}

type testRoom struct {
	*Room
	router *transcription.Router
	pub    *recordingPublisher
	now    *atomic.Int64
}

func startRoom(t *testing.T) testRoom {
	t.Helper()
	router := transcription.NewRouter(transcription.DefaultLimits())
	pub := &recordingPublisher{}
	now := &atomic.Int64{}

	room := NewRoom("room-1", router, pub, Config{
		Policy: merger.DefaultPolicy(),
		Clock:  now.Load,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = room.Run(ctx) }()
	t.Cleanup(func() {
		room.Close()
		cancel()
	})
	return testRoom{Room: room, router: router, pub: pub, now: now}
}

func mic(identity, name, trackSID string, local bool) models.Participant {
	return models.Participant{
		Identity:     identity,
		Name:         name,
		IsLocal:      local,
		Publications: []models.Publication{{TrackSID: trackSID, Source: models.SourceMicrophone}},
	}
}

func (tr testRoom) feed(t *testing.T) []models.DisplayMessage {
	t.Helper()
	feed, err := tr.Feed(context.Background())
	require.NoError(t, err)
	return feed
}

func (tr testRoom) waitFeed(t *testing.T, cond func([]models.DisplayMessage) bool) []models.DisplayMessage {
	t.Helper()
	var feed []models.DisplayMessage
	require.Eventually(t, func() bool {
		feed = tr.feed(t)
		return cond(feed)
	}, waitFor, tick)
	return feed
}

func TestRoom_PartialThenFinalKeepsTimestamp(t *testing.T) {
	tr := startRoom(t)
	ctx := context.Background()

	require.NoError(t, tr.SetRoster(ctx, []models.Participant{mic("me", "", "TR_me", true)}))

	tr.now.Store(100)
	require.NoError(t, tr.router.Deliver("room-1", models.TranscriptSegment{ID: "s1", Text: "hel", ParticipantIdentity: "me", TrackSID: "TR_me"}))
	tr.waitFeed(t, func(f []models.DisplayMessage) bool { return len(f) == 1 && f[0].Message == "hel ..." })

	tr.now.Store(150)
	require.NoError(t, tr.router.Deliver("room-1", models.TranscriptSegment{ID: "s1", Text: "hello", Final: true, ParticipantIdentity: "me", TrackSID: "TR_me"}))
	feed := tr.waitFeed(t, func(f []models.DisplayMessage) bool { return len(f) == 1 && f[0].Message == "hello" })

	require.Equal(t, models.DisplayMessage{
		ID:        "s1",
		Name:      "You",
		Message:   "hello",
		Timestamp: 100,
		IsSelf:    true,
		Kind:      models.KindTranscript,
	}, feed[0])
}

func TestRoom_SegmentsBufferedBeforeRoster(t *testing.T) {
	tr := startRoom(t)
	ctx := context.Background()

	require.NoError(t, tr.router.Deliver("room-1", models.TranscriptSegment{ID: "s1", Text: "early", Final: true, ParticipantIdentity: "alice", TrackSID: "TR_a"}))
	require.Empty(t, tr.feed(t))

	require.NoError(t, tr.SetRoster(ctx, []models.Participant{mic("alice", "Alice", "TR_a", false)}))

	feed := tr.feed(t)
	require.Len(t, feed, 1)
	require.Equal(t, "Alice", feed[0].Name)
	require.Equal(t, "early", feed[0].Message)
}

func TestRoom_Send(t *testing.T) {
	tr := startRoom(t)
	ctx := context.Background()
	require.NoError(t, tr.SetRoster(ctx, []models.Participant{mic("me", "Me", "TR_me", true)}))

	tr.now.Store(200)
	msg, err := tr.Send(ctx, "hi")
	require.NoError(t, err)
	require.Equal(t, "me", msg.SenderIdentity)
	require.Equal(t, int64(200), msg.Timestamp)
	require.NotEmpty(t, msg.ID)

	feed := tr.feed(t)
	require.Len(t, feed, 1)
	require.Equal(t, "You", feed[0].Name)
	require.True(t, feed[0].IsSelf)
	require.Equal(t, models.KindChat, feed[0].Kind)

	tr.pub.mu.Lock()
	defer tr.pub.mu.Unlock()
	require.Equal(t, []models.ChatMessage{msg}, tr.pub.chats)
}

func TestRoom_SendErrors(t *testing.T) {
	tr := startRoom(t)
	ctx := context.Background()

	_, err := tr.Send(ctx, "")
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = tr.Send(ctx, "hi")
	require.ErrorIs(t, err, ErrNoLocalParticipant)
}

func TestRoom_AppendChatAssignsID(t *testing.T) {
	tr := startRoom(t)

	msg, err := tr.AppendChat(context.Background(), models.ChatMessage{SenderIdentity: "ghost", Message: "boo", Timestamp: 5})
	require.NoError(t, err)
	require.Equal(t, "room-1-chat-1", msg.ID)

	feed := tr.feed(t)
	require.Len(t, feed, 1)
	require.Equal(t, "Unknown", feed[0].Name)
}

func TestRoom_IdenticalFeedNotRepublished(t *testing.T) {
	tr := startRoom(t)
	ctx := context.Background()

	_, err := tr.AppendChat(ctx, models.ChatMessage{Message: "one", Timestamp: 1})
	require.NoError(t, err)

	// A roster without microphones leaves the feed unchanged.
	require.NoError(t, tr.SetRoster(ctx, []models.Participant{{Identity: "viewer"}}))

	_, err = tr.AppendChat(ctx, models.ChatMessage{Message: "two", Timestamp: 2})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(tr.pub.lastFeed()) == 2 }, waitFor, tick)
	require.Equal(t, 2, tr.pub.feedCount())
}

func TestRoom_Watch(t *testing.T) {
	tr := startRoom(t)
	ctx := context.Background()

	ch, cancel, err := tr.Watch(ctx)
	require.NoError(t, err)

	require.Empty(t, <-ch)

	_, err = tr.AppendChat(ctx, models.ChatMessage{Message: "hello", Timestamp: 1})
	require.NoError(t, err)

	select {
	case feed := <-ch:
		require.Len(t, feed, 1)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for feed")
	}

	cancel()
	cancel()
	select {
	case _, open := <-ch:
		require.False(t, open)
	case <-time.After(waitFor):
		t.Fatal("watch channel not closed after cancel")
	}
}

func TestRoom_TrackChangeDropsOldSubscription(t *testing.T) {
	tr := startRoom(t)
	ctx := context.Background()

	require.NoError(t, tr.SetRoster(ctx, []models.Participant{mic("alice", "Alice", "TR_1", false)}))
	require.NoError(t, tr.router.Deliver("room-1", models.TranscriptSegment{ID: "s1", Text: "one", Final: true, ParticipantIdentity: "alice", TrackSID: "TR_1"}))
	tr.waitFeed(t, func(f []models.DisplayMessage) bool { return len(f) == 1 })

	require.NoError(t, tr.SetRoster(ctx, []models.Participant{mic("alice", "Alice", "TR_2", false)}))
	require.NoError(t, tr.router.Deliver("room-1", models.TranscriptSegment{ID: "s2", Text: "stale", Final: true, ParticipantIdentity: "alice", TrackSID: "TR_1"}))
	require.NoError(t, tr.router.Deliver("room-1", models.TranscriptSegment{ID: "s3", Text: "fresh", Final: true, ParticipantIdentity: "alice", TrackSID: "TR_2"}))

	feed := tr.waitFeed(t, func(f []models.DisplayMessage) bool { return len(f) == 2 })
	require.Equal(t, "s1", feed[0].ID)
	require.Equal(t, "s3", feed[1].ID)
}

func TestRoom_Close(t *testing.T) {
	tr := startRoom(t)
	ctx := context.Background()

	require.NoError(t, tr.SetRoster(ctx, []models.Participant{mic("alice", "", "TR_a", false)}))
	ch, _, err := tr.Watch(ctx)
	require.NoError(t, err)
	<-ch

	tr.Close()
	tr.Close()

	_, open := <-ch
	require.False(t, open)
	require.Equal(t, 0, tr.router.Windows())

	_, err = tr.Feed(ctx)
	require.ErrorIs(t, err, ErrRoomClosed)
	_, err = tr.AppendChat(ctx, models.ChatMessage{Message: "late"})
	require.ErrorIs(t, err, ErrRoomClosed)
}
