// Package session runs one transcript feed per conferencing room. A Room
// serializes roster, transcription and chat updates on a single event loop
// and republishes the merged feed whenever it changes.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"playground-transcript-feed/internal/models"
	"playground-transcript-feed/internal/observability/logging"
	"playground-transcript-feed/internal/observability/metrics"
	"playground-transcript-feed/internal/service/merger"
	"playground-transcript-feed/internal/service/panel"
	"playground-transcript-feed/internal/service/roster"
	"playground-transcript-feed/internal/service/segment"
	"playground-transcript-feed/internal/service/transcription"
)

var (
	// ErrRoomClosed is returned by operations on a room that has shut down.
	ErrRoomClosed = errors.New("room closed")
	// ErrNoLocalParticipant is returned by Send before the roster names a
	// local participant.
	ErrNoLocalParticipant = errors.New("room has no local participant")
	// ErrEmptyMessage is returned by Send for blank messages.
	ErrEmptyMessage = errors.New("message is empty")
)

// Chat origins, as recorded in metrics.
const (
	OriginLocal  = "local"
	OriginRemote = "remote"
)

// Publisher receives every feed change and every locally sent chat message.
type Publisher interface {
	PublishFeed(ctx context.Context, roomID string, feed []models.DisplayMessage) error
	PublishChat(ctx context.Context, roomID string, msg models.ChatMessage) error
}

type nopPublisher struct{}

func (nopPublisher) PublishFeed(context.Context, string, []models.DisplayMessage) error { return nil }
func (nopPublisher) PublishChat(context.Context, string, models.ChatMessage) error      { return nil }

// Config holds per-room settings.
type Config struct {
	Policy     merger.Policy
	Clock      merger.Clock
	OutboxSize int // Feed snapshots queued for the publisher before dropping
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Policy:     merger.DefaultPolicy(),
		OutboxSize: 64,
	}
}

// Info summarizes a room for listings.
type Info struct {
	ID            string `json:"id"`
	Participants  int    `json:"participants"`
	Subscriptions int    `json:"subscriptions"`
	ChatMessages  int    `json:"chatMessages"`
	FeedSize      int    `json:"feedSize"`
}

// Room is one conferencing room's feed session.
type Room struct {
	id        string
	provider  transcription.Provider
	publisher Publisher
	merger    *merger.Merger
	panel     *panel.Panel
	chatIDs   *segment.Generator
	clock     merger.Clock
	metrics   *metrics.Metrics
	log       zerolog.Logger

	ops       chan func()
	outbox    chan []models.DisplayMessage
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	running   atomic.Bool

	// Owned by the event loop.
	reconciler  *roster.Reconciler
	roster      []models.Participant
	segments    map[string][]models.TranscriptSegment
	chat        []models.ChatMessage
	feed        []models.DisplayMessage
	watchers    map[uint64]chan []models.DisplayMessage
	nextWatcher uint64
}

// NewRoom creates a room. Nothing happens until Run is called.
func NewRoom(id string, provider transcription.Provider, publisher Publisher, cfg Config) *Room {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = DefaultConfig().OutboxSize
	}
	clock := cfg.Clock
	opts := []merger.Option{merger.WithLogger(logging.WithRoom("merger", id))}
	if clock != nil {
		opts = append(opts, merger.WithClock(clock))
	}

	r := &Room{
		id:        id,
		provider:  provider,
		publisher: publisher,
		merger:    merger.New(cfg.Policy, opts...),
		panel:     panel.NewDefault(),
		chatIDs:   segment.New("chat"),
		clock:     clock,
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithRoom("session", id),
		ops:       make(chan func(), 64),
		outbox:    make(chan []models.DisplayMessage, cfg.OutboxSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		segments:  map[string][]models.TranscriptSegment{},
		watchers:  map[uint64]chan []models.DisplayMessage{},
	}
	r.reconciler = roster.NewReconciler(r.subscribe)
	return r
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Panel returns the room's configuration panel.
func (r *Room) Panel() *panel.Panel { return r.panel }

// Run processes room operations until ctx ends or Close is called.
func (r *Room) Run(ctx context.Context) error {
	r.running.Store(true)
	defer close(r.stopped)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.drainOutbox(context.WithoutCancel(ctx))
	}()

	r.log.Info().Msg("Room session started")

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		case <-r.done:
			break loop
		case op := <-r.ops:
			op()
		}
	}

	r.teardown()
	close(r.outbox)
	wg.Wait()

	r.log.Info().Msg("Room session stopped")
	return err
}

// Close stops the event loop and waits for it to finish once the loop has
// been started.
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.done) })
	if r.running.Load() {
		<-r.stopped
	}
}

// Done is closed once the event loop has stopped.
func (r *Room) Done() <-chan struct{} { return r.stopped }

func (r *Room) teardown() {
	r.reconciler.Close()
	r.merger.Reset()
	if r.provider != nil {
		r.provider.ForgetRoom(r.id)
	}
	for id, ch := range r.watchers {
		close(ch)
		delete(r.watchers, id)
	}
}

// call runs fn on the event loop and waits for it.
func (r *Room) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case r.ops <- func() { fn(); close(finished) }:
	case <-r.done:
		return ErrRoomClosed
	case <-r.stopped:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-r.stopped:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn on the event loop without waiting for it to run.
func (r *Room) post(fn func()) {
	select {
	case r.ops <- fn:
	case <-r.done:
	case <-r.stopped:
	}
}

// subscribe is the reconciler's SubscribeFunc. It runs on the event loop.
func (r *Room) subscribe(identity, trackSID string) ([]models.TranscriptSegment, func()) {
	if r.provider == nil {
		return nil, func() {}
	}
	key := transcription.Key{RoomID: r.id, Identity: identity, TrackSID: trackSID}
	return r.provider.Subscribe(key, func(segs []models.TranscriptSegment) {
		r.post(func() { r.applySegments(identity, trackSID, segs) })
	})
}

func (r *Room) applySegments(identity, trackSID string, segs []models.TranscriptSegment) {
	// Deliveries queued before an unsubscribe are stale.
	if cur, ok := r.reconciler.Current(identity); !ok || cur != trackSID {
		partLog := logging.WithParticipant(r.id, identity)
		partLog.Debug().Str("trackSid", trackSID).Msg("Dropping stale transcription delivery")
		return
	}
	r.segments[identity] = segs
	r.recompute()
}

// SetRoster replaces the participant list and reconciles transcription
// subscriptions against it.
func (r *Room) SetRoster(ctx context.Context, participants []models.Participant) error {
	participants = slices.Clone(participants)
	return r.call(ctx, func() {
		r.roster = participants
		diff := r.reconciler.Reconcile(participants)
		for _, identity := range diff.Removed {
			delete(r.segments, identity)
		}
		for identity, snapshot := range diff.Snapshots {
			r.segments[identity] = snapshot
		}
		if !diff.Empty() {
			r.log.Debug().
				Strs("added", diff.Added).
				Strs("removed", diff.Removed).
				Strs("changed", diff.Changed).
				Int("subscriptions", r.reconciler.Len()).
				Msg("Transcription subscriptions reconciled")
		}
		r.recompute()
	})
}

// DeliverSegments replaces the segment set of a participant directly,
// bypassing the provider. Used when a bridge pushes whole sets.
func (r *Room) DeliverSegments(ctx context.Context, identity string, segs []models.TranscriptSegment) error {
	segs = slices.Clone(segs)
	return r.call(ctx, func() {
		r.segments[identity] = segs
		r.recompute()
	})
}

// AppendChat adds a received chat message to the log. Messages without an
// id get a room-scoped one.
func (r *Room) AppendChat(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	if msg.ID == "" {
		msg.ID = r.chatIDs.Next(r.id)
	}
	err := r.call(ctx, func() {
		r.chat = append(r.chat, msg)
		r.recompute()
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	r.metrics.RecordChatMessage(OriginRemote)
	return msg, nil
}

// Send appends a chat message from the local participant, stamped now, and
// hands it to the publisher.
func (r *Room) Send(ctx context.Context, text string) (models.ChatMessage, error) {
	if text == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}

	var (
		msg     models.ChatMessage
		sendErr error
	)
	err := r.call(ctx, func() {
		local, ok := r.localParticipant()
		if !ok {
			sendErr = ErrNoLocalParticipant
			return
		}
		msg = models.ChatMessage{
			ID:             uuid.NewString(),
			SenderIdentity: local.Identity,
			Message:        text,
			Timestamp:      r.now(),
		}
		r.chat = append(r.chat, msg)
		r.recompute()
	})
	if err == nil {
		err = sendErr
	}
	if err != nil {
		return models.ChatMessage{}, err
	}

	r.metrics.RecordChatMessage(OriginLocal)
	if err := r.publisher.PublishChat(ctx, r.id, msg); err != nil {
		r.log.Error().Err(err).Str("chatId", msg.ID).Msg("Failed to publish chat message")
	}
	return msg, nil
}

func (r *Room) localParticipant() (models.Participant, bool) {
	for _, p := range r.roster {
		if p.IsLocal {
			return p, true
		}
	}
	return models.Participant{}, false
}

func (r *Room) now() int64 {
	if r.clock != nil {
		return r.clock()
	}
	return merger.SystemClock()
}

// Feed returns the current merged feed.
func (r *Room) Feed(ctx context.Context) ([]models.DisplayMessage, error) {
	var feed []models.DisplayMessage
	err := r.call(ctx, func() { feed = slices.Clone(r.feed) })
	return feed, err
}

// Info returns a summary of the room.
func (r *Room) Info(ctx context.Context) (Info, error) {
	var info Info
	err := r.call(ctx, func() {
		info = Info{
			ID:            r.id,
			Participants:  len(r.roster),
			Subscriptions: r.reconciler.Len(),
			ChatMessages:  len(r.chat),
			FeedSize:      len(r.feed),
		}
	})
	return info, err
}

// Watch returns a channel that receives the current feed and then every
// change. A slow watcher only sees the latest feed. The channel is closed
// by cancel or when the room closes.
func (r *Room) Watch(ctx context.Context) (<-chan []models.DisplayMessage, func(), error) {
	ch := make(chan []models.DisplayMessage, 1)
	var id uint64
	err := r.call(ctx, func() {
		r.nextWatcher++
		id = r.nextWatcher
		r.watchers[id] = ch
		ch <- slices.Clone(r.feed)
	})
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.post(func() {
				if c, ok := r.watchers[id]; ok {
					close(c)
					delete(r.watchers, id)
				}
			})
		})
	}
	return ch, cancel, nil
}

// recompute runs on the event loop after every mutation.
func (r *Room) recompute() {
	feed := r.merger.Recompute(merger.Inputs{
		Roster:   r.roster,
		Segments: r.segments,
		Chat:     r.chat,
	})
	if slices.Equal(feed, r.feed) {
		return
	}
	r.feed = feed

	for _, ch := range r.watchers {
		offer(ch, slices.Clone(feed))
	}

	select {
	case r.outbox <- feed:
	default:
		r.log.Warn().Int("feedSize", len(feed)).Msg("Feed outbox full, dropping snapshot")
	}
}

// offer replaces any unread value so the watcher only sees the latest feed.
func offer(ch chan []models.DisplayMessage, feed []models.DisplayMessage) {
	select {
	case ch <- feed:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- feed:
	default:
	}
}

func (r *Room) drainOutbox(ctx context.Context) {
	for feed := range r.outbox {
		if err := r.publisher.PublishFeed(ctx, r.id, feed); err != nil {
			r.log.Error().Err(err).Int("feedSize", len(feed)).Msg("Failed to publish feed")
		}
	}
}
