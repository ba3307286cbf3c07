package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"playground-transcript-feed/internal/observability/logging"
	"playground-transcript-feed/internal/observability/metrics"
	"playground-transcript-feed/internal/service/transcription"
)

// ErrRegistryClosed is returned by GetOrCreate after Close.
var ErrRegistryClosed = errors.New("room registry closed")

// Registry creates rooms on demand and owns their event loops.
type Registry struct {
	mu        sync.Mutex
	rooms     map[string]*Room
	closed    bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	provider  transcription.Provider
	publisher Publisher
	cfg       Config
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewRegistry creates a registry whose rooms run until ctx ends or Close.
func NewRegistry(ctx context.Context, provider transcription.Provider, publisher Publisher, cfg Config) *Registry {
	ctx, cancel := context.WithCancel(ctx)
	return &Registry{
		rooms:     map[string]*Room{},
		ctx:       ctx,
		cancel:    cancel,
		provider:  provider,
		publisher: publisher,
		cfg:       cfg,
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("registry"),
	}
}

// GetOrCreate returns the room with the given id, starting it if needed.
func (g *Registry) GetOrCreate(id string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrRegistryClosed
	}
	if room, ok := g.rooms[id]; ok {
		return room, nil
	}

	room := NewRoom(id, g.provider, g.publisher, g.cfg)
	g.rooms[id] = room
	g.metrics.RecordRoomOpened()

	// Close must wait for this loop even if it has not been scheduled yet.
	room.running.Store(true)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := room.Run(g.ctx); err != nil && !errors.Is(err, context.Canceled) {
			g.log.Error().Err(err).Str("roomId", id).Msg("Room session ended with error")
		}
		g.forget(id, room)
	}()

	g.log.Info().Str("roomId", id).Msg("Room opened")
	return room, nil
}

func (g *Registry) forget(id string, room *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.rooms[id]; ok && cur == room {
		delete(g.rooms, id)
		g.metrics.RecordRoomClosed()
		g.log.Info().Str("roomId", id).Msg("Room closed")
	}
}

// Get returns an existing room.
func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[id]
	return room, ok
}

// IDs returns the open room ids in sorted order.
func (g *Registry) IDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove closes a room and waits for it to stop. It reports whether the
// room existed.
func (g *Registry) Remove(id string) bool {
	room, ok := g.Get(id)
	if !ok {
		return false
	}
	room.Close()
	g.forget(id, room)
	return true
}

// Close stops every room and waits for all event loops to exit.
func (g *Registry) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.cancel()
	g.wg.Wait()
}
