package room

import (
	"context"
	"log"
	"sync"
	"time"
)

// Registry maps room ids to their owned state bundles. Rooms are created
// lazily on first reference and evicted by the janitor once they have been
// empty past a grace period.
type Registry struct {
	ctx   context.Context
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(ctx context.Context) *Registry {
	return &Registry{
		ctx:   ctx,
		rooms: make(map[string]*Room),
	}
}

// Get returns the room for id, creating it (and starting its run loop) on
// first reference. Idempotent, never fails.
func (g *Registry) Get(id string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getLocked(id)
}

func (g *Registry) getLocked(id string) *Room {
	r, ok := g.rooms[id]
	if !ok {
		r = newRoom(g.ctx, id)
		g.rooms[id] = r
		go r.Run()
	}
	return r
}

// Join registers a member with a room. The pending-join count is raised
// under the registry lock so a concurrent eviction can never observe the
// room as idle while this join is still in flight.
func (g *Registry) Join(roomId string, m *Member) *Room {
	g.mu.Lock()
	r := g.getLocked(roomId)
	r.pendingJoins.Add(1)
	g.mu.Unlock()

	r.enqueue(joinCmd{member: m})
	return r
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// EvictIdle removes rooms that have had zero members and no in-flight joins
// for at least grace. The room's history is discarded with it; a later join
// with the same id gets a fresh room. Returns the number of rooms evicted.
func (g *Registry) EvictIdle(grace time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-grace).UnixNano()
	evicted := 0
	for id, r := range g.rooms {
		if r.memberCount.Load() != 0 || r.pendingJoins.Load() != 0 {
			continue
		}
		emptySince := r.emptySince.Load()
		if emptySince == 0 || emptySince > cutoff {
			continue
		}
		r.cancel()
		delete(g.rooms, id)
		evicted++
		log.Printf("Evicted idle room %s", id)
	}
	return evicted
}
