package board

import (
	"log"
	"sync"
	"time"
)

// Directory creates rooms lazily on first reference and keeps them for
// the process lifetime. "Room not found" cannot occur: referencing an
// unseen id creates it.
//
// Rooms otherwise accumulate forever, so the directory optionally runs an
// idle sweep: rooms with no connected users that have seen no activity
// for longer than ttl are evicted. A ttl of zero disables the sweep.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	ttl        time.Duration
	sweepEvery time.Duration
	done       chan struct{}
	stopOnce   sync.Once
}

func NewDirectory(ttl, sweepEvery time.Duration) *Directory {
	return &Directory{
		rooms:      make(map[string]*Room),
		ttl:        ttl,
		sweepEvery: sweepEvery,
		done:       make(chan struct{}),
	}
}

// Get returns the room for roomID, creating it on first reference.
func (d *Directory) Get(roomID string) *Room {
	d.mu.RLock()
	room, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if ok {
		return room
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// Re-check: another connection may have created it between locks.
	if room, ok = d.rooms[roomID]; ok {
		return room
	}
	room = NewRoom(roomID)
	d.rooms[roomID] = room
	log.Printf("room %q created (total: %d)", roomID, len(d.rooms))
	return room
}

// Len returns the number of live rooms.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// Start launches the idle sweep loop if eviction is enabled.
func (d *Directory) Start() {
	if d.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(d.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-d.done:
				return
			case <-ticker.C:
				d.Sweep(time.Now())
			}
		}
	}()
}

// Sweep evicts every empty room idle since before now-ttl. Exposed for
// tests; the loop started by Start calls it on each tick.
func (d *Directory) Sweep(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, room := range d.rooms {
		if room.UserCount() == 0 && now.Sub(room.LastActive()) > d.ttl {
			delete(d.rooms, id)
			log.Printf("room %q evicted after idle timeout", id)
		}
	}
}

// Stop halts the sweep loop. Safe to call multiple times.
func (d *Directory) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
}
