// room/manager.go
package room

import (
	"sync"

	"github.com/flatball/openfz/models"
	"github.com/flatball/openfz/timer"
)

// Manager owns the room-id -> Room mapping. It is the only component that
// creates or destroys rooms; everything else reaches rooms through it.
type Manager struct {
	rooms  map[string]*Room
	opts   Options
	timers *timer.Manager
	mutex  sync.RWMutex

	// OnGoal, when set before any room exists, is installed on every room
	// the manager creates (metrics hook).
	OnGoal func(roomID string, team models.Team)
}

func NewManager(opts Options, timers *timer.Manager) *Manager {
	return &Manager{
		rooms:  make(map[string]*Room),
		opts:   opts,
		timers: timers,
	}
}

// GetOrCreate returns the room for id, creating it with the given metadata
// and leader on first join. A freshly created room starts its loop here.
func (m *Manager) GetOrCreate(id, name, password, leaderID string, broadcaster Broadcaster) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if r, exists := m.rooms[id]; exists {
		return r
	}

	r := NewRoom(id, name, password, leaderID, m.opts, broadcaster)
	if m.OnGoal != nil {
		roomID := id
		r.OnGoal = func(team models.Team) {
			m.OnGoal(roomID, team)
		}
	}
	r.OnEmpty = func(roomID string) {
		m.RemoveRoom(roomID)
	}
	r.scheduleRealign = func() {
		// The callback fires after the goal pause; by then the room may
		// have been torn down, so membership is re-checked before the
		// command is posted.
		m.timers.Schedule(r.ID, m.opts.GoalPause, 0, func() {
			m.dispatch(r.ID, realignCmd{})
		})
	}
	m.rooms[id] = r
	go r.Run()
	return r
}

func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r, exists := m.rooms[id]
	return r, exists
}

// RemoveRoom closes a room, cancels its pending deferred tasks and drops it
// from the registry. Safe to call for ids that are already gone.
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if r, exists := m.rooms[id]; exists {
		r.Close()
		m.timers.CancelKey(id)
		delete(m.rooms, id)
	}
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// List returns the non-realtime room listing.
func (m *Manager) List() []models.RoomListing {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]models.RoomListing, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.Listing())
	}
	return out
}

// dispatch posts cmd to the room's inbox only if the room is still
// registered. Deferred callbacks go through here so a timer firing after
// teardown degrades to a no-op.
func (m *Manager) dispatch(id string, cmd interface{}) {
	m.mutex.RLock()
	r, exists := m.rooms[id]
	m.mutex.RUnlock()

	if !exists {
		return
	}
	r.post(cmd)
}
