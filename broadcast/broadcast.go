// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/flatball/openfz/logger"
	"github.com/flatball/openfz/room"
	"github.com/flatball/openfz/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// Broadcaster fans a message out to every session bound to a room.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
}

// RoomBroadcaster resolves room membership through the session manager: a
// session whose RoomID matches receives the message. A failed send is
// skipped; the read loop notices the dead connection and tears it down.
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	if _, exists := b.roomManager.GetRoom(roomID); !exists {
		return ErrRoomNotFound
	}

	for _, s := range b.sessionManager.InRoom(roomID) {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Debugf("broadcast to session %s failed: %v", s.GetID(), err)
		}
	}
	return nil
}
