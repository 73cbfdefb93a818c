package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/flatball/openfz/broadcast"
	"github.com/flatball/openfz/logger"
	"github.com/flatball/openfz/models"
	"github.com/flatball/openfz/monitor"
	"github.com/flatball/openfz/network"
	"github.com/flatball/openfz/room"
	"github.com/flatball/openfz/session"
)

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	mon            *monitor.Monitor
	shutdownChan   chan struct{}
}

func NewGameServer(addr string, roomManager *room.Manager, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		addr:           addr,
		roomManager:    roomManager,
		sessionManager: session.NewManager(),
		mon:            mon,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.broadcaster = broadcast.NewRoomBroadcaster(roomManager, s.sessionManager)

	roomManager.OnGoal = func(roomID string, team models.Team) {
		mon.IncGoalsScored()
	}

	return s
}

func (s *GameServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/rooms", s.handleRoomList)

	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, mux)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
}

// handleRoomList serves the non-realtime room listing: id, name, whether a
// password is set, and the player count.
func (s *GameServer) handleRoomList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.roomManager.List()); err != nil {
		logger.Log.Errorf("Failed to encode room list: %v", err)
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.mon.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.detachFromRoom(sess)
		s.sessionManager.Remove(sess.GetID())
		s.mon.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			if !s.handlePacket(sess, packet) {
				return
			}
		}
	}
}

// detachFromRoom removes the session's player from its room, if any. The
// room notices an empty player set itself and asks the manager to delete it.
func (s *GameServer) detachFromRoom(sess *session.Session) {
	roomID := sess.GetRoom()
	if roomID == "" {
		return
	}
	if r, exists := s.roomManager.GetRoom(roomID); exists {
		r.Leave(sess.GetID())
	}
	sess.SetRoom("")
}

// handlePacket dispatches one inbound message. It returns false when the
// connection must be dropped (malformed join).
func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) bool {
	start := time.Now()
	s.mon.IncMessagesReceived()
	defer func() {
		s.mon.ObserveMessageLatency(time.Since(start))
	}()

	switch packet.MsgID {
	case network.MsgTypePing:
		sess.Send(network.MsgTypePong, nil)
	case network.MsgTypeJoinRoom:
		return s.handleJoinRoom(sess, packet)
	case network.MsgTypeMove:
		s.handleMove(sess, packet)
	case network.MsgTypeKick:
		s.handleKick(sess, packet)
	case network.MsgTypeLeaderCmd:
		s.handleLeaderCommand(sess, packet)
	case network.MsgTypeChat:
		s.handleChat(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
	return true
}

// handleJoinRoom creates the room on first join and adds the player. A
// malformed payload rejects the connection outright; no partial room state
// is left behind.
func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) bool {
	var req models.JoinRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return false
	}
	if req.RoomID == "" || req.Nickname == "" {
		return false
	}

	// A session re-joining from inside another room detaches first.
	if sess.GetRoom() != "" {
		s.detachFromRoom(sess)
	}

	sess.Nickname = req.Nickname
	sess.Skin = req.Skin

	r := s.roomManager.GetOrCreate(req.RoomID, req.RoomName, req.Password, sess.GetID(), s.broadcaster)
	sess.SetRoom(req.RoomID)
	r.Join(sess.GetID(), req.Nickname, req.Skin)

	logger.Log.Infof("Session %s joined room %s", sess.GetID(), req.RoomID)
	return true
}

func (s *GameServer) handleMove(sess *session.Session, packet *network.Packet) {
	r, exists := s.boundRoom(sess)
	if !exists {
		return
	}
	var req models.MoveRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	r.Move(sess.GetID(), req.Angle)
}

func (s *GameServer) handleKick(sess *session.Session, packet *network.Packet) {
	r, exists := s.boundRoom(sess)
	if !exists {
		return
	}
	var req models.KickRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	r.Kick(sess.GetID(), req.IsPass)
}

// handleLeaderCommand forwards a leader command. Requests from anyone but
// the current leader are dropped without a reply.
func (s *GameServer) handleLeaderCommand(sess *session.Session, packet *network.Packet) {
	r, exists := s.boundRoom(sess)
	if !exists {
		return
	}
	if sess.GetID() != r.LeaderID() {
		return
	}
	var cmd models.LeaderCommand
	if err := json.Unmarshal(packet.Data, &cmd); err != nil {
		return
	}
	r.Leader(sess.GetID(), cmd)
}

func (s *GameServer) handleChat(sess *session.Session, packet *network.Packet) {
	r, exists := s.boundRoom(sess)
	if !exists {
		return
	}
	var req models.ChatRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	r.Chat(sess.GetID(), req.Text)
}

func (s *GameServer) boundRoom(sess *session.Session) (*room.Room, bool) {
	roomID := sess.GetRoom()
	if roomID == "" {
		return nil, false
	}
	return s.roomManager.GetRoom(roomID)
}
