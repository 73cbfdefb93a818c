package network

// Message kinds form a closed set; anything outside it is dropped by the
// server as a no-op.
const (
	// client -> server
	MsgTypePing      = 1
	MsgTypeJoinRoom  = 101
	MsgTypeMove      = 201
	MsgTypeKick      = 202
	MsgTypeLeaderCmd = 203
	MsgTypeChat      = 204

	// server -> client
	MsgTypePong          = 2
	MsgTypeRoomState     = 301
	MsgTypeChatBroadcast = 302
	MsgTypeNewLeader     = 303
	MsgTypeTeamChanged   = 304
	MsgTypeGoal          = 305
	MsgTypeSound         = 306
	MsgTypePauseState    = 307
	MsgTypeRestart       = 308
)
