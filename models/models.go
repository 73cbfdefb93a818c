// models/models.go
package models

// Team identifies one side of the pitch. An empty value means spectator.
type Team string

const (
	TeamHome Team = "home"
	TeamAway Team = "away"
	TeamNone Team = ""
)

// Touch is a snapshot of a player's identity taken at the moment the
// player touched the ball. It is copied, never referenced, so a later
// team change or disconnect cannot rewrite a past touch.
type Touch struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Team     Team   `json:"team"`
}

// JoinRequest 加入房间请求
type JoinRequest struct {
	Nickname string `json:"nickname"`
	Skin     string `json:"skin"`
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName,omitempty"`
	Password string `json:"password,omitempty"`
}

// MoveRequest sets the movement direction. A nil angle stops the player.
type MoveRequest struct {
	Angle *float64 `json:"angle"`
}

type KickRequest struct {
	IsPass bool `json:"isPass"`
}

// LeaderCommand 房主指令
type LeaderCommand struct {
	Command  string `json:"command"` // setTeam | pause | restart
	Target   string `json:"target,omitempty"`
	Modifier Team   `json:"modifier,omitempty"`
}

type ChatRequest struct {
	Text string `json:"text"`
}

// PlayerState is the per-tick serialization of one player.
type PlayerState struct {
	ID       string   `json:"id"`
	Nickname string   `json:"nickname"`
	Skin     string   `json:"skin"`
	Radius   float64  `json:"radius"`
	Range    float64  `json:"range"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Team     Team     `json:"team"`
	Angle    *float64 `json:"angle"`
}

// PlayerChatEntity is the fuller serialization attached to chat and
// connection notices, matching what clients render in the chat log.
type PlayerChatEntity struct {
	ID           string   `json:"id"`
	Nickname     string   `json:"nickname"`
	Skin         string   `json:"skin"`
	Radius       float64  `json:"radius"`
	Mass         float64  `json:"mass"`
	Range        float64  `json:"range"`
	Angle        *float64 `json:"angle"`
	X            *float64 `json:"x"`
	Y            *float64 `json:"y"`
	Team         Team     `json:"team"`
	LastKickTime int64    `json:"lastKickTime"`
}

type BallState struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Radius    float64 `json:"radius"`
	VelocityX float64 `json:"velocityX"`
	VelocityY float64 `json:"velocityY"`
	Angle     float64 `json:"angle"`
	Active    bool    `json:"active"`
	Scorer    *Touch  `json:"scorer"`
	Assister  *Touch  `json:"assister"`
}

type Score struct {
	Home    int   `json:"home"`
	Away    int   `json:"away"`
	Elapsed int64 `json:"elapsed"`
}

type RoomMeta struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Leader string `json:"leader"`
	Paused bool   `json:"paused"`
}

// StateSnapshot 房间每 tick 广播的完整状态
type StateSnapshot struct {
	Room      RoomMeta               `json:"room"`
	Players   map[string]PlayerState `json:"players"`
	Ball      BallState              `json:"ball"`
	Score     Score                  `json:"score"`
	Timestamp int64                  `json:"timestamp"`
}

// ChatBroadcast wraps both user chat lines and join/leave notices; the
// latter carry a content of type "connection".
type ChatBroadcast struct {
	Entity  PlayerChatEntity `json:"entity"`
	Content ChatContent      `json:"content"`
}

type ChatContent struct {
	Type      string `json:"type"` // message | connection
	Text      string `json:"text,omitempty"`
	Connected *bool  `json:"connected,omitempty"`
}

type LeaderChanged struct {
	LeaderID string `json:"leaderId"`
}

type TeamChanged struct {
	PlayerID string   `json:"playerId"`
	Team     Team     `json:"team"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
}

type GoalScored struct {
	Team     Team   `json:"team"`
	Scorer   *Touch `json:"scorer"`
	Assister *Touch `json:"assister"`
}

type SoundCue struct {
	SoundType string `json:"soundType"` // kick | post
}

type PauseState struct {
	Paused bool `json:"paused"`
}

// RoomListing 房间列表条目（非实时查询接口）
type RoomListing struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Password bool   `json:"password"`
	Count    int    `json:"count"`
}
