// room/room.go
package room

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/flatball/openfz/game"
	"github.com/flatball/openfz/logger"
	"github.com/flatball/openfz/models"
	"github.com/flatball/openfz/network"
)

// ChatMaxLen caps chat text before it is broadcast.
const ChatMaxLen = 128

// Options carries the process-level match tuning every room is created with.
type Options struct {
	TickRate  int
	WinScore  int
	GoalPause time.Duration
}

func DefaultOptions() Options {
	return Options{
		TickRate:  60,
		WinScore:  5,
		GoalPause: 5 * time.Second,
	}
}

// Inbound commands. Every mutation of room state flows through the inbox as
// one of these variants and is applied by the room's own goroutine, so the
// simulation has exactly one writer.
type joinCmd struct {
	PlayerID string
	Nickname string
	Skin     string
}

type leaveCmd struct {
	PlayerID string
}

type moveCmd struct {
	PlayerID string
	Angle    *float64
}

type kickCmd struct {
	PlayerID string
	IsPass   bool
}

type chatCmd struct {
	PlayerID string
	Text     string
}

type leaderCmd struct {
	SenderID string
	Command  models.LeaderCommand
}

// realignCmd ends the post-goal pause. It is posted by the deferred timer
// after the manager has re-validated that the room still exists.
type realignCmd struct{}

// Room 是一场比赛的核心结构，独占它的球、球员集合和 tick 驱动
type Room struct {
	ID       string
	Name     string
	Password string

	players map[string]*game.Player
	order   []string // join order; drives leader election and collision enumeration
	ball    *game.Ball
	score   models.Score
	paused  bool

	leaderID string
	opts     Options

	broadcaster Broadcaster
	inbox       chan interface{}
	closeChan   chan struct{}
	closeOnce   sync.Once
	ticker      *time.Ticker

	// statusMutex guards the fields read from outside the room goroutine
	// (listing, leader checks). All writes still happen on the loop.
	statusMutex sync.RWMutex
	playerCount int

	// OnEmpty is invoked from the room goroutine when the last player
	// leaves. Room deletion itself is the manager's responsibility.
	OnEmpty func(id string)

	// OnGoal is an optional observer hook for scored goals.
	OnGoal func(team models.Team)

	// scheduleRealign defers the post-goal reset; installed by the manager
	// so the callback is validated against registry membership at fire time.
	scheduleRealign func()
}

// NewRoom creates a room with the given creator as leader. The caller is
// expected to start the loop with go r.Run().
func NewRoom(id, name, password, leaderID string, opts Options, broadcaster Broadcaster) *Room {
	return &Room{
		ID:          id,
		Name:        name,
		Password:    password,
		leaderID:    leaderID,
		players:     make(map[string]*game.Player),
		ball:        game.NewBall(),
		opts:        opts,
		broadcaster: broadcaster,
		inbox:       make(chan interface{}, 256),
		closeChan:   make(chan struct{}),
	}
}

// Run is the room's main loop. The tick channel is nil while the driver is
// stopped, so an idle room only reacts to commands.
func (r *Room) Run() {
	for {
		var tickC <-chan time.Time
		if r.ticker != nil {
			tickC = r.ticker.C
		}

		select {
		case <-r.closeChan:
			r.stopDriver()
			return
		case cmd := <-r.inbox:
			r.handleCommand(cmd)
		case <-tickC:
			if !r.paused {
				r.tick()
			}
		}
	}
}

// Close stops the loop. Idempotent.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.closeChan)
	})
}

func (r *Room) post(cmd interface{}) {
	select {
	case r.inbox <- cmd:
	case <-r.closeChan:
	}
}

// --- intents posted by the server ---

func (r *Room) Join(playerID, nickname, skin string) {
	r.post(joinCmd{PlayerID: playerID, Nickname: nickname, Skin: skin})
}

func (r *Room) Leave(playerID string) {
	r.post(leaveCmd{PlayerID: playerID})
}

func (r *Room) Move(playerID string, angle *float64) {
	r.post(moveCmd{PlayerID: playerID, Angle: angle})
}

func (r *Room) Kick(playerID string, isPass bool) {
	r.post(kickCmd{PlayerID: playerID, IsPass: isPass})
}

func (r *Room) Chat(playerID, text string) {
	r.post(chatCmd{PlayerID: playerID, Text: text})
}

// Leader posts a leader command. Authorization against the current leader
// happens in the loop so a concurrent re-election cannot be raced.
func (r *Room) Leader(senderID string, command models.LeaderCommand) {
	r.post(leaderCmd{SenderID: senderID, Command: command})
}

// --- thread-safe accessors for the registry and listing surface ---

func (r *Room) PlayerCount() int {
	r.statusMutex.RLock()
	defer r.statusMutex.RUnlock()
	return r.playerCount
}

func (r *Room) LeaderID() string {
	r.statusMutex.RLock()
	defer r.statusMutex.RUnlock()
	return r.leaderID
}

func (r *Room) Listing() models.RoomListing {
	return models.RoomListing{
		ID:       r.ID,
		Name:     r.Name,
		Password: r.Password != "",
		Count:    r.PlayerCount(),
	}
}

// --- command handling (room goroutine only below this point) ---

func (r *Room) handleCommand(cmd interface{}) {
	switch c := cmd.(type) {
	case joinCmd:
		r.addPlayer(c.PlayerID, c.Nickname, c.Skin)
	case leaveCmd:
		r.removePlayer(c.PlayerID)
	case moveCmd:
		r.setAngle(c.PlayerID, c.Angle)
	case kickCmd:
		r.kick(c.PlayerID, c.IsPass)
	case chatCmd:
		r.chat(c.PlayerID, c.Text)
	case leaderCmd:
		if c.SenderID != r.leaderID {
			return
		}
		r.handleLeaderCommand(c.Command)
	case realignCmd:
		r.finishGoalPause()
	}
}

func (r *Room) addPlayer(playerID, nickname, skin string) {
	player := game.NewPlayer(playerID, nickname, skin)
	r.players[playerID] = player
	r.order = append(r.order, playerID)
	r.setPlayerCount(len(r.players))

	r.broadcastConnection(player, true)

	if r.ticker == nil {
		r.startDriver()
	} else {
		r.broadcastState()
	}
}

func (r *Room) removePlayer(playerID string) {
	player, exists := r.players[playerID]
	if !exists {
		return
	}

	// Capture the chat entity before the player is gone.
	entity := player.ChatEntity()
	delete(r.players, playerID)
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.setPlayerCount(len(r.players))

	r.broadcast(models.ChatBroadcast{
		Entity:  entity,
		Content: connectionContent(false),
	}, network.MsgTypeChatBroadcast)

	if len(r.players) == 0 {
		r.stopDriver()
		if r.OnEmpty != nil {
			r.OnEmpty(r.ID)
		}
		return
	}

	if playerID == r.leaderID {
		r.electNewLeader()
	}
	r.broadcastState()
}

func (r *Room) electNewLeader() {
	r.statusMutex.Lock()
	r.leaderID = r.order[0]
	r.statusMutex.Unlock()

	r.broadcast(models.LeaderChanged{LeaderID: r.order[0]}, network.MsgTypeNewLeader)
}

func (r *Room) setAngle(playerID string, angle *float64) {
	player, exists := r.players[playerID]
	if !exists || player.Team == models.TeamNone || !player.Fielded() {
		return
	}
	player.Angle = angle
}

func (r *Room) kick(playerID string, isPass bool) {
	player, exists := r.players[playerID]
	if !exists {
		return
	}
	if player.Kick(r.ball, isPass) {
		r.broadcast(models.SoundCue{SoundType: "kick"}, network.MsgTypeSound)
	}
}

func (r *Room) chat(playerID, text string) {
	player, exists := r.players[playerID]
	if !exists || text == "" {
		return
	}
	if len(text) > ChatMaxLen {
		text = text[:ChatMaxLen]
	}
	r.broadcast(models.ChatBroadcast{
		Entity:  player.ChatEntity(),
		Content: models.ChatContent{Type: "message", Text: text},
	}, network.MsgTypeChatBroadcast)
}

// --- tick pipeline ---

func (r *Room) startDriver() {
	if r.ticker != nil {
		return
	}
	r.paused = false
	r.ticker = time.NewTicker(time.Second / time.Duration(r.opts.TickRate))
}

func (r *Room) stopDriver() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

// tick advances the simulation one frame: ball physics, goal-post
// collisions, pairwise entity collisions, player movement, then one
// snapshot broadcast. The order is fixed.
func (r *Room) tick() {
	r.ball.Update(r)
	r.handleGoalPostCollisions()
	r.handleEntityCollisions()
	for _, id := range r.order {
		r.players[id].UpdatePosition()
	}
	r.broadcastState()
}

func (r *Room) handleGoalPostCollisions() {
	for _, post := range game.GoalPosts() {
		postPos := post

		for _, id := range r.order {
			player := r.players[id]
			if !game.CirclesOverlap(player.Pos, player.Radius, &postPos, game.GoalPostRadius) {
				continue
			}
			angle := math.Atan2(player.Pos.Y-postPos.Y, player.Pos.X-postPos.X)
			player.Pos.X = postPos.X + math.Cos(angle)*(game.GoalPostRadius+player.Radius)
			player.Pos.Y = postPos.Y + math.Sin(angle)*(game.GoalPostRadius+player.Radius)
		}

		if game.CirclesOverlap(&r.ball.Pos, r.ball.Radius, &postPos, game.GoalPostRadius) {
			angle := math.Atan2(r.ball.Pos.Y-postPos.Y, r.ball.Pos.X-postPos.X)
			r.ball.Pos.X = postPos.X + math.Cos(angle)*(game.GoalPostRadius+r.ball.Radius)
			r.ball.Pos.Y = postPos.Y + math.Sin(angle)*(game.GoalPostRadius+r.ball.Radius)

			// Reflect velocity about the post normal, with energy loss.
			normalX := math.Cos(angle)
			normalY := math.Sin(angle)
			dot := r.ball.Vel.X*normalX + r.ball.Vel.Y*normalY
			r.ball.Vel.X -= 2 * dot * normalX
			r.ball.Vel.Y -= 2 * dot * normalY
			r.ball.Vel.X *= 0.5
			r.ball.Vel.Y *= 0.5

			r.broadcast(models.SoundCue{SoundType: "post"}, network.MsgTypeSound)
		}
	}
}

// handleEntityCollisions resolves player/player and player/ball overlaps in
// join order. There is no convergence pass; a simultaneous three-body
// overlap can leave residual overlap for one frame.
func (r *Room) handleEntityCollisions() {
	for i := 0; i < len(r.order); i++ {
		p1 := r.players[r.order[i]]
		if !p1.Fielded() {
			continue
		}

		for j := i + 1; j < len(r.order); j++ {
			p2 := r.players[r.order[j]]
			if !p2.Fielded() {
				continue
			}
			if !game.CirclesOverlap(p1.Pos, p1.Radius, p2.Pos, p2.Radius) {
				continue
			}
			push := game.ResolveOverlap(*p1.Pos, p1.Radius, p1.Mass, *p2.Pos, p2.Radius, p2.Mass)
			p1.Pos.X -= push.X / 2
			p1.Pos.Y -= push.Y / 2
			p2.Pos.X += push.X / 2
			p2.Pos.Y += push.Y / 2
		}

		if game.CirclesOverlap(p1.Pos, p1.Radius, &r.ball.Pos, r.ball.Radius) {
			push := game.ResolveOverlap(*p1.Pos, p1.Radius, p1.Mass, r.ball.Pos, r.ball.Radius, r.ball.Mass)
			r.ball.Pos.X += push.X
			r.ball.Pos.Y += push.Y
			// The player absorbs only a quarter of the impact.
			p1.Pos.X -= push.X / 4
			p1.Pos.Y -= push.Y / 4

			angle := math.Atan2(push.Y, push.X)
			r.ball.Vel.X = (r.ball.Vel.X + math.Cos(angle)*r.ball.Accel*1.65) * 0.95
			r.ball.Vel.Y = (r.ball.Vel.Y + math.Sin(angle)*r.ball.Accel*1.65) * 0.95

			r.ball.RecordTouch(p1.Touch())
		}
	}
}

// --- goals ---

// HandleGoal implements game.GoalHandler. A goal while the ball is already
// inactive is a no-op, which keeps one overlap from scoring twice.
func (r *Room) HandleGoal(team models.Team) {
	if !r.ball.Active {
		return
	}

	r.ball.Active = false
	switch team {
	case models.TeamHome:
		r.score.Home++
	case models.TeamAway:
		r.score.Away++
	}

	r.broadcast(models.GoalScored{
		Team:     team,
		Scorer:   r.ball.Scorer,
		Assister: r.ball.Assister,
	}, network.MsgTypeGoal)

	if r.OnGoal != nil {
		r.OnGoal(team)
	}

	if r.scheduleRealign != nil {
		r.scheduleRealign()
	}
}

// finishGoalPause runs after the goal-pause delay: end the match if a side
// reached the winning score, then put everyone back on their slots.
func (r *Room) finishGoalPause() {
	if r.score.Home >= r.opts.WinScore || r.score.Away >= r.opts.WinScore {
		r.score.Home = 0
		r.score.Away = 0
		r.score.Elapsed = 0
	}
	r.realignment()
	r.ball.Active = true
	r.broadcastState()
}

// realignment repositions every fielded player onto its team slot in join
// order and resets the ball. Spectators stay off the pitch.
func (r *Room) realignment() {
	r.ball.Reset()

	homeCount := 0
	awayCount := 0
	for _, id := range r.order {
		player := r.players[id]
		switch player.Team {
		case models.TeamHome:
			player.SetTeam(models.TeamHome, homeCount)
			homeCount++
		case models.TeamAway:
			player.SetTeam(models.TeamAway, awayCount)
			awayCount++
		default:
			player.SetTeam(models.TeamNone, 0)
		}
	}
}

// --- leader commands ---

func (r *Room) handleLeaderCommand(cmd models.LeaderCommand) {
	switch cmd.Command {
	case "setTeam":
		r.setTeam(cmd.Target, cmd.Modifier)
	case "pause":
		r.paused = !r.paused
		if !r.paused && r.ticker == nil {
			r.startDriver()
		}
		r.broadcast(models.PauseState{Paused: r.paused}, network.MsgTypePauseState)
	case "restart":
		r.score.Home = 0
		r.score.Away = 0
		r.score.Elapsed = 0
		r.realignment()
		r.paused = false
		r.ball.Active = true
		r.broadcast(nil, network.MsgTypeRestart)
		r.broadcastState()
		if r.ticker == nil {
			r.startDriver()
		}
	default:
		logger.Log.Warnf("room %s: unknown leader command %q", r.ID, cmd.Command)
	}
}

func (r *Room) setTeam(targetID string, team models.Team) {
	player, exists := r.players[targetID]
	if !exists {
		return
	}

	if team == models.TeamNone {
		player.SetTeam(models.TeamNone, 0)
	} else {
		teamCount := 0
		for _, p := range r.players {
			if p.Team == team {
				teamCount++
			}
		}
		// A full squad only blocks newcomers, not a slot change inside
		// the same team.
		if teamCount >= game.MaxTeamSize && player.Team != team {
			return
		}

		slot := teamCount
		if player.Team == team && player.Fielded() {
			if idx := game.SlotIndexAt(team, *player.Pos); idx != -1 {
				slot = idx
			}
		}
		player.SetTeam(team, slot)
	}

	r.broadcastState()
	r.broadcast(models.TeamChanged{
		PlayerID: targetID,
		Team:     player.Team,
		X:        player.State().X,
		Y:        player.State().Y,
	}, network.MsgTypeTeamChanged)
}

// --- broadcasting ---

func (r *Room) broadcastConnection(player *game.Player, connected bool) {
	r.broadcast(models.ChatBroadcast{
		Entity:  player.ChatEntity(),
		Content: connectionContent(connected),
	}, network.MsgTypeChatBroadcast)
}

func connectionContent(connected bool) models.ChatContent {
	c := connected
	return models.ChatContent{Type: "connection", Connected: &c}
}

// broadcastState publishes one snapshot and advances the elapsed counter.
func (r *Room) broadcastState() {
	r.score.Elapsed++
	r.broadcast(r.getState(), network.MsgTypeRoomState)
}

func (r *Room) getState() models.StateSnapshot {
	players := make(map[string]models.PlayerState, len(r.players))
	for id, player := range r.players {
		players[id] = player.State()
	}

	return models.StateSnapshot{
		Room: models.RoomMeta{
			ID:     r.ID,
			Name:   r.Name,
			Leader: r.leaderID,
			Paused: r.paused,
		},
		Players: players,
		Ball: models.BallState{
			X:         r.ball.Pos.X,
			Y:         r.ball.Pos.Y,
			Radius:    r.ball.Radius,
			VelocityX: r.ball.Vel.X,
			VelocityY: r.ball.Vel.Y,
			Angle:     r.ball.Angle,
			Active:    r.ball.Active,
			Scorer:    r.ball.Scorer,
			Assister:  r.ball.Assister,
		},
		Score:     r.score,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (r *Room) broadcast(payload interface{}, msgID uint16) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			logger.Log.Errorf("room %s: marshal broadcast %d: %v", r.ID, msgID, err)
			return
		}
	}
	if err := r.broadcaster.BroadcastToRoom(r.ID, msgID, data); err != nil {
		logger.Log.Warnf("room %s: broadcast %d: %v", r.ID, msgID, err)
	}
}

func (r *Room) setPlayerCount(n int) {
	r.statusMutex.Lock()
	r.playerCount = n
	r.statusMutex.Unlock()
}
