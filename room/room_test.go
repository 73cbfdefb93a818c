package room

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/flatball/openfz/game"
	"github.com/flatball/openfz/logger"
	"github.com/flatball/openfz/models"
	"github.com/flatball/openfz/network"
	"github.com/flatball/openfz/timer"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

// MockBroadcaster is a test double for the Broadcaster interface. It records
// every broadcast so tests can assert on what a room emitted.
type MockBroadcaster struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	RoomID string
	MsgID  uint16
	Data   []byte
}

func (m *MockBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{RoomID: roomID, MsgID: msgID, Data: data})
	return nil
}

func (m *MockBroadcaster) count(msgID uint16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.MsgID == msgID {
			n++
		}
	}
	return n
}

func (m *MockBroadcaster) last(msgID uint16) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].MsgID == msgID {
			return m.sent[i].Data, true
		}
	}
	return nil, false
}

// newTestRoom builds a room whose commands are applied directly, without
// running the loop, so tests stay synchronous and deterministic.
func newTestRoom(b Broadcaster) *Room {
	r := NewRoom("r1", "Test Room", "", "p1", DefaultOptions(), b)
	r.scheduleRealign = func() {}
	return r
}

func TestRoom_AddRemovePlayer(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")
	if r.PlayerCount() != 1 {
		t.Fatalf("Expected 1 player, got %d", r.PlayerCount())
	}
	if r.ticker == nil {
		t.Error("First join should start the tick driver")
	}
	if b.count(network.MsgTypeChatBroadcast) != 1 {
		t.Error("Join should broadcast a connection notice")
	}

	r.addPlayer("p2", "two", "")
	if r.PlayerCount() != 2 {
		t.Fatalf("Expected 2 players, got %d", r.PlayerCount())
	}

	r.removePlayer("p2")
	if r.PlayerCount() != 1 {
		t.Fatalf("Expected 1 player after removal, got %d", r.PlayerCount())
	}
	if b.count(network.MsgTypeChatBroadcast) != 3 {
		t.Error("Leave should broadcast a connection notice")
	}
}

func TestRoom_RemoveUnknownPlayerIsNoop(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")
	before := b.count(network.MsgTypeChatBroadcast)

	r.removePlayer("ghost")
	if r.PlayerCount() != 1 || b.count(network.MsgTypeChatBroadcast) != before {
		t.Error("Removing an unknown player must change nothing")
	}
}

func TestRoom_EmptyRoomStopsDriver(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)

	emptied := ""
	r.OnEmpty = func(id string) { emptied = id }

	r.addPlayer("p1", "one", "")
	r.removePlayer("p1")

	if r.ticker != nil {
		t.Error("An empty room must not hold a running tick driver")
	}
	if emptied != "r1" {
		t.Errorf("OnEmpty should fire with the room id, got %q", emptied)
	}
}

func TestRoom_LeaderElection(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")
	r.addPlayer("p2", "two", "")
	r.addPlayer("p3", "three", "")

	r.removePlayer("p1")

	if r.LeaderID() != "p2" {
		t.Errorf("Expected insertion-first remaining player p2 as leader, got %s", r.LeaderID())
	}

	data, ok := b.last(network.MsgTypeNewLeader)
	if !ok {
		t.Fatal("Leader change should be broadcast")
	}
	var msg models.LeaderChanged
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.LeaderID != "p2" {
		t.Errorf("Broadcast names %s, expected p2", msg.LeaderID)
	}
}

func TestRoom_NonLeaderCommandIgnored(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")
	r.addPlayer("p2", "two", "")

	r.handleCommand(leaderCmd{SenderID: "p2", Command: models.LeaderCommand{Command: "pause"}})
	if r.paused {
		t.Error("A non-leader must not be able to pause the match")
	}

	r.handleCommand(leaderCmd{SenderID: "p1", Command: models.LeaderCommand{Command: "pause"}})
	if !r.paused {
		t.Error("The leader must be able to pause the match")
	}
}

func TestRoom_SetTeamCap(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	ids := []string{"p1", "p2", "p3", "p4", "p5"}
	for _, id := range ids {
		r.addPlayer(id, id, "")
	}
	for _, id := range ids[:4] {
		r.setTeam(id, models.TeamHome)
	}

	fielded := 0
	for _, id := range ids[:4] {
		if r.players[id].Team == models.TeamHome {
			fielded++
		}
	}
	if fielded != 4 {
		t.Fatalf("Expected 4 home players, got %d", fielded)
	}

	before := b.count(network.MsgTypeTeamChanged)
	r.setTeam("p5", models.TeamHome)
	if r.players["p5"].Team != models.TeamNone {
		t.Error("A 5th player must not join a full team")
	}
	if b.count(network.MsgTypeTeamChanged) != before {
		t.Error("A rejected team change must not broadcast")
	}

	// Moving inside the same team is never blocked by the cap.
	r.setTeam("p1", models.TeamHome)
	if r.players["p1"].Team != models.TeamHome {
		t.Error("Slot change inside a full team should be allowed")
	}
}

func TestRoom_SetTeamAssignsSlotsInOrder(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")
	r.addPlayer("p2", "two", "")
	r.setTeam("p1", models.TeamHome)
	r.setTeam("p2", models.TeamHome)

	slot0, _ := game.AlignmentSlot(models.TeamHome, 0)
	slot1, _ := game.AlignmentSlot(models.TeamHome, 1)

	if r.players["p1"].Pos.X != slot0.X || r.players["p1"].Pos.Y != slot0.Y {
		t.Errorf("p1 should occupy slot 0, got %+v", *r.players["p1"].Pos)
	}
	if r.players["p2"].Pos.X != slot1.X || r.players["p2"].Pos.Y != slot1.Y {
		t.Errorf("p2 should occupy slot 1, got %+v", *r.players["p2"].Pos)
	}
}

func TestRoom_HandleGoalIdempotent(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")

	r.HandleGoal(models.TeamAway)
	r.HandleGoal(models.TeamAway)

	if r.score.Away != 1 {
		t.Errorf("Expected one score increment, got %d", r.score.Away)
	}
	if b.count(network.MsgTypeGoal) != 1 {
		t.Errorf("Expected one goal broadcast, got %d", b.count(network.MsgTypeGoal))
	}
	if r.ball.Active {
		t.Error("A goal should deactivate the ball")
	}
}

func TestRoom_FinishGoalPauseRealigns(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")
	r.addPlayer("p2", "two", "")
	r.addPlayer("p3", "spec", "")
	r.setTeam("p1", models.TeamHome)
	r.setTeam("p2", models.TeamAway)

	// Scatter everyone, then score.
	r.players["p1"].Pos = &game.Vec{X: 1000, Y: 500}
	r.players["p2"].Pos = &game.Vec{X: 900, Y: 600}
	r.HandleGoal(models.TeamHome)

	r.finishGoalPause()

	homeSlot, _ := game.AlignmentSlot(models.TeamHome, 0)
	awaySlot, _ := game.AlignmentSlot(models.TeamAway, 0)
	if *r.players["p1"].Pos != (game.Vec{X: homeSlot.X, Y: homeSlot.Y}) {
		t.Errorf("p1 should be back on home slot 0, got %+v", *r.players["p1"].Pos)
	}
	if *r.players["p2"].Pos != (game.Vec{X: awaySlot.X, Y: awaySlot.Y}) {
		t.Errorf("p2 should be back on away slot 0, got %+v", *r.players["p2"].Pos)
	}
	if r.players["p3"].Pos != nil || r.players["p3"].Angle != nil {
		t.Error("Spectator must remain without position and angle")
	}
	if !r.ball.Active {
		t.Error("Ball should be reactivated after the goal pause")
	}
	if r.ball.Pos.X != game.CenterX() || r.ball.Pos.Y != game.CenterY() {
		t.Error("Ball should be reset to center")
	}
	if r.score.Home != 1 {
		t.Errorf("Score below the winning threshold must be kept, got %d", r.score.Home)
	}
}

func TestRoom_WinScoreResetsMatch(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")
	r.score.Home = 4
	r.HandleGoal(models.TeamHome)
	if r.score.Home != 5 {
		t.Fatalf("Expected home score 5, got %d", r.score.Home)
	}

	r.finishGoalPause()
	if r.score.Home != 0 || r.score.Away != 0 || r.score.Elapsed != 0 {
		t.Errorf("Reaching the winning score should reset the match, got %+v", r.score)
	}
}

func TestRoom_Restart(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")
	r.setTeam("p1", models.TeamHome)
	r.score.Home = 3
	r.score.Elapsed = 777
	r.paused = true
	r.ball.Active = false

	r.handleLeaderCommand(models.LeaderCommand{Command: "restart"})

	if r.score.Home != 0 || r.score.Elapsed == 777 {
		t.Error("Restart should zero score and elapsed time")
	}
	if r.paused {
		t.Error("Restart should clear the paused flag")
	}
	if !r.ball.Active {
		t.Error("Restart should reactivate the ball")
	}
	if b.count(network.MsgTypeRestart) != 1 {
		t.Error("Restart should be broadcast")
	}
	if r.ticker == nil {
		t.Error("Restart should ensure the tick driver is running")
	}
}

func TestRoom_PauseToggle(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")

	r.handleLeaderCommand(models.LeaderCommand{Command: "pause"})
	if !r.paused {
		t.Fatal("Pause should set the paused flag")
	}

	r.stopDriver()
	r.handleLeaderCommand(models.LeaderCommand{Command: "pause"})
	if r.paused {
		t.Fatal("Second pause should unpause")
	}
	if r.ticker == nil {
		t.Error("Unpause should restart a stopped tick driver")
	}
	if b.count(network.MsgTypePauseState) != 2 {
		t.Errorf("Expected 2 pause broadcasts, got %d", b.count(network.MsgTypePauseState))
	}
}

func TestRoom_ChatIsCappedAndAttributed(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	r.chat("p1", string(long))

	data, ok := b.last(network.MsgTypeChatBroadcast)
	if !ok {
		t.Fatal("Chat should broadcast")
	}
	var msg models.ChatBroadcast
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if len(msg.Content.Text) != ChatMaxLen {
		t.Errorf("Chat text should be capped at %d, got %d", ChatMaxLen, len(msg.Content.Text))
	}
	if msg.Entity.ID != "p1" {
		t.Errorf("Chat should be attributed to the sender, got %q", msg.Entity.ID)
	}

	// Chat from a ghost is dropped.
	before := b.count(network.MsgTypeChatBroadcast)
	r.chat("ghost", "hello")
	if b.count(network.MsgTypeChatBroadcast) != before {
		t.Error("Chat from an unknown player must be ignored")
	}
}

func TestRoom_MoveIgnoredForSpectators(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")
	angle := 1.5
	r.setAngle("p1", &angle)
	if r.players["p1"].Angle != nil {
		t.Error("A spectator's movement intent must be ignored")
	}

	r.setTeam("p1", models.TeamHome)
	r.setAngle("p1", &angle)
	if r.players["p1"].Angle == nil || *r.players["p1"].Angle != 1.5 {
		t.Error("A fielded player's movement intent should be applied")
	}

	r.setAngle("p1", nil)
	if r.players["p1"].Angle != nil {
		t.Error("A nil angle should stop the player")
	}
}

func TestRoom_TickScoresGoalEndToEnd(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	realigns := 0
	r.scheduleRealign = func() { realigns++ }

	r.addPlayer("pA", "A", "")
	r.addPlayer("pB", "B", "")
	r.setTeam("pA", models.TeamHome)
	r.setTeam("pB", models.TeamHome)

	// pA last touched the ball; it is now rolling into the left (away)
	// goal mouth.
	r.ball.RecordTouch(r.players["pA"].Touch())
	r.ball.Pos = game.Vec{X: game.PitchMarginX - 5, Y: game.CenterY()}
	r.ball.Vel = game.Vec{X: -8, Y: 0}

	for i := 0; i < 10 && r.ball.Active; i++ {
		r.tick()
	}

	if r.ball.Active {
		t.Fatal("Expected a goal within a few ticks")
	}
	if r.score.Away != 1 || r.score.Home != 0 {
		t.Fatalf("Expected score away 1, got %+v", r.score)
	}
	if realigns != 1 {
		t.Errorf("Expected one scheduled realignment, got %d", realigns)
	}

	data, ok := b.last(network.MsgTypeGoal)
	if !ok {
		t.Fatal("Goal should be broadcast")
	}
	var goal models.GoalScored
	if err := json.Unmarshal(data, &goal); err != nil {
		t.Fatal(err)
	}
	if goal.Team != models.TeamAway {
		t.Errorf("Expected away goal, got %q", goal.Team)
	}
	if goal.Scorer == nil || goal.Scorer.ID != "pA" {
		t.Error("The last toucher should be credited as scorer")
	}

	// After the pause the world is reset.
	r.finishGoalPause()
	slot0, _ := game.AlignmentSlot(models.TeamHome, 0)
	slot1, _ := game.AlignmentSlot(models.TeamHome, 1)
	if *r.players["pA"].Pos != (game.Vec{X: slot0.X, Y: slot0.Y}) {
		t.Error("pA should be back at slot 0")
	}
	if *r.players["pB"].Pos != (game.Vec{X: slot1.X, Y: slot1.Y}) {
		t.Error("pB should be back at slot 1")
	}
	if !r.ball.Active || r.ball.Pos.X != game.CenterX() {
		t.Error("Ball should be reset and active")
	}
}

func TestRoom_TickSnapshot(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")
	r.tick()

	data, ok := b.last(network.MsgTypeRoomState)
	if !ok {
		t.Fatal("Tick should broadcast a snapshot")
	}
	var snap models.StateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Room.ID != "r1" || snap.Room.Leader != "p1" {
		t.Errorf("Unexpected room meta: %+v", snap.Room)
	}
	if _, ok := snap.Players["p1"]; !ok {
		t.Error("Snapshot should include the player map")
	}
	if snap.Ball.Radius != game.BallRadius {
		t.Errorf("Unexpected ball radius %v", snap.Ball.Radius)
	}
	if snap.Score.Elapsed == 0 {
		t.Error("Tick should advance the elapsed counter")
	}
}

func TestRoom_PlayerCollisionSeparates(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")
	r.addPlayer("p2", "two", "")
	r.setTeam("p1", models.TeamHome)
	r.setTeam("p2", models.TeamHome)

	r.players["p1"].Pos = &game.Vec{X: 1000, Y: 500}
	r.players["p2"].Pos = &game.Vec{X: 1010, Y: 500}
	// Keep the ball far away.
	r.ball.Pos = game.Vec{X: 1700, Y: 1000}

	before := game.Distance(*r.players["p1"].Pos, *r.players["p2"].Pos)
	r.handleEntityCollisions()
	after := game.Distance(*r.players["p1"].Pos, *r.players["p2"].Pos)

	if after <= before {
		t.Errorf("Overlapping players should be pushed apart: %v -> %v", before, after)
	}
}

func TestRoom_BallTouchAttributesAndPushes(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	r.addPlayer("p1", "one", "")
	r.setTeam("p1", models.TeamHome)

	r.players["p1"].Pos = &game.Vec{X: 1000, Y: 500}
	r.ball.Pos = game.Vec{X: 1020, Y: 500}
	r.ball.Vel = game.Vec{}

	r.handleEntityCollisions()

	if r.ball.Vel.X <= 0 {
		t.Errorf("Contact should impart velocity away from the player, got %v", r.ball.Vel.X)
	}
	if r.ball.Scorer == nil || r.ball.Scorer.ID != "p1" {
		t.Error("Contact should record last-touch attribution")
	}
}

func TestRoom_GoalPostCollisionReflectsBall(t *testing.T) {
	b := &MockBroadcaster{}
	r := newTestRoom(b)
	defer r.stopDriver()

	post := game.GoalPosts()[0]
	r.ball.Pos = game.Vec{X: post.X + 2, Y: post.Y}
	r.ball.Vel = game.Vec{X: -3, Y: 0}

	r.handleGoalPostCollisions()

	if game.CirclesOverlap(&r.ball.Pos, r.ball.Radius, &post, game.GoalPostRadius) {
		t.Error("Ball should be pushed out of the post")
	}
	if r.ball.Vel.X <= 0 {
		t.Errorf("Velocity should reflect off the post normal, got %v", r.ball.Vel.X)
	}
	if b.count(network.MsgTypeSound) != 1 {
		t.Error("Post contact should emit a sound cue")
	}
}

func TestManager_CreateGetRemove(t *testing.T) {
	timers := timer.NewManager()
	m := NewManager(DefaultOptions(), timers)
	b := &MockBroadcaster{}

	r := m.GetOrCreate("r1", "Room One", "secret", "p1", b)
	if r == nil {
		t.Fatal("GetOrCreate should not return nil")
	}
	defer r.Close()

	same := m.GetOrCreate("r1", "ignored", "", "p2", b)
	if same != r {
		t.Error("GetOrCreate should return the existing room")
	}

	got, exists := m.GetRoom("r1")
	if !exists || got != r {
		t.Error("GetRoom should find the created room")
	}

	listing := m.List()
	if len(listing) != 1 {
		t.Fatalf("Expected 1 listing, got %d", len(listing))
	}
	if listing[0].ID != "r1" || listing[0].Name != "Room One" || !listing[0].Password {
		t.Errorf("Unexpected listing: %+v", listing[0])
	}

	m.RemoveRoom("r1")
	if _, exists := m.GetRoom("r1"); exists {
		t.Error("Removed room should be absent from the registry")
	}
	if m.Count() != 0 {
		t.Errorf("Expected 0 rooms, got %d", m.Count())
	}

	// Removing again is a no-op.
	m.RemoveRoom("r1")
}

func TestManager_DispatchAfterTeardownIsNoop(t *testing.T) {
	timers := timer.NewManager()
	m := NewManager(DefaultOptions(), timers)
	b := &MockBroadcaster{}

	m.GetOrCreate("r1", "Room", "", "p1", b)
	m.RemoveRoom("r1")

	// The deferred realignment fires against a dead room id.
	m.dispatch("r1", realignCmd{})
}

func TestManager_EmptyRoomIsRemoved(t *testing.T) {
	timers := timer.NewManager()
	m := NewManager(DefaultOptions(), timers)
	b := &MockBroadcaster{}

	r := m.GetOrCreate("r1", "Room", "", "p1", b)
	r.Join("p1", "one", "")
	r.Leave("p1")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, exists := m.GetRoom("r1"); !exists {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Room should be removed from the registry once empty")
}
