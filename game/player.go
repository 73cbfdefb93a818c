// game/player.go
package game

import (
	"math"
	"time"

	"github.com/flatball/openfz/models"
)

// Player tuning.
const (
	PlayerRadius = 20.0
	PlayerMass   = 10.0
	PlayerRange  = 10.0 // kick reach beyond the radii
	PlayerSpeed  = 2.6

	NicknameMaxLen = 24
	DefaultSkin    = "0.png"

	// Minimum time between two successful kicks.
	KickCooldown = 100 * time.Millisecond
)

// Player 玩家状态机：spectator（无位置）⇄ fielded（在场上）
//
// Position and movement angle are explicit optionals: a nil Pos means
// spectator, a nil Angle means standing still. A fielded player at x=0 is
// therefore never confused with a spectator.
type Player struct {
	ID       string
	Nickname string
	Skin     string
	Radius   float64
	Mass     float64
	Range    float64
	Speed    float64

	Team         models.Team
	Pos          *Vec
	Angle        *float64
	LastKickTime int64 // unix millis of the last successful kick
}

func NewPlayer(id, nickname, skin string) *Player {
	if len(nickname) > NicknameMaxLen {
		nickname = nickname[:NicknameMaxLen]
	}
	if nickname == "" {
		short := id
		if len(short) > 4 {
			short = short[:4]
		}
		nickname = "Guest_" + short
	}
	if skin == "" {
		skin = DefaultSkin
	}
	return &Player{
		ID:       id,
		Nickname: nickname,
		Skin:     skin,
		Radius:   PlayerRadius,
		Mass:     PlayerMass,
		Range:    PlayerRange,
		Speed:    PlayerSpeed,
	}
}

// Fielded reports whether the player is on the pitch.
func (p *Player) Fielded() bool {
	return p.Pos != nil
}

// UpdatePosition integrates one tick of movement and clamps the player to
// the outer bounds. Spectators do not move.
func (p *Player) UpdatePosition() {
	if p.Pos == nil {
		return
	}
	if p.Angle != nil {
		p.Pos.X += math.Cos(*p.Angle) * p.Speed
		p.Pos.Y += math.Sin(*p.Angle) * p.Speed
	}
	p.Pos.X = math.Max(p.Radius, math.Min(PitchWidth+PitchMarginX*2-p.Radius, p.Pos.X))
	p.Pos.Y = math.Max(p.Radius, math.Min(PitchHeight+PitchMarginY*2-p.Radius, p.Pos.Y))
}

// SetTeam assigns the player to a team slot or back to the stands. An
// unknown slot with a valid team falls back to a team-side offset from the
// pitch center; a null team always collapses to spectator.
func (p *Player) SetTeam(team models.Team, slot int) {
	p.Team = team
	p.Angle = nil

	if pos, ok := AlignmentSlot(team, slot); ok {
		p.Pos = &Vec{X: pos.X, Y: pos.Y}
		return
	}

	p.Pos = nil
	if team != models.TeamNone {
		offset := 50.0
		if team == models.TeamHome {
			offset = -50.0
		}
		p.Pos = &Vec{X: CenterX() + offset, Y: CenterY()}
	}
}

// Kick attempts to kick the ball. It reports false, with no state change,
// when the player is a spectator, still inside the kick cooldown, or out of
// reach of the ball.
func (p *Player) Kick(ball *Ball, isPass bool) bool {
	if p.Team == models.TeamNone || p.Pos == nil {
		return false
	}

	now := time.Now().UnixMilli()
	if now-p.LastKickTime < KickCooldown.Milliseconds() {
		return false
	}

	distanceToBall := Distance(*p.Pos, ball.Pos)
	detectionRange := p.Radius + ball.Radius + p.Range
	if distanceToBall > detectionRange {
		return false
	}

	p.LastKickTime = now
	angle := math.Atan2(ball.Pos.Y-p.Pos.Y, ball.Pos.X-p.Pos.X)
	force := KickForceShot
	if isPass {
		force = KickForcePass
	}
	ball.ApplyKick(angle, force, p.Touch())
	return true
}

// Touch snapshots the player's identity for ball attribution.
func (p *Player) Touch() models.Touch {
	return models.Touch{ID: p.ID, Nickname: p.Nickname, Team: p.Team}
}

// State returns the per-tick serialization of the player.
func (p *Player) State() models.PlayerState {
	s := models.PlayerState{
		ID:       p.ID,
		Nickname: p.Nickname,
		Skin:     p.Skin,
		Radius:   p.Radius,
		Range:    p.Range,
		Team:     p.Team,
	}
	if p.Angle != nil {
		a := *p.Angle
		s.Angle = &a
	}
	if p.Pos != nil {
		x, y := p.Pos.X, p.Pos.Y
		s.X, s.Y = &x, &y
	}
	return s
}

// ChatEntity returns the fuller serialization used by chat and
// join/leave notices.
func (p *Player) ChatEntity() models.PlayerChatEntity {
	e := models.PlayerChatEntity{
		ID:           p.ID,
		Nickname:     p.Nickname,
		Skin:         p.Skin,
		Radius:       p.Radius,
		Mass:         p.Mass,
		Range:        p.Range,
		Team:         p.Team,
		LastKickTime: p.LastKickTime,
	}
	if p.Angle != nil {
		a := *p.Angle
		e.Angle = &a
	}
	if p.Pos != nil {
		x, y := p.Pos.X, p.Pos.Y
		e.X, e.Y = &x, &y
	}
	return e
}
