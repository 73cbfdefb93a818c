// game/ball.go
package game

import (
	"math"

	"github.com/flatball/openfz/models"
)

// Ball tuning.
const (
	BallRadius       = 10.0
	BallMass         = 5.0
	BallFriction     = 0.982
	BallAcceleration = 0.3 // scales kick and contact impulses

	// Velocity components below this are snapped to zero so friction
	// cannot leave the ball creeping forever.
	ballStopEpsilon = 0.05

	KickForceShot = 8.5
	KickForcePass = 6.5
)

// GoalHandler receives goal signals from the ball during boundary
// resolution. The team names the goal mouth that was crossed.
type GoalHandler interface {
	HandleGoal(team models.Team)
}

// Ball 球的状态机：active ⇄ inactive（进球后的等待窗口）
type Ball struct {
	Radius   float64
	Mass     float64
	Friction float64
	Accel    float64

	Pos      Vec
	Vel      Vec
	Angle    float64 // visual spin only, never feeds back into physics
	Active   bool
	Scorer   *models.Touch
	Assister *models.Touch
}

func NewBall() *Ball {
	b := &Ball{
		Radius:   BallRadius,
		Mass:     BallMass,
		Friction: BallFriction,
		Accel:    BallAcceleration,
	}
	b.Reset()
	return b
}

// Reset re-centers the ball and clears velocity, spin and attribution.
func (b *Ball) Reset() {
	b.Pos = Vec{X: CenterX(), Y: CenterY()}
	b.Vel = Vec{}
	b.Angle = 0
	b.Active = true
	b.Scorer = nil
	b.Assister = nil
}

// Update integrates one tick of ball physics: movement, friction, spin and
// boundary/goal collisions. Goals are signalled through h.
func (b *Ball) Update(h GoalHandler) {
	b.Pos.X += b.Vel.X
	b.Pos.Y += b.Vel.Y
	b.Vel.X *= b.Friction
	b.Vel.Y *= b.Friction

	if math.Abs(b.Vel.X) < ballStopEpsilon {
		b.Vel.X = 0
	}
	if math.Abs(b.Vel.Y) < ballStopEpsilon {
		b.Vel.Y = 0
	}

	speed := math.Hypot(b.Vel.X, b.Vel.Y)
	if speed > 0.1 {
		direction := 1.0
		if b.Vel.X < 0 {
			direction = -1.0
		}
		b.Angle += speed / b.Radius * direction * 0.1
	}

	b.handleBoundaryCollisions(h)
}

func (b *Ball) handleBoundaryCollisions(h GoalHandler) {
	rightBoundary := PitchWidth + PitchMarginX
	leftBoundary := PitchMarginX
	bottomBoundary := PitchHeight + PitchMarginY
	topBoundary := PitchMarginY
	goalTopY := GoalTopY()
	goalBottomY := GoalBottomY()

	// Right edge and the 'home' goal mouth.
	if b.Pos.X+b.Radius > rightBoundary {
		// 10px of tolerance past each post still counts as in-mouth.
		if b.Pos.Y-b.Radius > goalTopY-10 && b.Pos.Y+b.Radius < goalBottomY+10 {
			if b.Pos.Y-b.Radius < goalTopY {
				b.Pos.Y = goalTopY + b.Radius
				b.Vel.Y = -b.Vel.Y * 0.3
			}
			if b.Pos.Y+b.Radius > goalBottomY {
				b.Pos.Y = goalBottomY - b.Radius
				b.Vel.Y = -b.Vel.Y * 0.3
			}
			// Back of the net.
			if b.Pos.X+b.Radius > rightBoundary+GoalNetDepth {
				b.Pos.X = rightBoundary + GoalNetDepth - b.Radius
				b.Vel.X = -b.Vel.X * 0.3
			}
			// Goal only once the whole ball has crossed the line.
			if b.Pos.X-b.Radius > rightBoundary {
				h.HandleGoal(models.TeamHome)
			}
		} else {
			b.Pos.X = rightBoundary - b.Radius
			b.Vel.X *= -0.5
		}
	}

	// Left edge and the 'away' goal mouth.
	if b.Pos.X-b.Radius < leftBoundary {
		if b.Pos.Y-b.Radius > goalTopY-10 && b.Pos.Y+b.Radius < goalBottomY+10 {
			if b.Pos.Y-b.Radius < goalTopY {
				b.Pos.Y = goalTopY + b.Radius
				b.Vel.Y = -b.Vel.Y * 0.3
			}
			if b.Pos.Y+b.Radius > goalBottomY {
				b.Pos.Y = goalBottomY - b.Radius
				b.Vel.Y = -b.Vel.Y * 0.3
			}
			if b.Pos.X-b.Radius < leftBoundary-GoalNetDepth {
				b.Pos.X = leftBoundary - GoalNetDepth + b.Radius
				b.Vel.X = -b.Vel.X * 0.3
			}
			if b.Pos.X+b.Radius < leftBoundary {
				h.HandleGoal(models.TeamAway)
			}
		} else {
			b.Pos.X = leftBoundary + b.Radius
			b.Vel.X *= -0.5
		}
	}

	if b.Pos.Y+b.Radius > bottomBoundary {
		b.Pos.Y = bottomBoundary - b.Radius
		b.Vel.Y *= -0.5
	}
	if b.Pos.Y-b.Radius < topBoundary {
		b.Pos.Y = topBoundary + b.Radius
		b.Vel.Y *= -0.5
	}
}

// ApplyKick adds the kick impulse and records the toucher.
func (b *Ball) ApplyKick(angle, force float64, kicker models.Touch) {
	b.Vel.X += math.Cos(angle) * force
	b.Vel.Y += math.Sin(angle) * force
	b.RecordTouch(kicker)
}

// RecordTouch updates scorer/assister attribution. A touch by a new player
// demotes the previous toucher to assister; a repeat touch by the same
// player clears the assister so dribbles cannot carry a stale assist.
func (b *Ball) RecordTouch(t models.Touch) {
	if b.Scorer == nil || b.Scorer.ID != t.ID {
		b.Assister = b.Scorer
		b.Scorer = &t
	} else {
		b.Assister = nil
	}
}
