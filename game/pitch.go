// game/pitch.go
package game

import "github.com/flatball/openfz/models"

// Pitch geometry. Everything is in pixels in the same coordinate space the
// clients render. Derived values are computed, never stored, so the numbers
// cannot drift apart.
const (
	PitchWidth   = 1400.0
	PitchHeight  = 750.0
	PitchMarginX = 400.0
	PitchMarginY = 400.0

	// GoalSide is the half-height of the goal mouth.
	GoalSide = 100.0

	GoalPostRadius = 7.5
	GoalNetDepth   = 50.0
)

func GoalTopY() float64    { return PitchHeight/2 + PitchMarginY - GoalSide }
func GoalBottomY() float64 { return PitchHeight/2 + PitchMarginY + GoalSide }
func CenterX() float64     { return PitchWidth/2 + PitchMarginX }
func CenterY() float64     { return PitchHeight/2 + PitchMarginY }

// Vec is a point on the pitch.
type Vec struct {
	X float64
	Y float64
}

// GoalPosts returns the four post centers: both posts of the left (away)
// goal mouth followed by both posts of the right (home) goal mouth.
func GoalPosts() [4]Vec {
	return [4]Vec{
		{X: PitchMarginX, Y: GoalTopY()},
		{X: PitchMarginX, Y: GoalBottomY()},
		{X: PitchWidth + PitchMarginX, Y: GoalTopY()},
		{X: PitchWidth + PitchMarginX, Y: GoalBottomY()},
	}
}

// alignment holds the fixed kickoff slots per team, indexed by squad slot.
var alignment = map[models.Team][]Vec{
	models.TeamHome: {
		{X: 500, Y: 775},
		{X: 600, Y: 650},
		{X: 600, Y: 900},
		{X: 700, Y: 775},
	},
	models.TeamAway: {
		{X: 1600, Y: 775},
		{X: 1500, Y: 650},
		{X: 1500, Y: 900},
		{X: 1400, Y: 775},
	},
}

// MaxTeamSize is the number of alignment slots per side.
const MaxTeamSize = 4

// AlignmentSlot returns the kickoff position for (team, slot), or false when
// the team is unknown or the slot is out of range.
func AlignmentSlot(team models.Team, slot int) (Vec, bool) {
	slots, ok := alignment[team]
	if !ok || slot < 0 || slot >= len(slots) {
		return Vec{}, false
	}
	return slots[slot], true
}

// SlotIndexAt reports which alignment slot of team sits exactly at pos,
// or -1 when pos is not a slot position.
func SlotIndexAt(team models.Team, pos Vec) int {
	for i, slot := range alignment[team] {
		if slot.X == pos.X && slot.Y == pos.Y {
			return i
		}
	}
	return -1
}
