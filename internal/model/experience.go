package model

import "math"

// Experience curve: quadratic level growth capped at MaxLevel. The curve
// is intentionally simple; content tuning lives outside the core.
const (
	MaxLevel      = 99
	expPerLevel   = 100
	baseHitPoints = 100
	baseMana      = 20
)

// ExpToLevel converts total experience into a level.
func ExpToLevel(experience int) int {
	if experience <= 0 {
		return 1
	}
	level := int(math.Sqrt(float64(experience)/expPerLevel)) + 1
	return min(level, MaxLevel)
}

// LevelToExp returns the total experience required to reach a level.
func LevelToExp(level int) int {
	if level <= 1 {
		return 0
	}
	return (level - 1) * (level - 1) * expPerLevel
}

// MaxHitPoints returns the hit point ceiling for a level.
func MaxHitPoints(level int) int {
	return baseHitPoints + (level-1)*20
}

// MaxMana returns the mana ceiling for a level.
func MaxMana(level int) int {
	return baseMana + (level-1)*5
}
