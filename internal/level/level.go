// Package level maps cumulative XP to levels.
//
// The threshold for level L is ceil(100 * (L-1)^1.8), strictly increasing for
// L >= 1, so the resolver below always terminates with a unique answer.
package level

import "math"

const (
	baseXP   = 100
	exponent = 1.8
)

var titles = []string{
	"Newcomer",
	"Apprentice",
	"Learner",
	"Scholar",
	"Analyst",
	"Practitioner",
	"Specialist",
	"Expert",
	"Master",
	"Legend",
}

// XPRequiredForLevel returns the cumulative XP needed to reach level.
func XPRequiredForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}

	return int64(math.Ceil(baseXP * math.Pow(float64(level-1), exponent)))
}

// FromXP returns the largest level whose threshold is <= xp. Negative XP is
// treated as 0.
func FromXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}

	l := 1
	for XPRequiredForLevel(l+1) <= xp {
		l++
	}

	return l
}

// Progress describes where xp sits inside its level band.
type Progress struct {
	Level   int
	Current int64
	Needed  int64
	Percent int
}

func ProgressInLevel(xp int64) Progress {
	if xp < 0 {
		xp = 0
	}

	l := FromXP(xp)
	floor := XPRequiredForLevel(l)
	needed := XPRequiredForLevel(l+1) - floor
	current := xp - floor

	return Progress{
		Level:   l,
		Current: current,
		Needed:  needed,
		Percent: min(Percent(current, needed), 100),
	}
}

// Title returns the display title of a level. Levels past the list share the last title.
func Title(level int) string {
	i := min(level-1, len(titles)-1)
	if i < 0 {
		i = 0
	}

	return titles[i]
}

// Percent returns round(part/total*100) rounding halves up, or 0 when total is 0.
func Percent(part, total int64) int {
	if total <= 0 {
		return 0
	}

	return int(math.Floor(float64(part)*100/float64(total) + 0.5))
}
