package leaderboard

import (
	"sort"

	"github.com/victornm/learnxp/internal/domain"
	"github.com/victornm/learnxp/internal/level"
)

var medals = []string{"gold", "silver", "bronze"}

// Rank orders standings by total XP, highest first. Equal totals are ordered by
// user ID so the result never depends on input order. standings is not modified.
func Rank(standings []domain.Standing) []domain.LeaderboardEntry {
	sorted := make([]domain.Standing, len(standings))
	copy(sorted, standings)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TotalXP != sorted[j].TotalXP {
			return sorted[i].TotalXP > sorted[j].TotalXP
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	entries := make([]domain.LeaderboardEntry, 0, len(sorted))
	for i, s := range sorted {
		lvl := level.FromXP(s.TotalXP)
		e := domain.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      s.UserID,
			DisplayName: s.DisplayName,
			TotalXP:     s.TotalXP,
			Level:       lvl,
			Title:       level.Title(lvl),
		}
		if i < len(medals) {
			e.Medal = medals[i]
		}
		entries = append(entries, e)
	}

	return entries
}
