package domain

const (
	EventNameXPAwarded          = "xp.awarded"
	EventNameLevelUp            = "level.up"
	EventNameBadgesUnlocked     = "badges.unlocked"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventXPAwarded is published after an award transaction commits.
type EventXPAwarded struct {
	UserID        string
	Amount        int64
	Reason        string
	TotalXP       int64
	Level         int
	PreviousLevel int
}

func (EventXPAwarded) Name() string { return EventNameXPAwarded }

type EventLevelUp struct {
	UserID        string
	Level         int
	PreviousLevel int
	Title         string
}

func (EventLevelUp) Name() string { return EventNameLevelUp }

type EventBadgesUnlocked struct {
	UserID   string
	BadgeIDs []string
}

func (EventBadgesUnlocked) Name() string { return EventNameBadgesUnlocked }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
