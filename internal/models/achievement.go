package models

type AchievementKind string

const (
	AchievementFlag      AchievementKind = "boolean"
	AchievementThreshold AchievementKind = "count"
)

// Counter names a value of the user state that threshold achievements
// compare against their goal.
type Counter string

const (
	CounterLifetimeEarned  Counter = "lifetimeEarned"
	CounterStreak          Counter = "streakCount"
	CounterVideoWatched    Counter = "videoWatched"
	CounterShortCompleted  Counter = "shortCompleted"
	CounterOffersCompleted Counter = "offersCompleted"
	CounterReferrals       Counter = "referrals"
	CounterVpsCreated      Counter = "vpsCreated"
	CounterLogins          Counter = "logins"
)

type Achievement struct {
	ID          string          `json:"id"`
	Icon        string          `json:"ico"`
	Title       string          `json:"title"`
	Description string          `json:"desc"`
	Reward      int64           `json:"reward"`
	Kind        AchievementKind `json:"type"`
	Counter     Counter         `json:"key,omitempty"`
	Goal        int64           `json:"goal,omitempty"`
}

const AchievementFirstLogin = "first_login"

var Achievements = []Achievement{
	{ID: AchievementFirstLogin, Icon: "👋", Title: "Welcome!", Description: "Sign in for the first time", Reward: 10, Kind: AchievementFlag},
	{ID: "first_earn", Icon: "💸", Title: "First earnings", Description: "Earn any points", Reward: 10, Kind: AchievementThreshold, Counter: CounterLifetimeEarned, Goal: 1},
	{ID: "earn_300", Icon: "🎯", Title: "Redeem ready", Description: "Earn 300 points total", Reward: 25, Kind: AchievementThreshold, Counter: CounterLifetimeEarned, Goal: 300},
	{ID: "earn_1000", Icon: "🏆", Title: "Point hoarder", Description: "Earn 1000 points total", Reward: 50, Kind: AchievementThreshold, Counter: CounterLifetimeEarned, Goal: 1000},
	{ID: "watch_20_ads", Icon: "▶️", Title: "Ad runner", Description: "Watch 20 video ads", Reward: 25, Kind: AchievementThreshold, Counter: CounterVideoWatched, Goal: 20},
	{ID: "complete_50_links", Icon: "🔗", Title: "Link grinder", Description: "Complete 50 short links", Reward: 25, Kind: AchievementThreshold, Counter: CounterShortCompleted, Goal: 50},
	{ID: "streak_3", Icon: "🔥", Title: "Warm streak", Description: "Reach a 3-day streak", Reward: 20, Kind: AchievementThreshold, Counter: CounterStreak, Goal: 3},
	{ID: "streak_7", Icon: "🌋", Title: "On fire", Description: "Reach a 7-day streak", Reward: 40, Kind: AchievementThreshold, Counter: CounterStreak, Goal: 7},
	{ID: "first_vps", Icon: "☁️", Title: "Cloud citizen", Description: "Create your first VPS", Reward: 30, Kind: AchievementThreshold, Counter: CounterVpsCreated, Goal: 1},
	{ID: "ref_1", Icon: "🧲", Title: "Magnet", Description: "Get 1 referral", Reward: 30, Kind: AchievementThreshold, Counter: CounterReferrals, Goal: 1},
}

func FindAchievement(id string) (Achievement, bool) {
	for _, a := range Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

func (s *UserGameState) CounterValue(c Counter) int64 {
	switch c {
	case CounterLifetimeEarned:
		return s.Lifetime.Earned
	case CounterStreak:
		return s.Daily.StreakCount
	case CounterVideoWatched:
		return s.Stats.VideoWatched
	case CounterShortCompleted:
		return s.Stats.ShortCompleted
	case CounterOffersCompleted:
		return s.Stats.OffersCompleted
	case CounterReferrals:
		return s.Stats.Referrals
	case CounterVpsCreated:
		return s.Stats.VpsCreated
	case CounterLogins:
		return s.Stats.Logins
	}
	return 0
}

// Progress reports the current counter and goal; flag achievements count
// as 1/1 once unlocked.
func (a Achievement) Progress(s *UserGameState) (current, goal int64) {
	if a.Kind == AchievementFlag {
		if _, ok := s.Achievements.Unlocked[a.ID]; ok {
			return 1, 1
		}
		return 0, 1
	}
	current = s.CounterValue(a.Counter)
	if current < 0 {
		current = 0
	}
	goal = a.Goal
	if goal < 1 {
		goal = 1
	}
	return current, goal
}
