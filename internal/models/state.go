package models

import "time"

const (
	MaxNotifications  = 60
	MaxRemoteSessions = 10
)

type DailyState struct {
	UTCDate               string `json:"utcDate"`
	Earned                int64  `json:"earned"`
	DailyClaimedUTCDate   string `json:"dailyClaimedUtcDate"`
	CheckinClaimedUTCDate string `json:"checkinClaimedUtcDate"`
	StreakCount           int64  `json:"streakCount"`
	StreakLastUTCDate     string `json:"streakLastUtcDate"`
	VideoChainCount       int    `json:"videoChainCount"`
	VideoChainLastMs      int64  `json:"videoChainLastMs"`
	ReferralsToday        int    `json:"referralsToday"`
}

type TaskCooldown struct {
	CooldownUntilMs int64 `json:"cooldownUntilMs"`
}

type Offer struct {
	ID     string `json:"id"`
	Icon   string `json:"ico"`
	Title  string `json:"title"`
	Reward int64  `json:"reward"`
	ETA    string `json:"eta"`
}

type OfferBoard struct {
	UTCDate string          `json:"utcDate"`
	Items   []Offer         `json:"items"`
	Claimed map[string]bool `json:"claimed"`
}

type Stats struct {
	Logins          int64 `json:"logins"`
	VideoWatched    int64 `json:"videoWatched"`
	ShortCompleted  int64 `json:"shortCompleted"`
	OffersCompleted int64 `json:"offersCompleted"`
	Referrals       int64 `json:"referrals"`
	VpsCreated      int64 `json:"vpsCreated"`
}

type AchievementState struct {
	Unlocked map[string]int64 `json:"unlocked"`
	Claimed  map[string]bool  `json:"claimed"`
}

type Notification struct {
	ID    string `json:"id"`
	TS    int64  `json:"ts"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Kind  string `json:"kind"` // info | good | warn
	Read  bool   `json:"read"`
}

type Security struct {
	TwoFaEnabled bool `json:"twoFaEnabled"`
}

// UIState is persisted for continuity only; nothing in the engine reads it.
type UIState struct {
	LastView       string `json:"lastView"`
	DashTab        string `json:"dashTab"`
	LedgerFilter   string `json:"ledgerFilter"`
	InstanceSearch string `json:"instanceSearch"`
}

// UserGameState is the per-user mutable part of the document.
type UserGameState struct {
	PointsBalance  int64                      `json:"pointsBalance"`
	Lifetime       Lifetime                   `json:"lifetime"`
	Daily          DailyState                 `json:"daily"`
	Tasks          map[TaskType]*TaskCooldown `json:"tasks"`
	Offers         OfferBoard                 `json:"offers"`
	Stats          Stats                      `json:"stats"`
	Achievements   AchievementState           `json:"achievements"`
	Notifications  []Notification             `json:"notifications"`
	Ledger         []LedgerEntry              `json:"ledger"`
	Vps            VpsState                   `json:"vps"`
	Security       Security                   `json:"security"`
	UI             UIState                    `json:"ui"`
	PromoClaimed   map[string]bool            `json:"promoClaimed"`
	RefCode        string                     `json:"refCode"`
	RemoteSessions []RemoteSession            `json:"remoteSessions"`
}

func DefaultDailyState(now time.Time) DailyState {
	return DailyState{UTCDate: UTCDateKey(now)}
}

func DefaultTasks() map[TaskType]*TaskCooldown {
	return map[TaskType]*TaskCooldown{
		TaskVideo: {},
		TaskShort: {},
	}
}

func DefaultUIState() UIState {
	return UIState{LastView: "home", DashTab: "overview"}
}

func DefaultUserGameState(now time.Time) *UserGameState {
	return &UserGameState{
		Daily: DefaultDailyState(now),
		Tasks: DefaultTasks(),
		Offers: OfferBoard{
			UTCDate: UTCDateKey(now),
			Items:   []Offer{},
			Claimed: make(map[string]bool),
		},
		Achievements: AchievementState{
			Unlocked: make(map[string]int64),
			Claimed:  make(map[string]bool),
		},
		Notifications:  []Notification{},
		Ledger:         []LedgerEntry{},
		Vps:            VpsState{Instances: []*VpsInstance{}},
		UI:             DefaultUIState(),
		PromoClaimed:   make(map[string]bool),
		RemoteSessions: []RemoteSession{},
	}
}

func (s *UserGameState) UnreadCount() int {
	n := 0
	for _, item := range s.Notifications {
		if !item.Read {
			n++
		}
	}
	return n
}

// PushNotification prepends and trims to MaxNotifications.
func (s *UserGameState) PushNotification(n Notification) {
	s.Notifications = append([]Notification{n}, s.Notifications...)
	if len(s.Notifications) > MaxNotifications {
		s.Notifications = s.Notifications[:MaxNotifications]
	}
}

// AppendLedger prepends and trims to MaxLedgerEntries.
func (s *UserGameState) AppendLedger(e LedgerEntry) {
	s.Ledger = append([]LedgerEntry{e}, s.Ledger...)
	if len(s.Ledger) > MaxLedgerEntries {
		s.Ledger = s.Ledger[:MaxLedgerEntries]
	}
}
