package models

import "time"

type Plan struct {
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	CPU           int     `json:"cpu"`
	RAM           float64 `json:"ram"`
	Disk          float64 `json:"disk"`
	PointsPerHour int64   `json:"points_per_hour"`
	Badge         string  `json:"badge"`
}

var PlanOrder = []string{"free", "micro", "pro", "ultra"}

var Plans = map[string]Plan{
	"free":  {ID: "free", Label: "Free", CPU: 1, RAM: 8, Disk: 50, PointsPerHour: 50, Badge: "Best value"},
	"micro": {ID: "micro", Label: "Micro", CPU: 1, RAM: 2, Disk: 25, PointsPerHour: 25, Badge: "Cheapest"},
	"pro":   {ID: "pro", Label: "Pro", CPU: 2, RAM: 16, Disk: 100, PointsPerHour: 120, Badge: "Power"},
	"ultra": {ID: "ultra", Label: "Ultra", CPU: 4, RAM: 32, Disk: 200, PointsPerHour: 220, Badge: "Beast"},
}

// PlanSpec falls back to the free plan for unknown ids.
func PlanSpec(id string) Plan {
	if p, ok := Plans[id]; ok {
		return p
	}
	return Plans["free"]
}

var Regions = []string{"Singapore", "Tokyo", "Frankfurt", "New York", "London", "Sydney"}

type Image struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var Images = []Image{
	{ID: "ubuntu-22", Label: "Ubuntu 22.04 LTS"},
	{ID: "debian-12", Label: "Debian 12"},
	{ID: "alpine-3", Label: "Alpine 3"},
	{ID: "centos-9", Label: "CentOS Stream 9"},
}

func ValidRegion(r string) bool {
	for _, known := range Regions {
		if known == r {
			return true
		}
	}
	return false
}

func ValidImage(id string) bool {
	for _, img := range Images {
		if img.ID == id {
			return true
		}
	}
	return false
}

type TaskType string

const (
	TaskVideo   TaskType = "video"
	TaskShort   TaskType = "short"
	TaskDaily   TaskType = "daily"
	TaskCheckin TaskType = "checkin"
	TaskOffer   TaskType = "offer"
)

type TaskRule struct {
	Reward   int64
	Cooldown time.Duration
	Label    string
}

var TaskRules = map[TaskType]TaskRule{
	TaskVideo:   {Reward: 5, Cooldown: 45 * time.Second, Label: "Watched Ad"},
	TaskShort:   {Reward: 2, Cooldown: 25 * time.Second, Label: "Short Link Completed"},
	TaskDaily:   {Reward: 10, Label: "Daily Mission Claimed"},
	TaskCheckin: {Label: "Daily Check-in"},
	TaskOffer:   {Label: "Offerwall Completed"},
}

const (
	CheckinBaseReward  int64 = 2
	CheckinMaxBonus    int64 = 10
	ReferralReward     int64 = 30
	ReferralDailyLimit       = 5
	OffersPerDay             = 4
)

type ChainRule struct {
	Target int
	Within time.Duration
	Bonus  int64
}

// VideoChain: watch 3 ads within 15 minutes for +10.
var VideoChain = ChainRule{Target: 3, Within: 15 * time.Minute, Bonus: 10}

type Promo struct {
	Reward int64
	Once   bool
	Label  string
}

var PromoCodes = map[string]Promo{
	"BUFFBAN1000": {Reward: 1000, Once: true, Label: "Buff Bẩn Admin"},
	"WELCOME50":   {Reward: 50, Once: true, Label: "Welcome bonus"},
	"BOOST10":     {Reward: 10, Once: false, Label: "Small boost"},
	"CLOUD25":     {Reward: 25, Once: true, Label: "Cloud drop"},
}

type OfferTemplate struct {
	Icon   string
	Title  string
	Reward int64
	ETA    string
}

var OfferPool = []OfferTemplate{
	{Icon: "🧪", Title: "Install a browser extension", Reward: 12, ETA: "2–3 min"},
	{Icon: "📝", Title: "Complete a quick survey", Reward: 18, ETA: "3–4 min"},
	{Icon: "🎮", Title: "Play a game for 2 minutes", Reward: 14, ETA: "2–3 min"},
	{Icon: "📱", Title: "Open an app landing page", Reward: 9, ETA: "1–2 min"},
	{Icon: "🧩", Title: "Solve a tiny puzzle", Reward: 11, ETA: "1–2 min"},
	{Icon: "🛍️", Title: "Visit a store page", Reward: 8, ETA: "1–2 min"},
	{Icon: "📺", Title: "Watch a longer video", Reward: 22, ETA: "4–5 min"},
}
