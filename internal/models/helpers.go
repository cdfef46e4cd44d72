package models

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

func NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.New().String(), "-", ""))
}

func UTCDateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func YesterdayUTCKey(t time.Time) string {
	return UTCDateKey(t.UTC().AddDate(0, 0, -1))
}

func FormatHHMMSS(totalSec int64) string {
	if totalSec < 0 {
		totalSec = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", totalSec/3600, (totalSec%3600)/60, totalSec%60)
}

// RandInt returns an integer in [min, max].
func RandInt(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}

func RandomIPv4(rng *rand.Rand) string {
	return fmt.Sprintf("%d.%d.%d.%d",
		RandInt(rng, 11, 223), RandInt(rng, 0, 255), RandInt(rng, 0, 255), RandInt(rng, 1, 254))
}

var (
	hostPrefixes = []string{"nova", "nebula", "orion", "atlas", "zen", "luna", "aero", "vertex"}
	hostSuffixes = []string{"node", "vps", "edge", "cloud", "core", "spark"}
)

func RandomHostname(rng *rand.Rand) string {
	return fmt.Sprintf("%s-%s-%d",
		hostPrefixes[rng.Intn(len(hostPrefixes))],
		hostSuffixes[rng.Intn(len(hostSuffixes))],
		RandInt(rng, 10, 99))
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// LegacyPassHash reproduces the FNV-1a digest older documents stored.
func LegacyPassHash(password string) string {
	h := fnv.New32a()
	h.Write([]byte(password))
	return fmt.Sprintf("%08x", h.Sum32())
}

// RefCode derives the referral code from the tail of the user id.
func RefCode(userID string) string {
	var b strings.Builder
	for _, r := range userID {
		if r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	part := b.String()
	if len(part) > 6 {
		part = part[len(part)-6:]
	}
	if part == "" {
		part = "XXXXXX"
	}
	return "CLOUD-" + strings.ToUpper(part)
}

type Level struct {
	Level       int64   `json:"level"`
	CurrentBase int64   `json:"current_base"`
	NextBase    int64   `json:"next_base"`
	Progress    float64 `json:"progress"`
}

// LevelFromXP: level n starts at (n-1)^2 * 100 xp.
func LevelFromXP(xp int64) Level {
	if xp < 0 {
		xp = 0
	}
	lvl := int64(math.Floor(math.Sqrt(float64(xp)/100))) + 1
	current := (lvl - 1) * (lvl - 1) * 100
	next := lvl * lvl * 100
	progress := 0.0
	if next != current {
		progress = float64(xp-current) / float64(next-current)
	}
	return Level{
		Level:       lvl,
		CurrentBase: current,
		NextBase:    next,
		Progress:    math.Max(0, math.Min(1, progress)),
	}
}

func ClampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
