package services

import (
	"encoding/json"
	"log"
	"time"

	"cloudvps-backend/internal/models"
)

// Migrate turns whatever was stored into a current-version document.
// Absent, corrupt or unversioned input yields a fresh default document.
// Migrating an already migrated document changes nothing.
func Migrate(raw []byte, now time.Time) *models.Document {
	nowMs := now.UnixMilli()
	if len(raw) == 0 {
		return models.DefaultDocument(nowMs)
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		log.Printf("Stored document is corrupt, starting fresh: %v", err)
		return models.DefaultDocument(nowMs)
	}
	if _, ok := generic["version"]; !ok {
		return models.DefaultDocument(nowMs)
	}

	legacy := extractLegacyVps(generic)

	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		// A field of the wrong type; salvage what decodes per section.
		log.Printf("Stored document has unexpected shape, salvaging: %v", err)
		doc = salvageDocument(generic)
	}

	backfillDocument(&doc, nowMs)

	for userID := range doc.Users {
		state, ok := doc.PerUser[userID]
		if !ok || state == nil {
			doc.PerUser[userID] = models.DefaultUserGameState(now)
			continue
		}
		if inst, ok := legacy[userID]; ok {
			state.Vps = models.VpsState{SelectedID: inst.ID, Instances: []*models.VpsInstance{inst}}
		}
		backfillUserState(state, userID, now)
	}

	if doc.Sessions.CurrentUserID != "" {
		if _, ok := doc.Users[doc.Sessions.CurrentUserID]; !ok {
			doc.Sessions.CurrentUserID = ""
		}
	}

	doc.Version = models.SchemaVersion
	return &doc
}

type legacyVps struct {
	Plan        string          `json:"plan"`
	Region      string          `json:"region"`
	Image       string          `json:"image"`
	Status      string          `json:"status"`
	TimeLeftSec int64           `json:"timeLeftSec"`
	LastTickMs  int64           `json:"lastTickMs"`
	CreatedAt   int64           `json:"createdAt"`
	IPv4        string          `json:"ipv4"`
	Hostname    string          `json:"hostname"`
	Metrics     *models.Metrics `json:"metrics"`
}

// extractLegacyVps finds users whose vps is the pre-instances single
// machine shape, converts each to an instance and blanks the source so the
// typed decode does not trip over it.
func extractLegacyVps(generic map[string]json.RawMessage) map[string]*models.VpsInstance {
	out := make(map[string]*models.VpsInstance)

	var perUser map[string]map[string]json.RawMessage
	if err := json.Unmarshal(generic["perUser"], &perUser); err != nil || perUser == nil {
		return out
	}

	changed := false
	for userID, state := range perUser {
		if state == nil {
			continue
		}
		rawVps, ok := state["vps"]
		if !ok {
			continue
		}
		var shape map[string]json.RawMessage
		if err := json.Unmarshal(rawVps, &shape); err != nil || shape == nil {
			continue
		}
		if isArray(shape["instances"]) || !hasLegacyMarker(shape) {
			continue
		}

		var old legacyVps
		json.Unmarshal(rawVps, &old)
		out[userID] = convertLegacyVps(old)
		state["vps"] = json.RawMessage(`{"selectedId":"","instances":[]}`)
		changed = true
	}

	if changed {
		if data, err := json.Marshal(perUser); err == nil {
			generic["perUser"] = data
		}
	}
	return out
}

func hasLegacyMarker(shape map[string]json.RawMessage) bool {
	for _, key := range []string{"plan", "status", "hostname", "timeLeftSec"} {
		if _, ok := shape[key]; ok {
			return true
		}
	}
	return false
}

func isArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

func convertLegacyVps(old legacyVps) *models.VpsInstance {
	inst := &models.VpsInstance{
		ID:          models.NewID("vps"),
		Name:        old.Hostname,
		Plan:        old.Plan,
		Region:      old.Region,
		Image:       old.Image,
		Status:      models.InstanceStatus(old.Status),
		TimeLeftSec: old.TimeLeftSec,
		LastTickMs:  old.LastTickMs,
		CreatedAt:   old.CreatedAt,
		IPv4:        old.IPv4,
		Hostname:    old.Hostname,
	}
	if inst.Name == "" {
		inst.Name = "free-vps"
	}
	if inst.Plan == "" {
		inst.Plan = "free"
	}
	if inst.Region == "" {
		inst.Region = "Singapore"
	}
	if inst.Image == "" {
		inst.Image = "ubuntu-22"
	}
	if old.Metrics != nil {
		inst.Metrics = *old.Metrics
	}
	return inst
}

// salvageDocument decodes each top-level section on its own, dropping the
// ones that do not fit.
func salvageDocument(generic map[string]json.RawMessage) models.Document {
	var doc models.Document
	json.Unmarshal(generic["version"], &doc.Version)
	if err := json.Unmarshal(generic["users"], &doc.Users); err != nil {
		doc.Users = nil
	}
	if err := json.Unmarshal(generic["sessions"], &doc.Sessions); err != nil {
		doc.Sessions = models.Sessions{}
	}
	if err := json.Unmarshal(generic["meta"], &doc.Meta); err != nil {
		doc.Meta = models.Meta{}
	}

	var perUser map[string]json.RawMessage
	json.Unmarshal(generic["perUser"], &perUser)
	doc.PerUser = make(map[string]*models.UserGameState, len(perUser))
	for userID, rawState := range perUser {
		var state models.UserGameState
		if err := json.Unmarshal(rawState, &state); err != nil {
			continue
		}
		doc.PerUser[userID] = &state
	}
	return doc
}

func backfillDocument(doc *models.Document, nowMs int64) {
	if doc.Meta.CreatedAt == 0 {
		doc.Meta.CreatedAt = nowMs
	}
	if doc.Meta.UpdatedAt == 0 {
		doc.Meta.UpdatedAt = nowMs
	}
	if doc.Meta.Prefs == (models.Prefs{}) {
		doc.Meta.Prefs = models.DefaultPrefs()
	}
	if doc.Meta.ResetTokens == nil {
		doc.Meta.ResetTokens = make(map[string]models.ResetToken)
	}
	if doc.Users == nil {
		doc.Users = make(map[string]*models.User)
	}
	if doc.PerUser == nil {
		doc.PerUser = make(map[string]*models.UserGameState)
	}
	for id, u := range doc.Users {
		if u == nil {
			delete(doc.Users, id)
			continue
		}
		if u.ID == "" {
			u.ID = id
		}
		if u.Provider == "" {
			u.Provider = models.ProviderEmail
		}
	}
}

func backfillUserState(s *models.UserGameState, userID string, now time.Time) {
	s.PointsBalance = models.ClampPoints(s.PointsBalance)
	if s.Lifetime.Earned < 0 {
		s.Lifetime.Earned = 0
	}
	if s.Lifetime.Spent < 0 {
		s.Lifetime.Spent = 0
	}

	if s.Daily.UTCDate == "" {
		s.Daily.UTCDate = models.UTCDateKey(now)
	}
	if s.Tasks == nil {
		s.Tasks = models.DefaultTasks()
	}
	for task, cd := range models.DefaultTasks() {
		if s.Tasks[task] == nil {
			s.Tasks[task] = cd
		}
	}
	if s.Offers.Items == nil {
		s.Offers.Items = []models.Offer{}
	}
	if s.Offers.Claimed == nil {
		s.Offers.Claimed = make(map[string]bool)
	}
	if s.Achievements.Unlocked == nil {
		s.Achievements.Unlocked = make(map[string]int64)
	}
	if s.Achievements.Claimed == nil {
		s.Achievements.Claimed = make(map[string]bool)
	}
	if s.Notifications == nil {
		s.Notifications = []models.Notification{}
	}
	if len(s.Notifications) > models.MaxNotifications {
		s.Notifications = s.Notifications[:models.MaxNotifications]
	}
	if s.Ledger == nil {
		s.Ledger = []models.LedgerEntry{}
	}
	if len(s.Ledger) > models.MaxLedgerEntries {
		s.Ledger = s.Ledger[:models.MaxLedgerEntries]
	}
	if s.UI == (models.UIState{}) {
		s.UI = models.DefaultUIState()
	}
	if s.PromoClaimed == nil {
		s.PromoClaimed = make(map[string]bool)
	}
	if s.RefCode == "" {
		s.RefCode = models.RefCode(userID)
	}
	if s.RemoteSessions == nil {
		s.RemoteSessions = []models.RemoteSession{}
	}
	if len(s.RemoteSessions) > models.MaxRemoteSessions {
		s.RemoteSessions = s.RemoteSessions[:models.MaxRemoteSessions]
	}

	repairVps(&s.Vps, now)
}

func repairVps(v *models.VpsState, now time.Time) {
	kept := make([]*models.VpsInstance, 0, len(v.Instances))
	for _, inst := range v.Instances {
		if inst != nil && inst.ID != "" {
			kept = append(kept, inst)
		}
	}
	if len(kept) > models.MaxInstances {
		kept = kept[:models.MaxInstances]
	}
	v.Instances = kept

	running := false
	for _, inst := range v.Instances {
		switch inst.Status {
		case models.StatusRunning:
			if running {
				inst.Status = models.StatusStopped
			}
			running = true
		case models.StatusProvisioning, models.StatusStopped:
		default:
			inst.Status = models.StatusStopped
		}
		if inst.TimeLeftSec < 0 {
			inst.TimeLeftSec = 0
		}
		if inst.LastTickMs == 0 {
			inst.LastTickMs = now.UnixMilli()
		}
		if _, ok := models.Plans[inst.Plan]; !ok {
			inst.Plan = "free"
		}
		if inst.History.CPU == nil {
			inst.History.CPU = []float64{}
		}
		if inst.History.TS == nil {
			inst.History.TS = []int64{}
		}
		if over := len(inst.History.CPU) - models.MaxHistorySamples; over > 0 {
			inst.History.CPU = inst.History.CPU[over:]
		}
		if over := len(inst.History.TS) - models.MaxHistorySamples; over > 0 {
			inst.History.TS = inst.History.TS[over:]
		}
	}

	if v.SelectedID != "" && v.Find(v.SelectedID) == nil {
		v.SelectedID = ""
	}
	if v.SelectedID == "" && len(v.Instances) > 0 {
		v.SelectedID = v.Instances[0].ID
	}
}
