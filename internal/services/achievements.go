package services

import (
	"fmt"

	"cloudvps-backend/internal/models"
)

type AchievementView struct {
	models.Achievement
	Current    int64 `json:"current"`
	Target     int64 `json:"target"`
	UnlockedAt int64 `json:"unlocked_at,omitempty"`
	Claimed    bool  `json:"claimed"`
}

// evaluateAchievements stamps every achievement whose goal has just been
// reached. Callers hold e.mu.
func (e *Engine) evaluateAchievements(userID string, s *models.UserGameState) []string {
	var unlocked []string
	for _, ach := range models.Achievements {
		if _, ok := s.Achievements.Unlocked[ach.ID]; ok {
			continue
		}
		current, goal := ach.Progress(s)
		if current < goal {
			continue
		}
		s.Achievements.Unlocked[ach.ID] = e.now().UnixMilli()
		e.notify(userID, s, "good",
			fmt.Sprintf("Achievement unlocked: %s", ach.Title),
			fmt.Sprintf("Claim +%d points.", ach.Reward))
		unlocked = append(unlocked, ach.ID)
	}
	return unlocked
}

func (e *Engine) Achievements(userID string) ([]AchievementView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}

	views := make([]AchievementView, 0, len(models.Achievements))
	for _, ach := range models.Achievements {
		current, goal := ach.Progress(s)
		views = append(views, AchievementView{
			Achievement: ach,
			Current:     current,
			Target:      goal,
			UnlockedAt:  s.Achievements.Unlocked[ach.ID],
			Claimed:     s.Achievements.Claimed[ach.ID],
		})
	}
	return views, nil
}

// ClaimAchievement pays the reward once. A repeated claim returns
// ErrAlreadyClaimed and changes nothing.
func (e *Engine) ClaimAchievement(userID, id string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return 0, err
	}

	ach, ok := models.FindAchievement(id)
	if !ok {
		return 0, ErrUnknownAchievement
	}
	if _, ok := s.Achievements.Unlocked[id]; !ok {
		return 0, ErrNotUnlocked
	}
	if s.Achievements.Claimed[id] {
		return 0, ErrAlreadyClaimed
	}

	e.claim(userID, s, ach)
	e.commit(userID, "achievement")
	return ach.Reward, nil
}

// ClaimAllAchievements claims every unlocked, unclaimed achievement and
// returns the total paid.
func (e *Engine) ClaimAllAchievements(userID string) (int64, []string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return 0, nil, err
	}

	var total int64
	var ids []string
	for _, ach := range models.Achievements {
		if _, ok := s.Achievements.Unlocked[ach.ID]; !ok || s.Achievements.Claimed[ach.ID] {
			continue
		}
		e.claim(userID, s, ach)
		total += ach.Reward
		ids = append(ids, ach.ID)
	}

	if len(ids) == 0 {
		return 0, nil, ErrNothingToClaim
	}
	e.commit(userID, "achievement")
	return total, ids, nil
}

func (e *Engine) claim(userID string, s *models.UserGameState, ach models.Achievement) {
	s.Achievements.Claimed[ach.ID] = true
	e.addPoints(userID, s, ach.Reward, fmt.Sprintf("Achievement: %s", ach.Title), models.LedgerEarn,
		map[string]interface{}{"kind": "achievement", "id": ach.ID})
}
