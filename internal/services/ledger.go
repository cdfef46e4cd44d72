package services

import (
	"cloudvps-backend/internal/models"
)

// addPoints applies a delta, clamping the balance, records one ledger
// entry with the before/after balance and re-evaluates achievements.
// Callers hold e.mu.
func (e *Engine) addPoints(userID string, s *models.UserGameState, delta int64, title string, kind models.LedgerType, meta map[string]interface{}) models.LedgerEntry {
	before := s.PointsBalance
	s.PointsBalance = models.ClampPoints(before + delta)

	if delta > 0 {
		s.Lifetime.Earned += delta
		s.Daily.Earned += delta
	} else if delta < 0 {
		s.Lifetime.Spent += -delta
	}

	if meta == nil {
		meta = map[string]interface{}{}
	}
	entry := models.LedgerEntry{
		ID:            models.NewID("l"),
		TS:            e.now().UnixMilli(),
		Title:         title,
		Delta:         delta,
		Type:          kind,
		Meta:          meta,
		BalanceAfter:  s.PointsBalance,
		BalanceBefore: before,
	}
	s.AppendLedger(entry)

	e.evaluateAchievements(userID, s)
	return entry
}

func (e *Engine) ensureEnoughPoints(s *models.UserGameState, cost int64) error {
	if s.PointsBalance >= cost {
		return nil
	}
	return &InsufficientPointsError{Need: cost, Balance: s.PointsBalance}
}

// AddPoints is the administrative entry point to the ledger.
func (e *Engine) AddPoints(userID string, delta int64, title string) (*models.LedgerEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}

	kind := models.LedgerEarn
	if delta < 0 {
		kind = models.LedgerSpend
	}
	entry := e.addPoints(userID, s, delta, title, kind, map[string]interface{}{"kind": "admin"})
	e.commit(userID, "points")
	return &entry, nil
}

func (e *Engine) Balance(userID string) (*models.BalanceResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}
	return &models.BalanceResponse{
		Balance:       s.PointsBalance,
		LifetimeEarn:  s.Lifetime.Earned,
		LifetimeSpent: s.Lifetime.Spent,
		EarnedToday:   s.Daily.Earned,
	}, nil
}

// Ledger returns up to limit entries, most recent first, filtered by type
// when kind is non-empty.
func (e *Engine) Ledger(userID string, kind models.LedgerType, limit int) ([]models.LedgerEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.LedgerEntry, 0, len(s.Ledger))
	for _, entry := range s.Ledger {
		if kind != "" && entry.Type != kind {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
