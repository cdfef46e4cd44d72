package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloudvps-backend/internal/models"
)

type TaskResult struct {
	Task       models.TaskType `json:"task,omitempty"`
	Reward     int64           `json:"reward"`
	ChainBonus int64           `json:"chain_bonus,omitempty"`
	Streak     int64           `json:"streak,omitempty"`
	Balance    int64           `json:"balance"`
}

type TaskState struct {
	Task        models.TaskType `json:"task"`
	Reward      int64           `json:"reward"`
	Available   bool            `json:"available"`
	CooldownMs  int64           `json:"cooldown_ms,omitempty"`
	ClaimedDate string          `json:"claimed_date,omitempty"`
}

type TaskStatusResponse struct {
	UTCDate        string      `json:"utc_date"`
	EarnedToday    int64       `json:"earned_today"`
	Streak         int64       `json:"streak"`
	ChainCount     int         `json:"chain_count"`
	ChainTarget    int         `json:"chain_target"`
	ReferralsToday int         `json:"referrals_today"`
	RefCode        string      `json:"ref_code"`
	Tasks          []TaskState `json:"tasks"`
}

// normalizeDaily performs the lazy reset when the stored UTC day is not
// today. Callers hold e.mu.
func (e *Engine) normalizeDaily(s *models.UserGameState) {
	now := e.now()
	today := models.UTCDateKey(now)
	if s.Daily.UTCDate != today {
		s.Daily.UTCDate = today
		s.Daily.Earned = 0
		s.Daily.DailyClaimedUTCDate = ""
		s.Daily.CheckinClaimedUTCDate = ""
		s.Daily.ReferralsToday = 0
		s.Daily.VideoChainCount = 0
		s.Daily.VideoChainLastMs = 0
		e.ensureOffers(s, true)
		e.persister.MarkDirty()
		return
	}
	e.ensureOffers(s, false)
}

func (e *Engine) ensureOffers(s *models.UserGameState, force bool) {
	today := models.UTCDateKey(e.now())
	if !force && s.Offers.UTCDate == today && len(s.Offers.Items) > 0 {
		return
	}
	s.Offers.UTCDate = today
	s.Offers.Items = e.generateOffers()
	s.Offers.Claimed = make(map[string]bool)
	e.persister.MarkDirty()
}

// generateOffers picks distinct templates with a small reward jitter.
func (e *Engine) generateOffers() []models.Offer {
	n := models.OffersPerDay
	if n > len(models.OfferPool) {
		n = len(models.OfferPool)
	}
	picks := make([]models.Offer, 0, n)
	for _, idx := range e.rng.Perm(len(models.OfferPool))[:n] {
		tpl := models.OfferPool[idx]
		picks = append(picks, models.Offer{
			ID:     models.NewID("offer"),
			Icon:   tpl.Icon,
			Title:  tpl.Title,
			Reward: tpl.Reward + int64(models.RandInt(e.rng, -2, 3)),
			ETA:    tpl.ETA,
		})
	}
	return picks
}

func (e *Engine) cooldownRemaining(s *models.UserGameState, task models.TaskType) time.Duration {
	cd, ok := s.Tasks[task]
	if !ok || cd == nil {
		return 0
	}
	rem := cd.CooldownUntilMs - e.now().UnixMilli()
	if rem <= 0 {
		return 0
	}
	return time.Duration(rem) * time.Millisecond
}

func checkinReward(streak int64) int64 {
	bonus := streak
	if bonus < 0 {
		bonus = 0
	}
	if bonus > models.CheckinMaxBonus {
		bonus = models.CheckinMaxBonus
	}
	return models.CheckinBaseReward + bonus
}

// checkTask reports why a task cannot run right now.
func (e *Engine) checkTask(s *models.UserGameState, task models.TaskType) error {
	today := models.UTCDateKey(e.now())
	switch task {
	case models.TaskDaily:
		if s.Daily.DailyClaimedUTCDate == today {
			return ErrDailyClaimed
		}
	case models.TaskCheckin:
		if s.Daily.CheckinClaimedUTCDate == today {
			return ErrCheckinClaimed
		}
	case models.TaskVideo, models.TaskShort:
		if rem := e.cooldownRemaining(s, task); rem > 0 {
			return &CooldownError{Task: string(task), Remaining: rem}
		}
	default:
		return ErrInvalidTask
	}
	return nil
}

// RunTask completes a video, short link, daily mission or check-in after
// the simulated verification delay. The checks run again after the delay,
// so two concurrent requests cannot both be paid.
func (e *Engine) RunTask(ctx context.Context, userID string, task models.TaskType) (*TaskResult, error) {
	e.mu.Lock()
	s, err := e.state(userID)
	if err == nil {
		err = e.checkTask(s, task)
	}
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := e.simulateDelay(ctx, 0, 0); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, err = e.state(userID)
	if err != nil {
		return nil, err
	}
	if err := e.checkTask(s, task); err != nil {
		return nil, err
	}

	now := e.now()
	today := models.UTCDateKey(now)
	rule := models.TaskRules[task]
	res := &TaskResult{Task: task}
	meta := map[string]interface{}{"kind": "task", "task": string(task)}

	switch task {
	case models.TaskVideo:
		s.Stats.VideoWatched++
		s.Tasks[task] = &models.TaskCooldown{CooldownUntilMs: now.Add(rule.Cooldown).UnixMilli()}
		e.addPoints(userID, s, rule.Reward, rule.Label, models.LedgerEarn, meta)
		res.Reward = rule.Reward
		res.ChainBonus = e.updateVideoChain(userID, s)
		e.notify(userID, s, "good", fmt.Sprintf("+%d points", rule.Reward), "Video ad completed.")

	case models.TaskShort:
		s.Stats.ShortCompleted++
		s.Tasks[task] = &models.TaskCooldown{CooldownUntilMs: now.Add(rule.Cooldown).UnixMilli()}
		e.addPoints(userID, s, rule.Reward, rule.Label, models.LedgerEarn, meta)
		res.Reward = rule.Reward
		e.notify(userID, s, "good", fmt.Sprintf("+%d points", rule.Reward), "Short link verified.")

	case models.TaskDaily:
		s.Daily.DailyClaimedUTCDate = today
		e.addPoints(userID, s, rule.Reward, rule.Label, models.LedgerEarn, meta)
		res.Reward = rule.Reward
		e.notify(userID, s, "good", fmt.Sprintf("+%d points", rule.Reward), "Daily mission claimed.")

	case models.TaskCheckin:
		switch s.Daily.StreakLastUTCDate {
		case models.YesterdayUTCKey(now):
			s.Daily.StreakCount++
		case today:
		default:
			s.Daily.StreakCount = 1
		}
		s.Daily.StreakLastUTCDate = today
		s.Daily.CheckinClaimedUTCDate = today

		reward := checkinReward(s.Daily.StreakCount)
		meta["streak"] = s.Daily.StreakCount
		e.addPoints(userID, s, reward, rule.Label, models.LedgerEarn, meta)
		res.Reward = reward
		res.Streak = s.Daily.StreakCount
		e.notify(userID, s, "good", fmt.Sprintf("+%d points", reward),
			fmt.Sprintf("Check-in complete. Streak: %d day(s).", s.Daily.StreakCount))
	}

	res.Balance = s.PointsBalance
	e.commit(userID, "task")
	return res, nil
}

// updateVideoChain advances the ad chain and pays the bonus when the
// target is reached inside the window. A gap longer than the window
// restarts the count.
func (e *Engine) updateVideoChain(userID string, s *models.UserGameState) int64 {
	nowMs := e.now().UnixMilli()
	if nowMs-s.Daily.VideoChainLastMs > models.VideoChain.Within.Milliseconds() {
		s.Daily.VideoChainCount = 0
	}
	s.Daily.VideoChainCount++
	s.Daily.VideoChainLastMs = nowMs

	if s.Daily.VideoChainCount < models.VideoChain.Target {
		return 0
	}
	s.Daily.VideoChainCount = 0
	e.addPoints(userID, s, models.VideoChain.Bonus, "Video chain bonus", models.LedgerEarn,
		map[string]interface{}{"kind": "bonus", "task": "videoChain"})
	e.notify(userID, s, "good", fmt.Sprintf("Chain bonus +%d", models.VideoChain.Bonus),
		fmt.Sprintf("Watched %d ads in time. Bonus granted.", models.VideoChain.Target))
	return models.VideoChain.Bonus
}

func (e *Engine) TaskStatus(userID string) (*TaskStatusResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}

	today := models.UTCDateKey(e.now())
	resp := &TaskStatusResponse{
		UTCDate:        s.Daily.UTCDate,
		EarnedToday:    s.Daily.Earned,
		Streak:         s.Daily.StreakCount,
		ChainCount:     s.Daily.VideoChainCount,
		ChainTarget:    models.VideoChain.Target,
		ReferralsToday: s.Daily.ReferralsToday,
		RefCode:        s.RefCode,
	}
	for _, task := range []models.TaskType{models.TaskVideo, models.TaskShort} {
		rem := e.cooldownRemaining(s, task)
		resp.Tasks = append(resp.Tasks, TaskState{
			Task:       task,
			Reward:     models.TaskRules[task].Reward,
			Available:  rem == 0,
			CooldownMs: rem.Milliseconds(),
		})
	}
	resp.Tasks = append(resp.Tasks,
		TaskState{
			Task:        models.TaskDaily,
			Reward:      models.TaskRules[models.TaskDaily].Reward,
			Available:   s.Daily.DailyClaimedUTCDate != today,
			ClaimedDate: s.Daily.DailyClaimedUTCDate,
		},
		TaskState{
			Task:        models.TaskCheckin,
			Reward:      checkinReward(nextStreak(s, e.now())),
			Available:   s.Daily.CheckinClaimedUTCDate != today,
			ClaimedDate: s.Daily.CheckinClaimedUTCDate,
		},
	)
	return resp, nil
}

// nextStreak is the streak a check-in made now would produce.
func nextStreak(s *models.UserGameState, now time.Time) int64 {
	switch s.Daily.StreakLastUTCDate {
	case models.YesterdayUTCKey(now):
		return s.Daily.StreakCount + 1
	case models.UTCDateKey(now):
		return s.Daily.StreakCount
	}
	return 1
}

type OfferView struct {
	models.Offer
	Completed bool `json:"completed"`
}

func (e *Engine) Offers(userID string) ([]OfferView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}

	out := make([]OfferView, 0, len(s.Offers.Items))
	for _, o := range s.Offers.Items {
		out = append(out, OfferView{Offer: o, Completed: s.Offers.Claimed[o.ID]})
	}
	return out, nil
}

func (e *Engine) checkOffer(s *models.UserGameState, offerID string) (models.Offer, error) {
	if s.Offers.Claimed[offerID] {
		return models.Offer{}, ErrOfferCompleted
	}
	for _, o := range s.Offers.Items {
		if o.ID == offerID {
			return o, nil
		}
	}
	return models.Offer{}, ErrOfferNotFound
}

// CompleteOffer verifies an offerwall item after a slightly longer delay.
func (e *Engine) CompleteOffer(ctx context.Context, userID, offerID string) (*TaskResult, error) {
	e.mu.Lock()
	s, err := e.state(userID)
	if err == nil {
		_, err = e.checkOffer(s, offerID)
	}
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := e.simulateDelay(ctx, 200*time.Millisecond, 400*time.Millisecond); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, err = e.state(userID)
	if err != nil {
		return nil, err
	}
	offer, err := e.checkOffer(s, offerID)
	if err != nil {
		return nil, err
	}

	s.Offers.Claimed[offerID] = true
	s.Stats.OffersCompleted++
	label := models.TaskRules[models.TaskOffer].Label
	e.addPoints(userID, s, offer.Reward, fmt.Sprintf("%s: %s", label, offer.Title), models.LedgerEarn,
		map[string]interface{}{"kind": "offer", "offerId": offerID})
	e.notify(userID, s, "good", fmt.Sprintf("Offer complete +%d", offer.Reward), offer.Title)

	e.commit(userID, "offer")
	return &TaskResult{Task: models.TaskOffer, Reward: offer.Reward, Balance: s.PointsBalance}, nil
}

// RedeemPromo is case-insensitive. One-time codes are rejected on reuse.
func (e *Engine) RedeemPromo(userID, raw string) (*TaskResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return nil, ErrEmptyPromo
	}
	promo, ok := models.PromoCodes[code]
	if !ok {
		return nil, ErrInvalidPromo
	}
	if promo.Once && s.PromoClaimed[code] {
		return nil, ErrPromoUsed
	}

	s.PromoClaimed[code] = true
	e.addPoints(userID, s, promo.Reward, fmt.Sprintf("Promo code: %s", code), models.LedgerEarn,
		map[string]interface{}{"kind": "promo", "code": code})
	e.notify(userID, s, "good", fmt.Sprintf("Promo redeemed +%d", promo.Reward),
		fmt.Sprintf("%s: %s", code, promo.Label))

	e.commit(userID, "promo")
	return &TaskResult{Reward: promo.Reward, Balance: s.PointsBalance}, nil
}

// SimulateReferral credits a fake sign-up with the user's referral code.
func (e *Engine) SimulateReferral(userID string) (*TaskResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}
	if s.Daily.ReferralsToday >= models.ReferralDailyLimit {
		return nil, ErrReferralLimit
	}

	s.Daily.ReferralsToday++
	s.Stats.Referrals++
	e.addPoints(userID, s, models.ReferralReward, "Referral bonus", models.LedgerEarn,
		map[string]interface{}{"kind": "referral"})
	e.notify(userID, s, "good", fmt.Sprintf("Referral +%d", models.ReferralReward),
		"A friend signed up with your code.")

	e.commit(userID, "referral")
	return &TaskResult{Reward: models.ReferralReward, Balance: s.PointsBalance}, nil
}
