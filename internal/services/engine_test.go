package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloudvps-backend/internal/models"
	"cloudvps-backend/internal/services"
)

func TestLedgerBalanceChain(t *testing.T) {
	engine, _, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)

	fund(t, engine, userID, 100)
	fund(t, engine, userID, -30)
	fund(t, engine, userID, -1000)

	bal, err := engine.Balance(userID)
	if err != nil {
		t.Fatalf("Failed to get balance: %v", err)
	}
	if bal.Balance != 0 {
		t.Errorf("Expected balance clamped to 0, got %d", bal.Balance)
	}
	if bal.LifetimeEarn != 100 {
		t.Errorf("Expected lifetime earned 100, got %d", bal.LifetimeEarn)
	}

	entries, err := engine.Ledger(userID, "", 0)
	if err != nil {
		t.Fatalf("Failed to get ledger: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 ledger entries, got %d", len(entries))
	}
	for i := 0; i < len(entries)-1; i++ {
		if entries[i].BalanceBefore != entries[i+1].BalanceAfter {
			t.Errorf("Entry %d balanceBefore %d does not match next balanceAfter %d",
				i, entries[i].BalanceBefore, entries[i+1].BalanceAfter)
		}
	}
	if entries[0].BalanceAfter != 0 || entries[0].BalanceBefore != 70 {
		t.Errorf("Expected last entry 70 -> 0, got %d -> %d", entries[0].BalanceBefore, entries[0].BalanceAfter)
	}

	spends, err := engine.Ledger(userID, models.LedgerSpend, 1)
	if err != nil {
		t.Fatalf("Failed to filter ledger: %v", err)
	}
	if len(spends) != 1 || spends[0].Type != models.LedgerSpend {
		t.Errorf("Expected one spend entry, got %+v", spends)
	}
}

func TestPromoCodes(t *testing.T) {
	engine, _, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)

	for i := 0; i < 2; i++ {
		if _, err := engine.RedeemPromo(userID, "boost10"); err != nil {
			t.Fatalf("Repeatable code should redeem again: %v", err)
		}
	}

	res, err := engine.RedeemPromo(userID, " WELCOME50 ")
	if err != nil {
		t.Fatalf("Failed to redeem: %v", err)
	}
	if res.Balance != 70 {
		t.Errorf("Expected balance 70, got %d", res.Balance)
	}

	if _, err := engine.RedeemPromo(userID, "welcome50"); !errors.Is(err, services.ErrPromoUsed) {
		t.Errorf("Expected ErrPromoUsed, got %v", err)
	}
	if _, err := engine.RedeemPromo(userID, "NOPE"); !errors.Is(err, services.ErrInvalidPromo) {
		t.Errorf("Expected ErrInvalidPromo, got %v", err)
	}
	if _, err := engine.RedeemPromo(userID, "  "); !errors.Is(err, services.ErrEmptyPromo) {
		t.Errorf("Expected ErrEmptyPromo, got %v", err)
	}

	bal, _ := engine.Balance(userID)
	if bal.Balance != 70 {
		t.Errorf("Rejected codes must not change the balance, got %d", bal.Balance)
	}
}

func TestVideoChainBonus(t *testing.T) {
	engine, clock, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)
	ctx := context.Background()

	var last *services.TaskResult
	for i := 0; i < 3; i++ {
		res, err := engine.RunTask(ctx, userID, models.TaskVideo)
		if err != nil {
			t.Fatalf("Video %d failed: %v", i+1, err)
		}
		last = res

		if i == 0 {
			_, err := engine.RunTask(ctx, userID, models.TaskVideo)
			var cd *services.CooldownError
			if !errors.As(err, &cd) {
				t.Fatalf("Expected cooldown error, got %v", err)
			}
		}
		clock.Advance(46 * time.Second)
	}

	if last.ChainBonus != models.VideoChain.Bonus {
		t.Errorf("Expected chain bonus %d, got %d", models.VideoChain.Bonus, last.ChainBonus)
	}
	if last.Balance != 3*5+10 {
		t.Errorf("Expected balance 25, got %d", last.Balance)
	}

	status, err := engine.TaskStatus(userID)
	if err != nil {
		t.Fatalf("Failed to get task status: %v", err)
	}
	if status.ChainCount != 0 {
		t.Errorf("Chain should restart after the bonus, got %d", status.ChainCount)
	}
}

func TestVideoChainResetsAfterWindow(t *testing.T) {
	engine, clock, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)
	ctx := context.Background()

	if _, err := engine.RunTask(ctx, userID, models.TaskVideo); err != nil {
		t.Fatalf("Video failed: %v", err)
	}
	clock.Advance(16 * time.Minute)
	if _, err := engine.RunTask(ctx, userID, models.TaskVideo); err != nil {
		t.Fatalf("Video failed: %v", err)
	}

	status, _ := engine.TaskStatus(userID)
	if status.ChainCount != 1 {
		t.Errorf("Expected chain count 1 after a long gap, got %d", status.ChainCount)
	}
}

func TestCheckinStreak(t *testing.T) {
	engine, clock, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)
	ctx := context.Background()

	res, err := engine.RunTask(ctx, userID, models.TaskCheckin)
	if err != nil {
		t.Fatalf("Check-in failed: %v", err)
	}
	if res.Streak != 1 || res.Reward != 3 {
		t.Errorf("Expected streak 1 reward 3, got streak %d reward %d", res.Streak, res.Reward)
	}

	if _, err := engine.RunTask(ctx, userID, models.TaskCheckin); !errors.Is(err, services.ErrCheckinClaimed) {
		t.Errorf("Expected ErrCheckinClaimed, got %v", err)
	}

	clock.Advance(24 * time.Hour)
	res, err = engine.RunTask(ctx, userID, models.TaskCheckin)
	if err != nil {
		t.Fatalf("Second check-in failed: %v", err)
	}
	if res.Streak != 2 || res.Reward != 4 {
		t.Errorf("Expected streak 2 reward 4, got streak %d reward %d", res.Streak, res.Reward)
	}

	clock.Advance(48 * time.Hour)
	res, err = engine.RunTask(ctx, userID, models.TaskCheckin)
	if err != nil {
		t.Fatalf("Third check-in failed: %v", err)
	}
	if res.Streak != 1 {
		t.Errorf("Missing a day should reset the streak, got %d", res.Streak)
	}
}

func TestDailyMissionOncePerDay(t *testing.T) {
	engine, clock, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)
	ctx := context.Background()

	if _, err := engine.RunTask(ctx, userID, models.TaskDaily); err != nil {
		t.Fatalf("Daily failed: %v", err)
	}
	if _, err := engine.RunTask(ctx, userID, models.TaskDaily); !errors.Is(err, services.ErrDailyClaimed) {
		t.Errorf("Expected ErrDailyClaimed, got %v", err)
	}

	clock.Advance(24 * time.Hour)
	bal, _ := engine.Balance(userID)
	if bal.EarnedToday != 0 {
		t.Errorf("Earned today should reset on a new UTC day, got %d", bal.EarnedToday)
	}
	if _, err := engine.RunTask(ctx, userID, models.TaskDaily); err != nil {
		t.Errorf("Daily should be available the next day: %v", err)
	}

	if _, err := engine.RunTask(ctx, userID, "bogus"); !errors.Is(err, services.ErrInvalidTask) {
		t.Errorf("Expected ErrInvalidTask, got %v", err)
	}
}

func TestCompleteOffer(t *testing.T) {
	engine, _, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)
	ctx := context.Background()

	offers, err := engine.Offers(userID)
	if err != nil {
		t.Fatalf("Failed to get offers: %v", err)
	}
	if len(offers) != models.OffersPerDay {
		t.Fatalf("Expected %d offers, got %d", models.OffersPerDay, len(offers))
	}

	res, err := engine.CompleteOffer(ctx, userID, offers[0].ID)
	if err != nil {
		t.Fatalf("Failed to complete offer: %v", err)
	}
	if res.Reward != offers[0].Reward {
		t.Errorf("Expected reward %d, got %d", offers[0].Reward, res.Reward)
	}

	if _, err := engine.CompleteOffer(ctx, userID, offers[0].ID); !errors.Is(err, services.ErrOfferCompleted) {
		t.Errorf("Expected ErrOfferCompleted, got %v", err)
	}
	if _, err := engine.CompleteOffer(ctx, userID, "offer_missing"); !errors.Is(err, services.ErrOfferNotFound) {
		t.Errorf("Expected ErrOfferNotFound, got %v", err)
	}
}

func TestReferralLimit(t *testing.T) {
	engine, _, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)

	for i := 0; i < models.ReferralDailyLimit; i++ {
		if _, err := engine.SimulateReferral(userID); err != nil {
			t.Fatalf("Referral %d failed: %v", i+1, err)
		}
	}
	if _, err := engine.SimulateReferral(userID); !errors.Is(err, services.ErrReferralLimit) {
		t.Errorf("Expected ErrReferralLimit, got %v", err)
	}

	bal, _ := engine.Balance(userID)
	if bal.Balance != int64(models.ReferralDailyLimit)*models.ReferralReward {
		t.Errorf("Unexpected balance %d", bal.Balance)
	}
}

func TestClaimAchievement(t *testing.T) {
	engine, _, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)

	reward, err := engine.ClaimAchievement(userID, models.AchievementFirstLogin)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if reward != 10 {
		t.Errorf("Expected reward 10, got %d", reward)
	}

	if _, err := engine.ClaimAchievement(userID, models.AchievementFirstLogin); !errors.Is(err, services.ErrAlreadyClaimed) {
		t.Errorf("Expected ErrAlreadyClaimed, got %v", err)
	}
	if _, err := engine.ClaimAchievement(userID, "first_vps"); !errors.Is(err, services.ErrNotUnlocked) {
		t.Errorf("Expected ErrNotUnlocked, got %v", err)
	}
	if _, err := engine.ClaimAchievement(userID, "nope"); !errors.Is(err, services.ErrUnknownAchievement) {
		t.Errorf("Expected ErrUnknownAchievement, got %v", err)
	}

	// The claim itself earned points, which unlocks first_earn.
	total, ids, err := engine.ClaimAllAchievements(userID)
	if err != nil {
		t.Fatalf("Failed to claim all: %v", err)
	}
	if total != 10 || len(ids) != 1 || ids[0] != "first_earn" {
		t.Errorf("Expected first_earn for 10, got %d %v", total, ids)
	}

	bal, _ := engine.Balance(userID)
	if bal.Balance != 20 {
		t.Errorf("Expected balance 20, got %d", bal.Balance)
	}

	if _, _, err := engine.ClaimAllAchievements(userID); !errors.Is(err, services.ErrNothingToClaim) {
		t.Errorf("Expected ErrNothingToClaim, got %v", err)
	}
}

func TestCreateFreeInstance(t *testing.T) {
	engine, _, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)
	fund(t, engine, userID, 300)

	inst, err := engine.CreateInstance(userID, models.CreateInstanceRequest{Plan: "free", Hours: 6})
	if err != nil {
		t.Fatalf("Failed to create instance: %v", err)
	}
	if inst.Status != models.StatusProvisioning {
		t.Errorf("Expected provisioning, got %s", inst.Status)
	}
	if inst.TimeLeftSec != 6*3600 {
		t.Errorf("Expected 21600 seconds, got %d", inst.TimeLeftSec)
	}

	bal, _ := engine.Balance(userID)
	if bal.Balance != 0 {
		t.Errorf("Expected balance 0 after paying 300, got %d", bal.Balance)
	}

	running := waitForStatus(t, engine, userID, inst.ID, models.StatusRunning)
	if running.IPv4 == "" || running.Hostname == "" {
		t.Error("Provisioned instance should have an address and hostname")
	}

	_, err = engine.CreateInstance(userID, models.CreateInstanceRequest{Plan: "free", Hours: 1})
	var insufficient *services.InsufficientPointsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientPointsError, got %v", err)
	}
	if insufficient.Need != 50 {
		t.Errorf("Expected need 50, got %d", insufficient.Need)
	}

	if _, err := engine.CreateInstance(userID, models.CreateInstanceRequest{Region: "Mars"}); !errors.Is(err, services.ErrInvalidInstance) {
		t.Errorf("Expected ErrInvalidInstance, got %v", err)
	}
}

func TestSwitchRequiresConfirmation(t *testing.T) {
	engine, _, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)
	fund(t, engine, userID, 1000)

	first, err := engine.CreateInstance(userID, models.CreateInstanceRequest{Name: "first", Plan: "micro", Hours: 1})
	if err != nil {
		t.Fatalf("Failed to create first: %v", err)
	}
	waitForStatus(t, engine, userID, first.ID, models.StatusRunning)

	second, err := engine.CreateInstance(userID, models.CreateInstanceRequest{Name: "second", Plan: "micro", Hours: 1})
	if err != nil {
		t.Fatalf("Failed to create second: %v", err)
	}
	waitForStatus(t, engine, userID, second.ID, models.StatusStopped)

	_, err = engine.StartInstance(userID, second.ID, false)
	var confirm *services.SwitchConfirmationError
	if !errors.As(err, &confirm) {
		t.Fatalf("Expected SwitchConfirmationError, got %v", err)
	}
	if confirm.RunningID != first.ID {
		t.Errorf("Expected running id %s, got %s", first.ID, confirm.RunningID)
	}
	if !errors.Is(err, services.ErrConfirmationNeeded) {
		t.Error("Switch confirmation should unwrap to ErrConfirmationNeeded")
	}

	if _, err := engine.StartInstance(userID, second.ID, true); err != nil {
		t.Fatalf("Confirmed switch failed: %v", err)
	}

	resp, _ := engine.Instances(userID)
	if resp.Running != 1 {
		t.Errorf("Expected exactly one running instance, got %d", resp.Running)
	}
	if resp.SelectedID != second.ID {
		t.Errorf("Started instance should be selected")
	}
	for _, inst := range resp.Instances {
		if inst.ID == first.ID && inst.Status != models.StatusStopped {
			t.Errorf("First instance should be stopped, got %s", inst.Status)
		}
	}
}

func TestStopFreezesCountdown(t *testing.T) {
	engine, clock, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)
	fund(t, engine, userID, 100)

	inst, err := engine.CreateInstance(userID, models.CreateInstanceRequest{Plan: "micro", Hours: 1})
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	waitForStatus(t, engine, userID, inst.ID, models.StatusRunning)

	clock.Advance(10500 * time.Millisecond)
	engine.TickCountdown()
	clock.Advance(700 * time.Millisecond)

	stopped, err := engine.StopInstance(userID, "")
	if err != nil {
		t.Fatalf("Failed to stop: %v", err)
	}
	if stopped.TimeLeftSec != 3600-11 {
		t.Errorf("Expected 3589 seconds left, got %d", stopped.TimeLeftSec)
	}

	raw, err := engine.Snapshot()
	if err != nil {
		t.Fatalf("Failed to snapshot: %v", err)
	}
	clock.Advance(time.Hour)
	doc := services.Migrate(raw, clock.Now())
	reloaded := doc.PerUser[userID].Vps.Find(inst.ID)
	if reloaded == nil || reloaded.TimeLeftSec != 3589 || reloaded.Status != models.StatusStopped {
		t.Errorf("Reloaded instance should stay frozen, got %+v", reloaded)
	}

	engine.TickCountdown()
	resp, _ := engine.Instances(userID)
	if resp.Instances[0].TimeLeftSec != 3589 {
		t.Errorf("Stopped instance must not count down, got %d", resp.Instances[0].TimeLeftSec)
	}

	if _, err := engine.StopInstance(userID, inst.ID); !errors.Is(err, services.ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning, got %v", err)
	}
}

func TestCountdownStopsAtZero(t *testing.T) {
	engine, clock, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)
	fund(t, engine, userID, 100)

	inst, err := engine.CreateInstance(userID, models.CreateInstanceRequest{Plan: "micro", Hours: 1})
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	waitForStatus(t, engine, userID, inst.ID, models.StatusRunning)

	clock.Advance(2 * time.Hour)
	engine.TickCountdown()

	resp, _ := engine.Instances(userID)
	got := resp.Instances[0]
	if got.Status != models.StatusStopped || got.TimeLeftSec != 0 {
		t.Errorf("Expected stopped with 0 left, got %s with %d", got.Status, got.TimeLeftSec)
	}

	if _, err := engine.StartInstance(userID, inst.ID, false); !errors.Is(err, services.ErrNoTimeLeft) {
		t.Errorf("Expected ErrNoTimeLeft, got %v", err)
	}

	extended, err := engine.ExtendInstance(userID, inst.ID, 2)
	if err != nil {
		t.Fatalf("Failed to extend: %v", err)
	}
	if extended.TimeLeftSec != 7200 {
		t.Errorf("Expected 7200 seconds after extending, got %d", extended.TimeLeftSec)
	}
}

func TestDestroyDuringProvisioning(t *testing.T) {
	engine, _, _ := setupTestEngine(t, services.WithSimulatedDelay(100*time.Millisecond, 100*time.Millisecond))
	userID := registerTestUser(t, engine)
	fund(t, engine, userID, 100)

	inst, err := engine.CreateInstance(userID, models.CreateInstanceRequest{Plan: "micro", Hours: 1})
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	if err := engine.DestroyInstance(userID, inst.ID); err != nil {
		t.Fatalf("Failed to destroy: %v", err)
	}

	time.Sleep(250 * time.Millisecond)

	resp, _ := engine.Instances(userID)
	if len(resp.Instances) != 0 {
		t.Errorf("Destroyed instance came back: %+v", resp.Instances)
	}
	notes, _, _ := engine.Notifications(userID)
	for _, n := range notes {
		if n.Title == "VPS running" {
			t.Error("Provisioning completed for a destroyed instance")
		}
	}
}

func TestMaxInstances(t *testing.T) {
	engine, _, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)
	fund(t, engine, userID, 1000)

	for i := 0; i < models.MaxInstances; i++ {
		if _, err := engine.CreateInstance(userID, models.CreateInstanceRequest{Plan: "micro", Hours: 1}); err != nil {
			t.Fatalf("Create %d failed: %v", i+1, err)
		}
	}
	if _, err := engine.CreateInstance(userID, models.CreateInstanceRequest{Plan: "micro", Hours: 1}); !errors.Is(err, services.ErrMaxInstances) {
		t.Errorf("Expected ErrMaxInstances, got %v", err)
	}
}

func TestAccounts(t *testing.T) {
	engine, _, _ := setupTestEngine(t)
	registerTestUser(t, engine)

	if _, err := engine.Register("ALICE@example.com", "secret2", ""); !errors.Is(err, services.ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}
	if _, err := engine.Register("not-an-email", "secret2", ""); !errors.Is(err, services.ErrInvalidEmail) {
		t.Errorf("Expected ErrInvalidEmail, got %v", err)
	}
	if _, err := engine.Register("bob@example.com", "123", ""); !errors.Is(err, services.ErrPasswordTooShort) {
		t.Errorf("Expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := engine.Login("alice@example.com", "wrong!"); !errors.Is(err, services.ErrWrongPassword) {
		t.Errorf("Expected ErrWrongPassword, got %v", err)
	}
	if _, err := engine.Login("nobody@example.com", "secret1"); !errors.Is(err, services.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}

	code, err := engine.ForgotPassword("alice@example.com")
	if err != nil {
		t.Fatalf("Failed to request reset: %v", err)
	}
	if err := engine.ResetPassword("alice@example.com", "000000"+code, "newsecret"); !errors.Is(err, services.ErrInvalidResetCode) {
		t.Errorf("Expected ErrInvalidResetCode, got %v", err)
	}
	if err := engine.ResetPassword("alice@example.com", code, "newsecret"); err != nil {
		t.Fatalf("Failed to reset password: %v", err)
	}
	if _, err := engine.Login("alice@example.com", "newsecret"); err != nil {
		t.Errorf("Login with the new password failed: %v", err)
	}

	social, err := engine.SocialLogin("github")
	if err != nil {
		t.Fatalf("Social login failed: %v", err)
	}
	if social.Provider != models.ProviderGitHub || !strings.HasSuffix(social.Email, "@demo.local") {
		t.Errorf("Unexpected social user %+v", social)
	}
}

func TestUnknownUser(t *testing.T) {
	engine, _, _ := setupTestEngine(t)

	if _, err := engine.Balance("u_missing"); !errors.Is(err, services.ErrNotSignedIn) {
		t.Errorf("Expected ErrNotSignedIn, got %v", err)
	}
}

func TestEngineReload(t *testing.T) {
	engine, clock, store := setupTestEngine(t)
	userID := registerTestUser(t, engine)
	fund(t, engine, userID, 42)

	engine.Close(context.Background())
	if store.Saves() == 0 {
		t.Fatal("Close should flush the pending document")
	}

	reloaded, err := services.NewEngine(context.Background(), store,
		services.WithClock(clock.Now), services.WithSimulatedDelay(0, 0))
	if err != nil {
		t.Fatalf("Failed to reload engine: %v", err)
	}
	defer reloaded.Close(context.Background())

	bal, err := reloaded.Balance(userID)
	if err != nil {
		t.Fatalf("User should survive a reload: %v", err)
	}
	if bal.Balance != 42 {
		t.Errorf("Expected balance 42, got %d", bal.Balance)
	}
}

func TestImportExportReset(t *testing.T) {
	engine, _, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)
	fund(t, engine, userID, 7)

	data, err := engine.Export()
	if err != nil {
		t.Fatalf("Failed to export: %v", err)
	}

	if err := engine.Reset(context.Background()); err != nil {
		t.Fatalf("Failed to reset: %v", err)
	}
	if _, err := engine.Balance(userID); !errors.Is(err, services.ErrNotSignedIn) {
		t.Errorf("Reset should drop all users, got %v", err)
	}

	if err := engine.Import([]byte("not json")); !errors.Is(err, services.ErrInvalidDocument) {
		t.Errorf("Expected ErrInvalidDocument, got %v", err)
	}
	if err := engine.Import(data); err != nil {
		t.Fatalf("Failed to import: %v", err)
	}
	bal, err := engine.Balance(userID)
	if err != nil {
		t.Fatalf("Imported user missing: %v", err)
	}
	if bal.Balance != 7 {
		t.Errorf("Expected balance 7, got %d", bal.Balance)
	}
}
