package services

import (
	"errors"
	"fmt"
	"time"

	"cloudvps-backend/internal/models"
)

// Validation errors: the request is rejected and nothing changes.
var (
	ErrNotSignedIn        = errors.New("please sign in first")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrPasswordTooShort   = errors.New("password must be at least 6 chars")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWrongPassword      = errors.New("wrong password")
	ErrEmptyName          = errors.New("name cannot be empty")
	ErrEmptyPromo         = errors.New("enter a promo code")
	ErrInvalidPromo       = errors.New("invalid promo code")
	ErrInvalidTask        = errors.New("unknown task type")
	ErrInvalidPref        = errors.New("invalid preference value")
	ErrInvalidInstance    = errors.New("invalid instance request")
	ErrMaxInstances       = fmt.Errorf("max instances reached (%d), destroy one first", models.MaxInstances)
	ErrNoTimeLeft         = errors.New("no time left, redeem again")
	ErrReferralLimit      = errors.New("referral daily limit reached")
	ErrRemoteDisabled     = errors.New("remote sessions are not configured")
	ErrMissingInputs      = errors.New("missing inputs")
	ErrInvalidResetCode   = errors.New("invalid reset code")
	ErrNotRunning         = errors.New("selected instance is not running")
	ErrProvisioning       = errors.New("provisioning in progress")
	ErrAlreadyRunning     = errors.New("already running")
	ErrNotUnlocked        = errors.New("achievement not unlocked yet")
	ErrNothingToClaim     = errors.New("no achievements to claim")
	ErrInvalidDocument    = errors.New("invalid document")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSessionFinished    = errors.New("session already finished")
	ErrMissingRunID       = errors.New("missing run_id")
	ErrInvalidRunID       = errors.New("invalid run id")
	ErrWorkflowNotFound   = errors.New("workflow file not found or missing content")
	ErrUnknownAchievement = errors.New("unknown achievement")
)

// Not-found / expired errors: the caller has to retry the originating action.
var (
	ErrUserNotFound       = errors.New("no account found")
	ErrOfferNotFound      = errors.New("offer not found (expired), refresh offers")
	ErrInstanceNotFound   = errors.New("instance not found")
	ErrNoInstanceSelected = errors.New("no instance selected")
	ErrResetCodeExpired   = errors.New("reset code expired, use forgot again")
	ErrRunUnresolved      = errors.New("run id not resolved yet")
	ErrSessionNotFound    = errors.New("remote session not found")
)

// Conflicts: the action was already performed.
var (
	ErrAlreadyClaimed     = errors.New("already claimed")
	ErrPromoUsed          = errors.New("this code was already used")
	ErrOfferCompleted     = errors.New("offer already completed")
	ErrDailyClaimed       = errors.New("daily mission already claimed today")
	ErrCheckinClaimed     = errors.New("check-in already completed today")
	ErrConfirmationNeeded = errors.New("confirmation required")
)

type InsufficientPointsError struct {
	Need    int64
	Balance int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("not enough points, need %d more", e.Need-e.Balance)
}

type CooldownError struct {
	Task      string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	secs := int64((e.Remaining + time.Second - 1) / time.Second)
	return fmt.Sprintf("%s on cooldown for %ds", e.Task, secs)
}

// SwitchConfirmationError is returned when starting an instance would stop
// another running one and the caller did not confirm.
type SwitchConfirmationError struct {
	RunningID   string
	RunningName string
}

func (e *SwitchConfirmationError) Error() string {
	return fmt.Sprintf("only 1 instance can run, stop %q first", e.RunningName)
}

func (e *SwitchConfirmationError) Unwrap() error {
	return ErrConfirmationNeeded
}

// UpstreamError wraps failures of GitHub or the edge function.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s %d: %s", e.Service, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
