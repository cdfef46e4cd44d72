package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cloudvps-backend/internal/services"
)

// respondError maps engine errors onto HTTP statuses. The state is
// unchanged whenever an error is returned.
func respondError(c *gin.Context, err error) {
	var insufficient *services.InsufficientPointsError
	var cooldown *services.CooldownError
	var confirm *services.SwitchConfirmationError
	var upstream *services.UpstreamError

	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   err.Error(),
			"need":    insufficient.Need,
			"balance": insufficient.Balance,
		})
	case errors.As(err, &cooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       err.Error(),
			"retry_after": cooldown.Remaining.Seconds(),
		})
	case errors.As(err, &confirm):
		c.JSON(http.StatusConflict, gin.H{
			"error":        err.Error(),
			"confirm":      true,
			"running_id":   confirm.RunningID,
			"running_name": confirm.RunningName,
		})
	case errors.As(err, &upstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "Request cancelled"})
	default:
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotSignedIn),
		errors.Is(err, services.ErrUnauthorized),
		errors.Is(err, services.ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrOfferNotFound),
		errors.Is(err, services.ErrInstanceNotFound),
		errors.Is(err, services.ErrNoInstanceSelected),
		errors.Is(err, services.ErrResetCodeExpired),
		errors.Is(err, services.ErrRunUnresolved),
		errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrUnknownAchievement),
		errors.Is(err, services.ErrWorkflowNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyClaimed),
		errors.Is(err, services.ErrPromoUsed),
		errors.Is(err, services.ErrOfferCompleted),
		errors.Is(err, services.ErrDailyClaimed),
		errors.Is(err, services.ErrCheckinClaimed),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrAlreadyRunning),
		errors.Is(err, services.ErrProvisioning),
		errors.Is(err, services.ErrSessionFinished),
		errors.Is(err, services.ErrNothingToClaim):
		return http.StatusConflict
	case errors.Is(err, services.ErrReferralLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrRemoteDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}
