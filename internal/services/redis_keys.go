package services

import "time"

const (
	KeyDispatch  = "dispatch:%s"
	KeyConn      = "conn:%s"
	KeyRunClaim  = "run-claim:%d"
	KeyRateLimit = "ratelimit:%s:%s"

	TTLDispatch   = time.Hour
	TTLConnection = 8 * time.Hour
	TTLRunClaim   = time.Hour

	DefaultRateLimitTasks     = 30 // per minute
	DefaultRateLimitInstances = 20 // per minute
)
