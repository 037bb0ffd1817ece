package services

import "time"

const (
	KeySessionToken = "session:%s:token"
	KeyDecorations  = "decorations:%s"
	KeyAction       = "action:%s"
	KeyActions      = "actions:%s"
	KeyRateLimit    = "ratelimit:%s:%s"

	TTLAction = 30 * 24 * time.Hour // 30 days

	MaxJournalEntries = 100

	DefaultRateLimitActions = 30 // Max 30 actions per minute
	DefaultRateLimitLogin   = 10 // Max 10 logins per minute
)
