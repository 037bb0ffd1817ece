package services

import "alive-keeper/internal/models"

// Broadcaster receives every snapshot the store publishes and the
// user-facing notices raised by the gateway.
type Broadcaster interface {
	BroadcastSnapshot(snap models.PlayerSnapshot)
	BroadcastNotice(kind, message string)
}
