package notify

import "context"

// BookedEvent describes one confirmed parking booking.
type BookedEvent struct {
	At           int64  `json:"atMs"`
	Date         string `json:"date"`
	Email        string `json:"email,omitempty"`
	LicensePlate string `json:"licensePlate,omitempty"`
	RunID        string `json:"runId,omitempty"`
}

// Notifier delivers booking confirmations out of band. Implementations must
// not block the monitor loop.
type Notifier interface {
	NotifyBooked(ctx context.Context, evt BookedEvent)
}
