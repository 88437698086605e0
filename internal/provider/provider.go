package provider

import (
	"context"

	"github.com/clawdshartavenger/alta-parking-app/internal/model"
)

// Provider runs one full booking attempt against the reservation site and
// reports a single terminal outcome. Implementations must catch every
// step-level failure, release any session they opened and never panic out.
type Provider interface {
	Name() string
	Attempt(ctx context.Context, cfg model.MonitorConfig) model.AttemptOutcome
}
