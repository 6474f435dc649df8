// Package delivery routes a due capsule to its channel adapter and
// normalizes the outcome.
package delivery

import (
	"context"
	"fmt"
	"time"

	"capsule-service/internal/logging"
	"capsule-service/internal/models"
)

// Adapter delivers one capsule over one channel. Implementations must
// resolve within their own bounded timeout; a hang is never an
// acceptable outcome.
type Adapter interface {
	Deliver(ctx context.Context, c models.Capsule) Result
}

// Router selects the adapter for a capsule's delivery method.
type Router struct {
	adapters map[string]Adapter
	timeout  time.Duration
	logger   *logging.Logger
}

func NewRouter(adapters map[string]Adapter, timeout time.Duration, logger *logging.Logger) *Router {
	return &Router{adapters: adapters, timeout: timeout, logger: logger}
}

// Deliver invokes the adapter for the capsule's channel. Unknown
// channels fail like any other delivery error so the audit trail stays
// uniform.
func (r *Router) Deliver(ctx context.Context, c models.Capsule) Result {
	adapter, ok := r.adapters[c.DeliveryMethod]
	if !ok {
		return failure(c.DeliveryMethod, fmt.Sprintf("no adapter registered for channel %q", c.DeliveryMethod))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result := adapter.Deliver(ctx, c)
	if result.Success {
		r.logger.Infof("Delivered capsule %s via %s (tracking %s)", c.ID, result.Channel, result.TrackingID)
	} else {
		r.logger.Errorf("Delivery failed for capsule %s via %s: %v", c.ID, result.Channel, result.Errors)
	}
	return result
}
