package placescout

import "github.com/ZanzyTHEbar/placescout-genkit/internal/eventbus"

// WithEventBus publishes run events on bus instead of a bus built from Config.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(a *Agent) {
		a.eventBus = bus
	}
}
