// Package metrics defines the transient self-reported session metrics.
// Values live in memory for a single session and are never persisted.
package metrics

import "fmt"

const (
	// Min and Max bound both metrics; Step is the slider granularity.
	Min  = 1.0
	Max  = 5.0
	Step = 0.5
)

// Metrics are an athlete's self-reported ratings for one session.
type Metrics struct {
	Effort   float64
	Attitude float64
}

// Default returns the midpoint ratings a fresh session starts from.
func Default() Metrics {
	return Metrics{Effort: 3, Attitude: 3}
}

// Validate checks both values are within [Min, Max] on the Step grid.
func (m Metrics) Validate() error {
	if err := validateValue("effort", m.Effort); err != nil {
		return err
	}
	return validateValue("attitude", m.Attitude)
}

func validateValue(name string, v float64) error {
	if v < Min || v > Max {
		return fmt.Errorf("%s must be between %g and %g, got %g", name, Min, Max, v)
	}
	steps := (v - Min) / Step
	if steps != float64(int(steps)) {
		return fmt.Errorf("%s must be a multiple of %g, got %g", name, Step, v)
	}
	return nil
}
