package sim

import "fmt"

// ConfigurationError reports a configuration value rejected before the
// first tick.
type ConfigurationError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InvariantViolation reports an internal consistency failure detected at the
// end of a tick.
type InvariantViolation struct {
	Rule   string
	Tick   uint64
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("tick %d: invariant %s violated: %s", e.Tick, e.Rule, e.Detail)
}
