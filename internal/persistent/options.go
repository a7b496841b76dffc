package persistent

import "github.com/copyleftdev/SKARN/internal/backend"

// SolveOption configures one Solve call.
type SolveOption func(*solveConfig)

type solveConfig struct {
	saveResults   bool
	loadSolutions bool
	backendOpts   backend.Options
}

func defaultSolveConfig() *solveConfig {
	return &solveConfig{
		saveResults:   true,
		loadSolutions: true,
		backendOpts: backend.Options{
			Bool:   make(map[string]bool),
			Int:    make(map[string]int),
			Float:  make(map[string]float64),
			String: make(map[string]string),
		},
	}
}

// WithResults controls whether the session materializes and retains a full
// Results object. When disabled, only LoadVars remains available for
// reading the solution afterwards.
func WithResults(save bool) SolveOption {
	return func(c *solveConfig) {
		c.saveResults = save
	}
}

// WithLoadSolutions controls whether solution values are copied into the
// declarative model's variables immediately after a successful solve.
// Enabled by default.
func WithLoadSolutions(load bool) SolveOption {
	return func(c *solveConfig) {
		c.loadSolutions = load
	}
}

// WithTimeLimit bounds the backend solve in seconds.
func WithTimeLimit(seconds float64) SolveOption {
	return func(c *solveConfig) {
		c.backendOpts.TimeLimit = seconds
	}
}

// WithBoolOption passes a backend-specific boolean option through opaquely.
func WithBoolOption(name string, value bool) SolveOption {
	return func(c *solveConfig) {
		c.backendOpts.Bool[name] = value
	}
}

// WithIntOption passes a backend-specific integer option through opaquely.
func WithIntOption(name string, value int) SolveOption {
	return func(c *solveConfig) {
		c.backendOpts.Int[name] = value
	}
}

// WithFloatOption passes a backend-specific float option through opaquely.
func WithFloatOption(name string, value float64) SolveOption {
	return func(c *solveConfig) {
		c.backendOpts.Float[name] = value
	}
}

// WithStringOption passes a backend-specific string option through opaquely.
func WithStringOption(name, value string) SolveOption {
	return func(c *solveConfig) {
		c.backendOpts.String[name] = value
	}
}
