package tracker

import "time"

// MockTimeProvider is a time provider returning a fixed time.
type MockTimeProvider struct {
	CurrentTime time.Time
}

// Now returns the fixed time.
func (m MockTimeProvider) Now() time.Time {
	return m.CurrentTime
}

// WithTimeProvider sets the time provider for the tracker.
func WithTimeProvider(tp timeProvider) Options {
	return func(o *options) {
		o.timeProvider = tp
	}
}

// WithRunID makes the tracker tag runs with a fixed run identifier.
func WithRunID(id string) Options {
	return func(o *options) {
		o.newRunID = func() string { return id }
	}
}
