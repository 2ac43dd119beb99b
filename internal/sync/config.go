package sync

import "time"

// Config carries the tunable policy knobs of the engine. The defaults match
// observed behavior of the system this replaces; whether they are the right
// values is a product question, so they are configuration rather than
// constants.
type Config struct {
	// MaxRetries is the queue retry ceiling: an operation failing this many
	// times is permanently abandoned.
	MaxRetries int

	// StalenessWindow is how old the last successful sync may be before the
	// cache counts as stale.
	StalenessWindow time.Duration

	// SyncInterval is the period of the background sync loop in Run.
	SyncInterval time.Duration
}

// DefaultConfig returns the standard policy: 5 retries, 5 minute staleness
// window, 1 minute background interval.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      5,
		StalenessWindow: 5 * time.Minute,
		SyncInterval:    time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.StalenessWindow <= 0 {
		c.StalenessWindow = d.StalenessWindow
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = d.SyncInterval
	}
	return c
}
