package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: the log level and
// the matching tunables. Cache and provider changes require a restart because
// they hold connections and credentials.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	MatchingChanged bool
	NewMatching     MatchingConfig
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.MatchingChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Matching != new.Matching {
		d.MatchingChanged = true
		d.NewMatching = new.Matching
	}

	return d
}
