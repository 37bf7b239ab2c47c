package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked — a reactor
// instance never restarts to pick these up, so anything here must be safe
// for the driver to apply between ticks.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SafeModeChanged       bool
	NewSafeMode           bool
	PermissiveModeChanged bool
	NewPermissiveMode     bool

	PlannerTimeoutChanged bool
	NewPlannerTimeoutMS   int
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart — KernelMode,
// TickPeriodMS, and every provider entry require a process restart and are
// intentionally excluded.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Reactor.SafeMode != new.Reactor.SafeMode {
		d.SafeModeChanged = true
		d.NewSafeMode = new.Reactor.SafeMode
	}

	if old.Reactor.PermissiveMode != new.Reactor.PermissiveMode {
		d.PermissiveModeChanged = true
		d.NewPermissiveMode = new.Reactor.PermissiveMode
	}

	if old.Reactor.PlannerTimeoutMS != new.Reactor.PlannerTimeoutMS {
		d.PlannerTimeoutChanged = true
		d.NewPlannerTimeoutMS = new.Reactor.PlannerTimeoutMS
	}

	return d
}
