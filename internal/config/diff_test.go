package config_test

import (
	"testing"

	"github.com/MrWong99/reactorcore/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}

	d := config.Diff(old, new)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.SafeModeChanged || d.PermissiveModeChanged || d.PlannerTimeoutChanged {
		t.Error("expected no reactor-field changes for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel: got %q, want %q", d.NewLogLevel, config.LogDebug)
	}
}

func TestDiff_SafeModeChanged(t *testing.T) {
	old := &config.Config{Reactor: config.ReactorConfig{SafeMode: false}}
	new := &config.Config{Reactor: config.ReactorConfig{SafeMode: true}}

	d := config.Diff(old, new)
	if !d.SafeModeChanged {
		t.Fatal("expected SafeModeChanged=true")
	}
	if !d.NewSafeMode {
		t.Error("expected NewSafeMode=true")
	}
}

func TestDiff_PermissiveModeChanged(t *testing.T) {
	old := &config.Config{Reactor: config.ReactorConfig{PermissiveMode: false}}
	new := &config.Config{Reactor: config.ReactorConfig{PermissiveMode: true}}

	d := config.Diff(old, new)
	if !d.PermissiveModeChanged {
		t.Fatal("expected PermissiveModeChanged=true")
	}
}

func TestDiff_PlannerTimeoutChanged(t *testing.T) {
	old := &config.Config{Reactor: config.ReactorConfig{PlannerTimeoutMS: 200}}
	new := &config.Config{Reactor: config.ReactorConfig{PlannerTimeoutMS: 500}}

	d := config.Diff(old, new)
	if !d.PlannerTimeoutChanged {
		t.Fatal("expected PlannerTimeoutChanged=true")
	}
	if d.NewPlannerTimeoutMS != 500 {
		t.Errorf("NewPlannerTimeoutMS: got %d, want 500", d.NewPlannerTimeoutMS)
	}
}

func TestDiff_TickPeriodIgnored(t *testing.T) {
	// TickPeriodMS requires a restart and is intentionally not tracked.
	old := &config.Config{Reactor: config.ReactorConfig{TickPeriodMS: 20}}
	new := &config.Config{Reactor: config.ReactorConfig{TickPeriodMS: 50}}

	d := config.Diff(old, new)
	if d.LogLevelChanged || d.SafeModeChanged || d.PermissiveModeChanged || d.PlannerTimeoutChanged {
		t.Error("expected no tracked changes when only TickPeriodMS differs")
	}
}
