package monitoring

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op that must not reach the previous hook
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_RoutesToZap(t *testing.T) {
	originalLogf := Logf
	originalZap := Logger()
	defer func() {
		Logf = originalLogf
		SetZap(originalZap)
	}()

	core, logs := observer.New(zap.InfoLevel)
	SetZap(zap.New(core))
	Logf = func(format string, v ...interface{}) {
		Logger().Sugar().Infof(format, v...)
	}

	Logf("wrote %d events", 42)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Message != "wrote 42 events" {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
}

func TestSetup(t *testing.T) {
	originalZap := Logger()
	defer SetZap(originalZap)

	for _, env := range []string{DevelopmentEnvironment, ProductionEnvironment, "staging"} {
		if err := Setup(env, false); err != nil {
			t.Errorf("Setup(%q) failed: %v", env, err)
		}
		if Logger() == nil {
			t.Errorf("Setup(%q) left a nil logger", env)
		}
	}

	if err := Setup(DevelopmentEnvironment, true); err != nil {
		t.Fatalf("Setup verbose failed: %v", err)
	}
	if !Logger().Core().Enabled(zap.DebugLevel) {
		t.Error("verbose setup should enable debug level")
	}
}

func TestSetZap_Nil(t *testing.T) {
	originalZap := Logger()
	defer SetZap(originalZap)

	SetZap(nil)
	if Logger() == nil {
		t.Fatal("SetZap(nil) should install a no-op logger")
	}
	Logger().Info("discarded")
}
