package monitoring

import "testing"

func TestSetLoggerRedirects(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })
	Logf("dropped %d updates", 5)
	if got != "dropped %d updates" {
		t.Errorf("custom logger not invoked, got %q", got)
	}
}

func TestSetLoggerNilInstallsNoop(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(string, ...interface{}) { called = true })
	SetLogger(nil)
	Logf("muted")
	if called {
		t.Error("nil logger should mute output")
	}
	if Logf == nil {
		t.Error("Logf must never be nil")
	}
}
