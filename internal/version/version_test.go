package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.Commit == "" {
		t.Error("Commit should not be empty")
	}
	if info.Date == "" {
		t.Error("Date should not be empty")
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if want := runtime.GOOS + "/" + runtime.GOARCH; info.Platform != want {
		t.Errorf("Platform = %q, want %q", info.Platform, want)
	}
}

func TestGet_DirtyConversion(t *testing.T) {
	info := Get()

	if Dirty == "false" && info.Dirty {
		t.Error("Dirty should be false when package Dirty='false'")
	}
	if Dirty == "true" && !info.Dirty {
		t.Error("Dirty should be true when package Dirty='true'")
	}
}

func TestInfo_String(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		expected string
	}{
		{
			"clean build",
			Info{Version: "2.1.0", Commit: "deadbeef", Date: "2026-06-01"},
			"2.1.0 (deadbeef) built 2026-06-01",
		},
		{
			"dirty build",
			Info{Version: "2.1.0", Commit: "deadbeef", Date: "2026-06-01", Dirty: true},
			"2.1.0 (deadbeef-dirty) built 2026-06-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestInfo_Short(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		expected string
	}{
		{"clean version", Info{Version: "1.2.3"}, "1.2.3"},
		{"dirty version", Info{Version: "1.2.3", Dirty: true}, "1.2.3-dirty"},
		{"dev version", Info{Version: "0.0.0-dev"}, "0.0.0-dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Short(); got != tt.expected {
				t.Errorf("Short() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPackageVariables(t *testing.T) {
	if Version == "" {
		t.Error("Version variable should have a default value")
	}
	if Commit == "" {
		t.Error("Commit variable should have a default value")
	}
	if Date == "" {
		t.Error("Date variable should have a default value")
	}
	if Dirty != "false" && Dirty != "true" {
		t.Errorf("Dirty = %q, want 'false' or 'true'", Dirty)
	}
}

func TestGet_DefaultVersionFormat(t *testing.T) {
	info := Get()

	if info.Version != "0.0.0-dev" && !strings.Contains(info.Version, ".") {
		t.Errorf("Version should be semver format, got %q", info.Version)
	}
}
