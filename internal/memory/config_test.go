package memory

import (
	"runtime/debug"
	"testing"
)

func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigureFromEnv_NotSet(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	result := ConfigureFromEnv()

	if result.Configured {
		t.Error("Expected no configuration without MEMORY_LIMIT")
	}
	if result.Source != SourceNone {
		t.Errorf("Expected source %q, got %q", SourceNone, result.Source)
	}
}

func TestConfigureFromEnv_MemoryLimit(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824")
	t.Setenv("MEMORY_RATIO", "")

	result := ConfigureFromEnv()

	if !result.Configured {
		t.Fatal("Expected GOMEMLIMIT to be configured")
	}
	if result.Source != SourceMemoryLimit {
		t.Errorf("Expected source %q, got %q", SourceMemoryLimit, result.Source)
	}
	ratio := DefaultMemoryRatio
	want := int64(float64(1073741824) * ratio)
	if result.GoMemLimit != want {
		t.Errorf("Expected GoMemLimit %d, got %d", want, result.GoMemLimit)
	}
	if got := debug.SetMemoryLimit(-1); got != want {
		t.Errorf("Expected runtime limit %d, got %d", want, got)
	}
}

func TestConfigureFromEnv_Invalid(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")

	for _, value := range []string{"lots", "-5", "0"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("MEMORY_LIMIT", value)
			if result := ConfigureFromEnv(); result.Configured {
				t.Errorf("Expected MEMORY_LIMIT=%q to be ignored", value)
			}
		})
	}
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"", DefaultMemoryRatio},
		{"0.5", 0.5},
		{"1", 1},
		{"0", DefaultMemoryRatio},
		{"1.5", DefaultMemoryRatio},
		{"half", DefaultMemoryRatio},
	}

	for _, tt := range tests {
		if got := parseRatio(tt.raw); got != tt.want {
			t.Errorf("parseRatio(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
