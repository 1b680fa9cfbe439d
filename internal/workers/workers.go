package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv is the environment variable that pins the encoder slot count.
const OverrideEnv = "ENCODER_WORKERS"

// Count returns the number of concurrent encoder processes to allow.
// It derives the value from GOMAXPROCS, which follows container CPU limits.
//
// The multiplier adjusts for how much of a job's lifetime is spent on CPU:
//   - 1.0 when the encoder saturates a core
//   - 2.0 when jobs mostly wait on pipes or disk
//   - 1.5 for the usual mix
//
// The limit parameter caps the result. Use 0 for no limit. A positive
// integer in ENCODER_WORKERS takes precedence over the calculation but is
// still capped by limit.
func Count(multiplier float64, limit int) int {
	if n, ok := override(); ok {
		return capAt(n, limit)
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	return capAt(workers, limit)
}

func override() (int, bool) {
	raw := os.Getenv(OverrideEnv)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForCPU returns the slot count for encoders that are CPU-bound (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns the slot count for I/O-dominated jobs (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns the slot count for mixed jobs (1.5 per CPU). This is the
// default for PCM to Opus encoding, where short CPU bursts alternate with
// pipe and temp file I/O.
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
