package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"voice-transcoder/internal/logging"
	"voice-transcoder/internal/metrics"

	"github.com/dustin/go-humanize"
)

// Config holds memory monitor configuration
type Config struct {
	// LimitBytes is the soft limit (0 = use GOMEMLIMIT, if any)
	LimitBytes int64

	// ResumeMark is the usage ratio below which admission resumes
	ResumeMark float64

	// CriticalMark is the usage ratio at which new conversions are held back
	CriticalMark float64

	// CheckInterval is how often memory usage is sampled
	CheckInterval time.Duration
}

// DefaultConfig returns the monitor defaults
func DefaultConfig() Config {
	return Config{
		ResumeMark:    0.7,
		CriticalMark:  0.85,
		CheckInterval: 2 * time.Second,
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Monitor samples heap usage and holds back new conversions while it is
// critical.
type Monitor struct {
	config Config
	limit  int64
	alloc  func() uint64

	mu       sync.Mutex
	current  uint64
	paused   bool
	resumed  chan struct{}
	stopOnce sync.Once
	stop     chan struct{}
}

// NewMonitor creates a memory monitor. Without a limit it never pauses.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
		}
	}

	if limit > 0 {
		logging.Info("Memory monitor using limit %s", humanize.IBytes(uint64(limit)))
	} else {
		logging.Debug("Memory monitor: no memory limit configured, admission control disabled")
	}

	return &Monitor{
		config:  config,
		limit:   limit,
		alloc:   heapAlloc,
		resumed: make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

// Start begins sampling in the background.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.loop()
}

// Stop ends sampling and releases every waiter.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sample(m.alloc())
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) sample(alloc uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = alloc
	if m.limit == 0 {
		return
	}

	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case !m.paused && usage >= m.config.CriticalMark:
		logging.Warn("Memory critical (%.1f%% of limit), holding new conversions", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPressureEvents.Inc()
		go runtime.GC()

	case m.paused && usage < m.config.ResumeMark:
		logging.Info("Memory recovered (%.1f%% of limit), admitting conversions", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resumed)
		m.resumed = make(chan struct{})
	}
}

// Wait blocks while memory is critical. It returns ctx.Err() if the caller
// gives up first and nil once admission resumes or the monitor stops.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return nil
	}
	resumed := m.resumed
	m.mu.Unlock()

	start := time.Now()
	defer func() { metrics.MemoryAdmissionWait.Observe(time.Since(start).Seconds()) }()

	select {
	case <-resumed:
		return nil
	case <-m.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether new conversions are being held back.
func (m *Monitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Usage returns the last sampled usage ratio, or 0 without a limit.
func (m *Monitor) Usage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit == 0 {
		return 0
	}
	return float64(m.current) / float64(m.limit)
}
