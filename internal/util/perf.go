package util

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// PerfEnabled turns on stage timing; the CLI sets it with --perf
var PerfEnabled bool

// PerfMetric aggregates the timings recorded under one name
type PerfMetric struct {
	Name      string
	Count     int64
	TotalTime time.Duration
	Last      time.Duration
}

// Average returns the mean recorded duration
func (m PerfMetric) Average() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.TotalTime / time.Duration(m.Count)
}

// PerfTracker collects stage timings across resolutions
type PerfTracker struct {
	mu      sync.Mutex
	metrics map[string]*PerfMetric
}

var (
	globalPerf     *PerfTracker
	globalPerfOnce sync.Once
)

// NewPerfTracker returns an empty tracker
func NewPerfTracker() *PerfTracker {
	return &PerfTracker{metrics: make(map[string]*PerfMetric)}
}

// GetPerfTracker returns the global performance tracker
func GetPerfTracker() *PerfTracker {
	globalPerfOnce.Do(func() {
		globalPerf = NewPerfTracker()
	})
	return globalPerf
}

// Timer represents an active timing operation
type Timer struct {
	name    string
	start   time.Time
	tracker *PerfTracker
}

// StartTimer starts a timer on the global tracker; nil when timing is off
func StartTimer(name string) *Timer {
	if !PerfEnabled {
		return nil
	}
	return GetPerfTracker().Start(name)
}

// Start starts a timer recording into pt
func (pt *PerfTracker) Start(name string) *Timer {
	return &Timer{name: name, start: time.Now(), tracker: pt}
}

// Stop records the elapsed time. Safe on a nil timer.
func (t *Timer) Stop() time.Duration {
	if t == nil {
		return 0
	}
	d := time.Since(t.start)
	t.tracker.Record(t.name, d)
	return d
}

// StopAndLog stops the timer and logs the duration at debug level
func (t *Timer) StopAndLog() time.Duration {
	if t == nil {
		return 0
	}
	d := t.Stop()
	Debugf("[PERF] %s took %v", t.name, d)
	return d
}

// Record adds one measurement under name
func (pt *PerfTracker) Record(name string, d time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	m, ok := pt.metrics[name]
	if !ok {
		m = &PerfMetric{Name: name}
		pt.metrics[name] = m
	}
	m.Count++
	m.TotalTime += d
	m.Last = d
}

// Metrics returns a snapshot sorted by total time, slowest first
func (pt *PerfTracker) Metrics() []PerfMetric {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	out := make([]PerfMetric, 0, len(pt.metrics))
	for _, m := range pt.metrics {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalTime != out[j].TotalTime {
			return out[i].TotalTime > out[j].TotalTime
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Reset drops every recorded metric
func (pt *PerfTracker) Reset() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.metrics = make(map[string]*PerfMetric)
}

var (
	perfTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	perfMetricStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1D3"))

	perfSlowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	perfFastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7BED9F"))

	perfSeparatorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#636E72"))
)

// WriteReport prints the stage timing table to w
func (pt *PerfTracker) WriteReport(w io.Writer) {
	metrics := pt.Metrics()
	if len(metrics) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString(perfSeparatorStyle.Render(strings.Repeat("─", 64)))
	b.WriteString("\n")
	b.WriteString(perfTitleStyle.Render("Stage timings"))
	b.WriteString("\n")
	for _, m := range metrics {
		avg := m.Average().Round(time.Microsecond).String()
		switch {
		case m.Average() > time.Second:
			avg = perfSlowStyle.Render(avg)
		case m.Average() < 50*time.Millisecond:
			avg = perfFastStyle.Render(avg)
		}
		name := m.Name
		if len(name) > 34 {
			name = name[:31] + "..."
		}
		fmt.Fprintf(&b, "  %-36s %6d  %s\n", perfMetricStyle.Render(name), m.Count, avg)
	}
	b.WriteString(perfSeparatorStyle.Render(strings.Repeat("─", 64)))
	b.WriteString("\n")

	_, _ = io.WriteString(w, b.String())
}
