package store

import (
	"sort"
	"sync"
	"time"

	"github.com/quantumlife/hearth/internal/clock"
	"github.com/quantumlife/hearth/internal/logging"
)

// DefaultMaxMeasures bounds the measures a Monitor keeps.
const DefaultMaxMeasures = 1000

// Measure is one timed span.
type Measure struct {
	Name     string        `json:"name"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

// MeasureSummary aggregates the measures sharing a name.
type MeasureSummary struct {
	Name  string        `json:"name"`
	Count int           `json:"count"`
	Total time.Duration `json:"total"`
	Max   time.Duration `json:"max"`
}

// Average returns Total/Count.
func (s MeasureSummary) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Monitor records named marks and the spans measured between them. Only
// the newest measures are kept.
type Monitor struct {
	mu       sync.Mutex
	clock    clock.Clock
	logger   *logging.Logger
	marks    map[string]time.Time
	measures []Measure
	max      int
	slow     time.Duration
}

// NewMonitor creates a monitor. maxMeasures <= 0 uses DefaultMaxMeasures.
// Spans longer than slow are logged; zero disables the warning.
func NewMonitor(c clock.Clock, maxMeasures int, slow time.Duration) *Monitor {
	if c == nil {
		c = clock.Real{}
	}
	if maxMeasures <= 0 {
		maxMeasures = DefaultMaxMeasures
	}
	return &Monitor{
		clock:  c,
		logger: logging.WithField("component", "monitor"),
		marks:  make(map[string]time.Time),
		max:    maxMeasures,
		slow:   slow,
	}
}

// Mark records the current time under name.
func (m *Monitor) Mark(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[name] = m.clock.Now()
}

// Measure records the span from the start mark to the end mark, or to now
// when end is empty. Both marks are consumed. It reports false when a mark
// is missing.
func (m *Monitor) Measure(name, start, end string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, ok := m.marks[start]
	if !ok {
		m.logger.Warn("Start mark %q not found", start)
		return 0, false
	}
	to := m.clock.Now()
	if end != "" {
		if to, ok = m.marks[end]; !ok {
			m.logger.Warn("End mark %q not found", end)
			return 0, false
		}
		delete(m.marks, end)
	}
	delete(m.marks, start)

	d := to.Sub(from)
	m.record(Measure{Name: name, Start: from, Duration: d})
	return d, true
}

// Observe records a span measured elsewhere.
func (m *Monitor) Observe(name string, start time.Time, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(Measure{Name: name, Start: start, Duration: d})
}

// Time runs fn and records how long it took.
func (m *Monitor) Time(name string, fn func()) time.Duration {
	start := m.clock.Now()
	fn()
	d := m.clock.Now().Sub(start)
	m.Observe(name, start, d)
	return d
}

func (m *Monitor) record(ms Measure) {
	if len(m.measures) >= m.max {
		n := copy(m.measures, m.measures[len(m.measures)-m.max+1:])
		m.measures = m.measures[:n]
	}
	m.measures = append(m.measures, ms)
	if m.slow > 0 && ms.Duration > m.slow {
		m.logger.Warn("Slow operation: %s took %s", ms.Name, ms.Duration)
	}
}

// Measures returns a copy of the kept measures, oldest first.
func (m *Monitor) Measures() []Measure {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Measure, len(m.measures))
	copy(out, m.measures)
	return out
}

// Summary groups the kept measures by name, sorted by name.
func (m *Monitor) Summary() []MeasureSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	byName := make(map[string]*MeasureSummary)
	for _, ms := range m.measures {
		s, ok := byName[ms.Name]
		if !ok {
			s = &MeasureSummary{Name: ms.Name}
			byName[ms.Name] = s
		}
		s.Count++
		s.Total += ms.Duration
		if ms.Duration > s.Max {
			s.Max = ms.Duration
		}
	}

	out := make([]MeasureSummary, 0, len(byName))
	for _, s := range byName {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clear drops all marks and measures.
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks = make(map[string]time.Time)
	m.measures = nil
}
