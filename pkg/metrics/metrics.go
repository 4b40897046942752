// Package metrics exports compiler and dialplan statistics to Prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/psaab/aelc/pkg/dialplan"
)

// Run outcomes.
const (
	ResultLoaded   = "loaded"
	ResultRejected = "rejected" // semantic errors, nothing emitted
	ResultFailed   = "failed"   // unreadable or unparsable source
)

// Outcome describes one finished compile run.
type Outcome struct {
	Result   string
	Errors   int
	Warnings int
	Notes    int
	Steps    int
	Dropped  int // units dropped for exceeding the step limit
	Duration time.Duration
}

// Collector implements prometheus.Collector. Run counters accumulate from
// Observe; dialplan gauges are read from the store on each scrape.
type Collector struct {
	store *dialplan.Store

	mu           sync.Mutex
	runs         map[string]uint64
	diagnostics  map[string]uint64
	steps        uint64
	dropped      uint64
	lastDuration float64
	lastLoad     time.Time

	runsTotal        *prometheus.Desc
	diagnosticsTotal *prometheus.Desc
	stepsTotal       *prometheus.Desc
	droppedTotal     *prometheus.Desc
	runDuration      *prometheus.Desc
	lastLoadTime     *prometheus.Desc

	contexts   *prometheus.Desc
	extensions *prometheus.Desc
	priorities *prometheus.Desc
	sources    *prometheus.Desc
	history    *prometheus.Desc
}

// New creates a collector. store may be nil.
func New(store *dialplan.Store) *Collector {
	return &Collector{
		store:       store,
		runs:        make(map[string]uint64),
		diagnostics: make(map[string]uint64),

		runsTotal: prometheus.NewDesc(
			"aelc_compile_runs_total",
			"Total compile runs by result.",
			[]string{"result"}, nil,
		),
		diagnosticsTotal: prometheus.NewDesc(
			"aelc_diagnostics_total",
			"Total diagnostics reported by severity.",
			[]string{"severity"}, nil,
		),
		stepsTotal: prometheus.NewDesc(
			"aelc_emitted_steps_total",
			"Total dialplan steps inserted.",
			nil, nil,
		),
		droppedTotal: prometheus.NewDesc(
			"aelc_dropped_units_total",
			"Total extensions or macros dropped for exceeding the step limit.",
			nil, nil,
		),
		runDuration: prometheus.NewDesc(
			"aelc_last_compile_duration_seconds",
			"Duration of the most recent compile run.",
			nil, nil,
		),
		lastLoadTime: prometheus.NewDesc(
			"aelc_last_load_timestamp_seconds",
			"Unix time of the most recent successful load.",
			nil, nil,
		),
		contexts: prometheus.NewDesc(
			"aelc_dialplan_contexts",
			"Contexts in the loaded dialplan.",
			nil, nil,
		),
		extensions: prometheus.NewDesc(
			"aelc_dialplan_extensions",
			"Extensions in the loaded dialplan.",
			nil, nil,
		),
		priorities: prometheus.NewDesc(
			"aelc_dialplan_priorities",
			"Priorities in the loaded dialplan.",
			nil, nil,
		),
		sources: prometheus.NewDesc(
			"aelc_dialplan_sources",
			"Loaded source files.",
			nil, nil,
		),
		history: prometheus.NewDesc(
			"aelc_dialplan_history_entries",
			"Replaced dialplan versions available for rollback.",
			nil, nil,
		),
	}
}

// Observe records a finished compile run.
func (c *Collector) Observe(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs[o.Result]++
	c.diagnostics["error"] += uint64(o.Errors)
	c.diagnostics["warning"] += uint64(o.Warnings)
	c.diagnostics["note"] += uint64(o.Notes)
	c.steps += uint64(o.Steps)
	c.dropped += uint64(o.Dropped)
	c.lastDuration = o.Duration.Seconds()
	if o.Result == ResultLoaded {
		c.lastLoad = time.Now()
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.runsTotal
	ch <- c.diagnosticsTotal
	ch <- c.stepsTotal
	ch <- c.droppedTotal
	ch <- c.runDuration
	ch <- c.lastLoadTime
	ch <- c.contexts
	ch <- c.extensions
	ch <- c.priorities
	ch <- c.sources
	ch <- c.history
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.collectRuns(ch)
	if c.store != nil {
		c.collectDialplan(ch)
	}
}

func (c *Collector) collectRuns(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, result := range []string{ResultLoaded, ResultRejected, ResultFailed} {
		ch <- prometheus.MustNewConstMetric(c.runsTotal, prometheus.CounterValue,
			float64(c.runs[result]), result)
	}
	for _, sev := range []string{"error", "warning", "note"} {
		ch <- prometheus.MustNewConstMetric(c.diagnosticsTotal, prometheus.CounterValue,
			float64(c.diagnostics[sev]), sev)
	}
	ch <- prometheus.MustNewConstMetric(c.stepsTotal, prometheus.CounterValue, float64(c.steps))
	ch <- prometheus.MustNewConstMetric(c.droppedTotal, prometheus.CounterValue, float64(c.dropped))
	ch <- prometheus.MustNewConstMetric(c.runDuration, prometheus.GaugeValue, c.lastDuration)
	if !c.lastLoad.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastLoadTime, prometheus.GaugeValue,
			float64(c.lastLoad.UnixNano())/1e9)
	}
}

func (c *Collector) collectDialplan(ch chan<- prometheus.Metric) {
	contexts, extensions, priorities := c.store.Plan().Stats()
	ch <- prometheus.MustNewConstMetric(c.contexts, prometheus.GaugeValue, float64(contexts))
	ch <- prometheus.MustNewConstMetric(c.extensions, prometheus.GaugeValue, float64(extensions))
	ch <- prometheus.MustNewConstMetric(c.priorities, prometheus.GaugeValue, float64(priorities))
	ch <- prometheus.MustNewConstMetric(c.sources, prometheus.GaugeValue, float64(len(c.store.Sources())))
	ch <- prometheus.MustNewConstMetric(c.history, prometheus.GaugeValue, float64(len(c.store.History())))
}
