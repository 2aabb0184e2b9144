package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics 대기열/발차/점수 카운터. nil 리시버에서도 안전하게 호출된다.
type Metrics struct {
	Registry *prometheus.Registry

	joins       *prometheus.CounterVec
	launches    *prometheus.CounterVec
	evictions   prometheus.Counter
	scores      *prometheus.CounterVec
	storageErrs *prometheus.CounterVec
}

// New 전용 Registry 에 수집기를 등록한다
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crew_queue_joins_total",
			Help: "Queue join attempts by mode and outcome",
		}, []string{"mode", "event", "outcome"}),
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crew_launches_total",
			Help: "Crews launched by mode and level",
		}, []string{"mode", "level", "event"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crew_queue_evictions_total",
			Help: "Queue entries removed after their wait expired",
		}),
		scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crew_score_submissions_total",
			Help: "Score submissions by outcome",
		}, []string{"outcome"}),
		storageErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crew_storage_faults_total",
			Help: "Storage faults by operation",
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.joins, m.launches, m.evictions, m.scores, m.storageErrs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Join(mode string, event bool, outcome string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(mode, strconv.FormatBool(event), outcome).Inc()
}

func (m *Metrics) Launch(mode string, level int, event bool) {
	if m == nil {
		return
	}
	m.launches.WithLabelValues(mode, strconv.Itoa(level), strconv.FormatBool(event)).Inc()
}

func (m *Metrics) Evictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

func (m *Metrics) Score(outcome string) {
	if m == nil {
		return
	}
	m.scores.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StorageFault(op string) {
	if m == nil {
		return
	}
	m.storageErrs.WithLabelValues(op).Inc()
}
