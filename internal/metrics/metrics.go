package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/strikegate/internal/contracts"
)

const namespace = "strikegate"

// Registry Prometheus collectors for the gating service
// ⭐ SSOT: 메트릭 이름/라벨은 여기서만 정의 (전역 default registry 사용 금지)
type Registry struct {
	reg *prometheus.Registry

	Validations      *prometheus.CounterVec
	ValidationTime   prometheus.Histogram
	CheckOutcomes    *prometheus.CounterVec
	CheckDuration    *prometheus.HistogramVec
	CheckTimeouts    *prometheus.CounterVec
	EarlyTerminated  prometheus.Counter
	FinalConfidence  prometheus.Histogram
	FinalRisk        prometheus.Histogram
	SafetyHalted     prometheus.Gauge
	WSClients        prometheus.Gauge
	LiquiditySamples *prometheus.CounterVec
}

// New creates the collectors on a private registry
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_total",
				Help:      "Strike validations by verdict and strike type",
			},
			[]string{"verdict", "strike_type"},
		),
		ValidationTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_duration_seconds",
				Help:      "Wall time of one validation run",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		CheckOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "check_outcomes_total",
				Help:      "Check outcomes by check and result",
			},
			[]string{"check", "result"},
		),
		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "check_duration_seconds",
				Help:      "Duration of individual checks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"check"},
		),
		CheckTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "check_timeouts_total",
				Help:      "Checks replaced by a timeout outcome",
			},
			[]string{"check"},
		),
		EarlyTerminated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "early_terminations_total",
				Help:      "Runs stopped before every wave executed",
			},
		),
		FinalConfidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "final_confidence",
				Help:      "Final folded confidence per run",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		FinalRisk: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "final_risk",
				Help:      "Final folded risk per run",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		SafetyHalted: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "safety_halted",
				Help:      "1 while the safety circuit breaker is tripped",
			},
		),
		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_clients",
				Help:      "Connected decision stream clients",
			},
		),
		LiquiditySamples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "liquidity_samples_total",
				Help:      "Liquidity sampler results by status",
			},
			[]string{"status"},
		),
	}

	r.reg.MustRegister(
		r.Validations,
		r.ValidationTime,
		r.CheckOutcomes,
		r.CheckDuration,
		r.CheckTimeouts,
		r.EarlyTerminated,
		r.FinalConfidence,
		r.FinalRisk,
		r.SafetyHalted,
		r.WSClients,
		r.LiquiditySamples,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the private registry (tests, custom handlers)
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler /metrics exposition handler
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveReport records one finished validation run
func (r *Registry) ObserveReport(rep *contracts.Report) {
	if rep == nil {
		return
	}

	strikeType := string(rep.StrikeType)
	if strikeType == "" {
		strikeType = "unknown"
	}
	r.Validations.WithLabelValues(string(rep.Decision.Verdict), strikeType).Inc()
	r.ValidationTime.Observe(rep.Duration.Seconds())
	r.FinalConfidence.Observe(rep.FinalConfidence)
	r.FinalRisk.Observe(rep.FinalRisk)
	if rep.EarlyTermination {
		r.EarlyTerminated.Inc()
	}

	for _, res := range rep.Results {
		label := checkLabel(res.Outcome)
		result := "fail"
		if res.Outcome.Passed {
			result = "pass"
		}
		r.CheckOutcomes.WithLabelValues(label, result).Inc()
		r.CheckDuration.WithLabelValues(label).Observe(res.Duration.Seconds())
		if res.Outcome.TimedOut {
			r.CheckTimeouts.WithLabelValues(label).Inc()
		}
	}
}

// SetSafetyHalted mirrors the safety breaker state
func (r *Registry) SetSafetyHalted(halted bool) {
	if halted {
		r.SafetyHalted.Set(1)
		return
	}
	r.SafetyHalted.Set(0)
}

func checkLabel(o contracts.Outcome) string {
	if o.Name != "" {
		return o.Name
	}
	return strconv.Itoa(int(o.CheckID))
}
