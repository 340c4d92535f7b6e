// internal/monitor/metrics.go
package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/register-programmer/internal/session"
)

// Metrics collects session counters on its own registry. It is a
// session.Sink.
type Metrics struct {
	reg *prometheus.Registry

	sessions *prometheus.CounterVec
	duration *prometheus.HistogramVec
	busy     prometheus.Counter
	inFlight prometheus.Gauge
}

// New builds and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regprog_sessions_total",
			Help: "Finished sessions by mode and outcome.",
		}, []string{"mode", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regprog_session_duration_seconds",
			Help:    "Wall time from start to terminal state.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"mode"}),
		busy: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regprog_busy_rejections_total",
			Help: "Requests rejected because a session was running.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regprog_session_in_flight",
			Help: "1 while a session holds the transport.",
		}),
	}

	m.reg.MustRegister(m.sessions, m.duration, m.busy, m.inFlight)
	return m
}

// Registry exposes the registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Emit implements session.Sink.
func (m *Metrics) Emit(e session.Event) {
	if e.Session == 0 {
		if e.Err != nil && e.Err.Kind == session.KindBusy {
			m.busy.Inc()
		}
		return
	}

	switch e.State {
	case session.Idle:
		m.inFlight.Set(1)
	case session.Completed:
		m.finish(e, "completed")
	case session.Failed:
		outcome := "failed"
		if e.Err != nil {
			outcome = e.Err.Kind.String()
		}
		m.finish(e, outcome)
	}
}

func (m *Metrics) finish(e session.Event, outcome string) {
	m.inFlight.Set(0)
	m.sessions.WithLabelValues(e.Mode.String(), outcome).Inc()
	m.duration.WithLabelValues(e.Mode.String()).Observe(e.Elapsed.Seconds())
}

// Serve exposes /metrics and /health on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.WithField("addr", addr).Info("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
