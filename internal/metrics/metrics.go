// Package metrics exposes server-side Prometheus instrumentation (spec
// §4.9's "bandwidth utilisation, per-session fill ratios" plus the
// channel-power gauge supplemented from the original's magsq meter),
// grounded on the teacher's promauto-based PrometheusMetrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the server updates as sessions stream,
// queue, and disconnect.
type Registry struct {
	activeSessions   prometheus.Gauge
	queuedSessions   prometheus.Gauge
	bytesTransmitted prometheus.Counter
	bytesUncompressed prometheus.Counter
	bytesCompressed  prometheus.Counter

	sessionFillRatio *prometheus.GaugeVec // label: session_id
	channelPower     *prometheus.GaugeVec // label: session_id, linear magnitude^2
	squelchOpen      *prometheus.GaugeVec // label: session_id, 1=open 0=closed

	connectionsTotal   prometheus.Counter
	disconnectionsTotal prometheus.Counter
	blacklistedTotal   prometheus.Counter
	rateLimitedTotal   prometheus.Counter
}

// New constructs and registers every collector. Call once per process;
// promauto panics on double-registration, matching the teacher's
// single-instance assumption.
func New() *Registry {
	return &Registry{
		activeSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "remoteiq_active_sessions",
			Help: "Number of sessions currently in the Active admission state",
		}),
		queuedSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "remoteiq_queued_sessions",
			Help: "Number of sessions currently in the Queued admission state",
		}),
		bytesTransmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remoteiq_bytes_transmitted_total",
			Help: "Total bytes written to client sockets",
		}),
		bytesUncompressed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remoteiq_bytes_uncompressed_total",
			Help: "Total uncompressed IQ bytes produced by DSPSink",
		}),
		bytesCompressed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remoteiq_bytes_compressed_total",
			Help: "Total bytes produced by the Compressor",
		}),
		sessionFillRatio: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "remoteiq_session_fill_ratio",
			Help: "Pending-write buffer occupancy as a fraction of its backpressure limit",
		}, []string{"session_id"}),
		channelPower: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "remoteiq_channel_power",
			Help: "Moving-average magnitude-squared of the channel, normalized to full scale",
		}, []string{"session_id"}),
		squelchOpen: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "remoteiq_squelch_open",
			Help: "1 if the session's squelch gate is open, 0 otherwise",
		}, []string{"session_id"}),
		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remoteiq_connections_total",
			Help: "Total accepted TCP/WSS connections",
		}),
		disconnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remoteiq_disconnections_total",
			Help: "Total session disconnections",
		}),
		blacklistedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remoteiq_blacklisted_connections_total",
			Help: "Total connection attempts rejected by the IP blacklist",
		}),
		rateLimitedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remoteiq_rate_limited_connections_total",
			Help: "Total connection attempts rejected by the per-IP rate limiter",
		}),
	}
}

func (r *Registry) SetActiveSessions(n int) { r.activeSessions.Set(float64(n)) }
func (r *Registry) SetQueuedSessions(n int) { r.queuedSessions.Set(float64(n)) }

func (r *Registry) AddBytesTransmitted(n int)  { r.bytesTransmitted.Add(float64(n)) }
func (r *Registry) AddBytesUncompressed(n int) { r.bytesUncompressed.Add(float64(n)) }
func (r *Registry) AddBytesCompressed(n int)   { r.bytesCompressed.Add(float64(n)) }

func (r *Registry) SetFillRatio(sessionID string, ratio float64) {
	r.sessionFillRatio.WithLabelValues(sessionID).Set(ratio)
}

func (r *Registry) SetChannelPower(sessionID string, magsq float64) {
	r.channelPower.WithLabelValues(sessionID).Set(magsq)
}

func (r *Registry) SetSquelchOpen(sessionID string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	r.squelchOpen.WithLabelValues(sessionID).Set(v)
}

// DeleteSession removes all per-session label values on disconnect, so
// stale series don't accumulate across the server's lifetime.
func (r *Registry) DeleteSession(sessionID string) {
	r.sessionFillRatio.DeleteLabelValues(sessionID)
	r.channelPower.DeleteLabelValues(sessionID)
	r.squelchOpen.DeleteLabelValues(sessionID)
}

func (r *Registry) IncConnections()    { r.connectionsTotal.Inc() }
func (r *Registry) IncDisconnections() { r.disconnectionsTotal.Inc() }
func (r *Registry) IncBlacklisted()    { r.blacklistedTotal.Inc() }
func (r *Registry) IncRateLimited()    { r.rateLimitedTotal.Inc() }

// Serve starts the /metrics HTTP endpoint, blocking until ctx is
// cancelled. A pushgateway target, which the teacher's push.New client
// supports, is deliberately not wired here: spec §4.9 describes a scrape
// endpoint, and this system has no batch-job lifecycle to push from at
// job completion the way the teacher's periodic collectors do.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
