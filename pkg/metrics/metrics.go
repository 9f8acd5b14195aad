// Package metrics exposes service counters in the Prometheus text format.
package metrics

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/itohio/wally/pkg/sensor"
	"github.com/itohio/wally/pkg/vernier"
)

// Metrics groups the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	sensorReadsTotal  *prometheus.CounterVec
	commandsTotal     *prometheus.CounterVec
	telemetryDropped  prometheus.Counter
	telemetrySent     *prometheus.CounterVec
	lastValue         *prometheus.GaugeVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wally_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		sensorReadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wally_sensor_reads_total",
			Help: "Total sensor reads by sensor and outcome.",
		}, []string{"sensor", "status"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wally_vernier_commands_total",
			Help: "Total Vernier commands by command and whether it was recognised.",
		}, []string{"command", "recognized"}),
		telemetryDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wally_telemetry_dropped_total",
			Help: "Readings dropped because the telemetry queue was full.",
		}),
		telemetrySent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wally_telemetry_sent_total",
			Help: "Readings handed to a telemetry sink by sink and outcome.",
		}, []string{"sink", "status"}),
		lastValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wally_sensor_value",
			Help: "Last successfully read value per sensor.",
		}, []string{"sensor", "unit"}),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.sensorReadsTotal,
		m.commandsTotal,
		m.telemetryDropped,
		m.telemetrySent,
		m.lastValue,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(route string, status int) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// ObserveReading counts a read and tracks the last good value.
func (m *Metrics) ObserveReading(r sensor.Reading) {
	if m == nil {
		return
	}
	m.sensorReadsTotal.WithLabelValues(r.Sensor, string(r.Status)).Inc()
	if r.OK() {
		m.lastValue.WithLabelValues(r.Sensor, r.Unit).Set(r.Float())
	}
}

func (m *Metrics) ObserveCommand(res vernier.Result) {
	if m == nil {
		return
	}
	cmd := res.Command
	if !res.Recognized {
		cmd = "unknown"
	}
	m.commandsTotal.WithLabelValues(cmd, strconv.FormatBool(res.Recognized)).Inc()
}

func (m *Metrics) ObserveDrop() {
	if m == nil {
		return
	}
	m.telemetryDropped.Inc()
}

func (m *Metrics) ObserveSend(sink string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.telemetrySent.WithLabelValues(sink, status).Inc()
}

// Text renders every metric family of the registry in the text format.
func (m *Metrics) Text() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return Text(m.registry)
}

// Text gathers g and renders it in the text exposition format.
func Text(g prometheus.Gatherer) ([]byte, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}
