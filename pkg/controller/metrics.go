/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "digitizer"

// Metrics are the controller collectors. A nil *Metrics records nothing.
type Metrics struct {
	state        prometheus.Gauge
	configures   *prometheus.CounterVec
	buffers      prometheus.Counter
	records      prometheus.Counter
	acquisitions prometheus.Counter
	failures     *prometheus.CounterVec
	pollLatency  prometheus.Histogram
}

// NewMetrics registers the controller collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "controller_state",
			Help:      "Controller state (0 disconnected, 1 connected, 2 configured, 3 armed, 4 polling, 5 stopped)",
		}),
		configures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "configures_total",
			Help:      "Configure calls by result",
		}, []string{"result"}),
		buffers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "buffers_total",
			Help:      "DMA buffers received from the board",
		}),
		records: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_total",
			Help:      "Valid records received from the board",
		}),
		acquisitions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "acquisitions_total",
			Help:      "Acquisitions delivered to the caller",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "failures_total",
			Help:      "Board failures by operation",
		}, []string{"op"}),
		pollLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "poll_seconds",
			Help:      "Duration of PollNext calls that delivered data",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}

func (m *Metrics) configured(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.configures.WithLabelValues(result).Inc()
}

func (m *Metrics) buffer(records uint32) {
	if m == nil {
		return
	}
	m.buffers.Inc()
	m.records.Add(float64(records))
}

func (m *Metrics) delivered(seconds float64) {
	if m == nil {
		return
	}
	m.acquisitions.Inc()
	m.pollLatency.Observe(seconds)
}

func (m *Metrics) failed(op string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(op).Inc()
}
