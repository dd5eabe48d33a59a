/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "cmdiscipline_"

// PrometheusExporter exposes Stats counters as gauges
type PrometheusExporter struct {
	registry *prometheus.Registry
	stats    *Stats
}

// NewPrometheusExporter creates a new instance of PrometheusExporter
func NewPrometheusExporter(stats *Stats) *PrometheusExporter {
	e := &PrometheusExporter{registry: prometheus.NewRegistry(), stats: stats}
	e.registry.MustRegister(e)
	return e
}

// Handler serves the registry
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(
		e.registry,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	)
}

// Describe implements prometheus.Collector. Counters appear as the servo
// creates them, so the collector is unchecked.
func (e *PrometheusExporter) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector
func (e *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	counters := e.stats.GetCounters()
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	runID := e.stats.RunID()
	for _, k := range keys {
		desc := prometheus.NewDesc(metricPrefix+flattenKey(k), k, nil, prometheus.Labels{"run_id": runID})
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(counters[k]))
	}
}

func flattenKey(key string) string {
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, ".", "_")
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, "=", "_")
	key = strings.ReplaceAll(key, "/", "_")
	return key
}
