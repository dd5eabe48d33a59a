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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// JSONStats is what we want to report as stats via http
type JSONStats struct {
	*Stats
	prom *PrometheusExporter
}

// NewJSONStats returns a new JSONStats
func NewJSONStats() *JSONStats {
	s := NewStats()
	return &JSONStats{Stats: s, prom: NewPrometheusExporter(s)}
}

// Handler returns the monitoring mux: servo status on /, counters on /counters
// and the Prometheus exposition on /metrics
func (s *JSONStats) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRootRequest)
	mux.HandleFunc("/counters", s.handleCountersRequest)
	mux.Handle("/metrics", s.prom.Handler())
	return mux
}

// Start runs http server until ctx is done
func (s *JSONStats) Start(ctx context.Context, monitoringport int) error {
	addr := fmt.Sprintf(":%d", monitoringport)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warningf("shutting down http server: %v", err)
		}
	}()
	log.Infof("Starting http json server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("starting listener: %w", err)
	}
	return nil
}

func reply(w http.ResponseWriter, v any) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

// handleRootRequest reports the latest servo status
func (s *JSONStats) handleRootRequest(w http.ResponseWriter, _ *http.Request) {
	reply(w, s.GetStatus())
}

// handleCountersRequest reports all counters
func (s *JSONStats) handleCountersRequest(w http.ResponseWriter, _ *http.Request) {
	reply(w, s.GetCounters())
}
