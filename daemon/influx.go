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
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/facebook/cmdiscipline/servo"
)

const (
	influxMeasurement = "cmdiscipline"
	influxTimeout     = 500 * time.Millisecond
)

// InfluxLogger writes every LogSample as a point into InfluxDB
type InfluxLogger struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	runID    string
}

// NewInfluxLogger connects to the server described by cfg
func NewInfluxLogger(cfg InfluxConfig, runID string) *InfluxLogger {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxLogger{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		runID:    runID,
	}
}

func samplePoint(s *servo.LogSample, runID string) *write.Point {
	p := influxdb2.NewPointWithMeasurement(influxMeasurement).
		AddTag("run_id", runID).
		AddTag("state", s.State.String()).
		AddField("iteration", s.Iteration).
		AddField("raw", s.Raw).
		AddField("phase_raw", s.PhaseRaw).
		AddField("phase", s.Phase).
		AddField("outlier", s.Outlier).
		AddField("cmd_ppb", s.CommandPPB).
		AddField("word", s.Word).
		AddField("integral", s.Integral).
		SetTime(s.Time)
	// line protocol has no NaN
	if !math.IsNaN(s.DriftPPB) {
		p.AddField("drift_ppb", s.DriftPPB)
	}
	return p
}

// Log implements servo.Logger
func (l *InfluxLogger) Log(s *servo.LogSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), influxTimeout)
	defer cancel()
	return l.writeAPI.WritePoint(ctx, samplePoint(s, l.runID))
}

// Close flushes pending points and releases the client
func (l *InfluxLogger) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), influxTimeout)
	defer cancel()
	_ = l.writeAPI.Flush(ctx)
	if l.client != nil {
		l.client.Close()
	}
}
