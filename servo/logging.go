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

package servo

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// LogSample is everything we log about one loop iteration
type LogSample struct {
	Time       time.Time
	State      State
	Iteration  int
	Raw        int64
	PhaseRaw   float64
	Phase      float64
	Outlier    bool
	DriftPPB   float64 // NaN when there is no previous sample
	CommandPPB float64
	Word       int64
	Integral   float64
}

var header = []string{
	"time",
	"state",
	"iteration",
	"raw",
	"phase_raw",
	"phase",
	"outlier",
	"drift_ppb",
	"cmd_ppb",
	"word",
	"integral",
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// CSVRecords returns all data from this sample as CSV. Must by synced with `header` variable.
func (s *LogSample) CSVRecords() []string {
	return []string{
		strconv.FormatInt(s.Time.UnixNano(), 10),
		s.State.String(),
		strconv.Itoa(s.Iteration),
		strconv.FormatInt(s.Raw, 10),
		formatFloat(s.PhaseRaw),
		formatFloat(s.Phase),
		strconv.FormatBool(s.Outlier),
		formatFloat(s.DriftPPB),
		formatFloat(s.CommandPPB),
		strconv.FormatInt(s.Word, 10),
		formatFloat(s.Integral),
	}
}

// Logger is something that can store LogSample somewhere
type Logger interface {
	Log(*LogSample) error
}

// CSVLogger logs Sample as CSV into given writer
type CSVLogger struct {
	csvwriter     *csv.Writer
	printedHeader bool
}

// NewCSVLogger returns new CSVLogger
func NewCSVLogger(w io.Writer) *CSVLogger {
	return &CSVLogger{
		csvwriter: csv.NewWriter(w),
	}
}

// Log implements Logger interface
func (l *CSVLogger) Log(s *LogSample) error {
	if !l.printedHeader {
		if err := l.csvwriter.Write(header); err != nil {
			return err
		}
		l.printedHeader = true
	}
	if err := l.csvwriter.Write(s.CSVRecords()); err != nil {
		return err
	}
	l.csvwriter.Flush()
	return l.csvwriter.Error()
}

// MultiLogger fans a sample out to several loggers, returning the first error
type MultiLogger []Logger

// Log implements Logger interface
func (m MultiLogger) Log(s *LogSample) error {
	var first error
	for _, l := range m {
		if err := l.Log(s); err != nil && first == nil {
			first = fmt.Errorf("logging sample: %w", err)
		}
	}
	return first
}
