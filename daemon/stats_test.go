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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/facebook/cmdiscipline/servo"
)

func TestStatsCounters(t *testing.T) {
	s := NewStats()
	s.UpdateCounterBy("samples", 2)
	s.UpdateCounterBy("samples", 3)
	s.SetCounter("state", 2)
	require.Equal(t, map[string]int64{"samples": 5, "state": 2}, s.GetCounters())

	s.Reset()
	require.Equal(t, map[string]int64{"samples": 0, "state": 0}, s.GetCounters())
}

func TestStatsStatus(t *testing.T) {
	s := NewStats()
	_, err := uuid.Parse(s.RunID())
	require.NoError(t, err)
	require.NotEqual(t, s.RunID(), NewStats().RunID())

	st := &servo.Status{State: "SLEW", Phase: 1e-9, CommandPPB: 50, Word: 450359962, Integral: 3}
	s.SetStatus(st)
	st.State = "changed"
	got := s.GetStatus()
	require.Equal(t, s.RunID(), got.RunID)
	require.Equal(t, "SLEW", got.State)
	require.Equal(t, 50.0, got.CommandPPB)
}

func get(t *testing.T, h http.Handler, path string) (*http.Response, []byte) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	resp := w.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestJSONStatsHandlers(t *testing.T) {
	s := NewJSONStats()
	s.UpdateCounterBy("steps", 4)
	s.SetStatus(&servo.Status{State: "STEP", Iteration: 4, Phase: 0.01})
	h := s.Handler()

	resp, body := get(t, h, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	root := map[string]any{}
	require.NoError(t, json.Unmarshal(body, &root))
	require.Equal(t, s.RunID(), root["run_id"])
	require.Equal(t, "STEP", root["state"])
	require.Equal(t, 4.0, root["iteration"])
	require.Equal(t, 0.01, root["phase"])

	resp, body = get(t, h, "/counters")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	counters := map[string]int64{}
	require.NoError(t, json.Unmarshal(body, &counters))
	require.Equal(t, map[string]int64{"steps": 4}, counters)
}

func TestPrometheusExporter(t *testing.T) {
	s := NewJSONStats()
	s.SetCounter("phase_adjust_writes", 3)
	s.SetCounter("cmd_ppb", -12)

	resp, body := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `cmdiscipline_phase_adjust_writes{run_id="`+s.RunID()+`"} 3`)
	require.Contains(t, string(body), `cmdiscipline_cmd_ppb{run_id="`+s.RunID()+`"} -12`)
}

func TestFlattenKey(t *testing.T) {
	require.Equal(t, "a_b_c_d_e_f", flattenKey("a b.c-d=e/f"))
}
