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
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/floats"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
	"jinr.ru/greenlab/go-digitizer/pkg/device/sim"
	"jinr.ru/greenlab/go-digitizer/pkg/log"
)

const pollInterval = time.Millisecond

func newConnected(t *testing.T, tr *sim.Transport) *Controller {
	t.Helper()
	c := New(tr)
	if err := c.Connect("0"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Disconnect() })
	return c
}

func testConfig(mode acquisition.AcquireMode, recordLength, segments, waveforms, roundRobins, bufferSize uint32) *acquisition.Config {
	cfg := acquisition.DefaultConfig()
	cfg.AcquireMode = mode
	cfg.RecordLength = recordLength
	cfg.NbrSegments = segments
	cfg.NbrWaveforms = waveforms
	cfg.NbrRoundRobins = roundRobins
	cfg.BufferSize = bufferSize
	return cfg
}

// collect runs a whole acquisition and concatenates what was delivered
func collect(t *testing.T, c *Controller) (ch1, ch2 []float64) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.Run(ctx, pollInterval, func(acq *Acquisition) error {
		ch1 = append(ch1, acq.Ch1...)
		ch2 = append(ch2, acq.Ch2...)
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return ch1, ch2
}

func checkAgainstPattern(t *testing.T, cfg *acquisition.Config, ch1, ch2 []float64) {
	t.Helper()
	want1, want2, err := acquisition.GenerateTestPattern(cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(ch1) != len(want1) || len(ch2) != len(want2) {
		t.Fatalf("got %d/%d samples, want %d/%d", len(ch1), len(ch2), len(want1), len(want2))
	}
	if !floats.Equal(ch1, want1) {
		t.Errorf("ch1 differs from the test pattern, max abs difference %g", maxAbsDiff(ch1, want1))
	}
	if !floats.Equal(ch2, want2) {
		t.Errorf("ch2 differs from the test pattern, max abs difference %g", maxAbsDiff(ch2, want2))
	}
}

func maxAbsDiff(a, b []float64) float64 {
	diff := make([]float64, len(a))
	floats.SubTo(diff, a, b)
	return floats.Norm(diff, math.Inf(1))
}

func TestEndToEnd(t *testing.T) {
	tests := []struct {
		name string
		cfg  *acquisition.Config
		acqs uint32
	}{
		{"digitizer", testConfig(acquisition.ModeDigitizer, 1024, 5, 3, 3, 1024*2*3*5), 3},
		{"averager", testConfig(acquisition.ModeAverager, 1024, 5, 3, 1, 1024*2*3*5), 1},
		{"averager round robins", testConfig(acquisition.ModeAverager, 1024, 5, 3, 3, 1024*2*3*5), 1},
		{"digitizer partial buffers", testConfig(acquisition.ModeDigitizer, 256, 5, 4, 2, 256*2*3), 2},
		{"averager partial buffers", testConfig(acquisition.ModeAverager, 256, 5, 4, 2, 256*2*3), 1},
		{"digitizer record counter wraps", testConfig(acquisition.ModeDigitizer, 256, 10, 10, 4, 256*2*100), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newConnected(t, sim.NewTransport(1))
			if err := c.Configure(tt.cfg); err != nil {
				t.Fatalf("configure: %v", err)
			}
			if n := c.Plan().NumberAcquisitions; n != tt.acqs {
				t.Fatalf("number of acquisitions %d, want %d", n, tt.acqs)
			}
			ch1, ch2 := collect(t, c)
			checkAgainstPattern(t, tt.cfg, ch1, ch2)
			if c.State() != StateStopped {
				t.Errorf("state after run %s", c.State())
			}
		})
	}
}

func TestPollNextByHand(t *testing.T) {
	cfg := testConfig(acquisition.ModeDigitizer, 1024, 5, 3, 3, 1024*2*3*5)
	c := newConnected(t, sim.NewTransport(1))
	if err := c.Configure(cfg); err != nil {
		t.Fatal(err)
	}
	if err := c.Acquire(); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateArmed {
		t.Fatalf("state after acquire %s", c.State())
	}
	var ch1 []float64
	deadline := time.Now().Add(5 * time.Second)
	for len(ch1) < 3*15*1024 && time.Now().Before(deadline) {
		ready, err := c.PollNext()
		if err != nil {
			t.Fatal(err)
		}
		if !ready {
			time.Sleep(pollInterval)
			continue
		}
		got, _ := c.Channels()
		ch1 = append(ch1, got...)
	}
	if c.State() != StatePolling {
		t.Errorf("state while polling %s", c.State())
	}
	if !c.Done() {
		t.Fatalf("acquisition not done, progress %+v", c.Progress())
	}
	if ready, err := c.PollNext(); ready || err != nil {
		t.Errorf("poll after the last acquisition: ready %v err %v", ready, err)
	}
	want, _, _ := acquisition.GenerateTestPattern(cfg)
	if !floats.Equal(ch1, want) {
		t.Errorf("ch1 differs from the test pattern")
	}
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestConfigureRejected(t *testing.T) {
	c := New(sim.NewTransport(1))
	err := c.Configure(acquisition.DefaultConfig())
	if !errors.As(err, &ErrInvalidState{}) || !errors.As(err, &ErrConfiguration{}) {
		t.Fatalf("configure while disconnected: got %v", err)
	}
	if err := c.Connect("0"); err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()

	good := acquisition.DefaultConfig()
	if err := c.Configure(good); err != nil {
		t.Fatal(err)
	}
	plan := c.Plan()
	runID := c.RunID()
	ch1, _ := c.Channels()

	bad := []*acquisition.Config{
		testConfig(acquisition.ModeAverager, 4096, 1, 1, 1, 4096),
		testConfig(acquisition.ModeAverager, 4096, 1, 1, 1, 1<<23),
		testConfig(acquisition.ModeAverager, 257, 1, 1, 1, 8192),
	}
	for _, cfg := range bad {
		err := c.Configure(cfg)
		if !errors.As(err, &ErrConfiguration{}) {
			t.Errorf("bufferSize %d recordLength %d: got %v, want ErrConfiguration", cfg.BufferSize, cfg.RecordLength, err)
		}
		if !errors.As(err, &acquisition.ErrInvalidField{}) {
			t.Errorf("rejection does not name the field: %v", err)
		}
		if c.State() != StateConfigured {
			t.Errorf("state after rejected configure %s", c.State())
		}
		if *c.Plan() != *plan || c.RunID() != runID {
			t.Errorf("rejected configure changed the plan")
		}
		if got, _ := c.Channels(); &got[0] != &ch1[0] {
			t.Errorf("rejected configure reallocated the channel buffers")
		}
	}

	// same size reuses the buffers
	same := good.Clone()
	same.Label = "again"
	if err := c.Configure(same); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Channels(); &got[0] != &ch1[0] {
		t.Errorf("configure with an unchanged size reallocated the channel buffers")
	}
}

func TestStateMachine(t *testing.T) {
	tr := sim.NewTransport(1)
	tr.HoldForTrigger(true)
	c := New(tr)

	if err := c.Stop(); err != nil {
		t.Errorf("stop while disconnected: %v", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Errorf("disconnect while disconnected: %v", err)
	}
	if err := c.Connect("7"); !errors.As(err, &ErrConnection{}) {
		t.Errorf("connect to a missing board: got %v", err)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("state after failed connect %s", c.State())
	}
	if err := c.Connect("0"); err != nil {
		t.Fatal(err)
	}
	if err := c.Connect("0"); !errors.As(err, &ErrInvalidState{}) {
		t.Errorf("second connect: got %v", err)
	}
	if err := c.Acquire(); !errors.As(err, &ErrAcquisition{}) {
		t.Errorf("acquire before configure: got %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("stop before acquire: %v", err)
	}
	if _, err := c.PollNext(); !errors.As(err, &ErrInvalidState{}) {
		t.Errorf("poll before acquire: got %v", err)
	}

	cfg := acquisition.DefaultConfig()
	if err := c.Configure(cfg); err != nil {
		t.Fatal(err)
	}
	if err := c.Acquire(); err != nil {
		t.Fatal(err)
	}
	if err := c.Configure(cfg); !errors.As(err, &ErrInvalidState{}) {
		t.Errorf("configure while armed: got %v", err)
	}
	if err := c.Acquire(); !errors.As(err, &ErrInvalidState{}) {
		t.Errorf("acquire while armed: got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	err := c.Wait(ctx, pollInterval)
	cancel()
	if !errors.As(err, &ErrTimeout{}) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("wait without a trigger: got %v", err)
	}
	if err := c.ForceTrigger(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx, pollInterval); err != nil {
		t.Fatalf("wait after trigger: %v", err)
	}

	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
	if c.State() != StateStopped {
		t.Errorf("state after stop %s", c.State())
	}
	if err := c.ForceTrigger(); !errors.As(err, &ErrInvalidState{}) {
		t.Errorf("trigger while stopped: got %v", err)
	}

	// rearm without reconfiguring
	if err := c.Acquire(); err != nil {
		t.Fatalf("acquire after stop: %v", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateDisconnected || c.Plan() != nil {
		t.Fatalf("disconnect kept state %s", c.State())
	}
	if ch1, ch2 := c.Channels(); ch1 != nil || ch2 != nil {
		t.Errorf("disconnect kept the channel buffers")
	}

	tr.HoldForTrigger(false)
	if err := c.Connect("0"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer c.Disconnect()
	if err := c.Configure(cfg); err != nil {
		t.Fatalf("configure after reconnect: %v", err)
	}
	ch1, ch2 := collect(t, c)
	checkAgainstPattern(t, cfg, ch1, ch2)
}

func TestBoardFailures(t *testing.T) {
	cfg := testConfig(acquisition.ModeDigitizer, 1024, 5, 3, 3, 1024*2*3*5)

	t.Run("poll", func(t *testing.T) {
		tr := sim.NewTransport(1)
		tr.SetFaults(sim.Faults{FailPoll: true, FailPollAfter: 1})
		c := newConnected(t, tr)
		if err := c.Configure(cfg); err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := c.Run(ctx, pollInterval, nil)
		if !errors.As(err, &ErrAcquisition{}) || !errors.As(err, &sim.ErrInjected{}) {
			t.Fatalf("run with a failing board: got %v", err)
		}
		if c.State() != StateStopped {
			t.Errorf("state after failure %s", c.State())
		}
		if c.Progress().Acquisitions != 1 {
			t.Errorf("progress %+v", c.Progress())
		}
	})

	t.Run("arm", func(t *testing.T) {
		tr := sim.NewTransport(1)
		tr.SetFaults(sim.Faults{Arm: true})
		c := newConnected(t, tr)
		if err := c.Configure(cfg); err != nil {
			t.Fatal(err)
		}
		if err := c.Acquire(); !errors.As(err, &ErrAcquisition{}) {
			t.Fatalf("arm failure: got %v", err)
		}
		if c.State() != StateConfigured {
			t.Errorf("state after arm failure %s", c.State())
		}
	})

	t.Run("stop", func(t *testing.T) {
		tr := sim.NewTransport(1)
		tr.SetFaults(sim.Faults{Stop: true})
		c := newConnected(t, tr)
		if err := c.Configure(cfg); err != nil {
			t.Fatal(err)
		}
		if err := c.Acquire(); err != nil {
			t.Fatal(err)
		}
		if err := c.Stop(); !errors.As(err, &ErrAcquisition{}) {
			t.Fatalf("stop failure: got %v", err)
		}
		if c.State() != StateStopped {
			t.Errorf("state after stop failure %s", c.State())
		}
		if err := c.Stop(); err != nil {
			t.Errorf("stop after stop failure: %v", err)
		}
	})

	t.Run("set params", func(t *testing.T) {
		tr := sim.NewTransport(1)
		tr.SetFaults(sim.Faults{SetParams: true})
		c := newConnected(t, tr)
		if err := c.Configure(cfg); !errors.As(err, &ErrConfiguration{}) {
			t.Fatalf("board rejection: got %v", err)
		}
		if c.State() != StateConnected || c.Plan() != nil {
			t.Errorf("board rejection changed state to %s", c.State())
		}
	})
}

func TestResourceLimit(t *testing.T) {
	c := newConnected(t, sim.NewTransport(1))
	c.SetMaxSamples(1000)
	err := c.Configure(acquisition.DefaultConfig())
	if !errors.As(err, &ErrResource{}) {
		t.Fatalf("got %v, want ErrResource", err)
	}
	if c.State() != StateConnected {
		t.Errorf("state %s", c.State())
	}
}

func TestConfigureLargeAcquisitions(t *testing.T) {
	c := newConnected(t, sim.NewTransport(1))
	for _, mode := range []acquisition.AcquireMode{acquisition.ModeDigitizer, acquisition.ModeAverager} {
		err := c.Configure(testConfig(mode, 1<<20, 4096, 1, 1, 1<<22))
		if !errors.As(err, &ErrConfiguration{}) || !errors.As(err, &acquisition.ErrGeometry{}) {
			t.Errorf("%s with 2^32 samples: got %v, want a geometry rejection", mode, err)
		}
		err = c.Configure(testConfig(mode, 1<<20, 2048, 1, 1, 1<<22))
		if !errors.As(err, &ErrResource{}) {
			t.Errorf("%s with 2^31 samples: got %v, want ErrResource", mode, err)
		}
		if c.State() != StateConnected {
			t.Errorf("%s: state %s after rejected configure", mode, c.State())
		}
	}
}

func TestConfigureLogsParams(t *testing.T) {
	var out bytes.Buffer
	log.SetOutput(&out)
	defer log.SetOutput(os.Stderr)

	c := newConnected(t, sim.NewTransport(1))
	if err := c.Configure(acquisition.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"recordLength":       "4096",
		"bufferLen":          "8192",
		"nbrBuffers":         "1",
		"recordsPerBuffer":   "1",
		"partialBuffer":      "0",
		"numberAcquisitions": "1",
		"Input Range":        "10",
		"Counts2Volts":       "0.0078125",
		"Trigger Level Code": "153",
		"Trigger Delay":      "5000000",
	}
	for key, value := range want {
		got, ok := log.ParamValue(bytes.NewReader(out.Bytes()), key)
		if !ok || got != value {
			t.Errorf("%s: got %q (found %v), want %q", key, got, ok, value)
		}
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newConnected(t, sim.NewTransport(1))
	c.SetMetrics(NewMetrics(reg))
	if err := c.Configure(testConfig(acquisition.ModeDigitizer, 1024, 5, 3, 3, 1024*2*3*5)); err != nil {
		t.Fatal(err)
	}
	c.Configure(testConfig(acquisition.ModeDigitizer, 255, 5, 3, 3, 8192))
	collect(t, c)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, l := range m.GetLabel() {
				name += "/" + l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				got[name] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				got[name] = m.GetGauge().GetValue()
			}
		}
	}
	want := map[string]float64{
		"digitizer_buffers_total":             3,
		"digitizer_records_total":             45,
		"digitizer_acquisitions_total":        3,
		"digitizer_configures_total/ok":       1,
		"digitizer_configures_total/rejected": 1,
		"digitizer_controller_state":          float64(StateStopped),
	}
	for name, value := range want {
		if got[name] != value {
			t.Errorf("%s = %v, want %v", name, got[name], value)
		}
	}
}
