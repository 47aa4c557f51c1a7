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

package sim

import (
	"errors"
	"testing"
	"time"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
	"jinr.ru/greenlab/go-digitizer/pkg/layers"
)

func setupFrame(t *testing.T, cfg *acquisition.Config) []byte {
	t.Helper()
	plan, err := acquisition.NewBufferPlan(cfg)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	hw, err := acquisition.NewHardwareSettings(cfg)
	if err != nil {
		t.Fatalf("hardware settings: %v", err)
	}
	frame, err := layers.SerializeSetupFrame(cfg, plan, hw)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return frame
}

func pollReady(t *testing.T, b *Board, ch1, ch2 []byte) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ready, err := b.PollCompletedBuffer(ch1, ch2)
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if ready {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no buffer completed")
}

func TestConnectAddresses(t *testing.T) {
	tr := NewTransport(2)
	if tr.BoardCount() != 2 {
		t.Fatalf("board count %d", tr.BoardCount())
	}
	if _, err := tr.BoardInfo(2); err == nil {
		t.Errorf("board info of a missing board succeeded")
	}
	for _, addr := range []string{"2", "-1", "x", ""} {
		if _, err := tr.Connect(addr); !errors.As(err, &ErrBoardAddress{}) {
			t.Errorf("connect %q: got %v, want ErrBoardAddress", addr, err)
		}
	}
	b, err := tr.Connect("sim:1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := tr.Connect("1"); !errors.As(err, &ErrBoardBusy{}) {
		t.Errorf("second connect: got %v, want ErrBoardBusy", err)
	}
	if err := b.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if _, err := tr.Connect("1"); err != nil {
		t.Errorf("reconnect after disconnect: %v", err)
	}
}

func TestPatternAcrossBuffers(t *testing.T) {
	cfg := acquisition.DefaultConfig()
	cfg.AcquireMode = acquisition.ModeDigitizer
	cfg.RecordLength = 256
	cfg.NbrSegments = 3
	cfg.NbrWaveforms = 1
	cfg.NbrRoundRobins = 200
	cfg.BufferSize = 256 * 2 * 3

	tr := NewTransport(1)
	board, err := tr.Connect("0")
	if err != nil {
		t.Fatal(err)
	}
	b := board.(*Board)
	defer b.Disconnect()

	params, err := b.SetAcquisitionParams(setupFrame(t, cfg))
	if err != nil {
		t.Fatalf("set params: %v", err)
	}
	if params.NumberAcquisitions != 200 || params.SamplesPerAcquisition != 3*256 {
		t.Fatalf("params %+v", params)
	}
	if err := b.Arm(); err != nil {
		t.Fatalf("arm: %v", err)
	}
	ch1 := make([]byte, 3*256)
	ch2 := make([]byte, 3*256)
	record := 0
	for i := 0; i < 200; i++ {
		pollReady(t, b, ch1, ch2)
		for r := 0; r < 3; r++ {
			want1 := byte(record % 256)
			want2 := byte((record + 1) % 256)
			if ch1[r*256] != want1 || ch1[r*256+255] != want1 || ch2[r*256] != want2 {
				t.Fatalf("record %d: got %d/%d, want %d/%d", record, ch1[r*256], ch2[r*256], want1, want2)
			}
			record++
		}
	}
	if ready, err := b.PollCompletedBuffer(ch1, ch2); ready || err != nil {
		t.Errorf("poll after last buffer: ready %v err %v", ready, err)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := b.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestHoldForTrigger(t *testing.T) {
	cfg := acquisition.DefaultConfig()
	tr := NewTransport(1)
	tr.HoldForTrigger(true)
	board, err := tr.Connect("0")
	if err != nil {
		t.Fatal(err)
	}
	b := board.(*Board)
	defer b.Disconnect()
	if err := b.ForceTrigger(); !errors.As(err, &ErrNotArmed{}) {
		t.Errorf("trigger before arm: got %v", err)
	}
	if _, err := b.SetAcquisitionParams(setupFrame(t, cfg)); err != nil {
		t.Fatal(err)
	}
	if err := b.Arm(); err != nil {
		t.Fatal(err)
	}
	ch1 := make([]byte, cfg.RecordLength)
	ch2 := make([]byte, cfg.RecordLength)
	time.Sleep(10 * time.Millisecond)
	if ready, _ := b.PollCompletedBuffer(ch1, ch2); ready {
		t.Fatalf("buffer completed without a trigger")
	}
	if err := b.ForceTrigger(); err != nil {
		t.Fatal(err)
	}
	pollReady(t, b, ch1, ch2)
	if b.Triggers() != 1 {
		t.Errorf("triggers %d", b.Triggers())
	}
}

func TestFaults(t *testing.T) {
	cfg := acquisition.DefaultConfig()
	tr := NewTransport(1)
	tr.SetFaults(Faults{FailPoll: true, FailPollAfter: 0, Stop: true})
	board, err := tr.Connect("0")
	if err != nil {
		t.Fatal(err)
	}
	b := board.(*Board)
	if err := b.Arm(); !errors.As(err, &ErrNoParams{}) {
		t.Errorf("arm without params: got %v", err)
	}
	if _, err := b.SetAcquisitionParams([]byte{1, 2, 3}); err == nil {
		t.Errorf("garbage setup frame accepted")
	}
	if _, err := b.SetAcquisitionParams(setupFrame(t, cfg)); err != nil {
		t.Fatal(err)
	}
	if err := b.Arm(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, cfg.RecordLength)
	if _, err := b.PollCompletedBuffer(buf, buf); !errors.As(err, &ErrInjected{}) {
		t.Errorf("poll: got %v, want injected failure", err)
	}
	if err := b.Stop(); !errors.As(err, &ErrInjected{}) {
		t.Errorf("stop: got %v, want injected failure", err)
	}
	if _, err := b.PollCompletedBuffer(buf, buf); !errors.As(err, &ErrNotArmed{}) {
		t.Errorf("poll after failed stop: got %v, want ErrNotArmed", err)
	}
	if err := b.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := b.Arm(); !errors.As(err, &ErrClosed{}) {
		t.Errorf("arm after disconnect: got %v", err)
	}
}

func TestSetupSamplesOverflow(t *testing.T) {
	cfg := acquisition.DefaultConfig()
	cfg.AcquireMode = acquisition.ModeAverager
	cfg.RecordLength = 1 << 20
	cfg.NbrSegments = 2048
	cfg.BufferSize = 1 << 22
	frame, err := layers.DecodeSetupFrame(setupFrame(t, cfg))
	if err != nil {
		t.Fatal(err)
	}
	if err := checkSetup(frame); err != nil {
		t.Fatalf("2^31 samples rejected: %v", err)
	}
	if got := ComputeParams(frame).SamplesPerAcquisition; got != 1<<31 {
		t.Errorf("got %d samples per acquisition", got)
	}

	frame.Config.NbrSegments = 4096
	if err := checkSetup(frame); !errors.As(err, &ErrSetup{}) {
		t.Errorf("2^32 samples: got %v, want ErrSetup", err)
	}
}
