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

package layers

import (
	"testing"

	"github.com/google/uuid"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
)

func TestSetupFrame(t *testing.T) {
	cfg := acquisition.DefaultConfig()
	cfg.AcquireMode = acquisition.ModeDigitizer
	cfg.RecordLength = 256
	cfg.NbrSegments = 5
	cfg.NbrWaveforms = 4
	cfg.NbrRoundRobins = 2
	cfg.BufferSize = 256 * 2 * 3
	cfg.Bandwidth = acquisition.Bandwidth20MHz
	cfg.Label = "partial buffers"
	cfg.VerticalOffset = -0.125

	plan, err := acquisition.NewBufferPlan(cfg)
	if err != nil {
		t.Fatal(err)
	}
	hw, err := acquisition.NewHardwareSettings(cfg)
	if err != nil {
		t.Fatal(err)
	}
	data, err := SerializeSetupFrame(cfg, plan, hw)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != HardwareConfigLen+AcqSetupLen {
		t.Fatalf("frame has %d bytes, want %d", len(data), HardwareConfigLen+AcqSetupLen)
	}

	frame, err := DecodeSetupFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Config.Config != *cfg {
		t.Errorf("config\n got %+v\nwant %+v", frame.Config.Config, *cfg)
	}
	if frame.Setup.HardwareSettings != *hw {
		t.Errorf("hardware settings\n got %+v\nwant %+v", frame.Setup.HardwareSettings, *hw)
	}
	s := frame.Setup
	if s.RecordsPerBuffer != plan.RecordsPerBuffer || s.BuffersPerRoundRobin != plan.BuffersPerRoundRobin ||
		s.NumberOfBuffers != plan.NumberOfBuffers || !s.PartialBuffer || s.TotalRecords != 40 {
		t.Errorf("setup %+v does not match plan %+v", s, plan)
	}
	for i := uint32(0); i <= plan.NumberOfBuffers; i++ {
		if s.ValidRecords(i) != plan.ValidRecords(i) {
			t.Errorf("buffer %d: %d valid records, plan says %d", i, s.ValidRecords(i), plan.ValidRecords(i))
		}
	}
}

func TestSetupFrameRejects(t *testing.T) {
	cfg := acquisition.DefaultConfig()
	cfg.Label = "a label longer than thirty two bytes"
	if err := NewHardwareConfigLayer(cfg).Serialize(make([]byte, HardwareConfigLen)); err == nil {
		t.Errorf("overlong label serialized")
	}

	cfg = acquisition.DefaultConfig()
	plan, _ := acquisition.NewBufferPlan(cfg)
	hw, _ := acquisition.NewHardwareSettings(cfg)
	data, err := SerializeSetupFrame(cfg, plan, hw)
	if err != nil {
		t.Fatal(err)
	}
	bad := append([]byte{}, data...)
	bad[0] ^= 0xff
	if _, err := DecodeSetupFrame(bad); err == nil {
		t.Errorf("frame with a wrong magic decoded")
	}
	if _, err := DecodeSetupFrame(data[:HardwareConfigLen+10]); err == nil {
		t.Errorf("truncated frame decoded")
	}
	if _, err := DecodeSetupFrame(data[:HardwareConfigLen]); err == nil {
		t.Errorf("frame without acquisition setup decoded")
	}
}

func TestAcqFrame(t *testing.T) {
	f := &AcqFrameLayer{
		Flags: AcqFrameFlagAverager,
		RunID: uuid.New(),
		Index: 2,
		Total: 3,
		Ch1:   ToFloat32([]float64{-1, 0, 0.9921875}),
		Ch2:   ToFloat32([]float64{-0.5, 0.25, 1}),
	}
	data, err := EncodeAcqFrame(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != AcqFrameHeaderLen+2*4*3 {
		t.Fatalf("frame has %d bytes", len(data))
	}
	got, err := DecodeAcqFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Flags != f.Flags || got.RunID != f.RunID || got.Index != 2 || got.Total != 3 {
		t.Errorf("header %+v", got)
	}
	for i := range f.Ch1 {
		if got.Ch1[i] != f.Ch1[i] || got.Ch2[i] != f.Ch2[i] {
			t.Errorf("sample %d: got %g/%g, want %g/%g", i, got.Ch1[i], got.Ch2[i], f.Ch1[i], f.Ch2[i])
		}
	}

	if _, err := DecodeAcqFrame(data[:len(data)-1]); err == nil {
		t.Errorf("truncated frame decoded")
	}
	if _, err := EncodeAcqFrame(&AcqFrameLayer{Ch1: []float32{1}}); err == nil {
		t.Errorf("frame with unequal channels encoded")
	}
}
