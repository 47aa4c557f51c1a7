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

package acquisition

import (
	"errors"
	"testing"
)

func planConfig(mode AcquireMode, recordLength, segments, waveforms, roundRobins, bufferSize uint32) *Config {
	cfg := DefaultConfig()
	cfg.AcquireMode = mode
	cfg.RecordLength = recordLength
	cfg.NbrSegments = segments
	cfg.NbrWaveforms = waveforms
	cfg.NbrRoundRobins = roundRobins
	cfg.BufferSize = bufferSize
	return cfg
}

func TestPlanRejects(t *testing.T) {
	testCases := []*Config{
		planConfig(ModeAverager, 4096, 1, 1, 1, 4096),
		planConfig(ModeAverager, 4096, 1, 1, 1, 1<<23),
		planConfig(ModeDigitizer, 256, 1, 1, 1, 511),
	}
	for _, cfg := range testCases {
		_, err := NewBufferPlan(cfg)
		var invalid ErrInvalidField
		if !errors.As(err, &invalid) || invalid.Field != "bufferSize" {
			t.Errorf("bufferSize %d: got %v, want a bufferSize rejection", cfg.BufferSize, err)
		}
	}
}

func TestPlanSamplesOverflow(t *testing.T) {
	for _, mode := range []AcquireMode{ModeDigitizer, ModeAverager} {
		cfg := planConfig(mode, 1<<20, 4096, 1, 1, 1<<22)
		p, err := NewBufferPlan(cfg)
		if !errors.As(err, &ErrGeometry{}) {
			t.Errorf("%s: got plan %+v err %v, want ErrGeometry", mode, p, err)
		}
	}

	// 2^31 samples still fit
	p, err := NewBufferPlan(planConfig(ModeAverager, 1<<20, 2048, 1, 1, 1<<22))
	if err != nil {
		t.Fatal(err)
	}
	if p.SamplesPerAcquisition != 1<<31 {
		t.Errorf("got %d samples, want %d", p.SamplesPerAcquisition, uint32(1<<31))
	}
}

func TestPlanGeometry(t *testing.T) {
	testCases := []struct {
		name                 string
		cfg                  *Config
		recordsPerBuffer     uint32
		buffersPerRoundRobin uint32
		roundRobinsPerBuffer uint32
		partial              bool
		buffers              uint32
		acquisitions         uint32
		samples              uint32
	}{
		{"single record", planConfig(ModeAverager, 4096, 1, 1, 1, 8192), 1, 1, 1, false, 1, 1, 4096},
		{"waveforms do not fit", planConfig(ModeAverager, 1024, 1, 4, 1, 8192), 4, 1, 1, false, 1, 1, 1024},
		{"four round robins per buffer", planConfig(ModeAverager, 256, 1, 4, 32, 8192), 16, 1, 4, false, 8, 1, 256},
		{"round robin over three buffers", planConfig(ModeDigitizer, 4096, 1, 3, 3, 8192), 1, 3, 1, false, 9, 3, 3 * 4096},
		{"one buffer per round robin", planConfig(ModeDigitizer, 1024, 5, 3, 3, 1024*2*3*5), 15, 1, 1, false, 3, 3, 15 * 1024},
		{"21 records in buffers of 3", planConfig(ModeDigitizer, 256, 7, 3, 1, 256*2*3), 3, 7, 1, false, 7, 1, 21 * 256},
		{"20 records in buffers of 3", planConfig(ModeDigitizer, 256, 5, 4, 2, 256*2*3), 3, 7, 1, true, 14, 2, 20 * 256},
		{"20 records averaged", planConfig(ModeAverager, 256, 5, 4, 2, 256*2*3), 3, 7, 1, true, 14, 1, 5 * 256},
		{"whole acquisition in one buffer", planConfig(ModeDigitizer, 256, 2, 2, 6, 256*2*24), 24, 1, 6, false, 1, 1, 24 * 256},
		{"round robins do not divide", planConfig(ModeDigitizer, 256, 2, 1, 7, 256*2*5), 2, 1, 1, false, 7, 7, 2 * 256},
	}

	for _, tc := range testCases {
		p, err := NewBufferPlan(tc.cfg)
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if p.RecordsPerBuffer != tc.recordsPerBuffer || p.BuffersPerRoundRobin != tc.buffersPerRoundRobin ||
			p.RoundRobinsPerBuffer != tc.roundRobinsPerBuffer || p.PartialBuffer != tc.partial {
			t.Errorf("%s: records/buffer %d buffers/rr %d rr/buffer %d partial %v, want %d %d %d %v", tc.name,
				p.RecordsPerBuffer, p.BuffersPerRoundRobin, p.RoundRobinsPerBuffer, p.PartialBuffer,
				tc.recordsPerBuffer, tc.buffersPerRoundRobin, tc.roundRobinsPerBuffer, tc.partial)
		}
		if p.NumberOfBuffers != tc.buffers || p.NumberAcquisitions != tc.acquisitions || p.SamplesPerAcquisition != tc.samples {
			t.Errorf("%s: buffers %d acquisitions %d samples %d, want %d %d %d", tc.name,
				p.NumberOfBuffers, p.NumberAcquisitions, p.SamplesPerAcquisition, tc.buffers, tc.acquisitions, tc.samples)
		}
		if p.BuffersPerRoundRobin > 1 && p.RoundRobinsPerBuffer > 1 {
			t.Errorf("%s: both per ratios exceed 1", tc.name)
		}
		if p.BytesPerBuffer > tc.cfg.BufferSize {
			t.Errorf("%s: buffer of %d bytes exceeds %d", tc.name, p.BytesPerBuffer, tc.cfg.BufferSize)
		}
	}
}

// Every record of the acquisition lands in exactly one buffer
func TestPlanReconstructsRecords(t *testing.T) {
	for _, rl := range []uint32{256, 1024} {
		for segments := uint32(1); segments <= 7; segments++ {
			for waveforms := uint32(1); waveforms <= 5; waveforms++ {
				for roundRobins := uint32(1); roundRobins <= 6; roundRobins++ {
					for _, records := range []uint32{1, 2, 3, 5, 8, 13, 64} {
						cfg := planConfig(ModeDigitizer, rl, segments, waveforms, roundRobins, rl*2*records)
						p, err := NewBufferPlan(cfg)
						if err != nil {
							t.Fatalf("%+v: %v", cfg.Geometry(), err)
						}
						var sum uint64
						for i := uint32(0); i < p.NumberOfBuffers; i++ {
							valid := p.ValidRecords(i)
							if valid == 0 || valid > p.RecordsPerBuffer {
								t.Fatalf("%+v: buffer %d carries %d records", cfg.Geometry(), i, valid)
							}
							sum += uint64(valid)
						}
						if sum != uint64(cfg.Geometry().Records()) {
							t.Fatalf("%+v in buffers of %d: %d records, want %d",
								cfg.Geometry(), records, sum, cfg.Geometry().Records())
						}
						if p.TotalSamples() != uint64(cfg.Geometry().Samples()) {
							t.Fatalf("%+v: delivers %d samples, want %d", cfg.Geometry(), p.TotalSamples(), cfg.Geometry().Samples())
						}
						if p.NumberOfBuffers%p.NumberAcquisitions != 0 {
							t.Fatalf("%+v: %d buffers do not split into %d acquisitions",
								cfg.Geometry(), p.NumberOfBuffers, p.NumberAcquisitions)
						}
					}
				}
			}
		}
	}
}
