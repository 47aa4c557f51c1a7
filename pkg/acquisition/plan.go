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
	"fmt"
	"math"

	"jinr.ru/greenlab/go-digitizer/pkg/log"
)

// BufferPlan is the partition of an acquisition into DMA buffers.
//
// Either a buffer holds one or more whole round robins (BuffersPerRoundRobin
// is 1) or a round robin is spread over several buffers (RoundRobinsPerBuffer
// is 1). In the second case the last buffer of every round robin may carry
// fewer than RecordsPerBuffer records, which is flagged by PartialBuffer.
type BufferPlan struct {
	Mode                  AcquireMode
	Geometry              Geometry
	SamplesPerRecord      uint32
	BytesPerRecord        uint32
	RecordsPerBuffer      uint32
	BytesPerBuffer        uint32
	RecordsPerRoundRobin  uint32
	BuffersPerRoundRobin  uint32
	RoundRobinsPerBuffer  uint32
	PartialBuffer         bool
	NumberOfBuffers       uint32
	TotalRecords          uint32
	RecordsPerAcquisition uint32
	SamplesPerAcquisition uint32
	NumberAcquisitions    uint32
}

// NewBufferPlan computes the buffer partition for a configuration.
// The configuration is validated first, a buffer that can not hold one
// record of both channels is rejected.
func NewBufferPlan(cfg *Config) (*BufferPlan, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	bytesPerRecord := cfg.RecordLength * SampleSize * ChannelCount
	maxRecords := cfg.BufferSize / bytesPerRecord
	if maxRecords == 0 {
		return nil, ErrInvalidField{
			Field:      "bufferSize",
			Value:      cfg.BufferSize,
			Constraint: fmt.Sprintf("too small, one record of both channels needs %d bytes", bytesPerRecord),
		}
	}

	p := &BufferPlan{
		Mode:                 cfg.AcquireMode,
		Geometry:             cfg.Geometry(),
		SamplesPerRecord:     cfg.RecordLength,
		BytesPerRecord:       bytesPerRecord,
		RecordsPerRoundRobin: cfg.NbrSegments * cfg.NbrWaveforms,
	}
	p.TotalRecords = p.RecordsPerRoundRobin * cfg.NbrRoundRobins

	if p.RecordsPerRoundRobin <= maxRecords {
		// whole round robins per buffer, only as many as tile the acquisition exactly
		p.RoundRobinsPerBuffer = largestDivisor(cfg.NbrRoundRobins, maxRecords/p.RecordsPerRoundRobin)
		p.BuffersPerRoundRobin = 1
		p.RecordsPerBuffer = p.RoundRobinsPerBuffer * p.RecordsPerRoundRobin
		p.NumberOfBuffers = cfg.NbrRoundRobins / p.RoundRobinsPerBuffer
	} else {
		p.RoundRobinsPerBuffer = 1
		p.RecordsPerBuffer = maxRecords
		p.BuffersPerRoundRobin = (p.RecordsPerRoundRobin + maxRecords - 1) / maxRecords
		p.PartialBuffer = p.RecordsPerRoundRobin%maxRecords != 0
		p.NumberOfBuffers = cfg.NbrRoundRobins * p.BuffersPerRoundRobin
	}
	p.BytesPerBuffer = p.RecordsPerBuffer * bytesPerRecord

	var samples uint64
	switch cfg.AcquireMode {
	case ModeAverager:
		p.RecordsPerAcquisition = p.TotalRecords
		samples = uint64(cfg.NbrSegments) * uint64(cfg.RecordLength)
		p.NumberAcquisitions = 1
	default:
		if p.BuffersPerRoundRobin == 1 {
			p.RecordsPerAcquisition = p.RecordsPerBuffer
			p.NumberAcquisitions = p.NumberOfBuffers
		} else {
			p.RecordsPerAcquisition = p.RecordsPerRoundRobin
			p.NumberAcquisitions = cfg.NbrRoundRobins
		}
		samples = uint64(p.RecordsPerAcquisition) * uint64(cfg.RecordLength)
	}
	if samples > math.MaxUint32 {
		return nil, ErrGeometry{What: fmt.Sprintf("%d samples per acquisition exceed %d",
			samples, uint32(math.MaxUint32))}
	}
	p.SamplesPerAcquisition = uint32(samples)

	if p.ReconstructedRecords() != uint64(p.TotalRecords) {
		return nil, ErrGeometry{What: fmt.Sprintf("buffers hold %d records, acquisition has %d",
			p.ReconstructedRecords(), p.TotalRecords)}
	}
	return p, nil
}

// largestDivisor returns the largest divisor of n that does not exceed limit
func largestDivisor(n, limit uint32) uint32 {
	if limit >= n {
		return n
	}
	for d := limit; d > 1; d-- {
		if n%d == 0 {
			return d
		}
	}
	return 1
}

// ValidRecords returns the number of records carried by the buffer with the
// given index counted from the start of the acquisition
func (p *BufferPlan) ValidRecords(bufferIndex uint32) uint32 {
	if bufferIndex >= p.NumberOfBuffers {
		return 0
	}
	if p.BuffersPerRoundRobin == 1 {
		return p.RecordsPerBuffer
	}
	pos := bufferIndex % p.BuffersPerRoundRobin
	if pos == p.BuffersPerRoundRobin-1 {
		return p.RecordsPerRoundRobin - pos*p.RecordsPerBuffer
	}
	return p.RecordsPerBuffer
}

// ReconstructedRecords sums the valid records of all buffers
func (p *BufferPlan) ReconstructedRecords() uint64 {
	var total uint64
	if p.BuffersPerRoundRobin == 1 {
		return uint64(p.NumberOfBuffers) * uint64(p.RecordsPerBuffer)
	}
	for i := uint32(0); i < p.BuffersPerRoundRobin; i++ {
		total += uint64(p.ValidRecords(i))
	}
	return total * uint64(p.NumberOfBuffers/p.BuffersPerRoundRobin)
}

// BuffersPerAcquisition is the number of DMA buffers behind one delivered acquisition
func (p *BufferPlan) BuffersPerAcquisition() uint32 {
	return p.NumberOfBuffers / p.NumberAcquisitions
}

// TotalSamples is the number of samples per channel delivered over all acquisitions
func (p *BufferPlan) TotalSamples() uint64 {
	return uint64(p.SamplesPerAcquisition) * uint64(p.NumberAcquisitions)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Log writes the plan as parameter lines
func (p *BufferPlan) Log() {
	log.Param("acquireMode", p.Mode)
	log.Param("recordLength", p.SamplesPerRecord)
	log.Param("bufferLen", p.BytesPerBuffer)
	log.Param("nbrBuffers", p.NumberOfBuffers)
	log.Param("recordsPerBuffer", p.RecordsPerBuffer)
	log.Param("recordsPerRoundRobin", p.RecordsPerRoundRobin)
	log.Param("roundRobinsPerBuffer", p.RoundRobinsPerBuffer)
	log.Param("buffersPerRoundRobin", p.BuffersPerRoundRobin)
	log.Param("partialBuffer", boolToInt(p.PartialBuffer))
	log.Param("recordsPerAcquisition", p.RecordsPerAcquisition)
	log.Param("samplesPerAcquisition", p.SamplesPerAcquisition)
	log.Param("numberAcquisitions", p.NumberAcquisitions)
}
