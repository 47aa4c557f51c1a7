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

type AcquireMode string

const (
	ModeDigitizer AcquireMode = "digitizer"
	ModeAverager  AcquireMode = "averager"
)

const (
	BandwidthFull  = "Full"
	Bandwidth20MHz = "20MHz"

	ClockInternal = "int"
	ClockRef      = "ref"
	ClockExternal = "ext"

	CouplingAC = "AC"
	CouplingDC = "DC"

	SlopeRising  = "rising"
	SlopeFalling = "falling"

	TriggerSourceA        = "A"
	TriggerSourceB        = "B"
	TriggerSourceExternal = "Ext"
	TriggerSourceInternal = "Int"
)

const (
	// RecordAlignment is the granularity of the record length in samples
	RecordAlignment = 256
	MinRecordLength = RecordAlignment
	// SampleSize is the size of one ADC sample in bytes (8-bit converter)
	SampleSize   = 1
	ChannelCount = 2
	// MaxBufferSize is the largest DMA buffer the board can address
	MaxBufferSize = 1 << 22
	// MaxLabelLength leaves room for the terminating NUL of the label field
	MaxLabelLength = 31
	// ExternalTriggerRangeMV is the range of the external trigger input (ETR_5V)
	ExternalTriggerRangeMV = 5000
)

// Config is the acquisition configuration of the board.
// Field names follow the ConfigData layout that the board transport expects.
type Config struct {
	AcquireMode      AcquireMode `json:"acquireMode"`
	Bandwidth        string      `json:"bandwidth"`
	ClockType        string      `json:"clockType"`
	TriggerDelay     float64     `json:"delay"`
	Enabled          bool        `json:"enabled"`
	Label            string      `json:"label"`
	RecordLength     uint32      `json:"recordLength"`
	NbrSegments      uint32      `json:"nbrSegments"`
	NbrWaveforms     uint32      `json:"nbrWaveforms"`
	NbrRoundRobins   uint32      `json:"nbrRoundRobins"`
	SamplingRate     float64     `json:"samplingRate"`
	TriggerCoupling  string      `json:"triggerCoupling"`
	TriggerLevel     float64     `json:"triggerLevel"`
	TriggerSlope     string      `json:"triggerSlope"`
	TriggerSource    string      `json:"triggerSource"`
	VerticalCoupling string      `json:"verticalCoupling"`
	VerticalOffset   float64     `json:"verticalOffset"`
	VerticalScale    float64     `json:"verticalScale"`
	BufferSize       uint32      `json:"bufferSize"`
}

// DefaultConfig returns a single record averager configuration that fits
// exactly one record of both channels into the DMA buffer.
func DefaultConfig() *Config {
	return &Config{
		AcquireMode:      ModeAverager,
		Bandwidth:        BandwidthFull,
		ClockType:        ClockRef,
		TriggerDelay:     0.01,
		Enabled:          true,
		Label:            "Alazar",
		RecordLength:     4096,
		NbrSegments:      1,
		NbrWaveforms:     1,
		NbrRoundRobins:   1,
		SamplingRate:     500e6,
		TriggerCoupling:  CouplingAC,
		TriggerLevel:     1000,
		TriggerSlope:     SlopeRising,
		TriggerSource:    TriggerSourceExternal,
		VerticalCoupling: CouplingAC,
		VerticalOffset:   0.0,
		VerticalScale:    1.0,
		BufferSize:       8192,
	}
}

// Clone returns a copy that can be modified without affecting c
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Geometry returns the record geometry of the acquisition
func (c *Config) Geometry() Geometry {
	return Geometry{
		RecordLength: int(c.RecordLength),
		Segments:     int(c.NbrSegments),
		Waveforms:    int(c.NbrWaveforms),
		RoundRobins:  int(c.NbrRoundRobins),
	}
}

// Geometry describes how records are laid out in an acquisition.
// Logically the samples of an acquisition form a 4-D array indexed by
// (sample, waveform, segment, round robin) with the sample index varying
// fastest and the round robin index varying slowest.
type Geometry struct {
	RecordLength int
	Segments     int
	Waveforms    int
	RoundRobins  int
}

func (g Geometry) RecordsPerRoundRobin() int {
	return g.Segments * g.Waveforms
}

func (g Geometry) Records() int {
	return g.Segments * g.Waveforms * g.RoundRobins
}

func (g Geometry) Samples() int {
	return g.Records() * g.RecordLength
}

// AveragedSamples is the number of samples left after averaging over
// waveforms and round robins
func (g Geometry) AveragedSamples() int {
	return g.Segments * g.RecordLength
}
