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
	"math"
	"sort"

	"jinr.ru/greenlab/go-digitizer/pkg/log"
)

// Board register values, see AlazarCmd.h

// SampleRateIDs maps the supported internal clock rates to SAMPLE_RATE_* ids
var SampleRateIDs = map[float64]uint32{
	1e3:   0x01,
	2e3:   0x02,
	5e3:   0x04,
	10e3:  0x08,
	20e3:  0x0A,
	50e3:  0x0C,
	100e3: 0x0E,
	200e3: 0x10,
	500e3: 0x12,
	1e6:   0x14,
	2e6:   0x18,
	5e6:   0x1A,
	10e6:  0x1C,
	20e6:  0x1E,
	50e6:  0x22,
	100e6: 0x24,
	250e6: 0x2B,
	500e6: 0x30,
	1e9:   0x35,
}

// InputRangeCodes maps the full scale input ranges in volts to INPUT_RANGE_PM_* ids
var InputRangeCodes = map[float64]uint32{
	0.04: 0x02,
	0.1:  0x05,
	0.2:  0x06,
	0.4:  0x07,
	1.0:  0x0A,
	2.0:  0x0B,
	4.0:  0x0C,
}

var couplingIDs = map[string]uint32{
	CouplingAC: 1,
	CouplingDC: 2,
}

var slopeIDs = map[string]uint32{
	SlopeRising:  1,
	SlopeFalling: 2,
}

var triggerSourceIDs = map[string]uint32{
	TriggerSourceA:        0,
	TriggerSourceB:        1,
	TriggerSourceExternal: 2,
	TriggerSourceInternal: 3,
}

var clockSourceIDs = map[string]uint32{
	ClockInternal: 1,
	ClockExternal: 2,
	ClockRef:      7,
}

func SamplingRates() []float64 {
	rates := make([]float64, 0, len(SampleRateIDs))
	for rate := range SampleRateIDs {
		rates = append(rates, rate)
	}
	sort.Float64s(rates)
	return rates
}

func VerticalScales() []float64 {
	scales := make([]float64, 0, len(InputRangeCodes))
	for scale := range InputRangeCodes {
		scales = append(scales, scale)
	}
	sort.Float64s(scales)
	return scales
}

// TriggerRangeMV returns the input range of the trigger source in millivolts.
// The internal trigger has no level, ok is false then.
func TriggerRangeMV(cfg *Config) (float64, bool) {
	switch cfg.TriggerSource {
	case TriggerSourceExternal:
		return ExternalTriggerRangeMV, true
	case TriggerSourceA, TriggerSourceB:
		if _, ok := InputRangeCodes[cfg.VerticalScale]; !ok {
			return 0, false
		}
		return cfg.VerticalScale * 1000, true
	}
	return 0, false
}

// CodeToVolts converts an unsigned 8-bit ADC code to volts for the given full scale range
func CodeToVolts(code byte, verticalScale float64) float64 {
	return (float64(code) - 128) * verticalScale / 128
}

// HardwareSettings are the register values derived from a validated configuration
type HardwareSettings struct {
	SampleRateID        uint32
	ClockSourceID       uint32
	InputRangeCode      uint32
	CountsToVolts       float64
	VerticalCouplingID  uint32
	TriggerCouplingID   uint32
	TriggerSourceID     uint32
	TriggerSlopeID      uint32
	TriggerLevelCode    uint32
	TriggerDelaySamples uint32
	BandwidthLimit      uint32
}

// NewHardwareSettings translates the configuration into board register values
func NewHardwareSettings(cfg *Config) (*HardwareSettings, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	hw := &HardwareSettings{
		SampleRateID:       SampleRateIDs[cfg.SamplingRate],
		ClockSourceID:      clockSourceIDs[cfg.ClockType],
		InputRangeCode:     InputRangeCodes[cfg.VerticalScale],
		CountsToVolts:      cfg.VerticalScale / 128,
		VerticalCouplingID: couplingIDs[cfg.VerticalCoupling],
		TriggerCouplingID:  couplingIDs[cfg.TriggerCoupling],
		TriggerSourceID:    triggerSourceIDs[cfg.TriggerSource],
		TriggerSlopeID:     slopeIDs[cfg.TriggerSlope],
		TriggerLevelCode:   128,
	}
	if rangeMV, ok := TriggerRangeMV(cfg); ok {
		hw.TriggerLevelCode = uint32(128 + int32(127*cfg.TriggerLevel/rangeMV))
	}
	hw.TriggerDelaySamples = uint32(math.Round(cfg.TriggerDelay * cfg.SamplingRate))
	if cfg.Bandwidth == Bandwidth20MHz {
		hw.BandwidthLimit = 1
	}
	return hw, nil
}

// Log writes the register values as parameter lines
func (hw *HardwareSettings) Log() {
	log.Param("Sample Rate Id", hw.SampleRateID)
	log.Param("Clock Source Id", hw.ClockSourceID)
	log.Param("Input Range", hw.InputRangeCode)
	log.Param("Counts2Volts", hw.CountsToVolts)
	log.Param("Trigger Level Code", hw.TriggerLevelCode)
	log.Param("Trigger Delay", hw.TriggerDelaySamples)
	log.Param("Bandwidth Limit", hw.BandwidthLimit)
}
