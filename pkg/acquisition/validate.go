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
)

type check func(cfg *Config) error

// checks are applied in this order, Validate reports the first failure
var checks = []check{
	checkRecordLength,
	checkAcquireMode,
	checkVerticalCoupling,
	checkTriggerCoupling,
	checkTriggerSource,
	checkTriggerSlope,
	checkBandwidth,
	checkClockType,
	checkVerticalScale,
	checkSamplingRate,
	checkRepetitions,
	checkTriggerDelay,
	checkTriggerLevel,
	checkLabel,
	checkBufferSize,
}

// Validate checks the configuration against the board limits.
// It has no side effects and returns the first violated constraint as ErrInvalidField.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ErrInvalidField{Field: "config", Value: nil, Constraint: "must be set"}
	}
	for _, c := range checks {
		if err := c(cfg); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAll returns every violated constraint in the same order Validate checks them
func ValidateAll(cfg *Config) []error {
	if cfg == nil {
		return []error{ErrInvalidField{Field: "config", Value: nil, Constraint: "must be set"}}
	}
	var errs []error
	for _, c := range checks {
		if err := c(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return ErrInvalidField{
		Field:      field,
		Value:      fmt.Sprintf("%q", value),
		Constraint: fmt.Sprintf("must be one of %q", allowed),
	}
}

func checkRecordLength(cfg *Config) error {
	if cfg.RecordLength < MinRecordLength {
		return ErrInvalidField{
			Field:      "recordLength",
			Value:      cfg.RecordLength,
			Constraint: fmt.Sprintf("must be at least %d samples", MinRecordLength),
		}
	}
	if cfg.RecordLength%RecordAlignment != 0 {
		return ErrInvalidField{
			Field:      "recordLength",
			Value:      cfg.RecordLength,
			Constraint: fmt.Sprintf("must be a multiple of %d samples", RecordAlignment),
		}
	}
	return nil
}

func checkAcquireMode(cfg *Config) error {
	return oneOf("acquireMode", string(cfg.AcquireMode), string(ModeDigitizer), string(ModeAverager))
}

func checkVerticalCoupling(cfg *Config) error {
	return oneOf("verticalCoupling", cfg.VerticalCoupling, CouplingAC, CouplingDC)
}

func checkTriggerCoupling(cfg *Config) error {
	return oneOf("triggerCoupling", cfg.TriggerCoupling, CouplingAC, CouplingDC)
}

func checkTriggerSource(cfg *Config) error {
	return oneOf("triggerSource", cfg.TriggerSource,
		TriggerSourceA, TriggerSourceB, TriggerSourceExternal, TriggerSourceInternal)
}

func checkTriggerSlope(cfg *Config) error {
	return oneOf("triggerSlope", cfg.TriggerSlope, SlopeRising, SlopeFalling)
}

func checkBandwidth(cfg *Config) error {
	return oneOf("bandwidth", cfg.Bandwidth, BandwidthFull, Bandwidth20MHz)
}

func checkClockType(cfg *Config) error {
	return oneOf("clockType", cfg.ClockType, ClockInternal, ClockRef, ClockExternal)
}

func checkVerticalScale(cfg *Config) error {
	if _, ok := InputRangeCodes[cfg.VerticalScale]; !ok {
		return ErrInvalidField{
			Field:      "verticalScale",
			Value:      cfg.VerticalScale,
			Constraint: fmt.Sprintf("must be one of %v volts", VerticalScales()),
		}
	}
	return nil
}

func checkSamplingRate(cfg *Config) error {
	if _, ok := SampleRateIDs[cfg.SamplingRate]; !ok {
		return ErrInvalidField{
			Field:      "samplingRate",
			Value:      cfg.SamplingRate,
			Constraint: fmt.Sprintf("must be one of %v Hz", SamplingRates()),
		}
	}
	return nil
}

func checkRepetitions(cfg *Config) error {
	counts := []struct {
		field string
		value uint32
	}{
		{"nbrSegments", cfg.NbrSegments},
		{"nbrWaveforms", cfg.NbrWaveforms},
		{"nbrRoundRobins", cfg.NbrRoundRobins},
	}
	for _, c := range counts {
		if c.value == 0 {
			return ErrInvalidField{Field: c.field, Value: c.value, Constraint: "must be a positive integer"}
		}
	}
	total := uint64(cfg.NbrSegments) * uint64(cfg.NbrWaveforms) * uint64(cfg.NbrRoundRobins)
	if total > math.MaxUint32 {
		return ErrInvalidField{
			Field:      "nbrRoundRobins",
			Value:      cfg.NbrRoundRobins,
			Constraint: "total number of records must fit into 32 bits",
		}
	}
	return nil
}

func checkTriggerDelay(cfg *Config) error {
	if cfg.TriggerDelay < 0 || math.IsNaN(cfg.TriggerDelay) || math.IsInf(cfg.TriggerDelay, 0) {
		return ErrInvalidField{Field: "delay", Value: cfg.TriggerDelay, Constraint: "must be a finite non-negative number"}
	}
	if math.Round(cfg.TriggerDelay*cfg.SamplingRate) > math.MaxUint32 {
		return ErrInvalidField{
			Field:      "delay",
			Value:      cfg.TriggerDelay,
			Constraint: fmt.Sprintf("must not exceed %d samples at %g Hz", uint32(math.MaxUint32), cfg.SamplingRate),
		}
	}
	return nil
}

func checkTriggerLevel(cfg *Config) error {
	rangeMV, ok := TriggerRangeMV(cfg)
	if !ok {
		return nil
	}
	if math.Abs(cfg.TriggerLevel) > rangeMV || math.IsNaN(cfg.TriggerLevel) {
		return ErrInvalidField{
			Field:      "triggerLevel",
			Value:      cfg.TriggerLevel,
			Constraint: fmt.Sprintf("must be within +/-%g mV of the %s trigger input", rangeMV, cfg.TriggerSource),
		}
	}
	return nil
}

func checkLabel(cfg *Config) error {
	if len(cfg.Label) > MaxLabelLength {
		return ErrInvalidField{
			Field:      "label",
			Value:      fmt.Sprintf("%q", cfg.Label),
			Constraint: fmt.Sprintf("must be at most %d bytes", MaxLabelLength),
		}
	}
	for _, r := range cfg.Label {
		if r < 0x20 || r > 0x7e {
			return ErrInvalidField{
				Field:      "label",
				Value:      fmt.Sprintf("%q", cfg.Label),
				Constraint: "must be printable ASCII",
			}
		}
	}
	return nil
}

func checkBufferSize(cfg *Config) error {
	if cfg.BufferSize > MaxBufferSize {
		return ErrInvalidField{
			Field:      "bufferSize",
			Value:      cfg.BufferSize,
			Constraint: fmt.Sprintf("too large, must not exceed %d bytes", MaxBufferSize),
		}
	}
	bytesPerRecord := uint64(cfg.RecordLength) * SampleSize * ChannelCount
	if uint64(cfg.BufferSize) < bytesPerRecord || cfg.BufferSize == 0 {
		return ErrInvalidField{
			Field:      "bufferSize",
			Value:      cfg.BufferSize,
			Constraint: fmt.Sprintf("too small, one record of both channels needs %d bytes", bytesPerRecord),
		}
	}
	return nil
}
