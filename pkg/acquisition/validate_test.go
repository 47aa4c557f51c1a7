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
	"math"
	"testing"
)

func TestValidateDefault(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
	if errs := ValidateAll(DefaultConfig()); len(errs) != 0 {
		t.Fatalf("default config has violations: %v", errs)
	}
	if err := Validate(nil); err == nil {
		t.Errorf("nil config accepted")
	}
}

func TestValidateRejects(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(cfg *Config)
		field  string
	}{
		{"record length 255", func(c *Config) { c.RecordLength = 255 }, "recordLength"},
		{"record length 257", func(c *Config) { c.RecordLength = 257 }, "recordLength"},
		{"record length 0", func(c *Config) { c.RecordLength = 0 }, "recordLength"},
		{"acquire mode typo", func(c *Config) { c.AcquireMode = "avverager" }, "acquireMode"},
		{"vertical coupling lowercase", func(c *Config) { c.VerticalCoupling = "ac" }, "verticalCoupling"},
		{"trigger coupling lowercase", func(c *Config) { c.TriggerCoupling = "dc" }, "triggerCoupling"},
		{"trigger source lowercase", func(c *Config) { c.TriggerSource = "ext" }, "triggerSource"},
		{"trigger slope", func(c *Config) { c.TriggerSlope = "up" }, "triggerSlope"},
		{"empty bandwidth", func(c *Config) { c.Bandwidth = "" }, "bandwidth"},
		{"clock type", func(c *Config) { c.ClockType = "internal" }, "clockType"},
		{"vertical scale 99", func(c *Config) { c.VerticalScale = 99.0 }, "verticalScale"},
		{"sampling rate 59e6", func(c *Config) { c.SamplingRate = 59e6 }, "samplingRate"},
		{"no segments", func(c *Config) { c.NbrSegments = 0 }, "nbrSegments"},
		{"no waveforms", func(c *Config) { c.NbrWaveforms = 0 }, "nbrWaveforms"},
		{"no round robins", func(c *Config) { c.NbrRoundRobins = 0 }, "nbrRoundRobins"},
		{"negative delay", func(c *Config) { c.TriggerDelay = -1e-6 }, "delay"},
		{"infinite delay", func(c *Config) { c.TriggerDelay = math.Inf(1) }, "delay"},
		{"delay past 32 bit samples", func(c *Config) { c.TriggerDelay = 10 }, "delay"},
		{"trigger level out of range", func(c *Config) { c.TriggerLevel = 6000 }, "triggerLevel"},
		{"label too long", func(c *Config) { c.Label = "a label that is far too long for the board" }, "label"},
		{"label not ascii", func(c *Config) { c.Label = "Alazär" }, "label"},
		{"buffer 2^23", func(c *Config) { c.BufferSize = 1 << 23 }, "bufferSize"},
		{"buffer too small", func(c *Config) { c.BufferSize = 4096 }, "bufferSize"},
	}

	for _, tc := range testCases {
		cfg := DefaultConfig()
		tc.modify(cfg)
		err := Validate(cfg)
		var invalid ErrInvalidField
		if !errors.As(err, &invalid) {
			t.Errorf("%s: got %v, want ErrInvalidField", tc.name, err)
			continue
		}
		if invalid.Field != tc.field {
			t.Errorf("%s: rejected field %s, want %s (%v)", tc.name, invalid.Field, tc.field, err)
		}
	}
}

func TestValidateDiscreteSets(t *testing.T) {
	for _, scale := range []float64{0.04, 0.1, 0.2, 0.4, 1.0, 2.0, 4.0} {
		cfg := DefaultConfig()
		cfg.VerticalScale = scale
		if err := Validate(cfg); err != nil {
			t.Errorf("vertical scale %g rejected: %v", scale, err)
		}
	}
	for _, scale := range []float64{0, 0.05, 0.5, 3.0, 99.0, -1.0} {
		cfg := DefaultConfig()
		cfg.VerticalScale = scale
		if err := Validate(cfg); err == nil {
			t.Errorf("vertical scale %g accepted", scale)
		}
	}
	for _, rate := range SamplingRates() {
		cfg := DefaultConfig()
		cfg.SamplingRate = rate
		if err := Validate(cfg); err != nil {
			t.Errorf("sampling rate %g rejected: %v", rate, err)
		}
	}
	for _, source := range []string{TriggerSourceA, TriggerSourceB, TriggerSourceExternal, TriggerSourceInternal} {
		cfg := DefaultConfig()
		cfg.TriggerSource = source
		cfg.TriggerLevel = 0
		if err := Validate(cfg); err != nil {
			t.Errorf("trigger source %s rejected: %v", source, err)
		}
	}
}

func TestValidateOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 1 << 23
	cfg.SamplingRate = 59e6
	cfg.RecordLength = 300

	err := Validate(cfg)
	var invalid ErrInvalidField
	if !errors.As(err, &invalid) || invalid.Field != "recordLength" {
		t.Fatalf("first failure %v, want recordLength", err)
	}

	errs := ValidateAll(cfg)
	fields := []string{"recordLength", "samplingRate", "bufferSize"}
	if len(errs) != len(fields) {
		t.Fatalf("got %d violations, want %d: %v", len(errs), len(fields), errs)
	}
	for i, err := range errs {
		if err.(ErrInvalidField).Field != fields[i] {
			t.Errorf("violation %d is %v, want %s", i, err, fields[i])
		}
	}
}

func TestTriggerDelaySamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TriggerDelay = 8
	hw, err := NewHardwareSettings(cfg)
	if err != nil {
		t.Fatalf("delay of 8 s rejected: %v", err)
	}
	if hw.TriggerDelaySamples != 4000000000 {
		t.Errorf("got %d delay samples, want 4000000000", hw.TriggerDelaySamples)
	}

	cfg.TriggerDelay = 10
	if _, err := NewHardwareSettings(cfg); err == nil {
		t.Errorf("delay of 10 s at %g Hz accepted", cfg.SamplingRate)
	}
}
