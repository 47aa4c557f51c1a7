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

// PatternCode is the code of the board self-test pattern for a record: the
// record counter modulo 256, channel 2 leading channel 1 by one
func PatternCode(record, channel int) byte {
	return byte((record + channel) % 256)
}

// GenerateTestPattern returns what the board delivers for cfg when it runs
// its self-test pattern: all records of the acquisition concatenated in order,
// or their waveform/round robin averages in averager mode.
func GenerateTestPattern(cfg *Config) (ch1, ch2 []float64, err error) {
	if err := Validate(cfg); err != nil {
		return nil, nil, err
	}
	g := cfg.Geometry()
	raw := [2][]float64{make([]float64, g.Samples()), make([]float64, g.Samples())}
	for r := 0; r < g.Records(); r++ {
		for ch := range raw {
			v := CodeToVolts(PatternCode(r, ch), cfg.VerticalScale)
			record := raw[ch][r*g.RecordLength : (r+1)*g.RecordLength]
			for i := range record {
				record[i] = v
			}
		}
	}
	if ch1, err = Reduce(raw[0], g, cfg.AcquireMode); err != nil {
		return nil, nil, err
	}
	if ch2, err = Reduce(raw[1], g, cfg.AcquireMode); err != nil {
		return nil, nil, err
	}
	return ch1, ch2, nil
}
