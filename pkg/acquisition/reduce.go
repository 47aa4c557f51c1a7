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

	"gonum.org/v1/gonum/floats"
)

// Averager reduces records to their mean over the waveform and round robin
// axes. Records must be added in acquisition order. The waveform mean of a
// segment is taken as soon as its last waveform arrives, the round robin mean
// when the result is read, so feeding records one by one gives the same
// numbers as reducing the whole acquisition at once.
type Averager struct {
	geometry      Geometry
	waveformSum   []float64
	roundRobinSum []float64
	records       int
}

func NewAverager(g Geometry) *Averager {
	return &Averager{
		geometry:      g,
		waveformSum:   make([]float64, g.AveragedSamples()),
		roundRobinSum: make([]float64, g.AveragedSamples()),
	}
}

// Reset drops all accumulated records
func (a *Averager) Reset() {
	for i := range a.waveformSum {
		a.waveformSum[i] = 0
		a.roundRobinSum[i] = 0
	}
	a.records = 0
}

// Records returns the number of records added since the last reset
func (a *Averager) Records() int {
	return a.records
}

func (a *Averager) Complete() bool {
	return a.records == a.geometry.Records()
}

// Add accumulates the next record of the acquisition
func (a *Averager) Add(record []float64) error {
	g := a.geometry
	if len(record) != g.RecordLength {
		return ErrGeometry{What: fmt.Sprintf("record has %d samples, expected %d", len(record), g.RecordLength)}
	}
	if a.Complete() {
		return ErrGeometry{What: fmt.Sprintf("all %d records already added", g.Records())}
	}
	waveform := a.records % g.Waveforms
	segment := (a.records / g.Waveforms) % g.Segments
	lo, hi := segment*g.RecordLength, (segment+1)*g.RecordLength

	slot := a.waveformSum[lo:hi]
	floats.Add(slot, record)
	if waveform == g.Waveforms-1 {
		n := float64(g.Waveforms)
		for i := range slot {
			slot[i] /= n
		}
		floats.Add(a.roundRobinSum[lo:hi], slot)
		for i := range slot {
			slot[i] = 0
		}
	}
	a.records++
	return nil
}

// Result writes the averaged samples, segment varying slower than sample
func (a *Averager) Result(dst []float64) error {
	if !a.Complete() {
		return ErrGeometry{What: fmt.Sprintf("%d of %d records added", a.records, a.geometry.Records())}
	}
	if len(dst) != len(a.roundRobinSum) {
		return ErrGeometry{What: fmt.Sprintf("result needs %d samples, got %d", len(a.roundRobinSum), len(dst))}
	}
	n := float64(a.geometry.RoundRobins)
	for i, sum := range a.roundRobinSum {
		dst[i] = sum / n
	}
	return nil
}

// Reduce turns the raw samples of a complete acquisition into the samples
// delivered in the given mode: unchanged for the digitizer, averaged over
// waveforms and round robins for the averager.
func Reduce(raw []float64, g Geometry, mode AcquireMode) ([]float64, error) {
	if len(raw) != g.Samples() {
		return nil, ErrGeometry{What: fmt.Sprintf("acquisition has %d samples, expected %d", len(raw), g.Samples())}
	}
	switch mode {
	case ModeDigitizer:
		out := make([]float64, len(raw))
		copy(out, raw)
		return out, nil
	case ModeAverager:
		a := NewAverager(g)
		for r := 0; r < g.Records(); r++ {
			if err := a.Add(raw[r*g.RecordLength : (r+1)*g.RecordLength]); err != nil {
				return nil, err
			}
		}
		out := make([]float64, g.AveragedSamples())
		return out, a.Result(out)
	}
	return nil, ErrInvalidField{Field: "acquireMode", Value: mode, Constraint: "unknown mode"}
}
