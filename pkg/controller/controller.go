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

// Package controller drives one board through the connect, configure, arm,
// poll, stop and disconnect lifecycle and owns the two channel buffers.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
	"jinr.ru/greenlab/go-digitizer/pkg/device/ifc"
	"jinr.ru/greenlab/go-digitizer/pkg/layers"
	"jinr.ru/greenlab/go-digitizer/pkg/log"
)

// DefaultMaxSamples bounds the size of one channel buffer
const DefaultMaxSamples = 1 << 27

// Progress of the current run
type Progress struct {
	RunID              string `json:"runId"`
	State              State  `json:"state"`
	Buffers            uint32 `json:"buffers"`
	NumberOfBuffers    uint32 `json:"nbrBuffers"`
	Acquisitions       uint32 `json:"acquisitions"`
	NumberAcquisitions uint32 `json:"numberAcquisitions"`
}

// Acquisition is a copy of one delivered acquisition
type Acquisition struct {
	RunID uuid.UUID
	Mode  acquisition.AcquireMode
	Index uint32
	Total uint32
	Ch1   []float64
	Ch2   []float64
}

type Controller struct {
	mu         sync.Mutex
	transport  ifc.Transport
	board      ifc.Board
	address    string
	state      State
	metrics    *Metrics
	maxSamples uint64

	cfg    *acquisition.Config
	plan   *acquisition.BufferPlan
	hw     *acquisition.HardwareSettings
	params *ifc.AcquisitionParams
	frame  []byte
	runID  uuid.UUID
	volts  [256]float64

	ch1, ch2   []float64
	raw1, raw2 []byte
	rec1, rec2 []float64
	avg1, avg2 *acquisition.Averager

	buffers   uint32
	delivered uint32
	fill      int
}

func New(transport ifc.Transport) *Controller {
	return &Controller{
		transport:  transport,
		state:      StateDisconnected,
		maxSamples: DefaultMaxSamples,
	}
}

func (c *Controller) SetMetrics(m *Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
	m.setState(c.state)
}

// SetMaxSamples sets the largest channel buffer Configure may allocate
func (c *Controller) SetMaxSamples(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSamples = n
}

func (c *Controller) setState(s State) {
	if c.state != s {
		log.Debug("Controller state %s -> %s", c.state, s)
	}
	c.state = s
	c.metrics.setState(s)
}

func (c *Controller) BoardCount() int {
	return c.transport.BoardCount()
}

func (c *Controller) BoardInfo(index int) (string, error) {
	return c.transport.BoardInfo(index)
}

// Connect opens the board with the given address
func (c *Controller) Connect(address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return ErrConnection{Address: address, Err: ErrInvalidState{Op: "connect", State: c.state}}
	}
	board, err := c.transport.Connect(address)
	if err != nil {
		c.metrics.failed("connect")
		return ErrConnection{Address: address, Err: err}
	}
	c.board = board
	c.address = address
	c.setState(StateConnected)
	log.Info("Connected to board %s", address)
	return nil
}

// Configure validates and plans cfg and hands the setup frame to the board.
// On failure the previous configuration, plan and channel buffers are kept.
func (c *Controller) Configure(cfg *acquisition.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateConnected, StateConfigured, StateStopped:
	default:
		return ErrConfiguration{Err: ErrInvalidState{Op: "configure", State: c.state}}
	}
	err := c.configure(cfg)
	c.metrics.configured(err)
	if err != nil {
		log.Warning("%s", err)
	}
	return err
}

func (c *Controller) configure(cfg *acquisition.Config) error {
	if cfg == nil {
		return ErrConfiguration{Err: fmt.Errorf("no configuration")}
	}
	cfg = cfg.Clone()
	plan, err := acquisition.NewBufferPlan(cfg)
	if err != nil {
		return ErrConfiguration{Err: err}
	}
	hw, err := acquisition.NewHardwareSettings(cfg)
	if err != nil {
		return ErrConfiguration{Err: err}
	}
	rawSamples := uint64(plan.RecordsPerBuffer) * uint64(plan.SamplesPerRecord)
	for _, n := range []uint64{uint64(plan.SamplesPerAcquisition), rawSamples} {
		if n > c.maxSamples {
			return ErrResource{Samples: n, Limit: c.maxSamples}
		}
	}
	frame, err := layers.SerializeSetupFrame(cfg, plan, hw)
	if err != nil {
		return ErrConfiguration{Err: err}
	}
	params, err := c.board.SetAcquisitionParams(frame)
	if err != nil {
		return ErrConfiguration{Err: err}
	}
	if params.SamplesPerAcquisition != plan.SamplesPerAcquisition || params.NumberAcquisitions != plan.NumberAcquisitions {
		err := ErrConfiguration{Err: fmt.Errorf("board computed %d acquisitions of %d samples, planned %d of %d",
			params.NumberAcquisitions, params.SamplesPerAcquisition, plan.NumberAcquisitions, plan.SamplesPerAcquisition)}
		c.restoreFrame()
		return err
	}

	c.ch1 = resize(c.ch1, int(plan.SamplesPerAcquisition))
	c.ch2 = resize(c.ch2, int(plan.SamplesPerAcquisition))
	c.raw1 = resizeBytes(c.raw1, int(rawSamples))
	c.raw2 = resizeBytes(c.raw2, int(rawSamples))
	c.avg1, c.avg2 = nil, nil
	c.rec1, c.rec2 = nil, nil
	if plan.Mode == acquisition.ModeAverager {
		c.avg1 = acquisition.NewAverager(plan.Geometry)
		c.avg2 = acquisition.NewAverager(plan.Geometry)
		c.rec1 = make([]float64, plan.SamplesPerRecord)
		c.rec2 = make([]float64, plan.SamplesPerRecord)
	}
	for code := range c.volts {
		c.volts[code] = acquisition.CodeToVolts(byte(code), cfg.VerticalScale)
	}

	c.cfg, c.plan, c.hw, c.params, c.frame = cfg, plan, hw, params, frame
	c.runID = uuid.New()
	c.buffers, c.delivered, c.fill = 0, 0, 0
	c.setState(StateConfigured)

	log.Info("Run %s configured (%s)", c.runID, cfg.Label)
	plan.Log()
	hw.Log()
	return nil
}

// restoreFrame puts the last accepted setup back on the board
func (c *Controller) restoreFrame() {
	if c.frame == nil {
		return
	}
	if _, err := c.board.SetAcquisitionParams(c.frame); err != nil {
		log.Error("Can not restore the previous acquisition params: %s", err)
	}
}

func resize(buf []float64, n int) []float64 {
	if len(buf) == n {
		return buf
	}
	return make([]float64, n)
}

func resizeBytes(buf []byte, n int) []byte {
	if len(buf) == n {
		return buf
	}
	return make([]byte, n)
}

// Acquire arms the board for the configured acquisition
func (c *Controller) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plan == nil || (c.state != StateConfigured && c.state != StateStopped) {
		return ErrAcquisition{Op: "acquire", Err: ErrInvalidState{Op: "acquire", State: c.state}}
	}
	c.buffers, c.delivered, c.fill = 0, 0, 0
	if c.avg1 != nil {
		c.avg1.Reset()
		c.avg2.Reset()
	}
	if err := c.board.Arm(); err != nil {
		c.metrics.failed("arm")
		return ErrAcquisition{Op: "arm", Err: err}
	}
	c.setState(StateArmed)
	log.Info("Run %s armed: %d buffers, %d acquisitions", c.runID, c.plan.NumberOfBuffers, c.plan.NumberAcquisitions)
	return nil
}

// PollNext checks the board for completed buffers without blocking. It
// returns true once per delivered acquisition with the channel buffers
// filled; false means the caller should retry later. After the last
// acquisition it keeps returning false.
func (c *Controller) PollNext() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Running() {
		return false, ErrAcquisition{Op: "poll", Err: ErrInvalidState{Op: "poll", State: c.state}}
	}
	c.setState(StatePolling)
	if c.delivered >= c.plan.NumberAcquisitions {
		return false, nil
	}
	start := time.Now()
	perAcquisition := c.plan.BuffersPerAcquisition()
	for {
		ready, err := c.board.PollCompletedBuffer(c.raw1, c.raw2)
		if err != nil {
			return false, c.fail("poll", err)
		}
		if !ready {
			return false, nil
		}
		if err := c.consume(); err != nil {
			return false, c.fail("reduce", err)
		}
		if c.buffers%perAcquisition == 0 {
			break
		}
	}
	if c.avg1 != nil {
		if err := c.avg1.Result(c.ch1); err != nil {
			return false, c.fail("reduce", err)
		}
		if err := c.avg2.Result(c.ch2); err != nil {
			return false, c.fail("reduce", err)
		}
	}
	c.delivered++
	c.fill = 0
	c.metrics.delivered(time.Since(start).Seconds())
	log.Debug("Run %s acquisition %d/%d ready", c.runID, c.delivered, c.plan.NumberAcquisitions)
	return true, nil
}

// consume takes the records of the buffer just copied into the raw scratch
func (c *Controller) consume() error {
	valid := c.plan.ValidRecords(c.buffers)
	rl := int(c.plan.SamplesPerRecord)
	n := int(valid) * rl
	if c.avg1 == nil {
		if c.fill+n > len(c.ch1) {
			return acquisition.ErrGeometry{What: fmt.Sprintf("buffer %d overflows the channel buffers", c.buffers)}
		}
		c.convert(c.ch1[c.fill:c.fill+n], c.raw1[:n])
		c.convert(c.ch2[c.fill:c.fill+n], c.raw2[:n])
		c.fill += n
	} else {
		for r := 0; r < n; r += rl {
			c.convert(c.rec1, c.raw1[r:r+rl])
			c.convert(c.rec2, c.raw2[r:r+rl])
			if err := c.avg1.Add(c.rec1); err != nil {
				return err
			}
			if err := c.avg2.Add(c.rec2); err != nil {
				return err
			}
		}
	}
	c.buffers++
	c.metrics.buffer(valid)
	return nil
}

func (c *Controller) convert(dst []float64, codes []byte) {
	for i, code := range codes {
		dst[i] = c.volts[code]
	}
}

// fail aborts the capture after a board failure
func (c *Controller) fail(op string, err error) error {
	c.metrics.failed(op)
	if stopErr := c.board.Stop(); stopErr != nil {
		log.Error("Can not stop the board after %s failure: %s", op, stopErr)
	}
	c.setState(StateStopped)
	log.Error("Run %s %s failed: %s", c.runID, op, err)
	return ErrAcquisition{Op: op, Err: err}
}

// ForceTrigger issues a software trigger while armed
func (c *Controller) ForceTrigger() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Running() {
		return ErrAcquisition{Op: "trigger", Err: ErrInvalidState{Op: "force trigger", State: c.state}}
	}
	if err := c.board.ForceTrigger(); err != nil {
		c.metrics.failed("trigger")
		return ErrAcquisition{Op: "trigger", Err: err}
	}
	return nil
}

// Stop aborts a running acquisition. It may be called in any state and more
// than once; the controller is Stopped afterwards even when the board fails to stop.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Running() {
		return nil
	}
	err := c.board.Stop()
	c.setState(StateStopped)
	if err != nil {
		c.metrics.failed("stop")
		return ErrAcquisition{Op: "stop", Err: err}
	}
	log.Info("Run %s stopped after %d of %d acquisitions", c.runID, c.delivered, c.plan.NumberAcquisitions)
	return nil
}

// Disconnect stops a running acquisition, closes the board and releases the
// channel buffers. The controller is Disconnected afterwards in any case.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected {
		return nil
	}
	var result error
	if c.state.Running() {
		if err := c.board.Stop(); err != nil {
			c.metrics.failed("stop")
			result = ErrAcquisition{Op: "stop", Err: err}
		}
	}
	if err := c.board.Disconnect(); err != nil && result == nil {
		c.metrics.failed("disconnect")
		result = ErrConnection{Address: c.address, Err: err}
	}
	log.Info("Disconnected from board %s", c.address)
	c.board = nil
	c.address = ""
	c.cfg, c.plan, c.hw, c.params, c.frame = nil, nil, nil, nil, nil
	c.ch1, c.ch2, c.raw1, c.raw2, c.rec1, c.rec2 = nil, nil, nil, nil, nil, nil
	c.avg1, c.avg2 = nil, nil
	c.buffers, c.delivered, c.fill = 0, 0, 0
	c.setState(StateDisconnected)
	return result
}

// Wait polls every interval until the next acquisition is delivered or ctx is done
func (c *Controller) Wait(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		ready, err := c.PollNext()
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if c.Done() {
			return ErrAcquisition{Op: "wait", Err: fmt.Errorf("all acquisitions delivered")}
		}
		select {
		case <-ctx.Done():
			return ErrTimeout{Acquisition: c.Progress().Acquisitions, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// Run arms the board, waits for every acquisition and hands a copy of each
// to fn, then stops the board. The context bounds the whole run.
func (c *Controller) Run(ctx context.Context, interval time.Duration, fn func(acq *Acquisition) error) error {
	if err := c.Acquire(); err != nil {
		return err
	}
	for !c.Done() {
		if err := c.Wait(ctx, interval); err != nil {
			c.Stop()
			return err
		}
		acq, ok := c.Snapshot()
		if !ok {
			break
		}
		if fn != nil {
			if err := fn(acq); err != nil {
				c.Stop()
				return err
			}
		}
	}
	return c.Stop()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done reports whether every acquisition of the run has been delivered
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan != nil && c.state.Running() && c.delivered >= c.plan.NumberAcquisitions
}

// Plan returns a copy of the current buffer plan or nil
func (c *Controller) Plan() *acquisition.BufferPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plan == nil {
		return nil
	}
	plan := *c.plan
	return &plan
}

// Config returns a copy of the accepted configuration or nil
func (c *Controller) Config() *acquisition.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg == nil {
		return nil
	}
	return c.cfg.Clone()
}

func (c *Controller) HardwareSettings() *acquisition.HardwareSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hw == nil {
		return nil
	}
	hw := *c.hw
	return &hw
}

func (c *Controller) RunID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Channels returns the channel buffers. They are overwritten by the next
// PollNext and may be reallocated by Configure.
func (c *Controller) Channels() (ch1, ch2 []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch1, c.ch2
}

// Snapshot copies the last delivered acquisition
func (c *Controller) Snapshot() (*Acquisition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plan == nil || c.delivered == 0 {
		return nil, false
	}
	acq := &Acquisition{
		RunID: c.runID,
		Mode:  c.plan.Mode,
		Index: c.delivered - 1,
		Total: c.plan.NumberAcquisitions,
		Ch1:   make([]float64, len(c.ch1)),
		Ch2:   make([]float64, len(c.ch2)),
	}
	copy(acq.Ch1, c.ch1)
	copy(acq.Ch2, c.ch2)
	return acq, true
}

func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := Progress{
		State:        c.state,
		Buffers:      c.buffers,
		Acquisitions: c.delivered,
	}
	if c.plan != nil {
		p.RunID = c.runID.String()
		p.NumberOfBuffers = c.plan.NumberOfBuffers
		p.NumberAcquisitions = c.plan.NumberAcquisitions
	}
	return p
}
