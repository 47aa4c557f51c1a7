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

// Package sim is a software ATS9870: it accepts setup frames, runs a DMA
// producer on arm and fills every record with the board self-test pattern.
package sim

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
	"jinr.ru/greenlab/go-digitizer/pkg/device/ifc"
	"jinr.ru/greenlab/go-digitizer/pkg/layers"
	"jinr.ru/greenlab/go-digitizer/pkg/log"
)

const (
	// MaxBuffers is the number of DMA buffers posted to the board at a time
	MaxBuffers = 32
	// SDKVersion reported in the board info
	SDKVersion = "6.0.3"
	BoardModel = "ATS9870"
)

// Faults makes the simulated board fail on purpose
type Faults struct {
	Connect    bool
	SetParams  bool
	Arm        bool
	Stop       bool
	Disconnect bool
	// FailPoll fails every poll once FailPollAfter buffers have been delivered
	FailPoll      bool
	FailPollAfter int
}

// Transport is the simulated board system. Addresses are board indexes,
// optionally prefixed with "sim:".
type Transport struct {
	mu             sync.Mutex
	boards         int
	open           map[int]bool
	faults         Faults
	holdForTrigger bool
}

var _ ifc.Transport = (*Transport)(nil)

func NewTransport(boards int) *Transport {
	return &Transport{
		boards: boards,
		open:   make(map[int]bool),
	}
}

// SetFaults applies to boards connected afterwards
func (t *Transport) SetFaults(f Faults) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.faults = f
}

// HoldForTrigger makes armed boards wait for ForceTrigger before the first
// buffer completes
func (t *Transport) HoldForTrigger(hold bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.holdForTrigger = hold
}

func (t *Transport) BoardCount() int {
	return t.boards
}

func (t *Transport) BoardInfo(index int) (string, error) {
	if index < 0 || index >= t.boards {
		return "", ErrBoardAddress{Address: strconv.Itoa(index), Boards: t.boards}
	}
	return fmt.Sprintf("%s board %d (simulated, SDK %s)", BoardModel, index, SDKVersion), nil
}

func (t *Transport) Connect(address string) (ifc.Board, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	index, err := strconv.Atoi(strings.TrimPrefix(address, "sim:"))
	if err != nil || index < 0 || index >= t.boards {
		return nil, ErrBoardAddress{Address: address, Boards: t.boards}
	}
	if t.faults.Connect {
		return nil, ErrInjected{Op: "connect"}
	}
	if t.open[index] {
		return nil, ErrBoardBusy{What: fmt.Sprintf("board %d is already open", index)}
	}
	t.open[index] = true
	log.Debug("SIM board %d opened", index)
	return &Board{
		transport: t,
		index:     index,
		faults:    t.faults,
		hold:      t.holdForTrigger,
	}, nil
}

func (t *Transport) release(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.open, index)
}

// Board is an open simulated board
type Board struct {
	transport *Transport
	index     int
	faults    Faults
	hold      bool

	mu        sync.Mutex
	closed    bool
	setup     *layers.SetupFrame
	params    *ifc.AcquisitionParams
	armed     bool
	cancel    context.CancelFunc
	done      chan struct{}
	free      chan []byte
	completed chan []byte
	trigger   chan struct{}
	delivered uint32
	triggers  int
}

var _ ifc.Board = (*Board)(nil)

// ComputeParams derives what the board delivers per acquisition from a setup frame
func ComputeParams(frame *layers.SetupFrame) *ifc.AcquisitionParams {
	cfg, s := frame.Config, frame.Setup
	if cfg.AcquireMode == acquisition.ModeAverager {
		return &ifc.AcquisitionParams{
			SamplesPerAcquisition: cfg.NbrSegments * cfg.RecordLength,
			NumberAcquisitions:    1,
		}
	}
	if s.BuffersPerRoundRobin > 1 {
		return &ifc.AcquisitionParams{
			SamplesPerAcquisition: s.RecordsPerRoundRobin * cfg.RecordLength,
			NumberAcquisitions:    s.NumberOfBuffers / s.BuffersPerRoundRobin,
		}
	}
	return &ifc.AcquisitionParams{
		SamplesPerAcquisition: s.RecordsPerBuffer * cfg.RecordLength,
		NumberAcquisitions:    s.NumberOfBuffers,
	}
}

func checkSetup(frame *layers.SetupFrame) error {
	cfg, s := frame.Config, frame.Setup
	if cfg.RecordLength == 0 || s.RecordsPerBuffer == 0 || s.NumberOfBuffers == 0 {
		return ErrSetup{What: "empty geometry"}
	}
	if s.BytesPerBuffer > acquisition.MaxBufferSize {
		return ErrSetup{What: fmt.Sprintf("buffer of %d bytes exceeds %d", s.BytesPerBuffer, acquisition.MaxBufferSize)}
	}
	if uint64(s.RecordsPerBuffer)*uint64(cfg.RecordLength)*acquisition.ChannelCount != uint64(s.BytesPerBuffer) {
		return ErrSetup{What: fmt.Sprintf("%d records of %d samples do not fill %d bytes",
			s.RecordsPerBuffer, cfg.RecordLength, s.BytesPerBuffer)}
	}
	if s.BuffersPerRoundRobin > 1 && s.NumberOfBuffers%s.BuffersPerRoundRobin != 0 {
		return ErrSetup{What: "round robins do not tile the buffers"}
	}
	records := uint64(s.RecordsPerBuffer)
	switch {
	case cfg.AcquireMode == acquisition.ModeAverager:
		records = uint64(cfg.NbrSegments)
	case s.BuffersPerRoundRobin > 1:
		records = uint64(s.RecordsPerRoundRobin)
	}
	if records*uint64(cfg.RecordLength) > math.MaxUint32 {
		return ErrSetup{What: fmt.Sprintf("%d records of %d samples overflow one acquisition", records, cfg.RecordLength)}
	}
	return nil
}

func (b *Board) SetAcquisitionParams(frame []byte) (*ifc.AcquisitionParams, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed{}
	}
	if b.armed {
		return nil, ErrBoardBusy{What: "can not set params while armed"}
	}
	if b.faults.SetParams {
		return nil, ErrInjected{Op: "set params"}
	}
	setup, err := layers.DecodeSetupFrame(frame)
	if err != nil {
		return nil, err
	}
	if err := checkSetup(setup); err != nil {
		return nil, err
	}
	b.setup = setup
	b.params = ComputeParams(setup)
	log.Debug("SIM board %d params: %d acquisitions of %d samples", b.index, b.params.NumberAcquisitions, b.params.SamplesPerAcquisition)
	return b.params, nil
}

// Arm posts the DMA buffers and starts the capture. The record counter
// starts from zero on every arm.
func (b *Board) Arm() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed{}
	}
	if b.setup == nil {
		return ErrNoParams{}
	}
	if b.armed {
		return ErrBoardBusy{What: "already armed"}
	}
	if b.faults.Arm {
		return ErrInjected{Op: "arm"}
	}

	s := b.setup.Setup
	posted := MaxBuffers
	if int(s.NumberOfBuffers) < posted {
		posted = int(s.NumberOfBuffers)
	}
	b.free = make(chan []byte, posted)
	b.completed = make(chan []byte, posted)
	for i := 0; i < posted; i++ {
		b.free <- make([]byte, s.BytesPerBuffer)
	}
	b.trigger = make(chan struct{}, 1)
	b.done = make(chan struct{})
	b.delivered = 0

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.armed = true
	go b.produce(ctx, s, int(b.setup.Config.RecordLength), b.hold)
	log.Debug("SIM board %d armed, %d buffers posted", b.index, posted)
	return nil
}

// produce fills posted buffers in order until the acquisition is complete
// or the capture is aborted
func (b *Board) produce(ctx context.Context, s *layers.AcqSetupLayer, recordLength int, hold bool) {
	defer close(b.done)
	if hold {
		select {
		case <-ctx.Done():
			return
		case <-b.trigger:
		}
	}
	record := 0
	for i := uint32(0); i < s.NumberOfBuffers; i++ {
		var buf []byte
		select {
		case <-ctx.Done():
			return
		case buf = <-b.free:
		}
		valid := int(s.ValidRecords(i))
		for r := 0; r < valid; r++ {
			v1 := acquisition.PatternCode(record, 0)
			v2 := acquisition.PatternCode(record, 1)
			samples := buf[2*r*recordLength : 2*(r+1)*recordLength]
			for j := 0; j < len(samples); j += 2 {
				samples[j] = v1
				samples[j+1] = v2
			}
			record++
		}
		select {
		case <-ctx.Done():
			return
		case b.completed <- buf:
		}
	}
}

func (b *Board) PollCompletedBuffer(ch1, ch2 []byte) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, ErrClosed{}
	}
	if !b.armed {
		return false, ErrNotArmed{}
	}
	if b.faults.FailPoll && int(b.delivered) >= b.faults.FailPollAfter {
		return false, ErrInjected{Op: "poll"}
	}
	s := b.setup.Setup
	samples := int(s.ValidRecords(b.delivered)) * int(b.setup.Config.RecordLength)
	if len(ch1) < samples || len(ch2) < samples {
		return false, ErrBufferTooSmall{Need: samples, Got: min(len(ch1), len(ch2))}
	}
	var buf []byte
	select {
	case buf = <-b.completed:
	default:
		return false, nil
	}
	for i := 0; i < samples; i++ {
		ch1[i] = buf[2*i]
		ch2[i] = buf[2*i+1]
	}
	b.delivered++
	// repost
	b.free <- buf
	return true, nil
}

func (b *Board) ForceTrigger() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed{}
	}
	if !b.armed {
		return ErrNotArmed{}
	}
	b.triggers++
	select {
	case b.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Triggers returns the number of forced triggers since connect
func (b *Board) Triggers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.triggers
}

// Stop aborts the capture. Stopping a board that is not armed does nothing.
func (b *Board) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed{}
	}
	b.abort()
	if b.faults.Stop {
		return ErrInjected{Op: "stop"}
	}
	return nil
}

func (b *Board) abort() {
	if !b.armed {
		return
	}
	b.cancel()
	<-b.done
	b.armed = false
	b.free = nil
	b.completed = nil
	log.Debug("SIM board %d stopped after %d buffers", b.index, b.delivered)
}

func (b *Board) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.abort()
	b.closed = true
	b.setup = nil
	b.params = nil
	b.transport.release(b.index)
	if b.faults.Disconnect {
		return ErrInjected{Op: "disconnect"}
	}
	return nil
}
