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

package layers

import (
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
)

const (
	// AcqSetupLayerNum identifies the layer
	AcqSetupLayerNum = 2002
	// AcqSetupLen is 18 words of DMA geometry and register values plus counts to volts
	AcqSetupLen = 18*4 + 8
)

// AcqSetupLayer carries the DMA buffer geometry and the register values the
// board is programmed with. It follows HardwareConfigLayer in a setup frame.
type AcqSetupLayer struct {
	layers.BaseLayer
	RecordsPerBuffer     uint32
	BytesPerBuffer       uint32
	RecordsPerRoundRobin uint32
	BuffersPerRoundRobin uint32
	RoundRobinsPerBuffer uint32
	NumberOfBuffers      uint32
	TotalRecords         uint32
	PartialBuffer        bool
	acquisition.HardwareSettings
}

var AcqSetupLayerType = gopacket.RegisterLayerType(AcqSetupLayerNum,
	gopacket.LayerTypeMetadata{Name: "AcqSetupLayerType", Decoder: gopacket.DecodeFunc(decodeAcqSetupLayer)})

// NewAcqSetupLayer ...
func NewAcqSetupLayer(plan *acquisition.BufferPlan, hw *acquisition.HardwareSettings) *AcqSetupLayer {
	return &AcqSetupLayer{
		RecordsPerBuffer:     plan.RecordsPerBuffer,
		BytesPerBuffer:       plan.BytesPerBuffer,
		RecordsPerRoundRobin: plan.RecordsPerRoundRobin,
		BuffersPerRoundRobin: plan.BuffersPerRoundRobin,
		RoundRobinsPerBuffer: plan.RoundRobinsPerBuffer,
		NumberOfBuffers:      plan.NumberOfBuffers,
		TotalRecords:         plan.TotalRecords,
		PartialBuffer:        plan.PartialBuffer,
		HardwareSettings:     *hw,
	}
}

// LayerType returns the type of the layer in the layer catalog
func (s *AcqSetupLayer) LayerType() gopacket.LayerType {
	return AcqSetupLayerType
}

// ValidRecords returns the number of records the board puts into the buffer
// with the given index
func (s *AcqSetupLayer) ValidRecords(bufferIndex uint32) uint32 {
	if bufferIndex >= s.NumberOfBuffers {
		return 0
	}
	if s.BuffersPerRoundRobin <= 1 {
		return s.RecordsPerBuffer
	}
	pos := bufferIndex % s.BuffersPerRoundRobin
	if pos == s.BuffersPerRoundRobin-1 {
		return s.RecordsPerRoundRobin - pos*s.RecordsPerBuffer
	}
	return s.RecordsPerBuffer
}

func (s *AcqSetupLayer) Serialize(buf []byte) {
	c := &fieldCursor{buf: buf}
	c.putU32(s.RecordsPerBuffer)
	c.putU32(s.BytesPerBuffer)
	c.putU32(s.RecordsPerRoundRobin)
	c.putU32(s.BuffersPerRoundRobin)
	c.putU32(s.RoundRobinsPerBuffer)
	c.putU32(s.NumberOfBuffers)
	c.putU32(s.TotalRecords)
	partial := uint32(0)
	if s.PartialBuffer {
		partial = 1
	}
	c.putU32(partial)
	c.putU32(s.SampleRateID)
	c.putU32(s.ClockSourceID)
	c.putU32(s.InputRangeCode)
	c.putU32(s.VerticalCouplingID)
	c.putU32(s.TriggerCouplingID)
	c.putU32(s.TriggerSourceID)
	c.putU32(s.TriggerSlopeID)
	c.putU32(s.TriggerLevelCode)
	c.putU32(s.TriggerDelaySamples)
	c.putU32(s.BandwidthLimit)
	c.putF64(s.CountsToVolts)
}

// SerializeTo serializes the layer into bytes and writes the bytes to the SerializeBuffer
func (s *AcqSetupLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.AppendBytes(AcqSetupLen)
	if err != nil {
		return err
	}
	s.Serialize(bytes)
	return nil
}

func (s *AcqSetupLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < AcqSetupLen {
		df.SetTruncated()
		return errors.New("Acquisition setup too short")
	}
	c := &fieldCursor{buf: data}
	s.RecordsPerBuffer = c.u32()
	s.BytesPerBuffer = c.u32()
	s.RecordsPerRoundRobin = c.u32()
	s.BuffersPerRoundRobin = c.u32()
	s.RoundRobinsPerBuffer = c.u32()
	s.NumberOfBuffers = c.u32()
	s.TotalRecords = c.u32()
	s.PartialBuffer = c.u32() != 0
	s.SampleRateID = c.u32()
	s.ClockSourceID = c.u32()
	s.InputRangeCode = c.u32()
	s.VerticalCouplingID = c.u32()
	s.TriggerCouplingID = c.u32()
	s.TriggerSourceID = c.u32()
	s.TriggerSlopeID = c.u32()
	s.TriggerLevelCode = c.u32()
	s.TriggerDelaySamples = c.u32()
	s.BandwidthLimit = c.u32()
	s.CountsToVolts = c.f64()

	s.BaseLayer = layers.BaseLayer{
		Contents: data[:AcqSetupLen],
		Payload:  []byte{},
	}
	return nil
}

func decodeAcqSetupLayer(data []byte, p gopacket.PacketBuilder) error {
	s := &AcqSetupLayer{}
	err := s.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(s)
	return nil
}

// SetupFrame is a decoded setup frame
type SetupFrame struct {
	Config *HardwareConfigLayer
	Setup  *AcqSetupLayer
}

// SerializeSetupFrame builds the frame handed to the board transport
func SerializeSetupFrame(cfg *acquisition.Config, plan *acquisition.BufferPlan, hw *acquisition.HardwareSettings) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{}
	err := gopacket.SerializeLayers(buf, opts, NewHardwareConfigLayer(cfg), NewAcqSetupLayer(plan, hw))
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSetupFrame parses a frame built by SerializeSetupFrame
func DecodeSetupFrame(data []byte) (*SetupFrame, error) {
	packet := gopacket.NewPacket(data, HardwareConfigLayerType, gopacket.Default)
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return nil, errLayer.Error()
	}
	hc, ok := packet.Layer(HardwareConfigLayerType).(*HardwareConfigLayer)
	if !ok {
		return nil, errors.New("Setup frame has no hardware config")
	}
	setup, ok := packet.Layer(AcqSetupLayerType).(*AcqSetupLayer)
	if !ok {
		return nil, errors.New("Setup frame has no acquisition setup")
	}
	return &SetupFrame{Config: hc, Setup: setup}, nil
}
