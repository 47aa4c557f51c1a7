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
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
)

const (
	// HardwareConfigLayerNum identifies the layer
	HardwareConfigLayerNum = 2001
	// HardwareConfigMagic is the first word of every setup frame ("AZ")
	HardwareConfigMagic   = 0x415A
	HardwareConfigVersion = 1
	// TextFieldLen is the width of the NUL padded text fields
	TextFieldLen = 16
	// LabelFieldLen is the width of the label field
	LabelFieldLen = 32
	// HardwareConfigLen is the size of the layer in bytes:
	// magic, version, 3 text fields, delay, enabled, label, 4 counters,
	// sampling rate, trigger coupling, trigger level, trigger slope,
	// trigger source, vertical coupling, vertical offset, vertical scale, buffer size
	HardwareConfigLen = 2 + 2 + 3*TextFieldLen + 8 + 1 + LabelFieldLen + 4*4 +
		8 + TextFieldLen + 8 + TextFieldLen + TextFieldLen + TextFieldLen + 8 + 8 + 4
)

// HardwareConfigLayer is the fixed layout image of the acquisition
// configuration handed to the board transport. Fields follow the order of
// acquisition.Config, numbers are little endian.
type HardwareConfigLayer struct {
	layers.BaseLayer
	Magic   uint16
	Version uint16
	acquisition.Config
}

var HardwareConfigLayerType = gopacket.RegisterLayerType(HardwareConfigLayerNum,
	gopacket.LayerTypeMetadata{Name: "HardwareConfigLayerType", Decoder: gopacket.DecodeFunc(decodeHardwareConfigLayer)})

// NewHardwareConfigLayer ...
func NewHardwareConfigLayer(cfg *acquisition.Config) *HardwareConfigLayer {
	return &HardwareConfigLayer{
		Magic:   HardwareConfigMagic,
		Version: HardwareConfigVersion,
		Config:  *cfg,
	}
}

// LayerType returns the type of the layer in the layer catalog
func (hc *HardwareConfigLayer) LayerType() gopacket.LayerType {
	return HardwareConfigLayerType
}

// fieldCursor walks through a fixed layout buffer
type fieldCursor struct {
	buf []byte
	off int
}

func (c *fieldCursor) putText(s string, width int) error {
	if len(s) >= width {
		return errors.New(fmt.Sprintf("Text field %q does not fit into %d bytes", s, width))
	}
	field := c.buf[c.off : c.off+width]
	for i := range field {
		field[i] = 0
	}
	copy(field, s)
	c.off += width
	return nil
}

func (c *fieldCursor) text(width int) string {
	field := c.buf[c.off : c.off+width]
	c.off += width
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}

func (c *fieldCursor) putU16(v uint16) {
	binary.LittleEndian.PutUint16(c.buf[c.off:c.off+2], v)
	c.off += 2
}

func (c *fieldCursor) u16() uint16 {
	v := binary.LittleEndian.Uint16(c.buf[c.off : c.off+2])
	c.off += 2
	return v
}

func (c *fieldCursor) putU32(v uint32) {
	binary.LittleEndian.PutUint32(c.buf[c.off:c.off+4], v)
	c.off += 4
}

func (c *fieldCursor) u32() uint32 {
	v := binary.LittleEndian.Uint32(c.buf[c.off : c.off+4])
	c.off += 4
	return v
}

func (c *fieldCursor) putF64(v float64) {
	c.putU64(math.Float64bits(v))
}

func (c *fieldCursor) f64() float64 {
	return math.Float64frombits(c.u64())
}

func (c *fieldCursor) putU64(v uint64) {
	binary.LittleEndian.PutUint64(c.buf[c.off:c.off+8], v)
	c.off += 8
}

func (c *fieldCursor) u64() uint64 {
	v := binary.LittleEndian.Uint64(c.buf[c.off : c.off+8])
	c.off += 8
	return v
}

func (c *fieldCursor) putBool(v bool) {
	c.buf[c.off] = 0
	if v {
		c.buf[c.off] = 1
	}
	c.off++
}

func (c *fieldCursor) bool() bool {
	v := c.buf[c.off] != 0
	c.off++
	return v
}

// Serialize writes the layer into buf which must be at least HardwareConfigLen bytes
func (hc *HardwareConfigLayer) Serialize(buf []byte) error {
	c := &fieldCursor{buf: buf}
	c.putU16(hc.Magic)
	c.putU16(hc.Version)
	if err := c.putText(string(hc.AcquireMode), TextFieldLen); err != nil {
		return err
	}
	if err := c.putText(hc.Bandwidth, TextFieldLen); err != nil {
		return err
	}
	if err := c.putText(hc.ClockType, TextFieldLen); err != nil {
		return err
	}
	c.putF64(hc.TriggerDelay)
	c.putBool(hc.Enabled)
	if err := c.putText(hc.Label, LabelFieldLen); err != nil {
		return err
	}
	c.putU32(hc.RecordLength)
	c.putU32(hc.NbrSegments)
	c.putU32(hc.NbrWaveforms)
	c.putU32(hc.NbrRoundRobins)
	c.putF64(hc.SamplingRate)
	if err := c.putText(hc.TriggerCoupling, TextFieldLen); err != nil {
		return err
	}
	c.putF64(hc.TriggerLevel)
	if err := c.putText(hc.TriggerSlope, TextFieldLen); err != nil {
		return err
	}
	if err := c.putText(hc.TriggerSource, TextFieldLen); err != nil {
		return err
	}
	if err := c.putText(hc.VerticalCoupling, TextFieldLen); err != nil {
		return err
	}
	c.putF64(hc.VerticalOffset)
	c.putF64(hc.VerticalScale)
	c.putU32(hc.BufferSize)
	return nil
}

// SerializeTo serializes the layer into bytes and writes the bytes to the SerializeBuffer
func (hc *HardwareConfigLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(HardwareConfigLen)
	if err != nil {
		return err
	}
	return hc.Serialize(bytes)
}

// DecodeFromBytes attempts to decode the byte slice as a hardware config
func (hc *HardwareConfigLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < HardwareConfigLen {
		df.SetTruncated()
		return errors.New("Hardware config too short")
	}
	c := &fieldCursor{buf: data}
	hc.Magic = c.u16()
	if hc.Magic != HardwareConfigMagic {
		return errors.New(fmt.Sprintf("Wrong hardware config magic. Must be 0x%04x", HardwareConfigMagic))
	}
	hc.Version = c.u16()
	if hc.Version != HardwareConfigVersion {
		return errors.New(fmt.Sprintf("Unsupported hardware config version %d", hc.Version))
	}
	hc.AcquireMode = acquisition.AcquireMode(c.text(TextFieldLen))
	hc.Bandwidth = c.text(TextFieldLen)
	hc.ClockType = c.text(TextFieldLen)
	hc.TriggerDelay = c.f64()
	hc.Enabled = c.bool()
	hc.Label = c.text(LabelFieldLen)
	hc.RecordLength = c.u32()
	hc.NbrSegments = c.u32()
	hc.NbrWaveforms = c.u32()
	hc.NbrRoundRobins = c.u32()
	hc.SamplingRate = c.f64()
	hc.TriggerCoupling = c.text(TextFieldLen)
	hc.TriggerLevel = c.f64()
	hc.TriggerSlope = c.text(TextFieldLen)
	hc.TriggerSource = c.text(TextFieldLen)
	hc.VerticalCoupling = c.text(TextFieldLen)
	hc.VerticalOffset = c.f64()
	hc.VerticalScale = c.f64()
	hc.BufferSize = c.u32()

	hc.BaseLayer = layers.BaseLayer{
		Contents: data[:HardwareConfigLen],
		Payload:  data[HardwareConfigLen:],
	}
	return nil
}

func (hc *HardwareConfigLayer) CanDecode() gopacket.LayerClass {
	return HardwareConfigLayerType
}

// NextLayerType is the acquisition setup when the frame carries one
func (hc *HardwareConfigLayer) NextLayerType() gopacket.LayerType {
	if len(hc.Payload) == 0 {
		return gopacket.LayerTypeZero
	}
	return AcqSetupLayerType
}

func decodeHardwareConfigLayer(data []byte, p gopacket.PacketBuilder) error {
	hc := &HardwareConfigLayer{}
	err := hc.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(hc)
	if len(hc.Payload) == 0 {
		return nil
	}
	return p.NextDecoder(hc.NextLayerType())
}
