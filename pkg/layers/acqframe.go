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
)

const (
	// AcqFrameLayerNum identifies the layer
	AcqFrameLayerNum = 2003
	// AcqFrameMagic is the first word of every acquisition frame ("AF")
	AcqFrameMagic = 0x4146
	// AcqFrameHeaderLen: magic, flags, run id, index, total, samples
	AcqFrameHeaderLen = 2 + 2 + 16 + 4 + 4 + 4
)

const (
	AcqFrameFlagAverager uint16 = 1 << iota
)

// AcqFrameLayer carries one delivered acquisition of both channels as
// float32 volts. It is the unit of the acquisition stream.
type AcqFrameLayer struct {
	layers.BaseLayer
	Flags uint16
	RunID [16]byte
	// Index of the acquisition, counted from zero
	Index uint32
	// Total number of acquisitions of the run
	Total uint32
	Ch1   []float32
	Ch2   []float32
}

var AcqFrameLayerType = gopacket.RegisterLayerType(AcqFrameLayerNum,
	gopacket.LayerTypeMetadata{Name: "AcqFrameLayerType", Decoder: gopacket.DecodeFunc(decodeAcqFrameLayer)})

func (f *AcqFrameLayer) LayerType() gopacket.LayerType {
	return AcqFrameLayerType
}

// Len is the size of the serialized frame in bytes
func (f *AcqFrameLayer) Len() int {
	return AcqFrameHeaderLen + 2*4*len(f.Ch1)
}

// SerializeTo serializes the layer into bytes and writes the bytes to the SerializeBuffer
func (f *AcqFrameLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if len(f.Ch1) != len(f.Ch2) {
		return errors.New(fmt.Sprintf("Channel length mismatch: %d != %d", len(f.Ch1), len(f.Ch2)))
	}
	bytes, err := b.AppendBytes(f.Len())
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(bytes[0:2], AcqFrameMagic)
	binary.LittleEndian.PutUint16(bytes[2:4], f.Flags)
	copy(bytes[4:20], f.RunID[:])
	binary.LittleEndian.PutUint32(bytes[20:24], f.Index)
	binary.LittleEndian.PutUint32(bytes[24:28], f.Total)
	binary.LittleEndian.PutUint32(bytes[28:32], uint32(len(f.Ch1)))
	off := AcqFrameHeaderLen
	for _, ch := range [][]float32{f.Ch1, f.Ch2} {
		for _, v := range ch {
			binary.LittleEndian.PutUint32(bytes[off:off+4], math.Float32bits(v))
			off += 4
		}
	}
	return nil
}

func (f *AcqFrameLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < AcqFrameHeaderLen {
		df.SetTruncated()
		return errors.New("Acquisition frame too short")
	}
	if binary.LittleEndian.Uint16(data[0:2]) != AcqFrameMagic {
		return errors.New(fmt.Sprintf("Wrong acquisition frame magic. Must be 0x%04x", AcqFrameMagic))
	}
	f.Flags = binary.LittleEndian.Uint16(data[2:4])
	copy(f.RunID[:], data[4:20])
	f.Index = binary.LittleEndian.Uint32(data[20:24])
	f.Total = binary.LittleEndian.Uint32(data[24:28])
	samples := int(binary.LittleEndian.Uint32(data[28:32]))
	end := AcqFrameHeaderLen + 8*samples
	if len(data) < end {
		df.SetTruncated()
		return errors.New(fmt.Sprintf("Acquisition frame truncated: %d samples need %d bytes, got %d", samples, end, len(data)))
	}
	f.Ch1 = make([]float32, samples)
	f.Ch2 = make([]float32, samples)
	off := AcqFrameHeaderLen
	for _, ch := range [][]float32{f.Ch1, f.Ch2} {
		for i := range ch {
			ch[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
	}
	f.BaseLayer = layers.BaseLayer{
		Contents: data[:end],
		Payload:  data[end:],
	}
	return nil
}

func decodeAcqFrameLayer(data []byte, p gopacket.PacketBuilder) error {
	f := &AcqFrameLayer{}
	err := f.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(f)
	return nil
}

// ToFloat32 converts channel samples for the wire
func ToFloat32(samples []float64) []float32 {
	out := make([]float32, len(samples))
	for i, v := range samples {
		out[i] = float32(v)
	}
	return out
}

// EncodeAcqFrame serializes a frame
func EncodeAcqFrame(f *AcqFrameLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeAcqFrame parses a frame built by EncodeAcqFrame
func DecodeAcqFrame(data []byte) (*AcqFrameLayer, error) {
	packet := gopacket.NewPacket(data, AcqFrameLayerType, gopacket.NoCopy)
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return nil, errLayer.Error()
	}
	f, ok := packet.Layer(AcqFrameLayerType).(*AcqFrameLayer)
	if !ok {
		return nil, errors.New("Packet has no acquisition frame")
	}
	return f, nil
}
