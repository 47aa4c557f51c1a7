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

// Package writer stores delivered acquisitions as raw channel files:
// little-endian float32 samples, one file per channel, optionally zstd
// compressed.
package writer

import (
	"bufio"
	"encoding/binary"
	"io"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"jinr.ru/greenlab/go-digitizer/pkg/layers"
	"jinr.ru/greenlab/go-digitizer/pkg/log"
)

const (
	Ch1File = "ch1.dat"
	Ch2File = "ch2.dat"
	ZstdExt = ".zst"
)

type Writer struct {
	file    *os.File
	buf     *bufio.Writer
	zw      *zstd.Encoder
	out     io.Writer
	scratch []byte
	samples uint64
}

// NewWriter creates filename, a zstd stream is written when compress is set
func NewWriter(filename string, compress bool) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		log.Error("Error while creating file: %s", filename)
		return nil, err
	}
	w := &Writer{
		file: file,
		buf:  bufio.NewWriter(file),
	}
	w.out = w.buf
	if compress {
		w.zw, err = zstd.NewWriter(w.buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			file.Close()
			return nil, err
		}
		w.out = w.zw
	}
	return w, nil
}

func (w *Writer) WriteSamples(samples []float32) error {
	if cap(w.scratch) < 4*len(samples) {
		w.scratch = make([]byte, 4*len(samples))
	}
	data := w.scratch[:4*len(samples)]
	for i, v := range samples {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	if _, err := w.out.Write(data); err != nil {
		return err
	}
	w.samples += uint64(len(samples))
	return nil
}

func (w *Writer) Samples() uint64 {
	return w.samples
}

func (w *Writer) Close() error {
	var result error
	if w.zw != nil {
		result = w.zw.Close()
	}
	if err := w.buf.Flush(); err != nil && result == nil {
		result = err
	}
	if err := w.file.Sync(); err != nil && result == nil {
		result = err
	}
	if err := w.file.Close(); err != nil && result == nil {
		result = err
	}
	return result
}

// ChannelWriter appends every acquisition of a run to ch1.dat and ch2.dat in dir
type ChannelWriter struct {
	ch1    *Writer
	ch2    *Writer
	paths  []string
	frames int
}

func NewChannelWriter(dir string, compress bool) (*ChannelWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	paths := []string{filepath.Join(dir, Ch1File), filepath.Join(dir, Ch2File)}
	if compress {
		for i := range paths {
			paths[i] += ZstdExt
		}
	}
	ch1, err := NewWriter(paths[0], compress)
	if err != nil {
		return nil, err
	}
	ch2, err := NewWriter(paths[1], compress)
	if err != nil {
		ch1.Close()
		return nil, err
	}
	return &ChannelWriter{ch1: ch1, ch2: ch2, paths: paths}, nil
}

func (c *ChannelWriter) WriteFrame(f *layers.AcqFrameLayer) error {
	if err := c.ch1.WriteSamples(f.Ch1); err != nil {
		return err
	}
	if err := c.ch2.WriteSamples(f.Ch2); err != nil {
		return err
	}
	c.frames++
	return nil
}

func (c *ChannelWriter) Frames() int {
	return c.frames
}

// Samples per channel written so far
func (c *ChannelWriter) Samples() uint64 {
	return c.ch1.Samples()
}

func (c *ChannelWriter) Paths() []string {
	return c.paths
}

func (c *ChannelWriter) Close() error {
	err1 := c.ch1.Close()
	err2 := c.ch2.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// ReadSamples reads a channel file back, files ending in .zst are decompressed
func ReadSamples(filename string) ([]float32, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(filename, ZstdExt) {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer decoder.Close()
		if data, err = decoder.DecodeAll(data, nil); err != nil {
			return nil, err
		}
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return samples, nil
}
