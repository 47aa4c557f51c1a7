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

package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	var out bytes.Buffer
	Init(&out, "warning")
	defer Init(os.Stderr, "info")

	Error("disk %s", "full")
	Warning("slow")
	Info("hidden")
	Debug("hidden too")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[0], ErrorPrefix+"disk full") || !strings.HasPrefix(lines[0], LogPrefix) {
		t.Errorf("error line %q", lines[0])
	}
	if !strings.Contains(lines[1], WarningPrefix+"slow") {
		t.Errorf("warning line %q", lines[1])
	}
	if GetLevel() != WarningLevel || GetLevel().String() != "warning" {
		t.Errorf("level %s", GetLevel())
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Errorf("unknown level parsed")
	}
}

func TestParamValue(t *testing.T) {
	var out bytes.Buffer
	Init(&out, "info")
	defer Init(os.Stderr, "info")

	Param("recordLength", 4096)
	Param("Trigger Level Code", uint32(153))
	Param("Counts2Volts", 1.0/128)
	Info("recordLengthX 1")

	testCases := map[string]string{
		"recordLength":       "4096",
		"Trigger Level Code": "153",
		"Counts2Volts":       "0.0078125",
	}
	for key, want := range testCases {
		got, ok := ParamValue(bytes.NewReader(out.Bytes()), key)
		if !ok || got != want {
			t.Errorf("%s: got %q (found %v), want %q", key, got, ok, want)
		}
	}
	if _, ok := ParamValue(bytes.NewReader(out.Bytes()), "bufferLen"); ok {
		t.Errorf("missing key found")
	}
}

func TestWriter(t *testing.T) {
	var out bytes.Buffer
	Init(&out, "info")
	defer Init(os.Stderr, "info")

	w := Writer(DebugLevel)
	w.Write([]byte("GET /api/state 200\n"))
	if out.Len() != 0 {
		t.Fatalf("debug write logged at info level: %q", out.String())
	}
	n, err := Writer(InfoLevel).Write([]byte("POST /api/acquire 200\n"))
	if err != nil || n != len("POST /api/acquire 200\n") {
		t.Fatalf("write: %d %v", n, err)
	}
	line := strings.TrimSpace(out.String())
	if !strings.HasSuffix(line, InfoPrefix+"POST /api/acquire 200") {
		t.Errorf("line %q", line)
	}
}
