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

package controller

import "fmt"

type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateConfigured
	StateArmed
	StatePolling
	StateStopped
)

var stateNames = map[State]string{
	StateDisconnected: "disconnected",
	StateConnected:    "connected",
	StateConfigured:   "configured",
	StateArmed:        "armed",
	StatePolling:      "polling",
	StateStopped:      "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Running reports whether an acquisition is in flight
func (s State) Running() bool {
	return s == StateArmed || s == StatePolling
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown controller state %q", text)
}
