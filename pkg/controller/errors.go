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

import (
	"fmt"
)

// ErrInvalidState returned when an operation is not allowed in the current state
type ErrInvalidState struct {
	Op    string
	State State
}

func (e ErrInvalidState) Error() string {
	return fmt.Sprintf("Can not %s while %s", e.Op, e.State)
}

// ErrConfiguration returned when the configuration is rejected by the
// validator, the planner or the board. The previous configuration stays in effect.
type ErrConfiguration struct {
	Err error
}

func (e ErrConfiguration) Error() string {
	return fmt.Sprintf("Configuration rejected: %s", e.Err)
}

func (e ErrConfiguration) Unwrap() error {
	return e.Err
}

// ErrConnection returned when the board handle can not be opened
type ErrConnection struct {
	Address string
	Err     error
}

func (e ErrConnection) Error() string {
	return fmt.Sprintf("Error while connecting to board %s: %s", e.Address, e.Err)
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrAcquisition returned when the board fails to arm, acquire or report a buffer
type ErrAcquisition struct {
	Op  string
	Err error
}

func (e ErrAcquisition) Error() string {
	return fmt.Sprintf("Acquisition failed on %s: %s", e.Op, e.Err)
}

func (e ErrAcquisition) Unwrap() error {
	return e.Err
}

// ErrResource returned when channel buffers can not be allocated
type ErrResource struct {
	Samples uint64
	Limit   uint64
}

func (e ErrResource) Error() string {
	return fmt.Sprintf("Can not allocate channel buffers of %d samples, limit is %d", e.Samples, e.Limit)
}

// ErrTimeout returned by Wait when the deadline passes before an acquisition is ready
type ErrTimeout struct {
	Acquisition uint32
	Err         error
}

func (e ErrTimeout) Error() string {
	return fmt.Sprintf("Acquisition %d not ready: %s", e.Acquisition, e.Err)
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}
