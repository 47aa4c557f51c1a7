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

package sim

import (
	"fmt"
)

// ErrBoardAddress returned when the address does not name an installed board
type ErrBoardAddress struct {
	Address string
	Boards  int
}

func (e ErrBoardAddress) Error() string {
	return fmt.Sprintf("No board at address %q, %d board(s) installed", e.Address, e.Boards)
}

// ErrBoardBusy returned when the board is already open or armed
type ErrBoardBusy struct {
	What string
}

func (e ErrBoardBusy) Error() string {
	return fmt.Sprintf("Board busy: %s", e.What)
}

type ErrNotArmed struct{}

func (e ErrNotArmed) Error() string {
	return "Board is not armed"
}

type ErrNoParams struct{}

func (e ErrNoParams) Error() string {
	return "Acquisition params are not set"
}

type ErrClosed struct{}

func (e ErrClosed) Error() string {
	return "Board handle is closed"
}

// ErrBufferTooSmall returned when the caller buffers can not take a DMA buffer
type ErrBufferTooSmall struct {
	Need int
	Got  int
}

func (e ErrBufferTooSmall) Error() string {
	return fmt.Sprintf("Channel buffer too small: need %d bytes, got %d", e.Need, e.Got)
}

// ErrInjected is the failure returned by a fault hook
type ErrInjected struct {
	Op string
}

func (e ErrInjected) Error() string {
	return fmt.Sprintf("Injected %s failure", e.Op)
}

// ErrSetup returned when the setup frame is inconsistent
type ErrSetup struct {
	What string
}

func (e ErrSetup) Error() string {
	return fmt.Sprintf("Invalid setup frame: %s", e.What)
}
