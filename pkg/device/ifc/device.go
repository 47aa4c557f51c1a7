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

package ifc

// AcquisitionParams are computed by the board from the setup frame
type AcquisitionParams struct {
	SamplesPerAcquisition uint32
	NumberAcquisitions    uint32
}

// Transport opens boards and enumerates what is installed
type Transport interface {
	Connect(address string) (Board, error)
	BoardCount() int
	BoardInfo(index int) (string, error)
}

// Board is an open board handle. PollCompletedBuffer must not block: it
// reports false when no DMA buffer has completed yet, otherwise it copies the
// records of the next buffer into ch1 and ch2 as unsigned 8-bit codes.
type Board interface {
	SetAcquisitionParams(frame []byte) (*AcquisitionParams, error)
	Arm() error
	PollCompletedBuffer(ch1, ch2 []byte) (bool, error)
	ForceTrigger() error
	Stop() error
	Disconnect() error
}
