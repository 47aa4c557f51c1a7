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

package command

import (
	"fmt"
)

// ErrApi returned when the control server answers with an error status
type ErrApi struct {
	Status  int
	Message string
}

func (e ErrApi) Error() string {
	return fmt.Sprintf("Server returned %d: %s", e.Status, e.Message)
}

// ErrStream returned when the server closes the stream with an error
type ErrStream struct {
	Code   int
	Reason string
}

func (e ErrStream) Error() string {
	return fmt.Sprintf("Stream closed with code %d: %s", e.Code, e.Reason)
}
