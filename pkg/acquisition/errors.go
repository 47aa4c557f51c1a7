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

package acquisition

import (
	"fmt"
)

// ErrInvalidField returned when a configuration field violates a board constraint
type ErrInvalidField struct {
	Field      string
	Value      interface{}
	Constraint string
}

func (e ErrInvalidField) Error() string {
	return fmt.Sprintf("Invalid %s (%v): %s", e.Field, e.Value, e.Constraint)
}

// ErrGeometry returned when records do not match the acquisition geometry
type ErrGeometry struct {
	What string
}

func (e ErrGeometry) Error() string {
	return fmt.Sprintf("Record geometry mismatch: %s", e.What)
}
