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

package config

import (
	"fmt"
)

type ErrConfigFileExists struct {
	Path string
}

func (e ErrConfigFileExists) Error() string {
	return fmt.Sprintf("Config file %s already exists", e.Path)
}

// ErrProfile returned when an acquisition profile can not be read or written
type ErrProfile struct {
	Path string
	Err  error
}

func (e ErrProfile) Error() string {
	return fmt.Sprintf("Error in acquisition profile %s: %s", e.Path, e.Err)
}

func (e ErrProfile) Unwrap() error {
	return e.Err
}

// ErrUnknownField returned for a profile key that names no acquisition parameter
type ErrUnknownField struct {
	Field string
}

func (e ErrUnknownField) Error() string {
	return fmt.Sprintf("Unknown profile field %q", e.Field)
}
