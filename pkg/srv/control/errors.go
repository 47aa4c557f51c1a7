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

package control

import (
	"errors"
	"fmt"
	"net/http"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
	"jinr.ru/greenlab/go-digitizer/pkg/controller"
)

// ErrProfileNotFound returned when there is no profile with the given name
type ErrProfileNotFound struct {
	Name string
}

func (e ErrProfileNotFound) Error() string {
	return fmt.Sprintf("Profile not found: %s", e.Name)
}

// ErrProfileExists returned when saving a profile without overwrite
type ErrProfileExists struct {
	Name string
}

func (e ErrProfileExists) Error() string {
	return fmt.Sprintf("Profile already exists: %s", e.Name)
}

type ErrBucketNotFound struct {
	Name string
}

func (e ErrBucketNotFound) Error() string {
	return fmt.Sprintf("Bucket not found: %s", e.Name)
}

type ErrNoRun struct{}

func (e ErrNoRun) Error() string {
	return "No acquisition run recorded"
}

// ErrRunInProgress returned when a request competes with a running stream
type ErrRunInProgress struct{}

func (e ErrRunInProgress) Error() string {
	return "Acquisition stream already running"
}

type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("Bad request: %s", e.Err)
}

func (e ErrBadRequest) Unwrap() error {
	return e.Err
}

// httpStatus maps controller and store errors to response codes
func httpStatus(err error) int {
	var (
		stateErr    controller.ErrInvalidState
		configErr   controller.ErrConfiguration
		fieldErr    acquisition.ErrInvalidField
		geometryErr acquisition.ErrGeometry
		resourceErr controller.ErrResource
		timeoutErr  controller.ErrTimeout
		acqErr      controller.ErrAcquisition
		connErr     controller.ErrConnection
		badReq      ErrBadRequest
		notFound    ErrProfileNotFound
		exists      ErrProfileExists
		noRun       ErrNoRun
		running     ErrRunInProgress
	)
	switch {
	case errors.As(err, &stateErr), errors.As(err, &exists), errors.As(err, &running):
		return http.StatusConflict
	case errors.As(err, &notFound), errors.As(err, &noRun):
		return http.StatusNotFound
	case errors.As(err, &resourceErr):
		return http.StatusInsufficientStorage
	case errors.As(err, &configErr), errors.As(err, &fieldErr), errors.As(err, &geometryErr), errors.As(err, &badReq):
		return http.StatusBadRequest
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &acqErr), errors.As(err, &connErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func httpError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), httpStatus(err))
}

// ErrUnknownTransport returned when the config names a board driver that is not built in
type ErrUnknownTransport struct {
	Name string
}

func (e ErrUnknownTransport) Error() string {
	return fmt.Sprintf("Unknown board transport: %s", e.Name)
}
