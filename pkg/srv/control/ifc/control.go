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

import (
	"context"
	"net/http"
	"time"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
	"jinr.ru/greenlab/go-digitizer/pkg/controller"
)

type ControlServer interface {
	Run() error
}

type ApiServer interface {
	Run() error
	Handler() http.Handler
}

// Controller is the board controller as seen by the API
type Controller interface {
	BoardCount() int
	BoardInfo(index int) (string, error)

	Connect(address string) error
	Configure(cfg *acquisition.Config) error
	Acquire() error
	PollNext() (bool, error)
	ForceTrigger() error
	Stop() error
	Disconnect() error

	Wait(ctx context.Context, interval time.Duration) error
	Run(ctx context.Context, interval time.Duration, fn func(acq *controller.Acquisition) error) error

	State() controller.State
	Done() bool
	Plan() *acquisition.BufferPlan
	Config() *acquisition.Config
	HardwareSettings() *acquisition.HardwareSettings
	Snapshot() (*controller.Acquisition, bool)
	Progress() controller.Progress
}
