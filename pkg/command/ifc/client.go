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

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
	"jinr.ru/greenlab/go-digitizer/pkg/controller"
	"jinr.ru/greenlab/go-digitizer/pkg/layers"
	"jinr.ru/greenlab/go-digitizer/pkg/srv/control"
)

type ApiClient interface {
	Boards() ([]control.BoardInfo, error)
	Connect(address string) (*controller.Progress, error)
	Configure(body []byte) (*control.ConfigureResp, error)
	ConfigureProfile(name string) (*control.ConfigureResp, error)
	Plan() (*acquisition.BufferPlan, error)
	State() (*controller.Progress, error)
	Acquire() (*controller.Progress, error)
	Poll(withData bool) (*control.PollResp, error)
	Trigger() (*controller.Progress, error)
	Stop() (*controller.Progress, error)
	Disconnect() (*controller.Progress, error)

	Profiles() ([]string, error)
	GetProfile(name string) ([]byte, error)
	SaveProfile(name string, body []byte, overwrite bool) error
	DeleteProfile(name string) error
	LastRun() (*control.RunRecord, error)

	Stream(ctx context.Context, fn func(frame *layers.AcqFrameLayer) error) error
}
