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
	"context"
	"os"
	"os/signal"
	"syscall"

	"jinr.ru/greenlab/go-digitizer/pkg/config"
	"jinr.ru/greenlab/go-digitizer/pkg/log"
	"jinr.ru/greenlab/go-digitizer/pkg/srv/control"
)

// StartControlServer serves the control API until SIGINT or SIGTERM
func StartControlServer(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	transport, err := control.NewTransport(cfg)
	if err != nil {
		return err
	}
	s, err := control.NewControlServer(ctx, cfg, transport)
	if err != nil {
		return err
	}
	err = s.Run()
	if ctx.Err() != nil {
		log.Info("Control server stopped")
		return nil
	}
	return err
}
