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
	"context"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"jinr.ru/greenlab/go-digitizer/pkg/config"
	"jinr.ru/greenlab/go-digitizer/pkg/controller"
	deviceifc "jinr.ru/greenlab/go-digitizer/pkg/device/ifc"
	"jinr.ru/greenlab/go-digitizer/pkg/device/sim"
	"jinr.ru/greenlab/go-digitizer/pkg/log"
	"jinr.ru/greenlab/go-digitizer/pkg/srv/control/ifc"
)

// ControlServer owns the board controller, the profile store and the
// metrics registry and serves them over the API
type ControlServer struct {
	context.Context
	*config.Config
	Controller *controller.Controller
	Store      *ProfileStore
	Registry   *prometheus.Registry
	api        *ApiServer
}

var _ ifc.ControlServer = &ControlServer{}

// NewTransport creates the board transport selected in the config
func NewTransport(cfg *config.Config) (deviceifc.Transport, error) {
	switch cfg.BoardConfig.Transport {
	case "sim", "":
		transport := sim.NewTransport(cfg.SimBoards)
		transport.HoldForTrigger(cfg.HoldForTrigger)
		return transport, nil
	}
	return nil, ErrUnknownTransport{Name: cfg.BoardConfig.Transport}
}

// NewControlServer ...
func NewControlServer(ctx context.Context, cfg *config.Config, transport deviceifc.Transport) (*ControlServer, error) {
	log.Debug("Initializing control server: state %s", cfg.StatePath)

	if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0755); err != nil {
		return nil, err
	}
	store, err := NewProfileStore(ctx, cfg.StatePath)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctrl := controller.New(transport)
	ctrl.SetMetrics(controller.NewMetrics(registry))

	s := &ControlServer{
		Context:    ctx,
		Config:     cfg,
		Controller: ctrl,
		Store:      store,
		Registry:   registry,
	}
	s.api = NewApiServer(ctx, cfg, ctrl, store, registry)
	return s, nil
}

// Run connects the configured board, applies the default profile if there
// is one and serves the API until the context is done
func (s *ControlServer) Run() error {
	defer s.Store.Close()
	defer func() {
		if err := s.Controller.Disconnect(); err != nil {
			log.Error("Error while disconnecting: %s", err)
		}
	}()

	if address := s.Config.BoardConfig.Address; address != "" {
		if err := s.Controller.Connect(address); err != nil {
			return err
		}
		if name := s.Config.Profile; name != "" {
			cfg, err := s.Store.GetProfile(name)
			if err != nil {
				return err
			}
			if err := s.Controller.Configure(cfg); err != nil {
				return err
			}
			s.api.mu.Lock()
			s.api.profile = name
			s.api.mu.Unlock()
			log.Info("Configured board %s with profile %s", address, name)
		}
	}
	return s.api.Run()
}
