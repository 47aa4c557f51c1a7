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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
	"jinr.ru/greenlab/go-digitizer/pkg/config"
	"jinr.ru/greenlab/go-digitizer/pkg/controller"
	"jinr.ru/greenlab/go-digitizer/pkg/log"
	"jinr.ru/greenlab/go-digitizer/pkg/srv/control/ifc"
)

const maxBodySize = 1 << 20

type BoardInfo struct {
	Index int    `json:"index"`
	Info  string `json:"info"`
}

type ConfigureResp struct {
	Profile  string                        `json:"profile,omitempty"`
	Plan     *acquisition.BufferPlan       `json:"plan"`
	Hardware *acquisition.HardwareSettings `json:"hardware"`
}

type PollResp struct {
	Ready    bool                `json:"ready"`
	Done     bool                `json:"done"`
	Progress controller.Progress `json:"progress"`
	Ch1      []float64           `json:"ch1,omitempty"`
	Ch2      []float64           `json:"ch2,omitempty"`
}

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	ctrl     ifc.Controller
	store    *ProfileStore
	registry *prometheus.Registry
	upgrader websocket.Upgrader

	mu        sync.Mutex
	profile   string
	streaming bool
}

var _ ifc.ApiServer = &ApiServer{}
var _ ifc.Controller = &controller.Controller{}

// NewApiServer builds the router. store and registry may be nil, then the
// profile and metrics endpoints are not served.
func NewApiServer(ctx context.Context, cfg *config.Config, ctrl ifc.Controller, store *ProfileStore, registry *prometheus.Registry) *ApiServer {
	log.Info("Initializing API server with address: %s", cfg.ApiListen())
	s := &ApiServer{
		Context:  ctx,
		Config:   cfg,
		ctrl:     ctrl,
		store:    store,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 65536,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.configureRouter()
	return s
}

// Handler wraps the router with access logging and panic recovery
func (s *ApiServer) Handler() http.Handler {
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(log.GetLevel() >= log.DebugLevel),
	)
	return recovery(handlers.LoggingHandler(log.Writer(log.DebugLevel), s.Router))
}

// Run serves the API until the server context is done
func (s *ApiServer) Run() error {
	log.Info("Starting API server: %s", s.Config.ApiListen())
	httpServer := &http.Server{
		Handler: s.Handler(),
		Addr:    s.Config.ApiListen(),
	}
	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.ListenAndServe()
	}()
	select {
	case err := <-errChan:
		return err
	case <-s.Context.Done():
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return err
		}
		return s.Context.Err()
	}
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	log.Error("Recovered from panic: %s", fmt.Sprint(v...))
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix("/api").Subrouter()
	subRouter.HandleFunc("/boards", s.handleBoards()).Methods("GET")
	subRouter.HandleFunc("/connect/{address}", s.handleConnect()).Methods("POST")
	subRouter.HandleFunc("/configure", s.handleConfigure()).Methods("POST")
	subRouter.HandleFunc("/config", s.handleConfig()).Methods("GET")
	subRouter.HandleFunc("/plan", s.handlePlan()).Methods("GET")
	subRouter.HandleFunc("/state", s.handleState()).Methods("GET")
	subRouter.HandleFunc("/acquire", s.handleAcquire()).Methods("POST")
	subRouter.HandleFunc("/poll", s.handlePoll()).Methods("GET")
	subRouter.HandleFunc("/trigger", s.handleTrigger()).Methods("POST")
	subRouter.HandleFunc("/stop", s.handleStop()).Methods("POST")
	subRouter.HandleFunc("/disconnect", s.handleDisconnect()).Methods("POST")
	subRouter.HandleFunc("/stream", s.handleStream()).Methods("GET")
	if s.store != nil {
		subRouter.HandleFunc("/profiles", s.handleProfileList()).Methods("GET")
		subRouter.HandleFunc("/profiles/{name}", s.handleProfileGet()).Methods("GET")
		subRouter.HandleFunc("/profiles/{name}", s.handleProfileSave()).Methods("POST")
		subRouter.HandleFunc("/profiles/{name}", s.handleProfileDelete()).Methods("DELETE")
		subRouter.HandleFunc("/runs/last", s.handleLastRun()).Methods("GET")
	}
	if s.registry != nil {
		s.Router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Error while encoding response: %s", err)
	}
}

// readConfig parses a JSON or YAML acquisition config from the request body
func readConfig(r *http.Request) (*acquisition.Config, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, ErrBadRequest{Err: err}
	}
	cfg, err := config.ParseProfile(data)
	if err != nil {
		return nil, ErrBadRequest{Err: err}
	}
	return cfg, nil
}

func (s *ApiServer) currentProfile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

func (s *ApiServer) handleBoards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		boards := []BoardInfo{}
		for i := 0; i < s.ctrl.BoardCount(); i++ {
			info, err := s.ctrl.BoardInfo(i)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			boards = append(boards, BoardInfo{Index: i, Info: info})
		}
		writeJSON(w, boards)
	}
}

func (s *ApiServer) handleConnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		log.Debug("Handling connect request: address: %s", vars["address"])
		if err := s.ctrl.Connect(vars["address"]); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, s.ctrl.Progress())
	}
}

// handleConfigure takes the config from the body or, with ?profile=name,
// from the profile store
func (s *ApiServer) handleConfigure() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			cfg *acquisition.Config
			err error
		)
		name := r.URL.Query().Get("profile")
		if name != "" {
			if s.store == nil {
				http.Error(w, "Profile store is not available", http.StatusNotFound)
				return
			}
			cfg, err = s.store.GetProfile(name)
		} else {
			cfg, err = readConfig(r)
		}
		if err != nil {
			httpError(w, err)
			return
		}
		if err = s.ctrl.Configure(cfg); err != nil {
			httpError(w, err)
			return
		}
		s.mu.Lock()
		s.profile = name
		s.mu.Unlock()
		writeJSON(w, &ConfigureResp{
			Profile:  name,
			Plan:     s.ctrl.Plan(),
			Hardware: s.ctrl.HardwareSettings(),
		})
	}
}

func (s *ApiServer) handleConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := s.ctrl.Config()
		if cfg == nil {
			http.Error(w, "Board is not configured", http.StatusNotFound)
			return
		}
		writeJSON(w, cfg)
	}
}

func (s *ApiServer) handlePlan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan := s.ctrl.Plan()
		if plan == nil {
			http.Error(w, "Board is not configured", http.StatusNotFound)
			return
		}
		writeJSON(w, plan)
	}
}

func (s *ApiServer) handleState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.ctrl.Progress())
	}
}

func (s *ApiServer) handleAcquire() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.ctrl.Acquire(); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, s.ctrl.Progress())
	}
}

// handlePoll makes one non-blocking poll. With ?data=true the channel
// buffers are returned when an acquisition is ready.
func (s *ApiServer) handlePoll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withData := false
		if value := r.URL.Query().Get("data"); value != "" {
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			withData = parsed
		}
		if err := s.checkNoStream(); err != nil {
			httpError(w, err)
			return
		}
		ready, err := s.ctrl.PollNext()
		if err != nil {
			httpError(w, err)
			return
		}
		resp := &PollResp{
			Ready:    ready,
			Done:     s.ctrl.Done(),
			Progress: s.ctrl.Progress(),
		}
		if ready && withData {
			if acq, ok := s.ctrl.Snapshot(); ok {
				resp.Ch1, resp.Ch2 = acq.Ch1, acq.Ch2
			}
		}
		writeJSON(w, resp)
	}
}

func (s *ApiServer) handleTrigger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.ctrl.ForceTrigger(); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, s.ctrl.Progress())
	}
}

func (s *ApiServer) handleStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkNoStream(); err != nil {
			httpError(w, err)
			return
		}
		if err := s.ctrl.Stop(); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, s.ctrl.Progress())
	}
}

func (s *ApiServer) handleDisconnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkNoStream(); err != nil {
			httpError(w, err)
			return
		}
		if err := s.ctrl.Disconnect(); err != nil {
			httpError(w, err)
			return
		}
		s.mu.Lock()
		s.profile = ""
		s.mu.Unlock()
		writeJSON(w, s.ctrl.Progress())
	}
}

func (s *ApiServer) handleProfileList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := s.store.ListProfiles()
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, names)
	}
}

// handleProfileGet answers in YAML when the client accepts it
func (s *ApiServer) handleProfileGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.store.GetProfile(mux.Vars(r)["name"])
		if err != nil {
			httpError(w, err)
			return
		}
		if r.Header.Get("Accept") == ContentTypeYAML {
			data, err := config.MarshalProfile(cfg)
			if err != nil {
				httpError(w, err)
				return
			}
			w.Header().Set("Content-Type", ContentTypeYAML)
			w.Write(data)
			return
		}
		writeJSON(w, cfg)
	}
}

// handleProfileSave stores the body config, ?overwrite=true replaces an existing profile
func (s *ApiServer) handleProfileSave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		overwrite, _ := strconv.ParseBool(r.URL.Query().Get("overwrite"))
		cfg, err := readConfig(r)
		if err != nil {
			httpError(w, err)
			return
		}
		if err := s.store.SaveProfile(name, cfg, overwrite); err != nil {
			httpError(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, cfg)
	}
}

func (s *ApiServer) handleProfileDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.DeleteProfile(mux.Vars(r)["name"]); err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *ApiServer) handleLastRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.store.GetLastRun()
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, rec)
	}
}
