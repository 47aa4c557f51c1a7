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
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/imroc/req"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
	"jinr.ru/greenlab/go-digitizer/pkg/command/ifc"
	"jinr.ru/greenlab/go-digitizer/pkg/config"
	"jinr.ru/greenlab/go-digitizer/pkg/controller"
	"jinr.ru/greenlab/go-digitizer/pkg/layers"
	"jinr.ru/greenlab/go-digitizer/pkg/log"
	"jinr.ru/greenlab/go-digitizer/pkg/srv/control"
)

type ApiClient struct {
	*config.Config
	ApiPrefix string
}

var _ ifc.ApiClient = &ApiClient{}

func NewApiClient(cfg *config.Config) *ApiClient {
	return NewApiClientWithURL(cfg, cfg.ApiURL())
}

// NewApiClientWithURL talks to the server at baseURL instead of the configured address
func NewApiClientWithURL(cfg *config.Config, baseURL string) *ApiClient {
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: strings.TrimRight(baseURL, "/") + "/api",
	}
}

func (c *ApiClient) url(format string, v ...interface{}) string {
	return c.ApiPrefix + fmt.Sprintf(format, v...)
}

func check(r *req.Resp) error {
	code := r.Response().StatusCode
	if code < 200 || code > 299 {
		return ErrApi{Status: code, Message: strings.TrimSpace(r.String())}
	}
	return nil
}

// getJSON checks the answer of a request and decodes its JSON body into v
func getJSON(r *req.Resp, err error, v interface{}) error {
	if err != nil {
		return err
	}
	if err := check(r); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return r.ToJSON(v)
}

func (c *ApiClient) progress(method, path string) (*controller.Progress, error) {
	var (
		r   *req.Resp
		err error
	)
	if method == http.MethodGet {
		r, err = req.Get(c.ApiPrefix + path)
	} else {
		r, err = req.Post(c.ApiPrefix + path)
	}
	p := &controller.Progress{}
	if err := getJSON(r, err, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *ApiClient) Boards() ([]control.BoardInfo, error) {
	boards := []control.BoardInfo{}
	r, err := req.Get(c.url("/boards"))
	if err := getJSON(r, err, &boards); err != nil {
		return nil, err
	}
	return boards, nil
}

func (c *ApiClient) Connect(address string) (*controller.Progress, error) {
	return c.progress(http.MethodPost, "/connect/"+url.PathEscape(address))
}

// Configure sends a JSON or YAML acquisition config
func (c *ApiClient) Configure(body []byte) (*control.ConfigureResp, error) {
	resp := &control.ConfigureResp{}
	r, err := req.Post(c.url("/configure"), req.Header{"Content-Type": control.ContentTypeYAML}, body)
	if err := getJSON(r, err, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ConfigureProfile configures the board with a profile from the server store
func (c *ApiClient) ConfigureProfile(name string) (*control.ConfigureResp, error) {
	resp := &control.ConfigureResp{}
	r, err := req.Post(c.url("/configure"), req.QueryParam{"profile": name})
	if err := getJSON(r, err, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *ApiClient) Plan() (*acquisition.BufferPlan, error) {
	plan := &acquisition.BufferPlan{}
	r, err := req.Get(c.url("/plan"))
	if err := getJSON(r, err, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (c *ApiClient) State() (*controller.Progress, error) {
	return c.progress(http.MethodGet, "/state")
}

func (c *ApiClient) Acquire() (*controller.Progress, error) {
	return c.progress(http.MethodPost, "/acquire")
}

func (c *ApiClient) Poll(withData bool) (*control.PollResp, error) {
	resp := &control.PollResp{}
	r, err := req.Get(c.url("/poll"), req.QueryParam{"data": strconv.FormatBool(withData)})
	if err := getJSON(r, err, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *ApiClient) Trigger() (*controller.Progress, error) {
	return c.progress(http.MethodPost, "/trigger")
}

func (c *ApiClient) Stop() (*controller.Progress, error) {
	return c.progress(http.MethodPost, "/stop")
}

func (c *ApiClient) Disconnect() (*controller.Progress, error) {
	return c.progress(http.MethodPost, "/disconnect")
}

func (c *ApiClient) Profiles() ([]string, error) {
	names := []string{}
	r, err := req.Get(c.url("/profiles"))
	if err := getJSON(r, err, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// GetProfile returns the stored profile as YAML
func (c *ApiClient) GetProfile(name string) ([]byte, error) {
	r, err := req.Get(c.url("/profiles/%s", url.PathEscape(name)), req.Header{"Accept": control.ContentTypeYAML})
	if err != nil {
		return nil, err
	}
	if err := check(r); err != nil {
		return nil, err
	}
	return r.Bytes(), nil
}

func (c *ApiClient) SaveProfile(name string, body []byte, overwrite bool) error {
	r, err := req.Post(c.url("/profiles/%s", url.PathEscape(name)),
		req.QueryParam{"overwrite": strconv.FormatBool(overwrite)},
		req.Header{"Content-Type": control.ContentTypeYAML}, body)
	return getJSON(r, err, nil)
}

func (c *ApiClient) DeleteProfile(name string) error {
	r, err := req.Delete(c.url("/profiles/%s", url.PathEscape(name)))
	return getJSON(r, err, nil)
}

func (c *ApiClient) LastRun() (*control.RunRecord, error) {
	rec := &control.RunRecord{}
	r, err := req.Get(c.url("/runs/last"))
	if err := getJSON(r, err, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Stream runs the configured acquisition on the server and hands every
// received frame to fn. It returns nil when the server closes the stream
// after the last acquisition.
func (c *ApiClient) Stream(ctx context.Context, fn func(frame *layers.AcqFrameLayer) error) error {
	wsURL := "ws" + strings.TrimPrefix(c.ApiPrefix, "http") + "/stream"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return ErrApi{Status: resp.StatusCode, Message: resp.Status}
		}
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				if closeErr.Code == websocket.CloseNormalClosure {
					return nil
				}
				return ErrStream{Code: closeErr.Code, Reason: closeErr.Text}
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if messageType != websocket.BinaryMessage {
			log.Debug("Skipping stream message of type %d", messageType)
			continue
		}
		frame, err := layers.DecodeAcqFrame(data)
		if err != nil {
			return err
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
}
