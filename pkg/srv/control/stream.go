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
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
	"jinr.ru/greenlab/go-digitizer/pkg/controller"
	"jinr.ru/greenlab/go-digitizer/pkg/layers"
	"jinr.ru/greenlab/go-digitizer/pkg/log"
)

// maxCloseReason is the room left for the reason text in a close frame
const maxCloseReason = 120

// AcqFrame converts a delivered acquisition into a stream frame
func AcqFrame(acq *controller.Acquisition) *layers.AcqFrameLayer {
	f := &layers.AcqFrameLayer{
		RunID: [16]byte(acq.RunID),
		Index: acq.Index,
		Total: acq.Total,
		Ch1:   layers.ToFloat32(acq.Ch1),
		Ch2:   layers.ToFloat32(acq.Ch2),
	}
	if acq.Mode == acquisition.ModeAverager {
		f.Flags |= layers.AcqFrameFlagAverager
	}
	return f
}

func (s *ApiServer) startStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming {
		return ErrRunInProgress{}
	}
	state := s.ctrl.State()
	if state != controller.StateConfigured && state != controller.StateStopped {
		return controller.ErrInvalidState{Op: "stream", State: state}
	}
	s.streaming = true
	return nil
}

// checkNoStream keeps requests that would take acquisitions or stop the board
// away from a running stream
func (s *ApiServer) checkNoStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming {
		return ErrRunInProgress{}
	}
	return nil
}

func (s *ApiServer) endStream() {
	s.mu.Lock()
	s.streaming = false
	s.mu.Unlock()
}

// handleStream arms the board and sends every delivered acquisition as one
// binary AcqFrame message. The socket is closed with a normal closure after
// the last acquisition or with the error that ended the run.
func (s *ApiServer) handleStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.startStream(); err != nil {
			httpError(w, err)
			return
		}
		ended := false
		end := func() {
			if !ended {
				ended = true
				s.endStream()
			}
		}
		defer end()

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("Error while upgrading stream connection: %s", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(s.Context, s.Config.Timeout())
		defer cancel()

		// the client only sends control frames, a read error means it went away
		go func() {
			for {
				if _, _, err := conn.NextReader(); err != nil {
					cancel()
					return
				}
			}
		}()

		rec := &RunRecord{
			Profile: s.currentProfile(),
			Started: time.Now().UTC(),
		}
		err = s.ctrl.Run(ctx, s.Config.PollInterval(), func(acq *controller.Acquisition) error {
			rec.RunID = acq.RunID.String()
			rec.Mode = acq.Mode
			rec.Acquisitions = acq.Index + 1
			rec.Total = acq.Total
			data, err := layers.EncodeAcqFrame(AcqFrame(acq))
			if err != nil {
				return err
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			return conn.WriteMessage(websocket.BinaryMessage, data)
		})
		rec.Finished = time.Now().UTC()

		code, reason := websocket.CloseNormalClosure, "done"
		if err != nil {
			log.Error("Acquisition stream failed: %s", err)
			rec.Error = err.Error()
			code, reason = websocket.CloseInternalServerErr, err.Error()
			if len(reason) > maxCloseReason {
				reason = reason[:maxCloseReason]
			}
		} else {
			log.Info("Acquisition stream finished: run %s, %d acquisitions", rec.RunID, rec.Acquisitions)
		}
		if s.store != nil {
			if err := s.store.SetLastRun(rec); err != nil {
				log.Error("Error while saving run record: %s", err)
			}
		}
		// a client may start the next run as soon as it sees the close frame
		end()
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason),
			time.Now().Add(streamWriteTimeout))
	}
}
