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

package board

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-digitizer/pkg/command"
	"jinr.ru/greenlab/go-digitizer/pkg/config"
	"jinr.ru/greenlab/go-digitizer/pkg/layers"
	"jinr.ru/greenlab/go-digitizer/pkg/log"
	"jinr.ru/greenlab/go-digitizer/pkg/writer"
)

// NewAcquireCommand runs one acquisition on the server and writes the
// channel data to ch1.dat and ch2.dat
func NewAcquireCommand() *cobra.Command {
	var file, profile, out string
	var compress bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Run an acquisition and write the channel files",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := command.NewApiClient(cfg)
			if file != "" || profile != "" {
				resp, err := configure(client, file, profile)
				if err != nil {
					return err
				}
				printConfigured(cmd.OutOrStdout(), resp)
			}
			if out == "" {
				out = cfg.DataDir
			}
			if !cmd.Flags().Changed(CompressOptionName) {
				compress = cfg.Compress
			}

			w, err := writer.NewChannelWriter(out, compress)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			err = client.Stream(ctx, func(frame *layers.AcqFrameLayer) error {
				log.Debug("Acquisition %d/%d received", frame.Index+1, frame.Total)
				return w.WriteFrame(frame)
			})
			if closeErr := w.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			for _, path := range w.Paths() {
				abs, _ := filepath.Abs(path)
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d samples to %s\n", w.Samples(), abs)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, FileOptionName, "", "Configure from this profile file first")
	cmd.Flags().StringVar(&profile, ProfileOptionName, "", "Configure from this stored profile first")
	cmd.Flags().StringVar(&out, OutOptionName, "", "Output directory (default from config)")
	cmd.Flags().BoolVar(&compress, CompressOptionName, false, "Write zstd compressed channel files")
	return cmd
}

// NewStreamCommand runs an acquisition and prints a summary of every frame
func NewStreamCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Run an acquisition and print every delivered frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return command.NewApiClient(cfg).Stream(ctx, func(frame *layers.AcqFrameLayer) error {
				mode := "digitizer"
				if frame.Flags&layers.AcqFrameFlagAverager != 0 {
					mode = "averager"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d/%d: %d samples per channel\n",
					uuid.UUID(frame.RunID), mode, frame.Index+1, frame.Total, len(frame.Ch1))
				return nil
			})
		},
	}
	return cmd
}
