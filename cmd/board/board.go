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
	"fmt"
	"io"
	"io/ioutil"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-digitizer/pkg/command"
	"jinr.ru/greenlab/go-digitizer/pkg/config"
	"jinr.ru/greenlab/go-digitizer/pkg/controller"
	"jinr.ru/greenlab/go-digitizer/pkg/srv/control"
)

const (
	FileOptionName     = "file"
	ProfileOptionName  = "profile"
	OutOptionName      = "out"
	CompressOptionName = "compress"
)

func printProgress(out io.Writer, p *controller.Progress) {
	fmt.Fprintf(out, "State: %s\n", p.State)
	if p.RunID != "" {
		fmt.Fprintf(out, "Run: %s buffers %d/%d acquisitions %d/%d\n",
			p.RunID, p.Buffers, p.NumberOfBuffers, p.Acquisitions, p.NumberAcquisitions)
	}
}

func printConfigured(out io.Writer, resp *control.ConfigureResp) {
	if resp.Profile != "" {
		fmt.Fprintf(out, "Profile: %s\n", resp.Profile)
	}
	plan := resp.Plan
	fmt.Fprintf(out, "Mode: %s\n", plan.Mode)
	fmt.Fprintf(out, "Buffers: %d of %d bytes, %d records each\n", plan.NumberOfBuffers, plan.BytesPerBuffer, plan.RecordsPerBuffer)
	fmt.Fprintf(out, "Acquisitions: %d of %d samples per channel\n", plan.NumberAcquisitions, plan.SamplesPerAcquisition)
}

// configure sends the profile file or the stored profile name, whichever is set
func configure(client *command.ApiClient, file, profile string) (*control.ConfigureResp, error) {
	if file != "" {
		data, err := ioutil.ReadFile(file)
		if err != nil {
			return nil, err
		}
		return client.Configure(data)
	}
	return client.ConfigureProfile(profile)
}

func NewBoardsCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "boards",
		Short: "List boards of the control server",
		RunE: func(cmd *cobra.Command, args []string) error {
			boards, err := command.NewApiClient(cfg).Boards()
			if err != nil {
				return err
			}
			for _, b := range boards {
				fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", b.Index, b.Info)
			}
			return nil
		},
	}
	return cmd
}

func NewConnectCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "connect [address]",
		Short: "Connect the control server to a board",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := cfg.BoardConfig.Address
			if len(args) == 1 {
				address = args[0]
			}
			p, err := command.NewApiClient(cfg).Connect(address)
			if err != nil {
				return err
			}
			printProgress(cmd.OutOrStdout(), p)
			return nil
		},
	}
	return cmd
}

func NewConfigureCommand() *cobra.Command {
	var file, profile string
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure the board from a profile file or a stored profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && profile == "" {
				profile = cfg.Profile
			}
			if file == "" && profile == "" {
				return fmt.Errorf("one of --%s or --%s is required", FileOptionName, ProfileOptionName)
			}
			resp, err := configure(command.NewApiClient(cfg), file, profile)
			if err != nil {
				return err
			}
			printConfigured(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, FileOptionName, "", "Acquisition profile file (YAML or JSON)")
	cmd.Flags().StringVar(&profile, ProfileOptionName, "", "Name of a profile stored on the server")
	return cmd
}

func NewStateCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show controller state and run progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := command.NewApiClient(cfg).State()
			if err != nil {
				return err
			}
			printProgress(cmd.OutOrStdout(), p)
			return nil
		},
	}
	return cmd
}

func NewTriggerCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Force a software trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := command.NewApiClient(cfg).Trigger()
			if err != nil {
				return err
			}
			printProgress(cmd.OutOrStdout(), p)
			return nil
		},
	}
	return cmd
}

func NewStopCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Abort the running acquisition",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := command.NewApiClient(cfg).Stop()
			if err != nil {
				return err
			}
			printProgress(cmd.OutOrStdout(), p)
			return nil
		},
	}
	return cmd
}

func NewDisconnectCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Release the board",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := command.NewApiClient(cfg).Disconnect()
			if err != nil {
				return err
			}
			printProgress(cmd.OutOrStdout(), p)
			return nil
		},
	}
	return cmd
}
