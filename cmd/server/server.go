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

package server

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-digitizer/pkg/command"
	"jinr.ru/greenlab/go-digitizer/pkg/config"
)

const (
	AddressOptionName = "address"
	PortOptionName    = "port"
	BoardOptionName   = "board"
	ProfileOptionName = "profile"
)

// NewCommand creates the server command group
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Control server that owns the board",
	}
	cmd.AddCommand(NewStartCommand())
	return cmd
}

func NewStartCommand() *cobra.Command {
	var address, board, profile string
	var port int
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start control server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if address != "" {
				cfg.ApiConfig.Address = address
			}
			if port != 0 {
				cfg.ApiConfig.Port = port
			}
			if cmd.Flags().Changed(BoardOptionName) {
				cfg.BoardConfig.Address = board
			}
			if profile != "" {
				cfg.Profile = profile
			}
			return command.StartControlServer(cfg)
		},
	}
	cmd.Flags().StringVar(&address, AddressOptionName, "", fmt.Sprintf("Address to bind. E.g. %s", config.DefaultApiAddress))
	cmd.Flags().IntVar(&port, PortOptionName, 0, fmt.Sprintf("Port to bind. E.g. %d", config.DefaultApiPort))
	cmd.Flags().StringVar(&board, BoardOptionName, "", "Board to connect on start, empty to connect later")
	cmd.Flags().StringVar(&profile, ProfileOptionName, "", "Stored profile to configure the board with on start")
	return cmd
}
