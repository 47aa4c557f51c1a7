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

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-digitizer/cmd/board"
	"jinr.ru/greenlab/go-digitizer/cmd/completion"
	"jinr.ru/greenlab/go-digitizer/cmd/config"
	"jinr.ru/greenlab/go-digitizer/cmd/profile"
	"jinr.ru/greenlab/go-digitizer/cmd/server"
	pkgconfig "jinr.ru/greenlab/go-digitizer/pkg/config"
	"jinr.ru/greenlab/go-digitizer/pkg/log"
)

const (
	LogLevelOptionName = "log-level"
)

func NewRootCommand(out io.Writer) *cobra.Command {
	var logLevel string
	cfg := pkgconfig.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:          "go-digitizer",
		Short:        "Tool to work with two channel digitizer/averager boards",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
				return err
			}
			log.Init(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.AddCommand(config.NewCommand())
	cmd.AddCommand(server.NewCommand())
	cmd.AddCommand(profile.NewCommand())
	cmd.AddCommand(board.NewBoardsCommand())
	cmd.AddCommand(board.NewConnectCommand())
	cmd.AddCommand(board.NewConfigureCommand())
	cmd.AddCommand(board.NewPlanCommand())
	cmd.AddCommand(board.NewStateCommand())
	cmd.AddCommand(board.NewAcquireCommand())
	cmd.AddCommand(board.NewStreamCommand())
	cmd.AddCommand(board.NewTriggerCommand())
	cmd.AddCommand(board.NewStopCommand())
	cmd.AddCommand(board.NewDisconnectCommand())
	cmd.AddCommand(completion.NewCommand())
	cmd.PersistentFlags().StringVar(&logLevel, LogLevelOptionName, "", fmt.Sprintf("Log level. %s", log.HelpLevels))
	return cmd
}
