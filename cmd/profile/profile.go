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

package profile

import (
	"fmt"
	"io/ioutil"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-digitizer/pkg/command"
	"jinr.ru/greenlab/go-digitizer/pkg/config"
)

const (
	FileOptionName      = "file"
	OverwriteOptionName = "overwrite"
)

// NewCommand creates the profile command group
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage acquisition profiles stored on the control server",
	}
	cmd.AddCommand(NewSaveCommand())
	cmd.AddCommand(NewLoadCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewDeleteCommand())
	return cmd
}

func NewSaveCommand() *cobra.Command {
	var file string
	var overwrite bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Store a profile file under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// parse locally first so that errors point at the file
			if _, err := config.LoadProfile(file); err != nil {
				return err
			}
			data, err := ioutil.ReadFile(file)
			if err != nil {
				return err
			}
			return command.NewApiClient(cfg).SaveProfile(args[0], data, overwrite)
		},
	}
	cmd.Flags().StringVar(&file, FileOptionName, "", "Acquisition profile file (YAML or JSON)")
	cmd.MarkFlagRequired(FileOptionName)
	cmd.Flags().BoolVar(&overwrite, OverwriteOptionName, false, "Replace an existing profile")
	return cmd
}

func NewLoadCommand() *cobra.Command {
	var file string
	var overwrite bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "load NAME",
		Short: "Print a stored profile or write it to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := command.NewApiClient(cfg).GetProfile(args[0])
			if err != nil {
				return err
			}
			if file == "" {
				fmt.Fprint(cmd.OutOrStdout(), string(data))
				return nil
			}
			profile, err := config.ParseProfile(data)
			if err != nil {
				return err
			}
			return config.SaveProfile(file, profile, overwrite)
		},
	}
	cmd.Flags().StringVar(&file, FileOptionName, "", "Write the profile to this file")
	cmd.Flags().BoolVar(&overwrite, OverwriteOptionName, false, "Replace an existing file")
	return cmd
}

func NewListCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := command.NewApiClient(cfg).Profiles()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	return cmd
}

func NewDeleteCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.NewApiClient(cfg).DeleteProfile(args[0])
		},
	}
	return cmd
}
