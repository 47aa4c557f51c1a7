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

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
	"jinr.ru/greenlab/go-digitizer/pkg/config"
)

// NewPlanCommand computes the buffer plan of a profile file without a server
func NewPlanCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Validate a profile file and print its buffer plan and register settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProfile(file)
			if err != nil {
				return err
			}
			if errs := acquisition.ValidateAll(cfg); len(errs) > 0 {
				for _, err := range errs {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
				}
				return fmt.Errorf("%s: %d invalid fields", file, len(errs))
			}
			plan, err := acquisition.NewBufferPlan(cfg)
			if err != nil {
				return err
			}
			hw, err := acquisition.NewHardwareSettings(cfg)
			if err != nil {
				return err
			}
			plan.Log()
			hw.Log()
			return nil
		},
	}
	cmd.Flags().StringVar(&file, FileOptionName, "", "Acquisition profile file (YAML or JSON)")
	cmd.MarkFlagRequired(FileOptionName)
	return cmd
}
