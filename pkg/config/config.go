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

package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

type ApiConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

type BoardConfig struct {
	// Transport is the board driver, only "sim" is built in
	Transport string `yaml:"transport"`
	Address   string `yaml:"address"`
	// SimBoards is the number of boards the simulated system reports
	SimBoards int `yaml:"simBoards"`
	// HoldForTrigger makes simulated boards wait for a forced trigger
	HoldForTrigger bool `yaml:"holdForTrigger"`
}

type AcquireConfig struct {
	PollIntervalMs int    `yaml:"pollIntervalMs"`
	TimeoutSec     int    `yaml:"timeoutSec"`
	DataDir        string `yaml:"dataDir"`
	Compress       bool   `yaml:"compress"`
	// Profile is the acquisition profile used when none is given
	Profile string `yaml:"profile"`
}

type Config struct {
	LogLevel       string `yaml:"logLevel"`
	StatePath      string `yaml:"statePath"`
	*ApiConfig     `yaml:"api"`
	*BoardConfig   `yaml:"board"`
	*AcquireConfig `yaml:"acquire"`
	filepath       string
}

func (c *Config) Path() string {
	return c.filepath
}

func (c *Config) SetPath(path string) {
	c.filepath = path
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	return ioutil.WriteFile(c.filepath, data, 0644)
}

// Load reads the config file over the defaults. A missing file is not an error.
func (c *Config) Load() error {
	data, err := ioutil.ReadFile(c.filepath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) Dump() (string, error) {
	data, err := yaml.Marshal(c)
	return string(data), err
}

// ApiURL is the base URL of the control API
func (c *Config) ApiURL() string {
	return fmt.Sprintf("http://%s:%d", c.ApiConfig.Address, c.ApiConfig.Port)
}

// ApiListen is the address the control API listens on
func (c *Config) ApiListen() string {
	return fmt.Sprintf("%s:%d", c.ApiConfig.Address, c.ApiConfig.Port)
}

func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalMs <= 0 {
		return DefaultPollIntervalMs * time.Millisecond
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return DefaultTimeoutSec * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

func DefaultConfigPath() string {
	return filepath.Join(defaultDir(), ConfigFile)
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir)
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:  DefaultLogLevel,
		StatePath: filepath.Join(defaultDir(), StateFile),
		ApiConfig: &ApiConfig{
			Address: DefaultApiAddress,
			Port:    DefaultApiPort,
		},
		BoardConfig: &BoardConfig{
			Transport: DefaultTransport,
			Address:   DefaultBoardAddress,
			SimBoards: DefaultSimBoards,
		},
		AcquireConfig: &AcquireConfig{
			PollIntervalMs: DefaultPollIntervalMs,
			TimeoutSec:     DefaultTimeoutSec,
			DataDir:        DefaultDataDir,
		},
		filepath: DefaultConfigPath(),
	}
}
