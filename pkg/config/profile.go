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
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
)

// ParseProfile reads an acquisition profile in YAML or JSON. Fields that are
// not set keep their default values, unknown fields are rejected.
func ParseProfile(data []byte) (*acquisition.Config, error) {
	if err := checkProfileKeys(data); err != nil {
		return nil, err
	}
	cfg := acquisition.DefaultConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// profileFields holds the exact keys of a profile, the JSON decoder behind
// yaml.UnmarshalStrict would match them case-insensitively
var profileFields = func() map[string]bool {
	fields := map[string]bool{}
	t := reflect.TypeOf(acquisition.Config{})
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if name != "" && name != "-" {
			fields[name] = true
		}
	}
	return fields
}()

func checkProfileKeys(data []byte) error {
	doc, err := yaml.YAMLToJSON(data)
	if err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(doc, &keys); err != nil {
		return err
	}
	for key := range keys {
		if !profileFields[key] {
			return ErrUnknownField{Field: key}
		}
	}
	return nil
}

func MarshalProfile(cfg *acquisition.Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func LoadProfile(path string) (*acquisition.Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, ErrProfile{Path: path, Err: err}
	}
	cfg, err := ParseProfile(data)
	if err != nil {
		return nil, ErrProfile{Path: path, Err: err}
	}
	return cfg, nil
}

func SaveProfile(path string, cfg *acquisition.Config, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return ErrConfigFileExists{Path: path}
	}
	data, err := MarshalProfile(cfg)
	if err != nil {
		return ErrProfile{Path: path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0644)
}
