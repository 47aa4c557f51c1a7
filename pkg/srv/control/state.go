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
	"sort"
	"time"

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-digitizer/pkg/acquisition"
	"jinr.ru/greenlab/go-digitizer/pkg/config"
	"jinr.ru/greenlab/go-digitizer/pkg/log"
)

// RunRecord describes the last acquisition run served by the stream endpoint
type RunRecord struct {
	RunID        string                  `json:"runId"`
	Profile      string                  `json:"profile,omitempty"`
	Mode         acquisition.AcquireMode `json:"mode"`
	Acquisitions uint32                  `json:"acquisitions"`
	Total        uint32                  `json:"total"`
	Started      time.Time               `json:"started"`
	Finished     time.Time               `json:"finished"`
	Error        string                  `json:"error,omitempty"`
}

// ProfileStore keeps named acquisition configurations and the last run
// record in a bbolt database
type ProfileStore struct {
	context.Context
	DB *bbolt.DB
}

func NewProfileStore(ctx context.Context, path string) (*ProfileStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{ProfileBucket, RunBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &ProfileStore{
		Context: ctx,
		DB:      db,
	}, nil
}

// Close ...
func (s *ProfileStore) Close() error {
	return s.DB.Close()
}

// SaveProfile validates cfg and stores it under name
func (s *ProfileStore) SaveProfile(name string, cfg *acquisition.Config, overwrite bool) error {
	log.Debug("Saving profile: %s", name)
	if err := acquisition.Validate(cfg); err != nil {
		return err
	}
	data, err := config.MarshalProfile(cfg)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ProfileBucket))
		if b == nil {
			return ErrBucketNotFound{Name: ProfileBucket}
		}
		if !overwrite && b.Get([]byte(name)) != nil {
			return ErrProfileExists{Name: name}
		}
		return b.Put([]byte(name), data)
	})
}

// GetProfile ...
func (s *ProfileStore) GetProfile(name string) (*acquisition.Config, error) {
	log.Debug("Getting profile: %s", name)
	var data []byte
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ProfileBucket))
		if b == nil {
			return ErrBucketNotFound{Name: ProfileBucket}
		}
		value := b.Get([]byte(name))
		if value == nil {
			return ErrProfileNotFound{Name: name}
		}
		// value is only valid inside the transaction
		data = append([]byte(nil), value...)
		return nil
	}); err != nil {
		return nil, err
	}
	return config.ParseProfile(data)
}

// DeleteProfile ...
func (s *ProfileStore) DeleteProfile(name string) error {
	log.Debug("Deleting profile: %s", name)
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ProfileBucket))
		if b == nil {
			return ErrBucketNotFound{Name: ProfileBucket}
		}
		if b.Get([]byte(name)) == nil {
			return ErrProfileNotFound{Name: name}
		}
		return b.Delete([]byte(name))
	})
}

// ListProfiles returns the profile names in order
func (s *ProfileStore) ListProfiles() ([]string, error) {
	names := []string{}
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ProfileBucket))
		if b == nil {
			return ErrBucketNotFound{Name: ProfileBucket}
		}
		return b.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	}); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (s *ProfileStore) SetLastRun(rec *RunRecord) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(RunBucket))
		if b == nil {
			return ErrBucketNotFound{Name: RunBucket}
		}
		return b.Put([]byte(LastRunKey), data)
	})
}

func (s *ProfileStore) GetLastRun() (*RunRecord, error) {
	rec := &RunRecord{}
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(RunBucket))
		if b == nil {
			return ErrBucketNotFound{Name: RunBucket}
		}
		value := b.Get([]byte(LastRunKey))
		if value == nil {
			return ErrNoRun{}
		}
		return yaml.Unmarshal(value, rec)
	}); err != nil {
		return nil, err
	}
	return rec, nil
}
