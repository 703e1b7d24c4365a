// Package cache keeps the last device and network snapshot on disk so the
// TUI has something to show before the first scan completes.
package cache

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"iwtui/goiwd"
)

const FileName = "iwtui-cache.db"

var (
	snapshotBucket = []byte("snapshot")
	networksKey    = []byte("networks")
	devicesKey     = []byte("devices")
)

type Cache struct {
	db *bbolt.DB
}

// DefaultPath is the cache file in the system temp directory.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), FileName)
}

// Open opens or creates the cache file. A second process holding the file
// makes Open fail after a second instead of blocking.
func Open(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open cache %s", path)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) SaveNetworks(networks []goiwd.Network) error {
	return c.setJSON(networksKey, networks)
}

func (c *Cache) SaveDevices(devices []goiwd.Device) error {
	return c.setJSON(devicesKey, devices)
}

// Networks returns the cached scan results, or nil when nothing was cached.
func (c *Cache) Networks() ([]goiwd.Network, error) {
	var networks []goiwd.Network
	if err := c.getJSON(networksKey, &networks); err != nil {
		return nil, err
	}
	return networks, nil
}

func (c *Cache) Devices() ([]goiwd.Device, error) {
	var devices []goiwd.Device
	if err := c.getJSON(devicesKey, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (c *Cache) setJSON(key []byte, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "could not marshal cache entry")
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(snapshotBucket)
		if err != nil {
			return err
		}
		return bucket.Put(key, payload)
	})
}

func (c *Cache) getJSON(key []byte, v interface{}) error {
	return c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(snapshotBucket)
		if bucket == nil {
			return nil
		}

		payload := bucket.Get(key)
		if payload == nil || bytes.Equal(payload, []byte("null")) {
			return nil
		}

		if err := json.Unmarshal(payload, v); err != nil {
			return errors.Errorf("could not unmarshal cached %s: %v", key, err)
		}
		return nil
	})
}
