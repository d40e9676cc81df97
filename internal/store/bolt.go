package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketDevices  = []byte("devices")
	bucketGateways = []byte("gateways")
	bucketMeta     = []byte("meta")
	keySchema      = []byte("schema_version")
)

// schemaVersion marks the on-disk layout; bumped on incompatible changes.
const schemaVersion = "1"

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDevices, bucketGateways, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keySchema) == nil {
			return meta.Put(keySchema, []byte(schemaVersion))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) SaveDevice(dev *Device) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDevices)
		}
		data, err := json.Marshal(dev)
		if err != nil {
			return err
		}
		return b.Put([]byte(dev.StorageKey()), data)
	})
}

func (s *BoltStore) GetDevice(key string) (*Device, error) {
	var dev Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDevices)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("device %s: %w", key, ErrNotFound)
		}
		return json.Unmarshal(data, &dev)
	})
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *BoltStore) DeleteDevice(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDevices)
		}
		return b.Delete([]byte(key))
	})
}

func (s *BoltStore) ListDevices() ([]*Device, error) {
	var devices []*Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return nil // no bucket = no devices
		}
		devices = make([]*Device, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var dev Device
			if err := json.Unmarshal(v, &dev); err != nil {
				return err
			}
			devices = append(devices, &dev)
			return nil
		})
	})
	return devices, err
}

func (s *BoltStore) UpdateDevice(key string, fn func(dev *Device) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDevices)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDevices)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("device %s: %w", key, ErrNotFound)
		}
		var dev Device
		if err := json.Unmarshal(data, &dev); err != nil {
			return err
		}
		if err := fn(&dev); err != nil {
			return err
		}
		out, err := json.Marshal(&dev)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), out)
	})
}

func (s *BoltStore) SaveGateway(gw *Gateway) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGateways)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketGateways)
		}
		data, err := json.Marshal(gw)
		if err != nil {
			return err
		}
		return b.Put([]byte(gw.Name), data)
	})
}

func (s *BoltStore) GetGateway(name string) (*Gateway, error) {
	var gw Gateway
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGateways)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketGateways)
		}
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("gateway %s: %w", name, ErrNotFound)
		}
		return json.Unmarshal(data, &gw)
	})
	if err != nil {
		return nil, err
	}
	return &gw, nil
}

func (s *BoltStore) ListGateways() ([]*Gateway, error) {
	var gateways []*Gateway
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGateways)
		if b == nil {
			return nil
		}
		gateways = make([]*Gateway, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var gw Gateway
			if err := json.Unmarshal(v, &gw); err != nil {
				return err
			}
			gateways = append(gateways, &gw)
			return nil
		})
	})
	return gateways, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
