package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var Buckets = struct {
	Metadata []byte
}{
	Metadata: []byte("__metadata__"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

type boltCache struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open returns a Cache persisted in a bbolt database at path, one bucket per namespace.
func Open(path string) (_ Cache, err error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucketIfNotExists(Buckets.Metadata)
		if err != nil {
			return err
		}

		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes != nil {
			if err := json.Unmarshal(versionBytes, &version); err != nil {
				return err
			}
		}
		if version > currentVersion {
			return fmt.Errorf("cache version %d is newer than supported version %d", version, currentVersion)
		}

		versionBytes, err := json.Marshal(currentVersion)
		if err != nil {
			return err
		}
		return metadata.Put(MetadataKeys.Version, versionBytes)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltCache{db: db, now: time.Now}, nil
}

func (c *boltCache) Get(namespace, key string, value any) (found bool, err error) {
	var e entry
	err = c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &e)
	})
	if err != nil || !found {
		return false, err
	}
	if e.expired(c.now()) {
		return false, c.Delete(namespace, key)
	}
	return true, json.Unmarshal(e.Value, value)
}

func (c *boltCache) Set(namespace, key string, value any, ttl time.Duration) error {
	e, err := newEntry(value, ttl, c.now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), data)
	})
}

func (c *boltCache) Delete(namespace, key string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

func (c *boltCache) Close() error {
	return c.db.Close()
}
