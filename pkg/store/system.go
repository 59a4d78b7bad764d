package store

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

// System keys hold small operational records (schema version, migration
// markers). They live under sys:<name>, outside the conv: keyspace.

func sysKey(name string) []byte { return []byte("sys:" + name) }

// SaveSys writes a system record.
func SaveSys(name string, value []byte) error {
	if db == nil {
		return notOpen()
	}
	return db.Set(sysKey(name), value, pebble.Sync)
}

// GetSys reads a system record; ErrNotFound when absent.
func GetSys(name string) ([]byte, error) {
	if db == nil {
		return nil, notOpen()
	}
	v, closer, err := db.Get(sysKey(name))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

// DeleteSys removes a system record; missing records are a no-op.
func DeleteSys(name string) error {
	if db == nil {
		return notOpen()
	}
	return db.Delete(sysKey(name), pebble.Sync)
}
