package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"noticeboard/pkg/logger"
	"noticeboard/pkg/models"
)

// User and listing documents are owned by the auth/profile and feed
// subsystems; the messaging core only reads them. The upsert paths exist so
// backend services can mirror the records into this store.

func userKey(id string) []byte    { return []byte("user:" + id) }
func listingKey(id string) []byte { return []byte("listing:" + id) }

// SaveUser upserts a user document.
func SaveUser(u models.User) error {
	if db == nil {
		return notOpen()
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := db.Set(userKey(u.ID), data, pebble.Sync); err != nil {
		logger.Log.Error("save_user_failed", zap.String("user", u.ID), zap.Error(err))
		return err
	}
	return nil
}

// GetUser loads a user document; ErrNotFound when absent.
func GetUser(id string) (models.User, error) {
	var u models.User
	if db == nil {
		return u, notOpen()
	}
	v, closer, err := db.Get(userKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return u, ErrNotFound
		}
		return u, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &u); err != nil {
		return u, fmt.Errorf("invalid user JSON: %w", err)
	}
	return u, nil
}

// SaveListing upserts a listing document.
func SaveListing(l models.Listing) error {
	if db == nil {
		return notOpen()
	}
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}
	if err := db.Set(listingKey(l.ID), data, pebble.Sync); err != nil {
		logger.Log.Error("save_listing_failed", zap.String("listing", l.ID), zap.Error(err))
		return err
	}
	return nil
}

// GetListing loads a listing document; ErrNotFound when absent.
func GetListing(id string) (models.Listing, error) {
	var l models.Listing
	if db == nil {
		return l, notOpen()
	}
	v, closer, err := db.Get(listingKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return l, ErrNotFound
		}
		return l, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &l); err != nil {
		return l, fmt.Errorf("invalid listing JSON: %w", err)
	}
	return l, nil
}
