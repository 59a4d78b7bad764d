package progressor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"noticeboard/pkg/convo"
	"noticeboard/pkg/logger"
	"noticeboard/pkg/store"
)

const (
	systemVersionKey    = "version"
	systemInProgressKey = "migration_in_progress"
)

// Sync performs upgrade work between versions. Edit in-place for migration
// logic.
func Sync(ctx context.Context, from, to string) error {
	logger.Info("progressor_sync_start", "from", from, "to", to)

	// Migration: purge conversation records whose keys no longer parse
	// under the current key scheme. Idempotent and safe to run repeatedly.
	convs, err := store.ListConversations()
	if err != nil {
		logger.Error("progressor_list_conversations_failed", "error", err.Error())
		return err
	}
	repaired := 0
	for _, c := range convs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if convo.Validate(c) == nil {
			continue
		}
		if err := convo.HardDelete(c.ID); err != nil {
			logger.Error("progressor_repair_failed", "conversation", c.ID, "error", err.Error())
			continue
		}
		repaired++
	}
	if repaired > 0 {
		logger.Info("progressor_repaired_conversations", "count", repaired)
	}

	logger.Info("progressor_sync_done", "from", from, "to", to)
	return nil
}

// Run checks for a version change and runs Sync if needed.
// Returns (invoked, error): invoked is true if Sync ran.
func Run(ctx context.Context, newVersion string) (bool, error) {
	stored := getStoredVersion()
	logger.Info("progressor_version_check", "stored", stored, "running", newVersion)
	if stored == newVersion {
		logger.Info("progressor_noop", "version", newVersion)
		return false, nil
	}

	marker := map[string]string{
		"from":       stored,
		"to":         newVersion,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
	mb, _ := json.Marshal(marker)
	if err := store.SaveSys(systemInProgressKey, mb); err != nil {
		logger.Error("progressor_write_inprogress_failed", "error", err.Error())
		return true, fmt.Errorf("failed to write in-progress marker: %w", err)
	}

	logger.Info("progressor_start_sync", "from", stored, "to", newVersion)
	if err := Sync(ctx, stored, newVersion); err != nil {
		logger.Error("progressor_sync_failed", "from", stored, "to", newVersion, "error", err.Error())
		return true, err
	}

	if err := store.SaveSys(systemVersionKey, []byte(newVersion)); err != nil {
		logger.Error("progressor_persist_version_failed", "version", newVersion, "error", err.Error())
		return true, fmt.Errorf("failed to persist new version: %w", err)
	}

	if err := store.DeleteSys(systemInProgressKey); err != nil {
		logger.Error("progressor_delete_inprogress_failed", "error", err.Error())
	}

	logger.Info("progressor_version_persisted", "version", newVersion)
	return true, nil
}

func getStoredVersion() string {
	v, err := store.GetSys(systemVersionKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Error("progressor_read_version_failed", "error", err.Error())
		}
		return ""
	}
	return string(v)
}
