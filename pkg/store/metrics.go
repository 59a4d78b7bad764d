package store

import (
	"io/fs"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"noticeboard/pkg/logger"
)

var (
	messagesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "noticeboard_messages_saved_total",
		Help: "Messages appended to conversations.",
	})
	conversationsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "noticeboard_conversations_saved_total",
		Help: "Conversation document writes (create and update).",
	})
	conversationsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "noticeboard_conversations_purged_total",
		Help: "Conversations hard-deleted with their messages.",
	})
)

// DiskUsage returns the best-effort on-disk size of the DB directory.
func DiskUsage() uint64 {
	if dbPath == "" {
		return 0
	}
	var total uint64
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += uint64(fi.Size())
		}
		return nil
	})
	return total
}

// LogStats emits a one-line store size summary.
func LogStats() {
	logger.Log.Info("store_stats", zap.String("disk_usage", humanize.Bytes(DiskUsage())))
}
