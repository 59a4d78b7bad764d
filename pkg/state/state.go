package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dirs resolves the canonical runtime folder layout under the DB path.
type Dirs struct {
	Store     string
	State     string
	Crash     string
	Sweep     string
	Telemetry string
	Tmp       string
}

// Resolve returns the runtime directory layout for a DB path without
// touching the filesystem.
func Resolve(dbPath string) Dirs {
	statePath := filepath.Join(dbPath, "state")
	return Dirs{
		Store:     filepath.Join(dbPath, "store"),
		State:     statePath,
		Crash:     filepath.Join(statePath, "crash"),
		Sweep:     filepath.Join(statePath, "sweep"),
		Telemetry: filepath.Join(statePath, "telemetry"),
		Tmp:       filepath.Join(statePath, "tmp"),
	}
}

// Ensure creates the runtime folder layout under the provided DB path. It
// rejects symlinks and group/other-writable modes, and verifies each
// directory is writable by the process.
func Ensure(dbPath string) (Dirs, error) {
	d := Resolve(dbPath)
	for _, p := range []string{d.Store, d.Crash, d.Sweep, d.Telemetry, d.Tmp} {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return d, fmt.Errorf("cannot create parent for %s: %w", p, err)
		}

		if fi, err := os.Lstat(p); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return d, fmt.Errorf("path is a symlink: %s", p)
			}
			if !fi.IsDir() {
				return d, fmt.Errorf("path exists and is not a directory: %s", p)
			}
			if fi.Mode().Perm()&0o022 != 0 {
				return d, fmt.Errorf("path has permissive mode (group/other write): %s", p)
			}
		}

		if err := os.MkdirAll(p, 0o700); err != nil {
			return d, fmt.Errorf("cannot create path %s: %w", p, err)
		}

		tmp, err := os.CreateTemp(p, ".validate-*")
		if err != nil {
			return d, fmt.Errorf("path not writable: %s: %w", p, err)
		}
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	return d, nil
}
