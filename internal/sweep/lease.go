package sweep

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// FileLease is a best-effort cooperative lock under the DB path so
// concurrent sweepers (multiple processes pointed at the same store) don't
// duplicate work. The sweep itself is idempotent, so a broken lease only
// costs wasted scanning, never correctness.
type FileLease struct {
	path string
}

type leaseRecord struct {
	Owner   string `json:"owner"`
	Expires int64  `json:"expires_ns"`
}

func NewFileLease(dir string) *FileLease {
	return &FileLease{path: filepath.Join(dir, "sweep.lease")}
}

// Acquire takes the lease for owner when it is free or expired. Returns
// false when another live owner holds it.
func (l *FileLease) Acquire(owner string, ttl time.Duration) (bool, error) {
	cur, err := l.read()
	if err != nil {
		return false, err
	}
	now := time.Now().UTC().UnixNano()
	if cur != nil && cur.Owner != owner && cur.Expires > now {
		return false, nil
	}
	return true, l.write(leaseRecord{Owner: owner, Expires: now + ttl.Nanoseconds()})
}

// Renew extends the lease; errors when owner no longer holds it.
func (l *FileLease) Renew(owner string, ttl time.Duration) error {
	cur, err := l.read()
	if err != nil {
		return err
	}
	if cur == nil || cur.Owner != owner {
		return errors.New("lease not held")
	}
	return l.write(leaseRecord{Owner: owner, Expires: time.Now().UTC().UnixNano() + ttl.Nanoseconds()})
}

// Release drops the lease when held by owner; releasing a lease someone
// else took over is a no-op.
func (l *FileLease) Release(owner string) error {
	cur, err := l.read()
	if err != nil {
		return err
	}
	if cur == nil || cur.Owner != owner {
		return nil
	}
	return os.Remove(l.path)
}

func (l *FileLease) read() (*leaseRecord, error) {
	b, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var rec leaseRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		// corrupt lease file: treat as free
		return nil, nil
	}
	return &rec, nil
}

func (l *FileLease) write(rec leaseRecord) error {
	b, _ := json.Marshal(rec)
	return os.WriteFile(l.path, b, 0o600)
}
