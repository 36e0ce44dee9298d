package offchain

import (
	"encoding/binary"
	"errors"
	"time"

	"ecdpchain/storage"
)

// ErrLocked is returned when a previous run still holds the scan lock.
var ErrLocked = errors.New("offchain: scan lock held")

var lockKey = []byte("offchain/ecdp/lock")

// timeLock is a deadline stored in local storage. It is never released
// explicitly; a run owns it until the deadline passes.
type timeLock struct {
	db       storage.Database
	duration time.Duration
}

func (l timeLock) deadline() (time.Time, bool, error) {
	raw, err := l.db.Get(lockKey)
	if errors.Is(err, storage.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	if len(raw) != 8 {
		return time.Time{}, false, nil
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(raw))), true, nil
}

func (l timeLock) set(deadline time.Time) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(deadline.UnixNano()))
	return l.db.Put(lockKey, buf[:])
}

// acquire takes the lock at now, failing with ErrLocked while an earlier
// deadline is still in the future.
func (l timeLock) acquire(now time.Time) error {
	deadline, ok, err := l.deadline()
	if err != nil {
		return err
	}
	if ok && now.Before(deadline) {
		return ErrLocked
	}
	return l.set(now.Add(l.duration))
}

// extend pushes the deadline to now plus the lock duration.
func (l timeLock) extend(now time.Time) error {
	return l.set(now.Add(l.duration))
}
