package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
)

// FileLock is a file-backed advisory lock, one per logical store. Acquisition
// creates the lock file exclusively; contenders poll with randomized backoff
// in [0, 1s). The acquisition timestamp inside the file is used only for
// hold-duration diagnostics.
type FileLock struct {
	path       string
	logger     *slog.Logger
	clock      clockwork.Clock
	acquiredAt time.Time
	held       bool

	// onHold receives the hold duration at release; wired to the
	// lock_hold_duration histogram by the stores.
	onHold func(time.Duration)
}

type lockInfo struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// NewFileLock creates a lock around path. The file is not touched until
// Acquire.
func NewFileLock(path string, logger *slog.Logger) *FileLock {
	return &FileLock{
		path:   path,
		logger: logger,
		clock:  clockwork.NewRealClock(),
	}
}

// Acquire blocks until the lock file is created or ctx is cancelled.
func (l *FileLock) Acquire(ctx context.Context) error {
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			now := l.clock.Now().UTC()
			info := lockInfo{PID: os.Getpid(), AcquiredAt: now}
			if encErr := json.NewEncoder(f).Encode(info); encErr != nil {
				f.Close()
				os.Remove(l.path)
				return fmt.Errorf("write lock info: %w", encErr)
			}
			if err := f.Close(); err != nil {
				os.Remove(l.path)
				return fmt.Errorf("close lock file: %w", err)
			}
			l.acquiredAt = now
			l.held = true
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create lock file %s: %w", l.path, err)
		}

		l.reapStale()

		// Randomized backoff keeps contending sessions from polling in
		// lockstep.
		delay := time.Duration(rand.Int63n(int64(time.Second)))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Release removes the lock file and logs the hold duration.
func (l *FileLock) Release() {
	if !l.held {
		return
	}
	l.held = false

	held := l.clock.Now().UTC().Sub(l.acquiredAt)
	if l.onHold != nil {
		l.onHold(held)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("remove lock file failed", "path", l.path, "error", err)
		return
	}
	l.logger.Debug("lock released", "path", l.path, "held", held)
}

// reapStale removes a lock file left behind by a dead process. A lock whose
// owner PID no longer exists is safe to break; one with unreadable contents
// is left for the operator.
func (l *FileLock) reapStale() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil || info.PID <= 0 {
		return
	}
	if processAlive(info.PID) {
		return
	}
	if err := os.Remove(l.path); err == nil {
		l.logger.Warn("removed stale lock file",
			"path", l.path, "pid", info.PID, "acquired_at", info.AcquiredAt)
	}
}

// processAlive reports whether a PID refers to a live process. Signal 0
// performs the existence check without delivering anything.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
