package daemon

import (
	"errors"
	"os"
	"syscall"
	"time"

	"visionrecall/internal/config"
	"visionrecall/internal/kvstore"
)

// RuntimeInfo is written while the daemon holds its lock.
type RuntimeInfo struct {
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
	SocketPath string    `json:"socket_path"`
	ConfigPath string    `json:"config_path,omitempty"`
}

// Alive reports whether the recorded process still exists.
func (r RuntimeInfo) Alive() bool {
	if r.PID <= 0 {
		return false
	}
	proc, err := os.FindProcess(r.PID)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, os.ErrPermission)
}

// ReadRuntime loads the runtime document. ok is false when no daemon has
// recorded one.
func ReadRuntime(cfg *config.Config) (RuntimeInfo, bool, error) {
	var info RuntimeInfo
	kv, err := kvstore.Open(cfg.RuntimePath())
	if err != nil {
		return info, false, err
	}
	ok, err := kv.Load(&info)
	if err != nil || !ok {
		return info, false, err
	}
	return info, true, nil
}
