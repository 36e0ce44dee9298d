package common

import "errors"

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// ShutdownView reports whether emergency shutdown has been triggered.
type ShutdownView interface {
	IsShutdown() bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// IsShutdown treats a nil view as running.
func IsShutdown(v ShutdownView) bool {
	return v != nil && v.IsShutdown()
}
