// Package settings holds the values edited on the profile screen.
package settings

import "sync"

// Form holds the device URL typed on the profile screen. Nothing reads it
// back: the poller and the relay keep using the configured device.
type Form struct {
	mu        sync.RWMutex
	deviceURL string
}

func (f *Form) Set(url string) {
	f.mu.Lock()
	f.deviceURL = url
	f.mu.Unlock()
}

func (f *Form) Value() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.deviceURL
}
